package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/filflo/brain/internal/brain"
	"github.com/filflo/brain/internal/config"
	"github.com/filflo/brain/internal/conversation"
	"github.com/filflo/brain/internal/warehouse"
)

type stubBrain struct {
	resp      *brain.QueryResponse
	err       error
	available bool
	calls     int
}

func (b *stubBrain) ProcessQuery(_ context.Context, userID, question string) (*brain.QueryResponse, error) {
	b.calls++
	if b.err != nil {
		return nil, b.err
	}
	if b.resp != nil {
		return b.resp, nil
	}
	return &brain.QueryResponse{
		OriginalQuery:      question,
		SQLGenerated:       "SELECT 1",
		Results:            []warehouse.Row{},
		FormattedResponse:  "stub response",
		ConversationLength: 2,
		Metadata:           brain.Metadata{Timestamp: time.Now().UTC()},
	}, nil
}

func (b *stubBrain) Available() bool { return b.available }

type stubWarehouse struct {
	pingErr error
	tables  []string
}

func (w *stubWarehouse) Dashboard(context.Context, zerolog.Logger) warehouse.DashboardMetrics {
	return warehouse.DashboardMetrics{FillRate: 92.5, PendingOrders: 47, ActiveAlerts: 12, TotalSKUs: 250}
}

func (w *stubWarehouse) ListTables(context.Context) ([]string, error) {
	return w.tables, nil
}

func (w *stubWarehouse) DescribeTable(_ context.Context, table string) ([]warehouse.Column, error) {
	if !warehouse.ValidIdentifier(table) {
		return nil, warehouse.ErrInvalidTableName
	}
	return []warehouse.Column{{Name: "sku_code", DataType: "text"}}, nil
}

func (w *stubWarehouse) Ping(context.Context) error { return w.pingErr }

type stubHistory struct {
	entries   []warehouse.LogEntry
	lastLimit int
}

func (h *stubHistory) RecentByUser(_ context.Context, _ string, limit int) ([]warehouse.LogEntry, error) {
	h.lastLimit = limit
	return h.entries, nil
}

func testConfig() config.Config {
	return config.Config{
		RequestTimeout:    30 * time.Second,
		AllowedOrigins:    []string{"http://localhost:3000"},
		GeneralRateLimit:  1000,
		GeneralRateWindow: time.Minute,
		QueryRateLimit:    1000,
		QueryRateWindow:   time.Minute,
	}
}

func newTestServer(t *testing.T, cfg config.Config, b *stubBrain) (*httptest.Server, *stubHistory, conversation.Store) {
	t.Helper()
	store := conversation.NewInMemoryStore(10)
	history := &stubHistory{}
	srv := New(cfg, b, store, &stubWarehouse{tables: []string{"dim_product", "fact_sales"}}, history, zerolog.Nop())
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, history, store
}

func postQuery(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, _ := json.Marshal(body)
	res, err := http.Post(url+"/api/brain/query", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST /api/brain/query error = %v", err)
	}
	return res
}

func decodeBody(t *testing.T, res *http.Response) map[string]any {
	t.Helper()
	defer res.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestQuerySuccessEnvelope(t *testing.T) {
	b := &stubBrain{available: true}
	ts, _, _ := newTestServer(t, testConfig(), b)

	res := postQuery(t, ts.URL, map[string]string{
		"query":  "Show me the top 5 products by sales value",
		"userId": "u1",
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}
	body := decodeBody(t, res)
	if body["success"] != true {
		t.Fatalf("success = %v, want true", body["success"])
	}
	data, _ := body["data"].(map[string]any)
	if data["formatted_response"] != "stub response" {
		t.Fatalf("formatted_response = %v", data["formatted_response"])
	}
	if data["conversation_length"] != float64(2) {
		t.Fatalf("conversation_length = %v, want 2", data["conversation_length"])
	}
}

func TestQueryValidation(t *testing.T) {
	cases := []struct {
		name string
		body any
	}{
		{"empty body", map[string]string{}},
		{"query too short", map[string]string{"query": "Hi", "userId": "u1"}},
		{"query too long", map[string]string{"query": strings.Repeat("a", 501), "userId": "u1"}},
		{"missing user", map[string]string{"query": "Show me pending orders"}},
		{"user too long", map[string]string{"query": "Show me pending orders", "userId": strings.Repeat("u", 101)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := &stubBrain{available: true}
			ts, _, _ := newTestServer(t, testConfig(), b)

			res := postQuery(t, ts.URL, tc.body)
			if res.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", res.StatusCode)
			}
			body := decodeBody(t, res)
			if body["success"] != false {
				t.Fatalf("success = %v, want false", body["success"])
			}
			errs, _ := body["errors"].([]any)
			if len(errs) == 0 {
				t.Fatalf("errors list is empty: %+v", body)
			}
			if b.calls != 0 {
				t.Fatalf("pipeline invoked %d times for invalid input", b.calls)
			}
		})
	}
}

func TestQueryMalformedJSON(t *testing.T) {
	b := &stubBrain{available: true}
	ts, _, _ := newTestServer(t, testConfig(), b)

	res, err := http.Post(ts.URL+"/api/brain/query", "application/json", strings.NewReader(`{"invalid": json}`))
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", res.StatusCode)
	}
	if b.calls != 0 {
		t.Fatalf("pipeline invoked for malformed JSON")
	}
	res.Body.Close()
}

func TestQueryPipelineErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"rejected", &brain.ValidationError{Reason: "DROP statement"}, http.StatusBadRequest, "query_rejected"},
		{"unavailable", brain.ErrServiceUnavailable, http.StatusInternalServerError, "service_unavailable"},
		{"generation", brain.ErrGenerationFailed, http.StatusInternalServerError, "generation_failed"},
		{"execution", brain.ErrExecutionFailed, http.StatusInternalServerError, "execution_failed"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts, _, _ := newTestServer(t, testConfig(), &stubBrain{available: true, err: tc.err})

			res := postQuery(t, ts.URL, map[string]string{
				"query":  "Show me the top products",
				"userId": "u1",
			})
			if res.StatusCode != tc.wantStatus {
				t.Fatalf("status = %d, want %d", res.StatusCode, tc.wantStatus)
			}
			body := decodeBody(t, res)
			if body["success"] != false {
				t.Fatalf("success = %v, want false", body["success"])
			}
			data, _ := body["data"].(map[string]any)
			if data["formatted_response"] == "" || data["formatted_response"] == nil {
				t.Fatalf("missing user-safe formatted_response: %+v", data)
			}
			if data["error_details"] != tc.wantCode {
				t.Fatalf("error_details = %v, want %q", data["error_details"], tc.wantCode)
			}
		})
	}
}

func TestQueryRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.QueryRateLimit = 3
	cfg.QueryRateWindow = time.Minute
	ts, _, _ := newTestServer(t, cfg, &stubBrain{available: true})

	var limited int
	for i := 0; i < 6; i++ {
		res := postQuery(t, ts.URL, map[string]string{
			"query":  "Show me pending orders today",
			"userId": "u1",
		})
		if res.StatusCode == http.StatusTooManyRequests {
			limited++
			body := decodeBody(t, res)
			if !strings.Contains(body["error"].(string), "Too many queries") {
				t.Fatalf("rate limit body = %+v", body)
			}
		} else {
			res.Body.Close()
		}
	}
	if limited == 0 {
		t.Fatalf("no request was rate limited")
	}
}

func TestConversationEndpoints(t *testing.T) {
	ts, _, store := newTestServer(t, testConfig(), &stubBrain{available: true})
	ctx := context.Background()
	_ = store.AppendExchange(ctx, "u1", "question", "answer")

	res, err := http.Get(ts.URL + "/api/brain/conversation/u1")
	if err != nil {
		t.Fatalf("GET conversation error = %v", err)
	}
	body := decodeBody(t, res)
	data, _ := body["data"].(map[string]any)
	if data["length"] != float64(2) {
		t.Fatalf("length = %v, want 2", data["length"])
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/brain/conversation/u1", nil)
	delRes, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE conversation error = %v", err)
	}
	if delRes.StatusCode != http.StatusOK {
		t.Fatalf("DELETE status = %d, want 200", delRes.StatusCode)
	}
	delRes.Body.Close()

	turns, _ := store.History(ctx, "u1")
	if len(turns) != 0 {
		t.Fatalf("history after DELETE len = %d, want 0", len(turns))
	}
}

func TestQueryHistoryLimitSanitized(t *testing.T) {
	ts, history, _ := newTestServer(t, testConfig(), &stubBrain{available: true})

	res, err := http.Get(ts.URL + "/api/brain/history/u1")
	if err != nil {
		t.Fatalf("GET history error = %v", err)
	}
	res.Body.Close()
	if history.lastLimit != 20 {
		t.Fatalf("default limit = %d, want 20", history.lastLimit)
	}

	res, err = http.Get(ts.URL + "/api/brain/history/u1?limit=500")
	if err != nil {
		t.Fatalf("GET history error = %v", err)
	}
	res.Body.Close()
	if history.lastLimit != 100 {
		t.Fatalf("capped limit = %d, want 100", history.lastLimit)
	}

	res, err = http.Get(ts.URL + "/api/brain/history/u1?limit=-3")
	if err != nil {
		t.Fatalf("GET history error = %v", err)
	}
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("negative limit status = %d, want 400", res.StatusCode)
	}
	res.Body.Close()
}

func TestSuggestions(t *testing.T) {
	ts, _, _ := newTestServer(t, testConfig(), &stubBrain{available: true})

	res, err := http.Get(ts.URL + "/api/brain/suggestions")
	if err != nil {
		t.Fatalf("GET suggestions error = %v", err)
	}
	body := decodeBody(t, res)
	if body["success"] != true {
		t.Fatalf("success = %v, want true", body["success"])
	}
	list, _ := body["data"].([]any)
	if len(list) == 0 {
		t.Fatalf("suggestions list is empty")
	}
}

func TestDashboardMetrics(t *testing.T) {
	ts, _, _ := newTestServer(t, testConfig(), &stubBrain{available: true})

	res, err := http.Get(ts.URL + "/api/brain/metrics")
	if err != nil {
		t.Fatalf("GET metrics error = %v", err)
	}
	body := decodeBody(t, res)
	data, _ := body["data"].(map[string]any)
	for _, key := range []string{"fill_rate", "pending_orders", "active_alerts", "total_skus"} {
		if _, ok := data[key]; !ok {
			t.Fatalf("missing %q in dashboard metrics: %+v", key, data)
		}
	}
}

func TestBrainHealth(t *testing.T) {
	ts, _, _ := newTestServer(t, testConfig(), &stubBrain{available: true})

	res, err := http.Get(ts.URL + "/api/brain/health")
	if err != nil {
		t.Fatalf("GET health error = %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}
	body := decodeBody(t, res)
	if body["status"] != "healthy" {
		t.Fatalf("status = %v, want healthy", body["status"])
	}

	// AI subsystem down degrades health.
	down, _, _ := newTestServer(t, testConfig(), &stubBrain{available: false})
	res, err = http.Get(down.URL + "/api/brain/health")
	if err != nil {
		t.Fatalf("GET health error = %v", err)
	}
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("degraded status = %d, want 503", res.StatusCode)
	}
	body = decodeBody(t, res)
	services, _ := body["services"].(map[string]any)
	if services["ai_service"] != "unavailable" {
		t.Fatalf("ai_service = %v, want unavailable", services["ai_service"])
	}
}

func TestDescribeTableValidation(t *testing.T) {
	ts, _, _ := newTestServer(t, testConfig(), &stubBrain{available: true})

	res, err := http.Get(ts.URL + "/api/brain/describe/fact_sales")
	if err != nil {
		t.Fatalf("GET describe error = %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}
	res.Body.Close()

	res, err = http.Get(ts.URL + "/api/brain/describe/fact;drop")
	if err != nil {
		t.Fatalf("GET describe error = %v", err)
	}
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("injection attempt status = %d, want 400", res.StatusCode)
	}
	res.Body.Close()
}

func TestWelcomeAndNotFound(t *testing.T) {
	ts, _, _ := newTestServer(t, testConfig(), &stubBrain{available: true})

	res, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET / error = %v", err)
	}
	body := decodeBody(t, res)
	if body["status"] != "active" {
		t.Fatalf("welcome status = %v", body["status"])
	}

	res, err = http.Get(ts.URL + "/no/such/route")
	if err != nil {
		t.Fatalf("GET unknown error = %v", err)
	}
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", res.StatusCode)
	}
	body = decodeBody(t, res)
	if body["success"] != false {
		t.Fatalf("404 success = %v, want false", body["success"])
	}
}

func TestSecurityHeaders(t *testing.T) {
	ts, _, _ := newTestServer(t, testConfig(), &stubBrain{available: true})

	res, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	defer res.Body.Close()
	if got := res.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options = %q", got)
	}
	if got := res.Header.Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("X-Frame-Options = %q", got)
	}
}
