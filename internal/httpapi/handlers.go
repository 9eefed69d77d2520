package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/filflo/brain/internal/brain"
	"github.com/filflo/brain/internal/warehouse"
)

const (
	queryMinLen  = 5
	queryMaxLen  = 500
	userIDMaxLen = 100

	historyDefaultLimit = 20
	historyMaxLimit     = 100

	maxBodyBytes = 1 << 20
)

// envelope is the single response shape for success and failure alike, so the
// front end never needs a separate rendering path for errors.
type envelope struct {
	Success bool     `json:"success"`
	Data    any      `json:"data,omitempty"`
	Error   string   `json:"error,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

type failureData struct {
	FormattedResponse string `json:"formatted_response"`
	ErrorDetails      string `json:"error_details"`
}

type queryRequest struct {
	Query  string `json:"query"`
	UserID string `json:"userId"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req queryRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, envelope{
			Success: false,
			Errors:  []string{"request body must be valid JSON"},
		})
		return
	}

	req.Query = strings.TrimSpace(req.Query)
	req.UserID = strings.TrimSpace(req.UserID)

	var problems []string
	if n := len(req.Query); n < queryMinLen || n > queryMaxLen {
		problems = append(problems, "query must be between 5 and 500 characters")
	}
	if n := len(req.UserID); n < 1 || n > userIDMaxLen {
		problems = append(problems, "userId is required and must be at most 100 characters")
	}
	if len(problems) > 0 {
		respondJSON(w, http.StatusBadRequest, envelope{Success: false, Errors: problems})
		return
	}

	resp, err := s.brain.ProcessQuery(r.Context(), req.UserID, req.Query)
	if err != nil {
		status, userMsg := mapPipelineError(err)
		s.log.Error().Err(err).Str("user_id", req.UserID).Msg("query pipeline failed")
		respondJSON(w, status, envelope{
			Success: false,
			Data: failureData{
				FormattedResponse: userMsg,
				ErrorDetails:      pipelineErrorCode(err),
			},
		})
		return
	}

	respondJSON(w, http.StatusOK, envelope{Success: true, Data: resp})
}

// mapPipelineError turns taxonomy errors into a status code and a user-safe
// message. Internal detail never leaves the logs.
func mapPipelineError(err error) (int, string) {
	var verr *brain.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest,
			"I can only run read-only questions against the warehouse data, and that request didn't pass my safety checks. Try rephrasing it as a question about your data."
	case errors.Is(err, brain.ErrServiceUnavailable):
		return http.StatusInternalServerError,
			"The AI analysis service is currently unavailable. Please check back shortly."
	case errors.Is(err, brain.ErrGenerationFailed):
		return http.StatusInternalServerError,
			"I'm having trouble understanding that right now. Please try rephrasing your question."
	case errors.Is(err, brain.ErrExecutionFailed):
		return http.StatusInternalServerError,
			"I couldn't run that query against the warehouse data. Please try a different question."
	default:
		return http.StatusInternalServerError,
			"Something went wrong while processing your question. Please try again."
	}
}

func pipelineErrorCode(err error) string {
	var verr *brain.ValidationError
	switch {
	case errors.As(err, &verr):
		return "query_rejected"
	case errors.Is(err, brain.ErrServiceUnavailable):
		return "service_unavailable"
	case errors.Is(err, brain.ErrGenerationFailed):
		return "generation_failed"
	case errors.Is(err, brain.ErrExecutionFailed):
		return "execution_failed"
	default:
		return "internal_error"
	}
}

func (s *Server) handleDashboardMetrics(w http.ResponseWriter, r *http.Request) {
	metrics := s.warehouse.Dashboard(r.Context(), s.log)
	respondJSON(w, http.StatusOK, envelope{Success: true, Data: metrics})
}

func (s *Server) handleSuggestions(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, envelope{Success: true, Data: brain.Suggestions()})
}

func (s *Server) handleQueryHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	limit := historyDefaultLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondJSON(w, http.StatusBadRequest, envelope{
				Success: false,
				Errors:  []string{"limit must be a positive integer"},
			})
			return
		}
		limit = n
	}
	if limit > historyMaxLimit {
		limit = historyMaxLimit
	}

	entries, err := s.history.RecentByUser(r.Context(), userID, limit)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("query history read failed")
		respondJSON(w, http.StatusInternalServerError, envelope{
			Success: false,
			Error:   "Failed to fetch query history",
		})
		return
	}
	respondJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]any{
		"user_id": userID,
		"history": entries,
		"count":   len(entries),
	}})
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	turns, err := s.store.History(r.Context(), userID)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("conversation read failed")
		respondJSON(w, http.StatusInternalServerError, envelope{
			Success: false,
			Error:   "Failed to fetch conversation history",
		})
		return
	}
	respondJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]any{
		"user_id":      userID,
		"conversation": turns,
		"length":       len(turns),
	}})
}

func (s *Server) handleClearConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	if err := s.store.Clear(r.Context(), userID); err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("conversation clear failed")
		respondJSON(w, http.StatusInternalServerError, envelope{
			Success: false,
			Error:   "Failed to clear conversation history",
		})
		return
	}
	respondJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]any{
		"user_id": userID,
		"message": "Conversation history cleared",
	}})
}

func (s *Server) handleBrainHealth(w http.ResponseWriter, r *http.Request) {
	services := map[string]string{
		"database":   "healthy",
		"ai_service": "healthy",
	}
	healthy := true

	if err := s.warehouse.Ping(r.Context()); err != nil {
		services["database"] = "unreachable"
		healthy = false
	}
	if !s.brain.Available() {
		services["ai_service"] = "unavailable"
		healthy = false
	}

	status := "healthy"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, map[string]any{
		"success":   healthy,
		"status":    status,
		"services":  services,
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleProcessHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "FilFlo Brain API is running",
		"timestamp": time.Now().UTC(),
		"version":   "1.0.0",
	})
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	tables, err := s.warehouse.ListTables(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("list tables failed")
		respondJSON(w, http.StatusInternalServerError, envelope{
			Success: false,
			Error:   "Failed to fetch tables",
		})
		return
	}
	respondJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]any{
		"tables": tables,
		"count":  len(tables),
	}})
}

func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	columns, err := s.warehouse.DescribeTable(r.Context(), table)
	if err != nil {
		if errors.Is(err, warehouse.ErrInvalidTableName) {
			respondJSON(w, http.StatusBadRequest, envelope{
				Success: false,
				Errors:  []string{"table name may only contain letters, digits, and underscores"},
			})
			return
		}
		s.log.Error().Err(err).Str("table", table).Msg("describe table failed")
		respondJSON(w, http.StatusInternalServerError, envelope{
			Success: false,
			Error:   "Failed to describe table",
		})
		return
	}
	respondJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]any{
		"table":     table,
		"structure": columns,
	}})
}

func (s *Server) handleWelcome(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Welcome to the FilFlo Brain API",
		"version": "1.0.0",
		"status":  "active",
		"endpoints": map[string]string{
			"query":        "POST /api/brain/query",
			"metrics":      "GET /api/brain/metrics",
			"suggestions":  "GET /api/brain/suggestions",
			"history":      "GET /api/brain/history/{userId}",
			"conversation": "GET /api/brain/conversation/{userId}",
			"health":       "GET /api/brain/health",
		},
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusNotFound, envelope{
		Success: false,
		Error:   "Endpoint not found",
		Data: map[string]any{
			"available_endpoints": []string{
				"GET /",
				"GET /health",
				"GET /metrics",
				"POST /api/brain/query",
				"GET /api/brain/metrics",
				"GET /api/brain/suggestions",
				"GET /api/brain/history/{userId}",
				"GET /api/brain/conversation/{userId}",
				"DELETE /api/brain/conversation/{userId}",
				"GET /api/brain/health",
			},
		},
	})
}

func userIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(chi.URLParam(r, "userID"))
	if userID == "" || len(userID) > userIDMaxLen {
		respondJSON(w, http.StatusBadRequest, envelope{
			Success: false,
			Errors:  []string{"valid user ID is required"},
		})
		return "", false
	}
	return userID, true
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
