package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/filflo/brain/internal/brain"
	"github.com/filflo/brain/internal/config"
	"github.com/filflo/brain/internal/conversation"
	"github.com/filflo/brain/internal/observability"
	"github.com/filflo/brain/internal/warehouse"
)

// Brain processes natural-language queries end to end.
type Brain interface {
	ProcessQuery(ctx context.Context, userID, question string) (*brain.QueryResponse, error)
	Available() bool
}

// Warehouse is the read surface the dashboard and debug endpoints need.
type Warehouse interface {
	Dashboard(ctx context.Context, log zerolog.Logger) warehouse.DashboardMetrics
	ListTables(ctx context.Context) ([]string, error)
	DescribeTable(ctx context.Context, table string) ([]warehouse.Column, error)
	Ping(ctx context.Context) error
}

// HistoryLog reads the persisted query log.
type HistoryLog interface {
	RecentByUser(ctx context.Context, userID string, limit int) ([]warehouse.LogEntry, error)
}

type Server struct {
	cfg       config.Config
	brain     Brain
	store     conversation.Store
	warehouse Warehouse
	history   HistoryLog
	log       zerolog.Logger
}

func New(
	cfg config.Config,
	b Brain,
	store conversation.Store,
	wh Warehouse,
	history HistoryLog,
	log zerolog.Logger,
) *Server {
	return &Server{
		cfg:       cfg,
		brain:     b,
		store:     store,
		warehouse: wh,
		history:   history,
		log:       log,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))
	r.Use(securityHeaders)
	r.Use(cors.Handler(s.corsOptions()))
	r.Use(httprate.Limit(
		s.cfg.GeneralRateLimit,
		s.cfg.GeneralRateWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(s.handleRateLimited),
	))

	r.Get("/", s.handleWelcome)
	r.Get("/health", s.handleProcessHealth)
	r.Method(http.MethodGet, "/metrics", observability.MetricsHandler())

	r.Route("/api/brain", func(r chi.Router) {
		r.With(httprate.Limit(
			s.cfg.QueryRateLimit,
			s.cfg.QueryRateWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(s.handleQueryRateLimited),
		)).Post("/query", s.handleQuery)

		r.Get("/metrics", s.handleDashboardMetrics)
		r.Get("/suggestions", s.handleSuggestions)
		r.Get("/history/{userID}", s.handleQueryHistory)
		r.Get("/conversation/{userID}", s.handleConversation)
		r.Delete("/conversation/{userID}", s.handleClearConversation)
		r.Get("/health", s.handleBrainHealth)
		r.Get("/tables", s.handleTables)
		r.Get("/describe/{table}", s.handleDescribe)
	})

	r.NotFound(s.handleNotFound)
	return r
}

func (s *Server) corsOptions() cors.Options {
	opts := cors.Options{
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAnyOrigin {
		opts.AllowedOrigins = []string{"*"}
		opts.AllowCredentials = false
		return opts
	}
	opts.AllowOriginFunc = func(_ *http.Request, origin string) bool {
		for _, allowed := range s.cfg.AllowedOrigins {
			if strings.EqualFold(allowed, origin) {
				return true
			}
			// "https://*.example.app" entries allow preview deployments.
			if rest, ok := strings.CutPrefix(allowed, "https://*"); ok {
				if strings.HasPrefix(origin, "https://") && strings.HasSuffix(origin, rest) {
					return true
				}
			}
		}
		return false
	}
	return opts
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data: https:")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRateLimited(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusTooManyRequests, envelope{
		Success: false,
		Error:   "Too many requests from this IP, please try again later.",
	})
}

func (s *Server) handleQueryRateLimited(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusTooManyRequests, envelope{
		Success: false,
		Error:   "Too many queries. Please wait before asking another question.",
	})
}
