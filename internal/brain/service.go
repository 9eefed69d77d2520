package brain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/filflo/brain/internal/conversation"
	"github.com/filflo/brain/internal/observability"
	"github.com/filflo/brain/internal/warehouse"
)

// Pipeline error taxonomy. Handlers map these to user-safe envelopes; the
// underlying detail stays in logs.
var (
	ErrServiceUnavailable = errors.New("ai service unavailable")
	ErrGenerationFailed   = errors.New("sql generation failed")
	ErrExecutionFailed    = errors.New("query execution failed")
)

const greetingReply = "Hello! I'm Flo, your warehouse analyst. " +
	"Ask me about sales, inventory, fulfillment, or anything else in the FilFlo data."

const directResponseSQL = "N/A - direct response"

// Executor runs one validated read statement against the warehouse.
type Executor interface {
	Execute(ctx context.Context, sql string, args ...any) ([]warehouse.Row, error)
}

// QueryLogger records processed queries, best-effort.
type QueryLogger interface {
	Record(ctx context.Context, entry warehouse.LogEntry) error
}

// Metadata accompanies every successful query response.
type Metadata struct {
	RowsReturned    int       `json:"rows_returned"`
	ExecutionTimeMS int64     `json:"execution_time_ms"`
	Timestamp       time.Time `json:"timestamp"`
	DirectResponse  bool      `json:"direct_response,omitempty"`
}

// QueryResponse is the externally visible payload of a processed query.
type QueryResponse struct {
	OriginalQuery      string          `json:"original_query"`
	SQLGenerated       string          `json:"sql_generated"`
	Results            []warehouse.Row `json:"results"`
	FormattedResponse  string          `json:"formatted_response"`
	ConversationLength int             `json:"conversation_length"`
	Metadata           Metadata        `json:"metadata"`
}

// Service sequences the query pipeline: history lookup, SQL generation,
// validation, execution, narration, history append, and best-effort logging.
type Service struct {
	generator *Generator
	formatter *Formatter
	store     conversation.Store
	executor  Executor
	queryLog  QueryLogger
	metrics   *observability.Metrics
	log       zerolog.Logger
}

func NewService(
	generator *Generator,
	formatter *Formatter,
	store conversation.Store,
	executor Executor,
	queryLog QueryLogger,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Service {
	return &Service{
		generator: generator,
		formatter: formatter,
		store:     store,
		executor:  executor,
		queryLog:  queryLog,
		metrics:   metrics,
		log:       log,
	}
}

// Available reports whether the generation subsystem was constructed.
func (s *Service) Available() bool {
	return s != nil && s.generator != nil && s.formatter != nil
}

// ProcessQuery runs one request through the pipeline.
func (s *Service) ProcessQuery(ctx context.Context, userID, question string) (*QueryResponse, error) {
	if !s.Available() {
		return nil, ErrServiceUnavailable
	}

	history, err := s.store.History(ctx, userID)
	if err != nil {
		// A history read failure degrades to an empty context window.
		s.log.Warn().Err(err).Str("user_id", userID).Msg("history read failed")
		history = nil
	}

	genStart := time.Now()
	generated, err := s.generator.Generate(ctx, question, history)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			s.metrics.RejectedQueries.WithLabelValues(verr.Reason).Inc()
			s.metrics.QueriesTotal.WithLabelValues("rejected").Inc()
		} else {
			s.metrics.ProviderErrors.WithLabelValues("llm", "generate").Inc()
			s.metrics.QueriesTotal.WithLabelValues("generation_error").Inc()
		}
		return nil, err
	}
	s.metrics.ObserveStage("generate", time.Since(genStart))

	switch generated.Kind {
	case KindGreeting:
		return s.respondGreeting(ctx, userID)
	case KindDirect:
		return s.respondDirect(ctx, userID, question, history, generated.Text)
	}

	execStart := time.Now()
	results, err := s.executor.Execute(ctx, generated.Text)
	execElapsed := time.Since(execStart)
	if err != nil {
		s.metrics.QueriesTotal.WithLabelValues("execution_error").Inc()
		return nil, fmt.Errorf("%w: %w", ErrExecutionFailed, err)
	}
	s.metrics.ObserveStage("execute", execElapsed)
	s.metrics.RowsReturned.Observe(float64(len(results)))

	fmtStart := time.Now()
	formatted := s.formatter.Format(ctx, results, question, history)
	s.metrics.ObserveStage("format", time.Since(fmtStart))
	if formatted.Kind == FormatFallback {
		s.metrics.ProviderErrors.WithLabelValues("llm", "format").Inc()
	}

	if err := s.store.AppendExchange(ctx, userID, question, formatted.Text); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("history append failed")
	}
	s.recordQuery(ctx, warehouse.LogEntry{
		UserID:          userID,
		QueryText:       question,
		SQLGenerated:    generated.Text,
		RowsReturned:    len(results),
		ExecutionTimeMS: execElapsed.Milliseconds(),
	})

	s.metrics.QueriesTotal.WithLabelValues("success").Inc()
	length, _ := s.conversationLength(ctx, userID)
	return &QueryResponse{
		OriginalQuery:      question,
		SQLGenerated:       generated.Text,
		Results:            results,
		FormattedResponse:  formatted.Text,
		ConversationLength: length,
		Metadata: Metadata{
			RowsReturned:    len(results),
			ExecutionTimeMS: execElapsed.Milliseconds(),
			Timestamp:       time.Now().UTC(),
		},
	}, nil
}

// respondGreeting answers with the fixed greeting. The greeting turn is
// never stored; when the reset policy is on, prior history is discarded.
func (s *Service) respondGreeting(ctx context.Context, userID string) (*QueryResponse, error) {
	if s.generator.ResetOnGreeting {
		if err := s.store.Clear(ctx, userID); err != nil {
			s.log.Warn().Err(err).Str("user_id", userID).Msg("greeting reset failed")
		}
	}
	s.metrics.QueriesTotal.WithLabelValues("greeting").Inc()

	length, _ := s.conversationLength(ctx, userID)
	return &QueryResponse{
		OriginalQuery:      "",
		SQLGenerated:       "",
		Results:            []warehouse.Row{},
		FormattedResponse:  greetingReply,
		ConversationLength: length,
		Metadata: Metadata{
			RowsReturned: 0,
			Timestamp:    time.Now().UTC(),
		},
	}, nil
}

// respondDirect handles generator output that is prose rather than SQL: the
// executor is skipped and the text is the final narration.
func (s *Service) respondDirect(ctx context.Context, userID, question string, history []conversation.Turn, answer string) (*QueryResponse, error) {
	if err := s.store.AppendExchange(ctx, userID, question, answer); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("history append failed")
	}
	s.recordQuery(ctx, warehouse.LogEntry{
		UserID:       userID,
		QueryText:    question,
		SQLGenerated: directResponseSQL,
	})
	s.metrics.QueriesTotal.WithLabelValues("direct").Inc()

	length, _ := s.conversationLength(ctx, userID)
	return &QueryResponse{
		OriginalQuery:      question,
		SQLGenerated:       directResponseSQL,
		Results:            []warehouse.Row{},
		FormattedResponse:  answer,
		ConversationLength: length,
		Metadata: Metadata{
			RowsReturned:   0,
			Timestamp:      time.Now().UTC(),
			DirectResponse: true,
		},
	}, nil
}

func (s *Service) recordQuery(ctx context.Context, entry warehouse.LogEntry) {
	if s.queryLog == nil {
		return
	}
	if err := s.queryLog.Record(ctx, entry); err != nil {
		s.log.Warn().Err(err).Str("user_id", entry.UserID).Msg("query log write failed")
	}
}

func (s *Service) conversationLength(ctx context.Context, userID string) (int, error) {
	history, err := s.store.History(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(history), nil
}
