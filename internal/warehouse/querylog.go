package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LogEntry is one durable record of a processed query. Logging is
// best-effort: callers must never fail a request over a logging error.
type LogEntry struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	QueryText       string    `json:"query_text"`
	SQLGenerated    string    `json:"sql_generated"`
	RowsReturned    int       `json:"rows_returned"`
	ExecutionTimeMS int64     `json:"execution_time_ms"`
	CreatedAt       time.Time `json:"created_at"`
}

// QueryLog persists the append-only query log in the warehouse database.
type QueryLog struct {
	pool *Pool
}

func NewQueryLog(ctx context.Context, pool *Pool) (*QueryLog, error) {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS query_log (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			query_text TEXT NOT NULL,
			sql_generated TEXT NOT NULL DEFAULT '',
			rows_returned INTEGER NOT NULL DEFAULT 0,
			execution_time_ms BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_query_log_user_created ON query_log (user_id, created_at DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.pool.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("init query log schema: %w", err)
		}
	}
	return &QueryLog{pool: pool}, nil
}

func (l *QueryLog) Record(ctx context.Context, entry LogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := l.pool.pool.Exec(ctx,
		`INSERT INTO query_log (id, user_id, query_text, sql_generated, rows_returned, execution_time_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID,
		entry.UserID,
		entry.QueryText,
		entry.SQLGenerated,
		entry.RowsReturned,
		entry.ExecutionTimeMS,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record query: %w", err)
	}
	return nil
}

// RecentByUser returns the user's query log entries, most recent first.
func (l *QueryLog) RecentByUser(ctx context.Context, userID string, limit int) ([]LogEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := l.pool.pool.Query(ctx,
		`SELECT id, user_id, query_text, sql_generated, rows_returned, execution_time_ms, created_at
		 FROM query_log WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	entries := make([]LogEntry, 0, limit)
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.QueryText, &e.SQLGenerated, &e.RowsReturned, &e.ExecutionTimeMS, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return entries, nil
}
