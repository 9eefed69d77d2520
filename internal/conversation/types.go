package conversation

import (
	"context"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single user or assistant message in a conversation history.
// Turns are immutable once appended.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"timestamp"`
}

// Store keeps a bounded conversation history per user identifier.
//
// History never fails for an unseen identifier; it returns an empty slice.
// AppendExchange adds one user turn followed by one assistant turn, then
// truncates the oldest turns so the history never exceeds 2 x maxExchanges.
type Store interface {
	History(ctx context.Context, userID string) ([]Turn, error)
	AppendExchange(ctx context.Context, userID, question, answer string) error
	Clear(ctx context.Context, userID string) error
	Close() error
}
