package conversation

import (
	"context"
	"strings"
)

// NewStore creates a redis-backed store when configured, otherwise in-memory.
func NewStore(ctx context.Context, redisURL string, maxExchanges int) (Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return NewInMemoryStore(maxExchanges), nil
	}
	return NewRedisStore(ctx, redisURL, maxExchanges)
}
