package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps conversation histories in Redis lists, one list per user
// identifier. Append and trim run in a single pipeline so the bound holds
// even with several service processes sharing the same Redis.
type RedisStore struct {
	client   *redis.Client
	maxTurns int
}

func NewRedisStore(ctx context.Context, redisURL string, maxExchanges int) (*RedisStore, error) {
	if maxExchanges <= 0 {
		maxExchanges = 10
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{client: client, maxTurns: 2 * maxExchanges}, nil
}

func (s *RedisStore) History(ctx context.Context, userID string) ([]Turn, error) {
	raw, err := s.client.LRange(ctx, historyKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	turns := make([]Turn, 0, len(raw))
	for _, item := range raw {
		var t Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			return nil, fmt.Errorf("decode turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}

func (s *RedisStore) AppendExchange(ctx context.Context, userID, question, answer string) error {
	now := time.Now().UTC()
	user, err := json.Marshal(Turn{Role: RoleUser, Content: question, CreatedAt: now})
	if err != nil {
		return fmt.Errorf("encode user turn: %w", err)
	}
	assistant, err := json.Marshal(Turn{Role: RoleAssistant, Content: answer, CreatedAt: now})
	if err != nil {
		return fmt.Errorf("encode assistant turn: %w", err)
	}

	key := historyKey(userID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, user, assistant)
	pipe.LTrim(ctx, key, int64(-s.maxTurns), -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append exchange: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, historyKey(userID)).Err(); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func historyKey(userID string) string {
	return "conversation:" + userID
}
