package conversation

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore holds conversation histories in process memory. Histories are
// lost on restart. Each user identifier gets its own lock so concurrent
// requests for the same user serialize their read-modify-write of the
// history instead of racing on it.
type InMemoryStore struct {
	mu        sync.RWMutex
	histories map[string]*history
	maxTurns  int
	onChange  func(active int)
}

type history struct {
	mu    sync.Mutex
	turns []Turn
}

func NewInMemoryStore(maxExchanges int) *InMemoryStore {
	if maxExchanges <= 0 {
		maxExchanges = 10
	}
	return &InMemoryStore{
		histories: make(map[string]*history),
		maxTurns:  2 * maxExchanges,
	}
}

// SetChangeHook registers a callback invoked with the number of tracked
// histories whenever one is created or cleared.
func (s *InMemoryStore) SetChangeHook(hook func(active int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = hook
}

func (s *InMemoryStore) History(_ context.Context, userID string) ([]Turn, error) {
	h := s.userHistory(userID)
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out, nil
}

func (s *InMemoryStore) AppendExchange(_ context.Context, userID, question, answer string) error {
	now := time.Now().UTC()
	h := s.userHistory(userID)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns,
		Turn{Role: RoleUser, Content: question, CreatedAt: now},
		Turn{Role: RoleAssistant, Content: answer, CreatedAt: now},
	)
	if over := len(h.turns) - s.maxTurns; over > 0 {
		h.turns = append([]Turn(nil), h.turns[over:]...)
	}
	return nil
}

func (s *InMemoryStore) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	_, ok := s.histories[userID]
	if ok {
		delete(s.histories, userID)
	}
	hook := s.onChange
	active := len(s.histories)
	s.mu.Unlock()

	if ok && hook != nil {
		hook(active)
	}
	return nil
}

func (s *InMemoryStore) Close() error { return nil }

func (s *InMemoryStore) userHistory(userID string) *history {
	s.mu.RLock()
	h, ok := s.histories[userID]
	s.mu.RUnlock()
	if ok {
		return h
	}

	s.mu.Lock()
	h, ok = s.histories[userID]
	if !ok {
		h = &history{}
		s.histories[userID] = h
	}
	hook := s.onChange
	active := len(s.histories)
	s.mu.Unlock()

	if !ok && hook != nil {
		hook(active)
	}
	return h
}
