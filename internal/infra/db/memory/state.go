package memory

import (
	"context"
	"sync"
	"time"

	"telegram-relay-subscription/internal/domain"
	"telegram-relay-subscription/internal/domain/model"
	"telegram-relay-subscription/internal/domain/ports/repository"

	"github.com/google/uuid"
)

var _ repository.StateRepository = (*StateRepo)(nil)

// StateRepo keeps conversation state in a map. Entries never expire.
type StateRepo struct {
	mu     sync.RWMutex
	states map[int64]model.ConversationState
}

func NewStateRepo() *StateRepo {
	return &StateRepo{states: map[int64]model.ConversationState{}}
}

func (s *StateRepo) Get(_ context.Context, userID int64) (model.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[userID], nil
}

func (s *StateRepo) Save(_ context.Context, userID int64, state model.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state.IsEmpty() {
		delete(s.states, userID)
		return nil
	}
	s.states[userID] = state
	return nil
}

func (s *StateRepo) Clear(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, userID)
	return nil
}

// Locker is an in-process stand-in for the Redis lock. TTLs are honoured
// lazily on the next TryLock.
type Locker struct {
	mu    sync.Mutex
	held  map[string]lease
	clock func() time.Time
}

type lease struct {
	token   string
	expires time.Time
}

func NewLocker() *Locker {
	return &Locker{held: map[string]lease{}, clock: time.Now}
}

func (l *Locker) TryLock(_ context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()
	if cur, ok := l.held[key]; ok && now.Before(cur.expires) {
		return "", domain.ErrLockHeld
	}
	token := uuid.NewString()
	l.held[key] = lease{token: token, expires: now.Add(ttl)}
	return token, nil
}

func (l *Locker) Unlock(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.held[key]; ok && cur.token == token {
		delete(l.held, key)
	}
	return nil
}
