package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"telegram-relay-subscription/internal/domain/model"
	"telegram-relay-subscription/internal/domain/ports/repository"
)

var _ repository.StateRepository = (*StateRepo)(nil)

const defaultStateTTL = 24 * time.Hour

// StateRepo keeps per-user conversation flags in Redis as JSON. A TTL bounds
// how long an abandoned flow stays armed.
type StateRepo struct {
	client RedisClient
	ttl    time.Duration
}

func NewStateRepo(client RedisClient, ttl time.Duration) *StateRepo {
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	return &StateRepo{client: client, ttl: ttl}
}

func (s *StateRepo) stateKey(userID int64) string {
	return fmt.Sprintf("conv_state:%d", userID)
}

func (s *StateRepo) Save(ctx context.Context, userID int64, state model.ConversationState) error {
	if state.IsEmpty() {
		return s.Clear(ctx, userID)
	}
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.stateKey(userID), data, s.ttl)
}

func (s *StateRepo) Get(ctx context.Context, userID int64) (model.ConversationState, error) {
	data, err := s.client.Get(ctx, s.stateKey(userID))
	if IsNil(err) {
		return model.ConversationState{}, nil
	}
	if err != nil {
		return model.ConversationState{}, err
	}

	var state model.ConversationState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return model.ConversationState{}, fmt.Errorf("decode state for %d: %w", userID, err)
	}
	return state, nil
}

func (s *StateRepo) Clear(ctx context.Context, userID int64) error {
	return s.client.Del(ctx, s.stateKey(userID))
}
