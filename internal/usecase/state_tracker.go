package usecase

import (
	"context"
	"fmt"
	"sync"

	"telegram-relay-subscription/internal/domain/model"
	"telegram-relay-subscription/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

var _ StateTracker = (*stateTracker)(nil)

// StateTracker owns every user's ConversationState. Routing code reads and
// writes flags only through it.
type StateTracker interface {
	// Get never fails: a missing or unreadable state is the empty state.
	Get(ctx context.Context, userID int64) model.ConversationState
	Update(ctx context.Context, userID int64, fn func(s *model.ConversationState)) error
	ClearFlow(ctx context.Context, userID int64, flows ...model.Flow) error
	Reset(ctx context.Context, userID int64) error
}

// stateStripes bounds the lock table; users hash onto a stripe.
const stateStripes = 64

type stateTracker struct {
	repo  repository.StateRepository
	log   *zerolog.Logger
	locks [stateStripes]sync.Mutex
}

func NewStateTracker(repo repository.StateRepository, logger *zerolog.Logger) *stateTracker {
	return &stateTracker{repo: repo, log: logger}
}

func (s *stateTracker) Get(ctx context.Context, userID int64) model.ConversationState {
	st, err := s.repo.Get(ctx, userID)
	if err != nil {
		s.log.Warn().Err(err).Int64("tg_id", userID).Msg("state read failed; treating as empty")
		return model.ConversationState{}
	}
	return st
}

func (s *stateTracker) lock(userID int64) func() {
	m := &s.locks[uint64(userID)%stateStripes]
	m.Lock()
	return m.Unlock
}

// Update is a read-modify-write serialized per user within this process.
// A failed read aborts it so staged flags are never overwritten blindly.
// fn must not call back into the tracker.
func (s *stateTracker) Update(ctx context.Context, userID int64, fn func(st *model.ConversationState)) error {
	defer s.lock(userID)()

	st, err := s.repo.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("read state: %w", err)
	}
	fn(&st)
	return s.repo.Save(ctx, userID, st)
}

func (s *stateTracker) ClearFlow(ctx context.Context, userID int64, flows ...model.Flow) error {
	return s.Update(ctx, userID, func(st *model.ConversationState) {
		for _, f := range flows {
			st.Clear(f)
		}
	})
}

func (s *stateTracker) Reset(ctx context.Context, userID int64) error {
	defer s.lock(userID)()
	return s.repo.Clear(ctx, userID)
}
