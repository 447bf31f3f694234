package repository

import (
	"context"

	"telegram-relay-subscription/internal/domain/model"
)

// StateRepository stores one ConversationState per user.
// Get returns the zero state, not an error, when nothing is stored.
type StateRepository interface {
	Get(ctx context.Context, userID int64) (model.ConversationState, error)
	Save(ctx context.Context, userID int64, state model.ConversationState) error
	Clear(ctx context.Context, userID int64) error
}
