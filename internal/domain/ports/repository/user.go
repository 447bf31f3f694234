package repository

import (
	"context"
	"time"

	"telegram-relay-subscription/internal/domain/model"
)

// -----------------------------
// Users
// -----------------------------

type UserRepository interface {
	// Save upserts profile fields; ban state and join time are never overwritten.
	Save(ctx context.Context, tx Tx, u *model.User) error
	FindByID(ctx context.Context, tx Tx, id int64) (*model.User, error)
	TouchLastActive(ctx context.Context, tx Tx, id int64, at time.Time) error
	SetBanned(ctx context.Context, tx Tx, id int64, banned bool) error
	// List pages through all users ordered by join time; limit 0 means no limit.
	List(ctx context.Context, tx Tx, offset, limit int) ([]*model.User, error)
	// ListAudience returns every non-banned user.
	ListAudience(ctx context.Context, tx Tx) ([]*model.User, error)
	ListBanned(ctx context.Context, tx Tx, limit int) ([]*model.User, error)
	CountUsers(ctx context.Context, tx Tx) (int, error)
	CountBanned(ctx context.Context, tx Tx) (int, error)
}
