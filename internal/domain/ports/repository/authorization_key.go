package repository

import (
	"context"
	"time"

	"telegram-relay-subscription/internal/domain/model"
)

// AuthorizationKeyRepository persists licence keys.
type AuthorizationKeyRepository interface {
	// Save upserts a key. Implementations must never flip active back to true.
	Save(ctx context.Context, tx Tx, key *model.AuthorizationKey) error
	FindByKey(ctx context.Context, tx Tx, key string) (*model.AuthorizationKey, error)
	// Revoke sets active=false; ErrNotFound when the key does not exist.
	Revoke(ctx context.Context, tx Tx, key string) error
	// ListActive returns activated, non-revoked keys, newest first. Expiry is not consulted.
	ListActive(ctx context.Context, tx Tx, limit int) ([]*model.AuthorizationKey, error)
	ListByUser(ctx context.Context, tx Tx, userID int64) ([]*model.AuthorizationKey, error)
	CountAll(ctx context.Context, tx Tx) (int, error)
	// CountExpired counts activated, non-revoked keys whose expiry is at or before now.
	CountExpired(ctx context.Context, tx Tx, now time.Time) (int, error)
}
