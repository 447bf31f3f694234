package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"telegram-relay-subscription/internal/domain/model"
	"telegram-relay-subscription/internal/domain/ports/repository"
	"telegram-relay-subscription/internal/infra/metrics"
	red "telegram-relay-subscription/internal/infra/redis"
)

var _ repository.UserRepository = (*userRepoCacheDecorator)(nil)

// userRepoCacheDecorator caches FindByID, which runs on every inbound
// message. The cached LastActiveAt may lag by up to ttl; ban state never
// lags because SetBanned invalidates.
type userRepoCacheDecorator struct {
	inner repository.UserRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewUserRepoCacheDecorator(inner repository.UserRepository, cache red.RedisClient, ttl time.Duration) repository.UserRepository {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &userRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   ttl,
	}
}

func userKey(id int64) string { return fmt.Sprintf("user:id:%d", id) }

func (d *userRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	_ = d.cache.Del(ctx, userKey(u.ID))
	return d.inner.Save(ctx, tx, u)
}

func (d *userRepoCacheDecorator) SetBanned(ctx context.Context, tx repository.Tx, id int64, banned bool) error {
	_ = d.cache.Del(ctx, userKey(id))
	return d.inner.SetBanned(ctx, tx, id, banned)
}

func (d *userRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.User, error) {
	if tx != nil {
		return d.inner.FindByID(ctx, tx, id)
	}
	key := userKey(id)
	if val, err := d.cache.Get(ctx, key); err == nil {
		var user model.User
		if json.Unmarshal([]byte(val), &user) == nil {
			metrics.ObserveCache("user", true)
			return &user, nil
		}
	}

	metrics.ObserveCache("user", false)
	user, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if bytes, err := json.Marshal(user); err == nil {
		_ = d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return user, nil
}

// Pass-through methods that don't need caching

func (d *userRepoCacheDecorator) TouchLastActive(ctx context.Context, tx repository.Tx, id int64, at time.Time) error {
	return d.inner.TouchLastActive(ctx, tx, id, at)
}

func (d *userRepoCacheDecorator) List(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.User, error) {
	return d.inner.List(ctx, tx, offset, limit)
}

func (d *userRepoCacheDecorator) ListAudience(ctx context.Context, tx repository.Tx) ([]*model.User, error) {
	return d.inner.ListAudience(ctx, tx)
}

func (d *userRepoCacheDecorator) ListBanned(ctx context.Context, tx repository.Tx, limit int) ([]*model.User, error) {
	return d.inner.ListBanned(ctx, tx, limit)
}

func (d *userRepoCacheDecorator) CountUsers(ctx context.Context, tx repository.Tx) (int, error) {
	return d.inner.CountUsers(ctx, tx)
}

func (d *userRepoCacheDecorator) CountBanned(ctx context.Context, tx repository.Tx) (int, error) {
	return d.inner.CountBanned(ctx, tx)
}
