//go:build !integration

package postgres

import (
	"context"
	"time"

	"telegram-relay-subscription/internal/domain/model"
	"telegram-relay-subscription/internal/domain/ports/repository"
	red "telegram-relay-subscription/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerPlanRepo mocks the database repository that the Plan decorator wraps.
type mockInnerPlanRepo struct {
	SaveFunc     func(ctx context.Context, tx repository.Tx, plan *model.Plan) error
	DeleteFunc   func(ctx context.Context, tx repository.Tx, id string) error
	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error)
	ListAllFunc  func(ctx context.Context, tx repository.Tx) ([]*model.Plan, error)
}

func (m *mockInnerPlanRepo) Save(ctx context.Context, tx repository.Tx, plan *model.Plan) error {
	return m.SaveFunc(ctx, tx, plan)
}
func (m *mockInnerPlanRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	return m.DeleteFunc(ctx, tx, id)
}
func (m *mockInnerPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	return m.FindByIDFunc(ctx, tx, id)
}
func (m *mockInnerPlanRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	return m.ListAllFunc(ctx, tx)
}

// mockInnerUserRepo mocks the database repository that the User decorator wraps.
type mockInnerUserRepo struct {
	SaveFunc            func(ctx context.Context, tx repository.Tx, u *model.User) error
	FindByIDFunc        func(ctx context.Context, tx repository.Tx, id int64) (*model.User, error)
	TouchLastActiveFunc func(ctx context.Context, tx repository.Tx, id int64, at time.Time) error
	SetBannedFunc       func(ctx context.Context, tx repository.Tx, id int64, banned bool) error
	ListFunc            func(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.User, error)
	ListAudienceFunc    func(ctx context.Context, tx repository.Tx) ([]*model.User, error)
	ListBannedFunc      func(ctx context.Context, tx repository.Tx, limit int) ([]*model.User, error)
	CountUsersFunc      func(ctx context.Context, tx repository.Tx) (int, error)
	CountBannedFunc     func(ctx context.Context, tx repository.Tx) (int, error)
}

func (m *mockInnerUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	return m.SaveFunc(ctx, tx, u)
}
func (m *mockInnerUserRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.User, error) {
	return m.FindByIDFunc(ctx, tx, id)
}
func (m *mockInnerUserRepo) TouchLastActive(ctx context.Context, tx repository.Tx, id int64, at time.Time) error {
	return m.TouchLastActiveFunc(ctx, tx, id, at)
}
func (m *mockInnerUserRepo) SetBanned(ctx context.Context, tx repository.Tx, id int64, banned bool) error {
	return m.SetBannedFunc(ctx, tx, id, banned)
}
func (m *mockInnerUserRepo) List(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.User, error) {
	return m.ListFunc(ctx, tx, offset, limit)
}
func (m *mockInnerUserRepo) ListAudience(ctx context.Context, tx repository.Tx) ([]*model.User, error) {
	return m.ListAudienceFunc(ctx, tx)
}
func (m *mockInnerUserRepo) ListBanned(ctx context.Context, tx repository.Tx, limit int) ([]*model.User, error) {
	return m.ListBannedFunc(ctx, tx, limit)
}
func (m *mockInnerUserRepo) CountUsers(ctx context.Context, tx repository.Tx) (int, error) {
	return m.CountUsersFunc(ctx, tx)
}
func (m *mockInnerUserRepo) CountBanned(ctx context.Context, tx repository.Tx) (int, error) {
	return m.CountBannedFunc(ctx, tx)
}

// mockRedisClient mocks our Redis client wrapper. Unset funcs behave like an
// empty, healthy server.
type mockRedisClient struct {
	GetFunc func(ctx context.Context, key string) (string, error)
	SetFunc func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc func(ctx context.Context, keys ...string) error
}

var _ red.RedisClient = &mockRedisClient{}

type cacheMiss struct{}

func (cacheMiss) Error() string { return "redis: nil" }

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	if m.GetFunc == nil {
		return "", cacheMiss{}
	}
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetFunc == nil {
		return nil
	}
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	if m.DelFunc == nil {
		return nil
	}
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return true, nil
}
func (m *mockRedisClient) DelIfEquals(ctx context.Context, key, value string) (bool, error) {
	return true, nil
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return nil }
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return 1, nil
}
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return nil
}
func (m *mockRedisClient) Close() error { return nil }
