// Package memory holds process-local implementations of the repository
// ports. They back dev mode and unit tests; nothing survives a restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"

	"telegram-relay-subscription/internal/domain"
	"telegram-relay-subscription/internal/domain/model"
	"telegram-relay-subscription/internal/domain/ports/repository"
)

var (
	_ repository.TransactionManager         = (*TxManager)(nil)
	_ repository.UserRepository             = (*UserRepo)(nil)
	_ repository.PlanRepository             = (*PlanRepo)(nil)
	_ repository.AuthorizationKeyRepository = (*KeyRepo)(nil)
	_ repository.PaymentRequestRepository   = (*PaymentRequestRepo)(nil)
	_ repository.PaymentInfoRepository      = (*PaymentInfoRepo)(nil)
	_ repository.MessageLogRepository       = (*MessageLogRepo)(nil)
)

// TxManager serialises callbacks. There is no rollback: writes made before
// fn fails stay applied.
type TxManager struct {
	mu sync.Mutex
}

func NewTxManager() *TxManager { return &TxManager{} }

func (m *TxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, repository.NoTX)
}

func limitSlice[T any](in []T, limit int) []T {
	if limit > 0 && len(in) > limit {
		return in[:limit]
	}
	return in
}

// ---------------------------------------------------------------- users

type UserRepo struct {
	mu    sync.RWMutex
	users map[int64]model.User
}

func NewUserRepo() *UserRepo { return &UserRepo{users: map[int64]model.User{}} }

func (r *UserRepo) Save(_ context.Context, _ repository.Tx, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	if prev, ok := r.users[u.ID]; ok {
		cp.IsBanned = prev.IsBanned
		cp.JoinedAt = prev.JoinedAt
		if prev.LastActiveAt.After(cp.LastActiveAt) {
			cp.LastActiveAt = prev.LastActiveAt
		}
	} else {
		cp.IsBanned = false
		if cp.JoinedAt.IsZero() {
			cp.JoinedAt = time.Now()
		}
	}
	r.users[u.ID] = cp
	return nil
}

func (r *UserRepo) FindByID(_ context.Context, _ repository.Tx, id int64) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (r *UserRepo) TouchLastActive(_ context.Context, _ repository.Tx, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.LastActiveAt = at
	r.users[id] = u
	return nil
}

func (r *UserRepo) SetBanned(_ context.Context, _ repository.Tx, id int64, banned bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.IsBanned = banned
	r.users[id] = u
	return nil
}

func (r *UserRepo) sorted(keep func(model.User) bool) []*model.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.User, 0, len(r.users))
	for _, u := range r.users {
		if keep(u) {
			u := u
			out = append(out, &u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.After(out[j].JoinedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *UserRepo) List(_ context.Context, _ repository.Tx, offset, limit int) ([]*model.User, error) {
	all := r.sorted(func(model.User) bool { return true })
	if offset >= len(all) {
		return nil, nil
	}
	if offset < 0 {
		offset = 0
	}
	return limitSlice(all[offset:], limit), nil
}

func (r *UserRepo) ListAudience(_ context.Context, _ repository.Tx) ([]*model.User, error) {
	out := r.sorted(func(u model.User) bool { return !u.IsBanned })
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *UserRepo) ListBanned(_ context.Context, _ repository.Tx, limit int) ([]*model.User, error) {
	return limitSlice(r.sorted(func(u model.User) bool { return u.IsBanned }), limit), nil
}

func (r *UserRepo) CountUsers(_ context.Context, _ repository.Tx) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users), nil
}

func (r *UserRepo) CountBanned(_ context.Context, _ repository.Tx) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, u := range r.users {
		if u.IsBanned {
			n++
		}
	}
	return n, nil
}

// ---------------------------------------------------------------- plans

type PlanRepo struct {
	mu    sync.RWMutex
	plans map[string]model.Plan
}

func NewPlanRepo() *PlanRepo { return &PlanRepo{plans: map[string]model.Plan{}} }

func (r *PlanRepo) Save(_ context.Context, _ repository.Tx, p *model.Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	if prev, ok := r.plans[p.ID]; ok {
		cp.CreatedAt = prev.CreatedAt
	}
	r.plans[p.ID] = cp
	return nil
}

func (r *PlanRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Plan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plans[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (r *PlanRepo) ListAll(_ context.Context, _ repository.Tx) ([]*model.Plan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Plan, 0, len(r.plans))
	for _, p := range r.plans {
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Price != out[j].Price {
			return out[i].Price < out[j].Price
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *PlanRepo) Delete(_ context.Context, _ repository.Tx, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plans[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.plans, id)
	return nil
}

// ---------------------------------------------------------------- keys

type KeyRepo struct {
	mu   sync.RWMutex
	keys map[string]model.AuthorizationKey
}

func NewKeyRepo() *KeyRepo { return &KeyRepo{keys: map[string]model.AuthorizationKey{}} }

func cloneKey(k model.AuthorizationKey) *model.AuthorizationKey {
	if k.CloneToken != nil {
		t := *k.CloneToken
		k.CloneToken = &t
	}
	if k.ActivatedAt != nil {
		t := *k.ActivatedAt
		k.ActivatedAt = &t
	}
	if k.ExpiresAt != nil {
		t := *k.ExpiresAt
		k.ExpiresAt = &t
	}
	return &k
}

func (r *KeyRepo) Save(_ context.Context, _ repository.Tx, k *model.AuthorizationKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *cloneKey(*k)
	if prev, ok := r.keys[k.Key]; ok {
		cp.Active = prev.Active && cp.Active
		cp.CreatedAt = prev.CreatedAt
	}
	r.keys[k.Key] = cp
	return nil
}

func (r *KeyRepo) FindByKey(_ context.Context, _ repository.Tx, key string) (*model.AuthorizationKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.keys[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneKey(k), nil
}

func (r *KeyRepo) Revoke(_ context.Context, _ repository.Tx, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.keys[key]
	if !ok {
		return domain.ErrNotFound
	}
	k.Active = false
	r.keys[key] = k
	return nil
}

func (r *KeyRepo) filter(keep func(model.AuthorizationKey) bool) []*model.AuthorizationKey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.AuthorizationKey
	for _, k := range r.keys {
		if keep(k) {
			out = append(out, cloneKey(k))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *KeyRepo) ListActive(_ context.Context, _ repository.Tx, limit int) ([]*model.AuthorizationKey, error) {
	return limitSlice(r.filter(func(k model.AuthorizationKey) bool { return k.Activated && k.Active }), limit), nil
}

func (r *KeyRepo) ListByUser(_ context.Context, _ repository.Tx, userID int64) ([]*model.AuthorizationKey, error) {
	return r.filter(func(k model.AuthorizationKey) bool { return k.UserID == userID }), nil
}

func (r *KeyRepo) CountAll(_ context.Context, _ repository.Tx) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.keys), nil
}

func (r *KeyRepo) CountExpired(_ context.Context, _ repository.Tx, now time.Time) (int, error) {
	return len(r.filter(func(k model.AuthorizationKey) bool { return k.Active && k.IsExpired(now) })), nil
}

// ---------------------------------------------------------------- payments

type PaymentRequestRepo struct {
	mu   sync.RWMutex
	reqs map[string]model.PaymentRequest
}

func NewPaymentRequestRepo() *PaymentRequestRepo {
	return &PaymentRequestRepo{reqs: map[string]model.PaymentRequest{}}
}

func (r *PaymentRequestRepo) Save(_ context.Context, _ repository.Tx, p *model.PaymentRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs[p.ID] = *p
	return nil
}

func (r *PaymentRequestRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.PaymentRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.reqs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (r *PaymentRequestRepo) MarkApproved(_ context.Context, _ repository.Tx, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.reqs[id]
	if !ok || !p.IsPending() {
		return false, nil
	}
	p.Status = model.PaymentStatusApproved
	p.ApprovedAt = &at
	r.reqs[id] = p
	return true, nil
}

func (r *PaymentRequestRepo) ListPending(_ context.Context, _ repository.Tx, limit int) ([]*model.PaymentRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.PaymentRequest
	for _, p := range r.reqs {
		if p.IsPending() {
			p := p
			out = append(out, &p)
		}
	}
	// ULIDs sort by creation time.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return limitSlice(out, limit), nil
}

func (r *PaymentRequestRepo) CountPending(ctx context.Context, tx repository.Tx) (int, error) {
	out, _ := r.ListPending(ctx, tx, 0)
	return len(out), nil
}

type PaymentInfoRepo struct {
	mu   sync.RWMutex
	info *model.PaymentInfo
}

func NewPaymentInfoRepo() *PaymentInfoRepo { return &PaymentInfoRepo{} }

func (r *PaymentInfoRepo) Get(_ context.Context, _ repository.Tx) (*model.PaymentInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.info == nil {
		return nil, domain.ErrNotFound
	}
	cp := *r.info
	return &cp, nil
}

func (r *PaymentInfoRepo) Save(_ context.Context, _ repository.Tx, info *model.PaymentInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *info
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now()
	}
	r.info = &cp
	return nil
}

// ---------------------------------------------------------------- relay log

type MessageLogRepo struct {
	mu   sync.RWMutex
	seq  int64
	msgs []model.RelayMessage
}

func NewMessageLogRepo() *MessageLogRepo { return &MessageLogRepo{} }

func (r *MessageLogRepo) Append(_ context.Context, _ repository.Tx, m *model.RelayMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	m.ID = r.seq
	r.msgs = append(r.msgs, *m)
	return nil
}

func (r *MessageLogRepo) ListByUser(_ context.Context, _ repository.Tx, userID int64, limit int) ([]*model.RelayMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.RelayMessage
	for i := len(r.msgs) - 1; i >= 0; i-- {
		m := r.msgs[i]
		if m.FromUserID == userID || m.ToUserID == userID {
			out = append(out, &m)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}
