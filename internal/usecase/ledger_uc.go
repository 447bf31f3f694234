package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"telegram-relay-subscription/internal/domain"
	"telegram-relay-subscription/internal/domain/model"
	"telegram-relay-subscription/internal/domain/ports/repository"
	"telegram-relay-subscription/internal/infra/logging"
	"telegram-relay-subscription/internal/infra/metrics"

	"github.com/rs/zerolog"
)

var _ LedgerUseCase = (*ledgerUC)(nil)

// LedgerUseCase drives the authorization key lifecycle:
// issued -> activated -> revoked. Expiry is computed on activation but
// nothing here acts on it.
type LedgerUseCase interface {
	// Issue runs inside the caller's transaction so approval and issuance
	// commit together.
	Issue(ctx context.Context, tx repository.Tx, userID int64, plan *model.Plan) (*model.AuthorizationKey, error)
	Activate(ctx context.Context, key, cloneToken string) (*model.AuthorizationKey, error)
	Revoke(ctx context.Context, key string) error
	Get(ctx context.Context, key string) (*model.AuthorizationKey, error)
	ListActive(ctx context.Context, limit int) ([]*model.AuthorizationKey, error)
	ListByUser(ctx context.Context, userID int64) ([]*model.AuthorizationKey, error)
	CountAll(ctx context.Context) (int, error)
	CountExpired(ctx context.Context) (int, error)
}

type ledgerUC struct {
	keys  repository.AuthorizationKeyRepository
	plans repository.PlanRepository
	now   Clock
	log   *zerolog.Logger
}

func NewLedgerUseCase(keys repository.AuthorizationKeyRepository, plans repository.PlanRepository, logger *zerolog.Logger) *ledgerUC {
	return &ledgerUC{keys: keys, plans: plans, now: time.Now, log: logger}
}

// WithClock replaces the time source; tests pin activation time with it.
func (l *ledgerUC) WithClock(c Clock) *ledgerUC {
	l.now = c
	return l
}

func (l *ledgerUC) Issue(ctx context.Context, tx repository.Tx, userID int64, plan *model.Plan) (*model.AuthorizationKey, error) {
	defer logging.TraceDuration(l.log, "LedgerUC.Issue")()

	if plan.IsZero() {
		return nil, domain.ErrNotFound
	}
	key, err := model.NewAuthorizationKey(userID, plan.ID)
	if err != nil {
		return nil, err
	}
	key.CreatedAt = l.now()
	if err := l.keys.Save(ctx, tx, key); err != nil {
		return nil, fmt.Errorf("save key: %w", err)
	}
	metrics.IncAuthKey("issued")
	l.log.Info().Int64("tg_id", userID).Str("plan_id", plan.ID).Msg("authorization key issued")
	return key, nil
}

// Activate binds cloneToken and restarts the expiry clock. A second call on
// the same key overwrites both; callers drop the pending-activation flag
// after the first success.
func (l *ledgerUC) Activate(ctx context.Context, key, cloneToken string) (*model.AuthorizationKey, error) {
	defer logging.TraceDuration(l.log, "LedgerUC.Activate")()

	if err := ValidateCloneToken(cloneToken); err != nil {
		return nil, err
	}
	k, err := l.keys.FindByKey(ctx, repository.NoTX, key)
	if err != nil {
		return nil, err
	}
	plan, err := l.plans.FindByID(ctx, repository.NoTX, k.PlanID)
	if err != nil {
		return nil, fmt.Errorf("plan %s for key: %w", k.PlanID, err)
	}
	reactivation := k.Activated
	if err := k.Activate(cloneToken, plan, l.now()); err != nil {
		return nil, err
	}
	if err := l.keys.Save(ctx, repository.NoTX, k); err != nil {
		return nil, fmt.Errorf("save key: %w", err)
	}
	metrics.IncAuthKey("activated")
	ev := l.log.Info()
	if reactivation {
		ev = l.log.Warn()
	}
	ev.Int64("tg_id", k.UserID).Bool("reactivation", reactivation).Time("expires_at", *k.ExpiresAt).Msg("authorization key activated")
	return k, nil
}

func (l *ledgerUC) Revoke(ctx context.Context, key string) error {
	if err := l.keys.Revoke(ctx, repository.NoTX, key); err != nil {
		return err
	}
	metrics.IncAuthKey("revoked")
	l.log.Info().Str("key", logging.Redact(key, false)).Msg("authorization key revoked")
	return nil
}

func (l *ledgerUC) Get(ctx context.Context, key string) (*model.AuthorizationKey, error) {
	return l.keys.FindByKey(ctx, repository.NoTX, key)
}

func (l *ledgerUC) ListActive(ctx context.Context, limit int) ([]*model.AuthorizationKey, error) {
	return l.keys.ListActive(ctx, repository.NoTX, limit)
}

func (l *ledgerUC) ListByUser(ctx context.Context, userID int64) ([]*model.AuthorizationKey, error) {
	return l.keys.ListByUser(ctx, repository.NoTX, userID)
}

func (l *ledgerUC) CountAll(ctx context.Context) (int, error) {
	return l.keys.CountAll(ctx, repository.NoTX)
}

func (l *ledgerUC) CountExpired(ctx context.Context) (int, error) {
	return l.keys.CountExpired(ctx, repository.NoTX, l.now())
}

// ValidateCloneToken accepts "<id>:<secret>" with both sides present.
func ValidateCloneToken(token string) error {
	token = strings.TrimSpace(token)
	if strings.Count(token, ":") != 1 {
		return domain.ErrInvalidArgument
	}
	left, right, _ := strings.Cut(token, ":")
	if left == "" || right == "" {
		return domain.ErrInvalidArgument
	}
	return nil
}
