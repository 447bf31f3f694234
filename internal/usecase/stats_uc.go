package usecase

import (
	"context"

	"telegram-relay-subscription/internal/domain/ports/repository"
	"telegram-relay-subscription/internal/infra/logging"

	"github.com/rs/zerolog"
)

var _ StatsUseCase = (*statsUC)(nil)

// Stats are the totals shown on the owner panel.
type Stats struct {
	Users           int `json:"users"`
	Banned          int `json:"banned"`
	Plans           int `json:"plans"`
	PendingPayments int `json:"pending_payments"`
	Keys            int `json:"keys"`
	ActiveClones    int `json:"active_clones"`
	ExpiredKeys     int `json:"expired_keys"`
}

type StatsUseCase interface {
	Snapshot(ctx context.Context) (*Stats, error)
}

type statsUC struct {
	users    repository.UserRepository
	plans    repository.PlanRepository
	payments repository.PaymentRequestRepository
	ledger   LedgerUseCase
	log      *zerolog.Logger
}

func NewStatsUseCase(users repository.UserRepository, plans repository.PlanRepository, payments repository.PaymentRequestRepository, ledger LedgerUseCase, logger *zerolog.Logger) *statsUC {
	return &statsUC{users: users, plans: plans, payments: payments, ledger: ledger, log: logger}
}

func (s *statsUC) Snapshot(ctx context.Context) (*Stats, error) {
	defer logging.TraceDuration(s.log, "StatsUC.Snapshot")()

	var st Stats
	var err error
	if st.Users, err = s.users.CountUsers(ctx, repository.NoTX); err != nil {
		return nil, err
	}
	if st.Banned, err = s.users.CountBanned(ctx, repository.NoTX); err != nil {
		return nil, err
	}
	plans, err := s.plans.ListAll(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	st.Plans = len(plans)
	if st.PendingPayments, err = s.payments.CountPending(ctx, repository.NoTX); err != nil {
		return nil, err
	}
	if st.Keys, err = s.ledger.CountAll(ctx); err != nil {
		return nil, err
	}
	active, err := s.ledger.ListActive(ctx, 0)
	if err != nil {
		return nil, err
	}
	for _, k := range active {
		if k.HasClone() {
			st.ActiveClones++
		}
	}
	if st.ExpiredKeys, err = s.ledger.CountExpired(ctx); err != nil {
		return nil, err
	}
	return &st, nil
}
