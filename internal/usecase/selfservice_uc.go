package usecase

import (
	"context"

	"telegram-relay-subscription/internal/domain"
	"telegram-relay-subscription/internal/domain/model"
	"telegram-relay-subscription/internal/infra/logging"

	"github.com/rs/zerolog"
)

var _ SelfServiceUseCase = (*selfServiceUC)(nil)

// SelfServiceUseCase is the buyer side of the subscription flow:
// pick a plan, pay, upload proof, later activate the key.
type SelfServiceUseCase interface {
	Plans(ctx context.Context) ([]*model.Plan, error)
	// SelectPlan remembers the plan and returns what the buyer must pay to.
	SelectPlan(ctx context.Context, userID int64, planID string) (*Offer, error)
	// BeginProofUpload arms the screenshot capture for the selected plan.
	BeginProofUpload(ctx context.Context, userID int64) error
	MyKeys(ctx context.Context, userID int64) ([]*model.AuthorizationKey, error)
	Cancel(ctx context.Context, userID int64) error
}

type Offer struct {
	Plan *model.Plan
	Info *model.PaymentInfo
}

type selfServiceUC struct {
	plans    PlanUseCase
	payments PaymentUseCase
	ledger   LedgerUseCase
	state    StateTracker
	log      *zerolog.Logger
}

func NewSelfServiceUseCase(plans PlanUseCase, payments PaymentUseCase, ledger LedgerUseCase, state StateTracker, logger *zerolog.Logger) *selfServiceUC {
	return &selfServiceUC{plans: plans, payments: payments, ledger: ledger, state: state, log: logger}
}

func (s *selfServiceUC) Plans(ctx context.Context) ([]*model.Plan, error) {
	return s.plans.List(ctx)
}

func (s *selfServiceUC) SelectPlan(ctx context.Context, userID int64, planID string) (*Offer, error) {
	defer logging.TraceDuration(s.log, "SelfServiceUC.SelectPlan")()

	info, err := s.payments.PaymentInfo(ctx)
	if err != nil {
		return nil, err
	}
	plan, err := s.plans.Get(ctx, planID)
	if err != nil {
		return nil, err
	}
	if err := s.state.Update(ctx, userID, func(st *model.ConversationState) {
		st.SelectedPlan = plan.ID
	}); err != nil {
		return nil, err
	}
	return &Offer{Plan: plan, Info: info}, nil
}

func (s *selfServiceUC) BeginProofUpload(ctx context.Context, userID int64) error {
	st := s.state.Get(ctx, userID)
	if st.SelectedPlan == "" {
		return domain.ErrInvalidArgument
	}
	return s.state.Update(ctx, userID, func(st *model.ConversationState) {
		st.AwaitingPaymentScreenshot = true
	})
}

func (s *selfServiceUC) MyKeys(ctx context.Context, userID int64) ([]*model.AuthorizationKey, error) {
	return s.ledger.ListByUser(ctx, userID)
}

// Cancel drops every flow the user has staged.
func (s *selfServiceUC) Cancel(ctx context.Context, userID int64) error {
	return s.state.Reset(ctx, userID)
}
