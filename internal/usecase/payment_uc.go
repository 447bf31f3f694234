package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"telegram-relay-subscription/internal/domain"
	"telegram-relay-subscription/internal/domain/model"
	"telegram-relay-subscription/internal/domain/ports/adapter"
	"telegram-relay-subscription/internal/domain/ports/repository"
	"telegram-relay-subscription/internal/infra/logging"
	"telegram-relay-subscription/internal/infra/metrics"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

var _ PaymentUseCase = (*paymentUC)(nil)

// PaymentUseCase is the manual-approval payment queue plus the singleton
// payment info buyers are shown.
type PaymentUseCase interface {
	// Submit records a pending request and notifies the operator. Duplicate
	// pending requests for the same plan are allowed.
	Submit(ctx context.Context, user *model.User, planID, proofFileID string) (*model.PaymentRequest, error)
	// Approve flips the request to approved and issues a key in one
	// transaction; the buyer is then sent the key.
	Approve(ctx context.Context, id string) (*Approval, error)
	// Reject persists nothing and tells the buyer.
	Reject(ctx context.Context, id string) (*model.PaymentRequest, error)
	Get(ctx context.Context, id string) (*model.PaymentRequest, error)
	ListPending(ctx context.Context, limit int) ([]*model.PaymentRequest, error)
	CountPending(ctx context.Context) (int, error)

	PaymentInfo(ctx context.Context) (*model.PaymentInfo, error)
	SetPaymentInfo(ctx context.Context, qrFileID, address string) (*model.PaymentInfo, error)
}

// Approval is what the operator is shown after approving a request.
type Approval struct {
	Request   *model.PaymentRequest
	Plan      *model.Plan
	Key       *model.AuthorizationKey
	Delivered bool // key reached the buyer
}

type paymentUC struct {
	tm       repository.TransactionManager
	requests repository.PaymentRequestRepository
	info     repository.PaymentInfoRepository
	plans    repository.PlanRepository
	ledger   LedgerUseCase
	state    StateTracker
	bot      adapter.Messenger
	loc      Localizer

	operatorID int64
	now        Clock
	log        *zerolog.Logger
}

func NewPaymentUseCase(
	tm repository.TransactionManager,
	requests repository.PaymentRequestRepository,
	info repository.PaymentInfoRepository,
	plans repository.PlanRepository,
	ledger LedgerUseCase,
	state StateTracker,
	bot adapter.Messenger,
	loc Localizer,
	operatorID int64,
	logger *zerolog.Logger,
) *paymentUC {
	return &paymentUC{
		tm:         tm,
		requests:   requests,
		info:       info,
		plans:      plans,
		ledger:     ledger,
		state:      state,
		bot:        bot,
		loc:        loc,
		operatorID: operatorID,
		now:        time.Now,
		log:        logger,
	}
}

func (p *paymentUC) Submit(ctx context.Context, user *model.User, planID, proofFileID string) (*model.PaymentRequest, error) {
	defer logging.TraceDuration(p.log, "PaymentUC.Submit")()

	req, err := model.NewPaymentRequest(user.ID, planID, proofFileID)
	if err != nil {
		return nil, err
	}
	if err := p.requests.Save(ctx, repository.NoTX, req); err != nil {
		return nil, fmt.Errorf("save payment request: %w", err)
	}
	metrics.IncPayment(string(model.PaymentStatusPending))

	planName := planID
	if plan, err := p.plans.FindByID(ctx, repository.NoTX, planID); err == nil {
		planName = plan.Name
	}
	text := p.loc.T("payment_new_for_operator", user.DisplayName(), user.Handle(), user.ID, planName, req.ID)
	rows := [][]adapter.InlineButton{{{Text: p.loc.T("btn_verify"), Data: "verify_payment_" + req.ID}}}
	if err := p.bot.SendButtons(ctx, p.operatorID, text, rows); err != nil {
		// the request is queued either way; /verify lists it
		p.log.Warn().Err(err).Str("payment_id", req.ID).Msg("operator notification failed")
	}
	p.log.Info().Int64("tg_id", user.ID).Str("payment_id", req.ID).Str("plan_id", planID).Msg("payment request submitted")
	return req, nil
}

func (p *paymentUC) Approve(ctx context.Context, id string) (*Approval, error) {
	defer logging.TraceDuration(p.log, "PaymentUC.Approve")()

	var res Approval
	err := p.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		req, err := p.requests.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if !req.IsPending() {
			return domain.ErrAlreadyProcessed
		}
		plan, err := p.plans.FindByID(ctx, tx, req.PlanID)
		if err != nil {
			return fmt.Errorf("plan %s: %w", req.PlanID, err)
		}
		// issuance precedes the status flip: an approved request always has a key
		key, err := p.ledger.Issue(ctx, tx, req.UserID, plan)
		if err != nil {
			return err
		}
		ok, err := p.requests.MarkApproved(ctx, tx, id, p.now())
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrAlreadyProcessed
		}
		at := p.now()
		req.Status = model.PaymentStatusApproved
		req.ApprovedAt = &at
		res = Approval{Request: req, Plan: plan, Key: key}
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.IncPayment(string(model.PaymentStatusApproved))
	metrics.AddPaymentRevenue(res.Plan.Price)

	buyer := res.Request.UserID
	if err := p.state.Update(ctx, buyer, func(s *model.ConversationState) {
		s.AwaitingBotToken = res.Key.Key
	}); err != nil {
		p.log.Error().Err(err).Int64("tg_id", buyer).Msg("arm activation flow")
	}
	msg := p.loc.T("payment_approved_user", res.Plan.Name, res.Key.Key)
	if err := p.bot.SendText(ctx, buyer, msg); err != nil {
		p.log.Warn().Err(err).Int64("tg_id", buyer).Msg("key delivery failed")
	} else {
		res.Delivered = true
	}
	p.log.Info().Str("payment_id", id).Int64("tg_id", buyer).Msg("payment approved")
	return &res, nil
}

func (p *paymentUC) Reject(ctx context.Context, id string) (*model.PaymentRequest, error) {
	req, err := p.requests.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	if !req.IsPending() {
		return nil, domain.ErrAlreadyProcessed
	}
	metrics.IncPayment("rejected")
	if err := p.bot.SendText(ctx, req.UserID, p.loc.T("payment_rejected_user")); err != nil {
		p.log.Warn().Err(err).Int64("tg_id", req.UserID).Msg("rejection notice failed")
	}
	p.log.Info().Str("payment_id", id).Int64("tg_id", req.UserID).Msg("payment rejected")
	return req, nil
}

func (p *paymentUC) Get(ctx context.Context, id string) (*model.PaymentRequest, error) {
	return p.requests.FindByID(ctx, repository.NoTX, id)
}

func (p *paymentUC) ListPending(ctx context.Context, limit int) ([]*model.PaymentRequest, error) {
	return p.requests.ListPending(ctx, repository.NoTX, limit)
}

func (p *paymentUC) CountPending(ctx context.Context) (int, error) {
	return p.requests.CountPending(ctx, repository.NoTX)
}

// PaymentInfo returns ErrPaymentInfoMissing until the operator sets it.
func (p *paymentUC) PaymentInfo(ctx context.Context) (*model.PaymentInfo, error) {
	info, err := p.info.Get(ctx, repository.NoTX)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && info.IsZero()) {
		return nil, domain.ErrPaymentInfoMissing
	}
	if err != nil {
		return nil, err
	}
	return info, nil
}

// SetPaymentInfo overwrites the singleton. Without a QR file id buyers get a
// QR rendered from the address.
func (p *paymentUC) SetPaymentInfo(ctx context.Context, qrFileID, address string) (*model.PaymentInfo, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, domain.ErrInvalidArgument
	}
	info := &model.PaymentInfo{QRFileID: qrFileID, Address: address, UpdatedAt: p.now()}
	if err := p.info.Save(ctx, repository.NoTX, info); err != nil {
		return nil, fmt.Errorf("save payment info: %w", err)
	}
	p.log.Info().Msg("payment info updated")
	return info, nil
}
