package usecase

import (
	"context"

	"telegram-relay-subscription/internal/domain"
	"telegram-relay-subscription/internal/domain/model"
	"telegram-relay-subscription/internal/domain/ports/repository"
	"telegram-relay-subscription/internal/infra/metrics"

	"github.com/rs/zerolog"
)

var _ AdminUseCase = (*adminUC)(nil)

// AdminUseCase is the only way into operator operations. Authorize is the
// guard: callers that are not the configured operator get ErrAccessDenied
// and never hold an *Operator.
type AdminUseCase interface {
	Authorize(callerID int64) (*Operator, error)
}

// AdminDeps groups the use cases reachable by the operator.
type AdminDeps struct {
	Users     UserUseCase
	Plans     PlanUseCase
	Ledger    LedgerUseCase
	Payments  PaymentUseCase
	Broadcast BroadcastUseCase
	Stats     StatsUseCase
	State     StateTracker
	Messages  repository.MessageLogRepository
}

type adminUC struct {
	AdminDeps
	operatorID int64
	log        *zerolog.Logger
}

func NewAdminUseCase(deps AdminDeps, operatorID int64, logger *zerolog.Logger) *adminUC {
	return &adminUC{AdminDeps: deps, operatorID: operatorID, log: logger}
}

func (a *adminUC) Authorize(callerID int64) (*Operator, error) {
	if a.operatorID == 0 || callerID != a.operatorID {
		metrics.IncAdminCommand("authorize", "denied")
		a.log.Warn().Int64("tg_id", callerID).Msg("admin access denied")
		return nil, domain.ErrAccessDenied
	}
	return &Operator{a: a}, nil
}

// Operator is an authorized handle on admin operations.
type Operator struct {
	a *adminUC
}

func (o *Operator) ID() int64 { return o.a.operatorID }

func track(command string, err error) error {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.IncAdminCommand(command, status)
	return err
}

func (o *Operator) Stats(ctx context.Context) (*Stats, error) {
	st, err := o.a.Stats.Snapshot(ctx)
	return st, track("stats", err)
}

func (o *Operator) Users(ctx context.Context, offset, limit int) ([]*model.User, error) {
	users, err := o.a.Users.List(ctx, offset, limit)
	return users, track("users", err)
}

func (o *Operator) BannedUsers(ctx context.Context, limit int) ([]*model.User, error) {
	users, err := o.a.Users.ListBanned(ctx, limit)
	return users, track("banned", err)
}

func (o *Operator) User(ctx context.Context, id int64) (*model.User, error) {
	return o.a.Users.Get(ctx, id)
}

// Ban refuses to lock the operator out.
func (o *Operator) Ban(ctx context.Context, id int64) error {
	if id == o.a.operatorID {
		return track("ban", domain.ErrInvalidArgument)
	}
	return track("ban", o.a.Users.SetBanned(ctx, id, true))
}

func (o *Operator) Unban(ctx context.Context, id int64) error {
	return track("unban", o.a.Users.SetBanned(ctx, id, false))
}

func (o *Operator) Plans(ctx context.Context) ([]*model.Plan, error) {
	plans, err := o.a.Plans.List(ctx)
	return plans, track("plans", err)
}

func (o *Operator) CreatePlan(ctx context.Context, name string, days int, price float64) (*model.Plan, error) {
	plan, err := o.a.Plans.Create(ctx, name, days, price)
	return plan, track("create_plan", err)
}

func (o *Operator) DeletePlan(ctx context.Context, id string) error {
	return track("delete_plan", o.a.Plans.Delete(ctx, id))
}

func (o *Operator) PendingPayments(ctx context.Context, limit int) ([]*model.PaymentRequest, error) {
	reqs, err := o.a.Payments.ListPending(ctx, limit)
	return reqs, track("verify", err)
}

func (o *Operator) Payment(ctx context.Context, id string) (*model.PaymentRequest, error) {
	return o.a.Payments.Get(ctx, id)
}

func (o *Operator) ApprovePayment(ctx context.Context, id string) (*Approval, error) {
	res, err := o.a.Payments.Approve(ctx, id)
	return res, track("approve_payment", err)
}

func (o *Operator) RejectPayment(ctx context.Context, id string) (*model.PaymentRequest, error) {
	req, err := o.a.Payments.Reject(ctx, id)
	return req, track("reject_payment", err)
}

func (o *Operator) PaymentInfo(ctx context.Context) (*model.PaymentInfo, error) {
	return o.a.Payments.PaymentInfo(ctx)
}

func (o *Operator) SetPaymentInfo(ctx context.Context, qrFileID, address string) (*model.PaymentInfo, error) {
	info, err := o.a.Payments.SetPaymentInfo(ctx, qrFileID, address)
	return info, track("set_payment", err)
}

func (o *Operator) ActiveKeys(ctx context.Context, limit int) ([]*model.AuthorizationKey, error) {
	keys, err := o.a.Ledger.ListActive(ctx, limit)
	return keys, track("authkeys", err)
}

func (o *Operator) Key(ctx context.Context, key string) (*model.AuthorizationKey, error) {
	return o.a.Ledger.Get(ctx, key)
}

func (o *Operator) RevokeKey(ctx context.Context, key string) error {
	return track("revoke_key", o.a.Ledger.Revoke(ctx, key))
}

func (o *Operator) Broadcast(ctx context.Context, content model.Content) (BroadcastResult, error) {
	res, err := o.a.Broadcast.Broadcast(ctx, content)
	return res, track("broadcast", err)
}

func (o *Operator) RelayLog(ctx context.Context, userID int64, limit int) ([]*model.RelayMessage, error) {
	if o.a.Messages == nil {
		return nil, nil
	}
	return o.a.Messages.ListByUser(ctx, repository.NoTX, userID, limit)
}

// The Arm* calls stage a flow; the next operator message completes it.

func (o *Operator) ArmBroadcast(ctx context.Context) error {
	return o.arm(ctx, "start_broadcast", func(s *model.ConversationState) { s.BroadcastMode = true })
}

// ArmDirect targets an existing user.
func (o *Operator) ArmDirect(ctx context.Context, target int64) error {
	if _, err := o.a.Users.Get(ctx, target); err != nil {
		return track("send_to_user", err)
	}
	return o.arm(ctx, "send_to_user", func(s *model.ConversationState) { s.SendToUser = target })
}

func (o *Operator) ArmPaymentInfo(ctx context.Context) error {
	return o.arm(ctx, "set_payment", func(s *model.ConversationState) {
		s.AwaitingPaymentInfo = true
		s.PaymentQR = ""
	})
}

func (o *Operator) ArmAddPlan(ctx context.Context) error {
	return o.arm(ctx, "add_plan", func(s *model.ConversationState) { s.AwaitingPlanInput = true })
}

func (o *Operator) arm(ctx context.Context, command string, fn func(s *model.ConversationState)) error {
	return track(command, o.a.State.Update(ctx, o.a.operatorID, fn))
}
