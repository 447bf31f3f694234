package usecase

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"telegram-relay-subscription/internal/domain"
	"telegram-relay-subscription/internal/domain/model"
	"telegram-relay-subscription/internal/domain/ports/adapter"
	"telegram-relay-subscription/internal/domain/ports/repository"
	"telegram-relay-subscription/internal/infra/logging"
	"telegram-relay-subscription/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Outcome names the single branch Route took for one inbound unit.
type Outcome string

const (
	OutcomeBanned             Outcome = "banned"
	OutcomePaymentSubmitted   Outcome = "payment_submitted"
	OutcomePaymentFailed      Outcome = "payment_failed"
	OutcomeActivated          Outcome = "activated"
	OutcomeActivationRejected Outcome = "activation_rejected"
	OutcomePaymentQRStaged    Outcome = "payment_qr_staged"
	OutcomePaymentInfoSaved   Outcome = "payment_info_saved"
	OutcomePaymentInfoPrompt  Outcome = "payment_info_prompt"
	OutcomePlanAdded          Outcome = "plan_added"
	OutcomePlanRejected       Outcome = "plan_rejected"
	OutcomeBroadcast          Outcome = "broadcast"
	OutcomeBroadcastRejected  Outcome = "broadcast_rejected"
	OutcomeDirectSent         Outcome = "direct_sent"
	OutcomeDirectFailed       Outcome = "direct_failed"
	OutcomeOperatorIdle       Outcome = "operator_idle"
	OutcomeRelayed            Outcome = "relayed"
	OutcomeRelayFailed        Outcome = "relay_failed"
)

const ackPool = "acknowledgments"

var _ RouterUseCase = (*routerUC)(nil)

// RouterUseCase decides what happens to one inbound message. Branches are
// checked in a fixed order and exactly one fires:
//
//	banned > payment screenshot > bot token > payment info > new plan >
//	broadcast > direct message > operator fallthrough > relay to operator
//
// Delivery problems are reported to the sender and never returned.
type RouterUseCase interface {
	Route(ctx context.Context, sender *model.User, content model.Content) (Outcome, error)
}

// RouterDeps groups the collaborators of the router.
type RouterDeps struct {
	Users     UserUseCase
	State     StateTracker
	Plans     PlanUseCase
	Ledger    LedgerUseCase
	Payments  PaymentUseCase
	Broadcast BroadcastUseCase
	Messages  repository.MessageLogRepository
	Bot       adapter.Messenger
	Loc       Localizer
}

type routerUC struct {
	RouterDeps
	operatorID   int64
	operatorName string
	intn         func(n int) int
	log          *zerolog.Logger
}

func NewRouterUseCase(deps RouterDeps, operatorID int64, operatorName string, logger *zerolog.Logger) *routerUC {
	return &routerUC{
		RouterDeps:   deps,
		operatorID:   operatorID,
		operatorName: operatorName,
		intn:         rand.Intn,
		log:          logger,
	}
}

// WithPicker replaces the acknowledgment picker; it must return [0, n).
func (r *routerUC) WithPicker(intn func(n int) int) *routerUC {
	r.intn = intn
	return r
}

func (r *routerUC) Route(ctx context.Context, sender *model.User, content model.Content) (Outcome, error) {
	defer logging.TraceDuration(r.log, "RouterUC.Route")()

	user, err := r.Users.RegisterOrFetch(ctx, sender)
	if err != nil {
		return "", err
	}
	if user.IsBanned {
		metrics.IncBannedRejection()
		r.reply(ctx, user.ID, r.Loc.T("banned"))
		return OutcomeBanned, nil
	}
	if err := r.Users.Touch(ctx, user.ID); err != nil {
		r.log.Warn().Err(err).Int64("tg_id", user.ID).Msg("touch last active")
	}

	st := r.State.Get(ctx, user.ID)
	isOperator := user.ID == r.operatorID

	switch {
	case st.AwaitingPaymentScreenshot && content.Kind == model.ContentPhoto:
		return r.submitProof(ctx, user, st, content)
	case st.AwaitingBotToken != "" && content.Kind == model.ContentText:
		return r.activate(ctx, user, st, content.Text)
	case isOperator && st.AwaitingPaymentInfo && content.Kind == model.ContentPhoto:
		return r.stageQR(ctx, user, content)
	case isOperator && st.AwaitingPaymentInfo && st.PaymentQR != "" && content.Kind == model.ContentText:
		return r.savePaymentInfo(ctx, user, st, content.Text)
	case isOperator && st.AwaitingPlanInput && content.Kind == model.ContentText:
		return r.addPlan(ctx, user, content.Text)
	case isOperator && st.SendToUser != 0:
		return r.direct(ctx, st.SendToUser, content)
	case isOperator && st.BroadcastMode:
		return r.broadcast(ctx, user, content)
	case isOperator && st.AwaitingPaymentInfo:
		r.reply(ctx, user.ID, r.Loc.T("payment_qr_first"))
		return OutcomePaymentInfoPrompt, nil
	case isOperator:
		r.reply(ctx, user.ID, r.Loc.T("operator_hint"))
		return OutcomeOperatorIdle, nil
	default:
		return r.relay(ctx, user, content)
	}
}

func (r *routerUC) submitProof(ctx context.Context, user *model.User, st model.ConversationState, c model.Content) (Outcome, error) {
	if st.SelectedPlan == "" {
		r.clearFlow(ctx, user.ID, model.FlowPayment)
		r.reply(ctx, user.ID, r.Loc.T("select_plan_first"))
		return OutcomePaymentFailed, nil
	}
	req, err := r.Payments.Submit(ctx, user, st.SelectedPlan, c.FileID)
	if err != nil {
		r.log.Error().Err(err).Int64("tg_id", user.ID).Msg("submit payment proof")
		r.reply(ctx, user.ID, r.Loc.T("generic_error"))
		return OutcomePaymentFailed, nil
	}
	r.clearFlow(ctx, user.ID, model.FlowPayment)
	r.reply(ctx, user.ID, r.Loc.T("screenshot_received", req.ID))
	return OutcomePaymentSubmitted, nil
}

func (r *routerUC) activate(ctx context.Context, user *model.User, st model.ConversationState, token string) (Outcome, error) {
	token = strings.TrimSpace(token)
	key, err := r.Ledger.Activate(ctx, st.AwaitingBotToken, token)
	switch {
	case err == nil:
		r.clearFlow(ctx, user.ID, model.FlowActivation)
		r.reply(ctx, user.ID, r.Loc.T("clone_activated", key.ExpiresAt.Format(time.DateOnly)))
		return OutcomeActivated, nil
	case errors.Is(err, domain.ErrInvalidArgument):
		r.reply(ctx, user.ID, r.Loc.T("invalid_token_format"))
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrKeyRevoked):
		r.clearFlow(ctx, user.ID, model.FlowActivation)
		r.reply(ctx, user.ID, r.Loc.T("invalid_auth_key"))
	default:
		r.log.Error().Err(err).Int64("tg_id", user.ID).Msg("activate key")
		r.reply(ctx, user.ID, r.Loc.T("generic_error"))
	}
	return OutcomeActivationRejected, nil
}

func (r *routerUC) stageQR(ctx context.Context, user *model.User, c model.Content) (Outcome, error) {
	if err := r.State.Update(ctx, user.ID, func(s *model.ConversationState) { s.PaymentQR = c.FileID }); err != nil {
		return "", err
	}
	r.reply(ctx, user.ID, r.Loc.T("payment_qr_saved"))
	return OutcomePaymentQRStaged, nil
}

func (r *routerUC) savePaymentInfo(ctx context.Context, user *model.User, st model.ConversationState, address string) (Outcome, error) {
	if _, err := r.Payments.SetPaymentInfo(ctx, st.PaymentQR, address); err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			r.reply(ctx, user.ID, r.Loc.T("payment_address_empty"))
			return OutcomePaymentInfoPrompt, nil
		}
		return "", err
	}
	r.clearFlow(ctx, user.ID, model.FlowPaymentInfo)
	r.reply(ctx, user.ID, r.Loc.T("payment_info_saved"))
	return OutcomePaymentInfoSaved, nil
}

func (r *routerUC) addPlan(ctx context.Context, user *model.User, text string) (Outcome, error) {
	name, days, price, err := ParsePlanSpec(text)
	if err != nil {
		r.reply(ctx, user.ID, r.Loc.T("plan_format"))
		return OutcomePlanRejected, nil
	}
	plan, err := r.Plans.Create(ctx, name, days, price)
	if err != nil {
		return "", err
	}
	r.clearFlow(ctx, user.ID, model.FlowAddPlan)
	r.reply(ctx, user.ID, r.Loc.T("plan_added", plan.Name, plan.DurationDays, plan.Price))
	return OutcomePlanAdded, nil
}

func (r *routerUC) broadcast(ctx context.Context, user *model.User, c model.Content) (Outcome, error) {
	res, err := r.Broadcast.Broadcast(ctx, c)
	switch {
	case errors.Is(err, domain.ErrUnsupportedContent):
		r.reply(ctx, user.ID, r.Loc.T("broadcast_unsupported"))
		return OutcomeBroadcastRejected, nil
	case errors.Is(err, domain.ErrBroadcastInProgress):
		r.reply(ctx, user.ID, r.Loc.T("broadcast_in_progress"))
		return OutcomeBroadcastRejected, nil
	case err != nil:
		r.log.Error().Err(err).Msg("broadcast")
		r.reply(ctx, user.ID, r.Loc.T("generic_error"))
		return OutcomeBroadcastRejected, nil
	}
	r.clearFlow(ctx, user.ID, model.FlowBroadcast)
	r.reply(ctx, user.ID, r.Loc.T("broadcast_done", res.Success, res.Failed))
	return OutcomeBroadcast, nil
}

// direct clears the target after one attempt whatever the result.
func (r *routerUC) direct(ctx context.Context, target int64, c model.Content) (Outcome, error) {
	r.clearFlow(ctx, r.operatorID, model.FlowDirect)

	var err error
	switch {
	case c.Kind == model.ContentPoll:
		err = r.Bot.Forward(ctx, target, c.FromChatID, c.MessageID)
	case c.Kind == model.ContentText:
		err = r.Bot.SendText(ctx, target, envelope(r.Loc, c.Kind, "direct_envelope", c.Text, r.operatorName))
	default:
		err = r.Bot.SendContent(ctx, target, c, envelope(r.Loc, c.Kind, "direct_envelope", c.Caption, r.operatorName))
	}
	if err != nil {
		metrics.IncRelay("outbound", string(c.Kind), "failed")
		r.log.Warn().Err(err).Int64("target", target).Msg("direct message failed")
		r.reply(ctx, r.operatorID, r.Loc.T("direct_failed", target))
		return OutcomeDirectFailed, nil
	}
	metrics.IncRelay("outbound", string(c.Kind), "success")
	r.record(ctx, r.operatorID, target, c)
	r.reply(ctx, r.operatorID, r.Loc.T("direct_sent", target))
	return OutcomeDirectSent, nil
}

func (r *routerUC) relay(ctx context.Context, user *model.User, c model.Content) (Outcome, error) {
	var err error
	switch {
	case c.Kind == model.ContentPoll:
		err = r.Bot.Forward(ctx, r.operatorID, c.FromChatID, c.MessageID)
		if err == nil {
			err = r.Bot.SendText(ctx, r.operatorID, r.Loc.T("poll_envelope", user.DisplayName(), user.Handle(), user.ID))
		}
	case c.Kind == model.ContentText:
		err = r.Bot.SendText(ctx, r.operatorID, envelope(r.Loc, c.Kind, "relay_envelope", c.Text, user.DisplayName(), user.Handle(), user.ID))
	default:
		err = r.Bot.SendContent(ctx, r.operatorID, c, envelope(r.Loc, c.Kind, "media_envelope", c.Caption, user.DisplayName(), user.Handle(), user.ID))
	}
	if err != nil {
		metrics.IncRelay("inbound", string(c.Kind), "failed")
		r.log.Warn().Err(err).Int64("tg_id", user.ID).Msg("relay to operator failed")
		r.reply(ctx, user.ID, r.Loc.T("relay_failed"))
		return OutcomeRelayFailed, nil
	}
	metrics.IncRelay("inbound", string(c.Kind), "success")
	r.record(ctx, user.ID, r.operatorID, c)
	r.reply(ctx, user.ID, r.acknowledgment())
	return OutcomeRelayed, nil
}

// acknowledgment picks uniformly from the pool; repeats are allowed.
func (r *routerUC) acknowledgment() string {
	pool := r.Loc.Pool(ackPool)
	if len(pool) == 0 {
		return r.Loc.T("relay_ack")
	}
	return strings.ReplaceAll(pool[r.intn(len(pool))], "{operator}", r.operatorName)
}

func (r *routerUC) record(ctx context.Context, from, to int64, c model.Content) {
	if r.Messages == nil {
		return
	}
	body := c.Text
	if c.Kind != model.ContentText {
		body = c.FileID
	}
	m := &model.RelayMessage{FromUserID: from, ToUserID: to, Kind: c.Kind, Content: body, CreatedAt: time.Now()}
	if err := r.Messages.Append(ctx, repository.NoTX, m); err != nil {
		r.log.Warn().Err(err).Msg("append relay log")
	}
}

func (r *routerUC) clearFlow(ctx context.Context, userID int64, flows ...model.Flow) {
	if err := r.State.ClearFlow(ctx, userID, flows...); err != nil {
		r.log.Error().Err(err).Int64("tg_id", userID).Msg("clear flow")
	}
}

func (r *routerUC) reply(ctx context.Context, chatID int64, text string) {
	if err := r.Bot.SendText(ctx, chatID, text); err != nil {
		r.log.Warn().Err(err).Int64("tg_id", chatID).Msg("reply failed")
	}
}
