package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"telegram-relay-subscription/internal/domain"
	"telegram-relay-subscription/internal/domain/model"
	"telegram-relay-subscription/internal/domain/ports/adapter"
	"telegram-relay-subscription/internal/infra/qr"
	"telegram-relay-subscription/internal/usecase"

	"github.com/rs/zerolog"
)

// Display caps for operator listings.
const (
	maxUsersListed    = 20
	maxKeysListed     = 15
	maxPaymentsListed = 10
)

// Reply is what the transport should send back to the caller. A photo
// reply carries Text as its caption.
type Reply struct {
	Text        string
	Buttons     [][]adapter.InlineButton
	PhotoFileID string
	PhotoPNG    []byte
}

func (r Reply) IsEmpty() bool {
	return r.Text == "" && r.PhotoFileID == "" && len(r.PhotoPNG) == 0
}

// BotFacade composes the use cases into transport-neutral bot actions.
// Menus and listings are rendered here so adapters only forward replies.
type BotFacade struct {
	Router usecase.RouterUseCase
	Admin  usecase.AdminUseCase
	Self   usecase.SelfServiceUseCase
	Users  usecase.UserUseCase
	Plans  usecase.PlanUseCase
	Loc    usecase.Localizer

	operatorID   int64
	operatorName string
	log          *zerolog.Logger
}

func NewBotFacade(
	router usecase.RouterUseCase,
	admin usecase.AdminUseCase,
	self usecase.SelfServiceUseCase,
	users usecase.UserUseCase,
	plans usecase.PlanUseCase,
	loc usecase.Localizer,
	operatorID int64,
	operatorName string,
	logger *zerolog.Logger,
) *BotFacade {
	return &BotFacade{
		Router:       router,
		Admin:        admin,
		Self:         self,
		Users:        users,
		Plans:        plans,
		Loc:          loc,
		operatorID:   operatorID,
		operatorName: operatorName,
		log:          logger,
	}
}

// HandleMessage routes one inbound non-command message.
func (f *BotFacade) HandleMessage(ctx context.Context, sender *model.User, content model.Content) (usecase.Outcome, error) {
	return f.Router.Route(ctx, sender, content)
}

var commandActions = map[string]ActionKind{
	"start":     ActMainMenu,
	"panel":     ActOwnerPanel,
	"stats":     ActShowStats,
	"broadcast": ActStartBroadcast,
	"users":     ActListUsers,
	"banned":    ActListBanned,
	"plans":     ActManagePlans,
	"payment":   ActSetPayment,
	"authkeys":  ActManageKeys,
	"verify":    ActVerifyPayments,
	"cancel":    ActCancel,
	"mykeys":    ActMyKeys,
}

// Commands lists the slash commands HandleCommand understands.
func Commands() []string {
	out := make([]string, 0, len(commandActions))
	for c := range commandActions {
		out = append(out, c)
	}
	return out
}

// HandleCommand maps a slash command onto its menu action.
func (f *BotFacade) HandleCommand(ctx context.Context, sender *model.User, command string) (Reply, error) {
	kind, ok := commandActions[strings.ToLower(command)]
	if !ok {
		return Reply{Text: f.Loc.T("unknown_command")}, nil
	}
	return f.Dispatch(ctx, sender, Action{Kind: kind})
}

// HandleCallback parses button data and dispatches it.
func (f *BotFacade) HandleCallback(ctx context.Context, sender *model.User, data string) (Reply, error) {
	a, err := ParseAction(data)
	if err != nil {
		f.log.Debug().Err(err).Str("data", data).Msg("bad callback data")
		return Reply{Text: f.Loc.T("invalid_input")}, nil
	}
	return f.Dispatch(ctx, sender, a)
}

// Dispatch runs one action for sender. Admin actions pass through
// Admin.Authorize before anything else. Domain errors become reply texts;
// only unexpected failures are returned.
func (f *BotFacade) Dispatch(ctx context.Context, sender *model.User, a Action) (Reply, error) {
	user, err := f.Users.RegisterOrFetch(ctx, sender)
	if err != nil {
		return Reply{}, err
	}
	if user.IsBanned {
		return Reply{Text: f.Loc.T("banned")}, nil
	}

	var reply Reply
	if a.AdminOnly() {
		op, aerr := f.Admin.Authorize(user.ID)
		if aerr != nil {
			return f.errorReply(aerr)
		}
		reply, err = f.operatorAction(ctx, op, a)
	} else {
		reply, err = f.userAction(ctx, user, a)
	}
	if err != nil {
		return f.errorReply(err)
	}
	return reply, nil
}

func (f *BotFacade) errorReply(err error) (Reply, error) {
	switch {
	case errors.Is(err, domain.ErrAccessDenied):
		return Reply{Text: f.Loc.T("access_denied")}, nil
	case errors.Is(err, domain.ErrNotFound):
		return Reply{Text: f.Loc.T("not_found")}, nil
	case errors.Is(err, domain.ErrInvalidArgument):
		return Reply{Text: f.Loc.T("invalid_input")}, nil
	case errors.Is(err, domain.ErrAlreadyProcessed):
		return Reply{Text: f.Loc.T("payment_already_processed")}, nil
	case errors.Is(err, domain.ErrPaymentInfoMissing):
		return Reply{Text: f.Loc.T("payment_not_configured")}, nil
	case errors.Is(err, domain.ErrBroadcastInProgress):
		return Reply{Text: f.Loc.T("broadcast_in_progress")}, nil
	}
	return Reply{}, err
}

// ---------------------------------------------------------------- users

func (f *BotFacade) userAction(ctx context.Context, user *model.User, a Action) (Reply, error) {
	switch a.Kind {
	case ActMainMenu:
		return f.mainMenu(user), nil
	case ActSendToOwner:
		return Reply{Text: f.Loc.T("send_to_owner_prompt", f.operatorName)}, nil
	case ActGetClone:
		return f.planOffers(ctx)
	case ActBuyPlan:
		return f.buyPlan(ctx, user, a.Arg)
	case ActPaidVerify:
		if err := f.Self.BeginProofUpload(ctx, user.ID); err != nil {
			if errors.Is(err, domain.ErrInvalidArgument) {
				return Reply{Text: f.Loc.T("select_plan_first")}, nil
			}
			return Reply{}, err
		}
		return Reply{Text: f.Loc.T("send_screenshot")}, nil
	case ActMyKeys:
		return f.myKeys(ctx, user.ID)
	case ActCancel:
		if err := f.Self.Cancel(ctx, user.ID); err != nil {
			return Reply{}, err
		}
		return Reply{Text: f.Loc.T("cancelled")}, nil
	}
	return Reply{}, fmt.Errorf("%w: %s", domain.ErrInvalidArgument, a.Kind)
}

func (f *BotFacade) mainMenu(user *model.User) Reply {
	if user.ID == f.operatorID {
		return Reply{
			Text:    f.Loc.T("welcome_operator", user.DisplayName()),
			Buttons: [][]adapter.InlineButton{{f.btn("btn_owner_panel", Action{Kind: ActOwnerPanel})}},
		}
	}
	return Reply{
		Text: f.Loc.T("welcome_user", user.DisplayName(), f.operatorName),
		Buttons: [][]adapter.InlineButton{
			{f.btn("btn_send_to_owner", Action{Kind: ActSendToOwner})},
			{f.btn("btn_get_clone", Action{Kind: ActGetClone})},
			{f.btn("btn_my_keys", Action{Kind: ActMyKeys})},
		},
	}
}

func (f *BotFacade) planOffers(ctx context.Context) (Reply, error) {
	plans, err := f.Self.Plans(ctx)
	if err != nil {
		return Reply{}, err
	}
	if len(plans) == 0 {
		return Reply{Text: f.Loc.T("no_plans")}, nil
	}
	rows := make([][]adapter.InlineButton, 0, len(plans)+1)
	for _, p := range plans {
		rows = append(rows, []adapter.InlineButton{{
			Text: f.Loc.T("plan_button", p.Name, p.DurationDays, p.Price),
			Data: Action{Kind: ActBuyPlan, Arg: p.ID}.Data(),
		}})
	}
	rows = append(rows, []adapter.InlineButton{f.btn("btn_back", Action{Kind: ActMainMenu})})
	return Reply{Text: f.Loc.T("choose_plan"), Buttons: rows}, nil
}

func (f *BotFacade) buyPlan(ctx context.Context, user *model.User, planID string) (Reply, error) {
	offer, err := f.Self.SelectPlan(ctx, user.ID, planID)
	if err != nil {
		return Reply{}, err
	}
	reply := Reply{
		Text:    f.Loc.T("payment_instructions", offer.Plan.Name, offer.Plan.DurationDays, offer.Plan.Price, offer.Info.Address),
		Buttons: [][]adapter.InlineButton{{f.btn("btn_paid", Action{Kind: ActPaidVerify})}},
	}
	if offer.Info.QRFileID != "" {
		reply.PhotoFileID = offer.Info.QRFileID
		return reply, nil
	}
	png, err := qr.PaymentPNG(offer.Info, f.operatorName)
	if err != nil {
		f.log.Warn().Err(err).Msg("render payment qr")
		return reply, nil
	}
	reply.PhotoPNG = png
	return reply, nil
}

func (f *BotFacade) myKeys(ctx context.Context, userID int64) (Reply, error) {
	keys, err := f.Self.MyKeys(ctx, userID)
	if err != nil {
		return Reply{}, err
	}
	if len(keys) == 0 {
		return Reply{Text: f.Loc.T("no_keys")}, nil
	}
	now := time.Now()
	var b strings.Builder
	b.WriteString(f.Loc.T("my_keys_header"))
	for _, k := range keys {
		b.WriteString("\n")
		b.WriteString(f.Loc.T("key_line", k.Key, k.Status(now), expiryText(k)))
	}
	return Reply{Text: b.String()}, nil
}

// ---------------------------------------------------------------- operator

func (f *BotFacade) operatorAction(ctx context.Context, op *usecase.Operator, a Action) (Reply, error) {
	switch a.Kind {
	case ActOwnerPanel:
		return f.panel(ctx, op)
	case ActShowStats:
		return f.stats(ctx, op)
	case ActListUsers, ActSendToUser:
		return f.users(ctx, op, a.Kind == ActSendToUser)
	case ActListBanned:
		return f.banned(ctx, op)
	case ActStartBroadcast:
		if err := op.ArmBroadcast(ctx); err != nil {
			return Reply{}, err
		}
		return Reply{Text: f.Loc.T("broadcast_prompt")}, nil
	case ActManagePlans:
		return f.managePlans(ctx, op)
	case ActAddPlan:
		if err := op.ArmAddPlan(ctx); err != nil {
			return Reply{}, err
		}
		return Reply{Text: f.Loc.T("plan_prompt")}, nil
	case ActDeletePlan:
		if err := op.DeletePlan(ctx, a.Arg); err != nil {
			return Reply{}, err
		}
		return Reply{Text: f.Loc.T("plan_deleted")}, nil
	case ActSetPayment:
		return f.setPayment(ctx, op)
	case ActManageKeys:
		return f.keys(ctx, op)
	case ActRevokeKey:
		if err := op.RevokeKey(ctx, a.Arg); err != nil {
			return Reply{}, err
		}
		return Reply{Text: f.Loc.T("key_revoked", a.Arg)}, nil
	case ActVerifyPayments:
		return f.pending(ctx, op)
	case ActVerifyPayment:
		return f.proof(ctx, op, a.Arg)
	case ActApprove:
		res, err := op.ApprovePayment(ctx, a.Arg)
		if err != nil {
			return Reply{}, err
		}
		key := "payment_approved_operator"
		if !res.Delivered {
			key = "payment_approved_undelivered"
		}
		return Reply{Text: f.Loc.T(key, res.Request.UserID, res.Plan.Name, res.Key.Key)}, nil
	case ActReject:
		req, err := op.RejectPayment(ctx, a.Arg)
		if err != nil {
			return Reply{}, err
		}
		return Reply{Text: f.Loc.T("payment_rejected_operator", req.UserID)}, nil
	case ActUserAction:
		return f.userCard(ctx, op, a.UserID)
	case ActMsgUser:
		if err := op.ArmDirect(ctx, a.UserID); err != nil {
			return Reply{}, err
		}
		return Reply{Text: f.Loc.T("send_message_prompt", a.UserID)}, nil
	case ActBanUser:
		if err := op.Ban(ctx, a.UserID); err != nil {
			return Reply{}, err
		}
		return Reply{Text: f.Loc.T("user_banned", a.UserID)}, nil
	case ActUnban:
		if err := op.Unban(ctx, a.UserID); err != nil {
			return Reply{}, err
		}
		return Reply{Text: f.Loc.T("user_unbanned", a.UserID)}, nil
	}
	return Reply{}, fmt.Errorf("%w: %s", domain.ErrInvalidArgument, a.Kind)
}

func (f *BotFacade) panel(ctx context.Context, op *usecase.Operator) (Reply, error) {
	st, err := op.Stats(ctx)
	if err != nil {
		return Reply{}, err
	}
	rows := [][]adapter.InlineButton{
		{f.btn("btn_stats", Action{Kind: ActShowStats}), f.btn("btn_users", Action{Kind: ActListUsers})},
		{f.btn("btn_banned", Action{Kind: ActListBanned}), f.btn("btn_broadcast", Action{Kind: ActStartBroadcast})},
		{f.btn("btn_send_to_user", Action{Kind: ActSendToUser}), f.btn("btn_plans", Action{Kind: ActManagePlans})},
		{f.btn("btn_set_payment", Action{Kind: ActSetPayment}), f.btn("btn_keys", Action{Kind: ActManageKeys})},
		{f.btn("btn_verify", Action{Kind: ActVerifyPayments})},
	}
	return Reply{Text: f.Loc.T("panel_header", st.Users, st.PendingPayments, st.ActiveClones), Buttons: rows}, nil
}

func (f *BotFacade) stats(ctx context.Context, op *usecase.Operator) (Reply, error) {
	st, err := op.Stats(ctx)
	if err != nil {
		return Reply{}, err
	}
	text := f.Loc.T("stats", st.Users, st.Banned, st.Plans, st.PendingPayments, st.Keys, st.ActiveClones, st.ExpiredKeys)
	return Reply{Text: text, Buttons: f.backToPanel()}, nil
}

func (f *BotFacade) users(ctx context.Context, op *usecase.Operator, pick bool) (Reply, error) {
	users, err := op.Users(ctx, 0, maxUsersListed)
	if err != nil {
		return Reply{}, err
	}
	if len(users) == 0 {
		return Reply{Text: f.Loc.T("no_users"), Buttons: f.backToPanel()}, nil
	}
	next := ActUserAction
	header := "users_header"
	if pick {
		next = ActMsgUser
		header = "pick_user"
	}
	rows := make([][]adapter.InlineButton, 0, len(users)+1)
	for _, u := range users {
		label := fmt.Sprintf("%s (%s) %d", u.DisplayName(), u.Handle(), u.ID)
		if u.IsBanned {
			label = "🚫 " + label
		}
		rows = append(rows, []adapter.InlineButton{{Text: label, Data: Action{Kind: next, UserID: u.ID}.Data()}})
	}
	rows = append(rows, f.backToPanel()...)
	return Reply{Text: f.Loc.T(header, len(users)), Buttons: rows}, nil
}

func (f *BotFacade) banned(ctx context.Context, op *usecase.Operator) (Reply, error) {
	users, err := op.BannedUsers(ctx, maxUsersListed)
	if err != nil {
		return Reply{}, err
	}
	if len(users) == 0 {
		return Reply{Text: f.Loc.T("no_banned"), Buttons: f.backToPanel()}, nil
	}
	rows := make([][]adapter.InlineButton, 0, len(users)+1)
	for _, u := range users {
		rows = append(rows, []adapter.InlineButton{{
			Text: f.Loc.T("btn_unban", u.DisplayName(), u.ID),
			Data: Action{Kind: ActUnban, UserID: u.ID}.Data(),
		}})
	}
	rows = append(rows, f.backToPanel()...)
	return Reply{Text: f.Loc.T("banned_header", len(users)), Buttons: rows}, nil
}

func (f *BotFacade) userCard(ctx context.Context, op *usecase.Operator, id int64) (Reply, error) {
	u, err := op.User(ctx, id)
	if err != nil {
		return Reply{}, err
	}
	ban := f.btn("btn_ban", Action{Kind: ActBanUser, UserID: id})
	if u.IsBanned {
		ban = f.btn("btn_unban_short", Action{Kind: ActUnban, UserID: id})
	}
	rows := [][]adapter.InlineButton{
		{f.btn("btn_message", Action{Kind: ActMsgUser, UserID: id}), ban},
		{f.btn("btn_back", Action{Kind: ActListUsers})},
	}
	text := f.Loc.T("user_card", u.DisplayName(), u.Handle(), u.ID, u.JoinedAt.Format(time.DateOnly), u.LastActiveAt.Format(time.DateTime), u.IsBanned)
	return Reply{Text: text, Buttons: rows}, nil
}

func (f *BotFacade) managePlans(ctx context.Context, op *usecase.Operator) (Reply, error) {
	plans, err := op.Plans(ctx)
	if err != nil {
		return Reply{}, err
	}
	rows := make([][]adapter.InlineButton, 0, len(plans)+2)
	var b strings.Builder
	b.WriteString(f.Loc.T("plans_header", len(plans)))
	for _, p := range plans {
		b.WriteString("\n")
		b.WriteString(f.Loc.T("plan_button", p.Name, p.DurationDays, p.Price))
		rows = append(rows, []adapter.InlineButton{{
			Text: f.Loc.T("btn_delete_plan", p.Name),
			Data: Action{Kind: ActDeletePlan, Arg: p.ID}.Data(),
		}})
	}
	rows = append(rows, []adapter.InlineButton{f.btn("btn_add_plan", Action{Kind: ActAddPlan})})
	rows = append(rows, f.backToPanel()...)
	return Reply{Text: b.String(), Buttons: rows}, nil
}

func (f *BotFacade) setPayment(ctx context.Context, op *usecase.Operator) (Reply, error) {
	if err := op.ArmPaymentInfo(ctx); err != nil {
		return Reply{}, err
	}
	text := f.Loc.T("payment_qr_prompt")
	if info, err := op.PaymentInfo(ctx); err == nil {
		text = f.Loc.T("payment_current", info.Address) + "\n\n" + text
	}
	return Reply{Text: text}, nil
}

func (f *BotFacade) keys(ctx context.Context, op *usecase.Operator) (Reply, error) {
	keys, err := op.ActiveKeys(ctx, maxKeysListed)
	if err != nil {
		return Reply{}, err
	}
	if len(keys) == 0 {
		return Reply{Text: f.Loc.T("no_active_keys"), Buttons: f.backToPanel()}, nil
	}
	var b strings.Builder
	b.WriteString(f.Loc.T("keys_header", len(keys)))
	rows := make([][]adapter.InlineButton, 0, len(keys)+1)
	for _, k := range keys {
		b.WriteString("\n")
		b.WriteString(f.Loc.T("key_admin_line", k.Key, k.UserID, expiryText(k)))
		rows = append(rows, []adapter.InlineButton{{
			Text: f.Loc.T("btn_revoke", shortKey(k.Key)),
			Data: Action{Kind: ActRevokeKey, Arg: k.Key}.Data(),
		}})
	}
	rows = append(rows, f.backToPanel()...)
	return Reply{Text: b.String(), Buttons: rows}, nil
}

func (f *BotFacade) pending(ctx context.Context, op *usecase.Operator) (Reply, error) {
	reqs, err := op.PendingPayments(ctx, maxPaymentsListed)
	if err != nil {
		return Reply{}, err
	}
	if len(reqs) == 0 {
		return Reply{Text: f.Loc.T("no_pending"), Buttons: f.backToPanel()}, nil
	}
	rows := make([][]adapter.InlineButton, 0, len(reqs)+1)
	for _, r := range reqs {
		rows = append(rows, []adapter.InlineButton{{
			Text: f.Loc.T("btn_payment", r.UserID, r.CreatedAt.Format(time.DateTime)),
			Data: Action{Kind: ActVerifyPayment, Arg: r.ID}.Data(),
		}})
	}
	rows = append(rows, f.backToPanel()...)
	return Reply{Text: f.Loc.T("pending_header", len(reqs)), Buttons: rows}, nil
}

func (f *BotFacade) proof(ctx context.Context, op *usecase.Operator, id string) (Reply, error) {
	req, err := op.Payment(ctx, id)
	if err != nil {
		return Reply{}, err
	}
	if !req.IsPending() {
		return Reply{}, domain.ErrAlreadyProcessed
	}
	planName := req.PlanID
	if p, err := f.Plans.Get(ctx, req.PlanID); err == nil {
		planName = p.Name
	}
	who := fmt.Sprint(req.UserID)
	if u, err := op.User(ctx, req.UserID); err == nil {
		who = fmt.Sprintf("%s (%s)", u.DisplayName(), u.Handle())
	}
	rows := [][]adapter.InlineButton{
		{f.btn("btn_approve", Action{Kind: ActApprove, Arg: id}), f.btn("btn_reject", Action{Kind: ActReject, Arg: id})},
		{f.btn("btn_back", Action{Kind: ActVerifyPayments})},
	}
	return Reply{
		Text:        f.Loc.T("payment_proof", who, req.UserID, planName, req.ID),
		Buttons:     rows,
		PhotoFileID: req.ProofFileID,
	}, nil
}

func (f *BotFacade) btn(label string, a Action) adapter.InlineButton {
	return adapter.InlineButton{Text: f.Loc.T(label), Data: a.Data()}
}

func (f *BotFacade) backToPanel() [][]adapter.InlineButton {
	return [][]adapter.InlineButton{{f.btn("btn_back", Action{Kind: ActOwnerPanel})}}
}

func expiryText(k *model.AuthorizationKey) string {
	if k.ExpiresAt == nil {
		return "-"
	}
	return k.ExpiresAt.Format(time.DateOnly)
}

func shortKey(k string) string {
	if len(k) <= 8 {
		return k
	}
	return k[:8]
}
