package application

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"telegram-relay-subscription/internal/domain"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// ActionKind is the tag of an inline-button callback.
type ActionKind string

const (
	ActMainMenu       ActionKind = "main_menu"
	ActSendToOwner    ActionKind = "send_to_owner"
	ActGetClone       ActionKind = "get_clone"
	ActPaidVerify     ActionKind = "paid_verify"
	ActMyKeys         ActionKind = "my_keys"
	ActCancel         ActionKind = "cancel"
	ActBuyPlan        ActionKind = "buy_plan_"
	ActOwnerPanel     ActionKind = "owner_panel"
	ActShowStats      ActionKind = "show_stats"
	ActListUsers      ActionKind = "list_users"
	ActListBanned     ActionKind = "list_banned"
	ActStartBroadcast ActionKind = "start_broadcast"
	ActSendToUser     ActionKind = "send_to_user"
	ActManagePlans    ActionKind = "manage_plans"
	ActAddPlan        ActionKind = "add_plan"
	ActSetPayment     ActionKind = "set_payment"
	ActManageKeys     ActionKind = "manage_auth_keys"
	ActVerifyPayments ActionKind = "verify_payments"
	ActDeletePlan     ActionKind = "delete_plan_"
	ActVerifyPayment  ActionKind = "verify_payment_"
	ActApprove        ActionKind = "approve_payment_"
	ActReject         ActionKind = "reject_payment_"
	ActRevokeKey      ActionKind = "revoke_key_"
	ActUserAction     ActionKind = "user_action_"
	ActMsgUser        ActionKind = "msg_user_"
	ActBanUser        ActionKind = "ban_user_"
	ActUnban          ActionKind = "unban_"
)

type argKind int

const (
	argNone argKind = iota
	argPlanID
	argPaymentID
	argKey
	argUserID
)

type actionSpec struct {
	arg   argKind
	admin bool
}

var actions = map[ActionKind]actionSpec{
	ActMainMenu:    {},
	ActSendToOwner: {},
	ActGetClone:    {},
	ActPaidVerify:  {},
	ActMyKeys:      {},
	ActCancel:      {},
	ActBuyPlan:     {arg: argPlanID},

	ActOwnerPanel:     {admin: true},
	ActShowStats:      {admin: true},
	ActListUsers:      {admin: true},
	ActListBanned:     {admin: true},
	ActStartBroadcast: {admin: true},
	ActSendToUser:     {admin: true},
	ActManagePlans:    {admin: true},
	ActAddPlan:        {admin: true},
	ActSetPayment:     {admin: true},
	ActManageKeys:     {admin: true},
	ActVerifyPayments: {admin: true},
	ActDeletePlan:     {arg: argPlanID, admin: true},
	ActVerifyPayment:  {arg: argPaymentID, admin: true},
	ActApprove:        {arg: argPaymentID, admin: true},
	ActReject:         {arg: argPaymentID, admin: true},
	ActRevokeKey:      {arg: argKey, admin: true},
	ActUserAction:     {arg: argUserID, admin: true},
	ActMsgUser:        {arg: argUserID, admin: true},
	ActBanUser:        {arg: argUserID, admin: true},
	ActUnban:          {arg: argUserID, admin: true},
}

// prefixed lists the argument-carrying kinds, longest prefix first.
var prefixed = []ActionKind{
	ActApprove, ActVerifyPayment, ActReject, ActDeletePlan, ActUserAction,
	ActRevokeKey, ActBuyPlan, ActBanUser, ActMsgUser, ActUnban,
}

var keyTokenRe = regexp.MustCompile(`^[A-Za-z0-9_-]{22}$`)

// Action is a parsed callback. Arg holds the raw id, UserID the parsed
// numeric id for user-targeted actions.
type Action struct {
	Kind   ActionKind
	Arg    string
	UserID int64
}

func (a Action) AdminOnly() bool { return actions[a.Kind].admin }

// Data renders the callback payload for a button.
func (a Action) Data() string {
	if actions[a.Kind].arg == argNone {
		return string(a.Kind)
	}
	if a.Arg == "" && a.UserID != 0 {
		return string(a.Kind) + strconv.FormatInt(a.UserID, 10)
	}
	return string(a.Kind) + a.Arg
}

// ParseAction validates callback data. Unknown tags and malformed ids
// yield ErrInvalidArgument.
func ParseAction(data string) (Action, error) {
	data = strings.TrimSpace(data)
	if spec, ok := actions[ActionKind(data)]; ok && spec.arg == argNone {
		return Action{Kind: ActionKind(data)}, nil
	}
	for _, kind := range prefixed {
		if !strings.HasPrefix(data, string(kind)) {
			continue
		}
		arg := strings.TrimPrefix(data, string(kind))
		a := Action{Kind: kind, Arg: arg}
		if err := a.validate(); err != nil {
			return Action{}, fmt.Errorf("%w: %s: %v", domain.ErrInvalidArgument, kind, err)
		}
		return a, nil
	}
	return Action{}, fmt.Errorf("%w: unknown action %q", domain.ErrInvalidArgument, data)
}

func (a *Action) validate() error {
	switch actions[a.Kind].arg {
	case argPlanID:
		_, err := uuid.Parse(a.Arg)
		return err
	case argPaymentID:
		_, err := ulid.ParseStrict(a.Arg)
		return err
	case argKey:
		if !keyTokenRe.MatchString(a.Arg) {
			return fmt.Errorf("malformed key")
		}
	case argUserID:
		id, err := strconv.ParseInt(a.Arg, 10, 64)
		if err != nil {
			return err
		}
		if id <= 0 {
			return fmt.Errorf("non-positive user id")
		}
		a.UserID = id
	}
	return nil
}
