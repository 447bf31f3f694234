package model

// ConversationState holds the per-user flags that decide how the next
// inbound message is read. Flags are independent: the operator may have
// several flows staged at once, and readers check only their own flags.
type ConversationState struct {
	AwaitingPaymentScreenshot bool   `json:"awaiting_payment_screenshot,omitempty"`
	SelectedPlan              string `json:"selected_plan,omitempty"`
	AwaitingBotToken          string `json:"awaiting_bot_token,omitempty"` // key pending activation
	BroadcastMode             bool   `json:"broadcast_mode,omitempty"`
	SendToUser                int64  `json:"send_to_user,omitempty"`
	AwaitingPaymentInfo       bool   `json:"awaiting_payment_info,omitempty"`
	PaymentQR                 string `json:"payment_qr,omitempty"` // staged QR file id
	AwaitingPlanInput         bool   `json:"awaiting_plan_input,omitempty"`
}

// Flow names a group of flags that are armed and cleared together.
type Flow string

const (
	FlowPayment     Flow = "payment"      // awaiting_payment_screenshot + selected_plan
	FlowActivation  Flow = "activation"   // awaiting_bot_token
	FlowBroadcast   Flow = "broadcast"    // broadcast_mode
	FlowDirect      Flow = "direct"       // send_to_user
	FlowPaymentInfo Flow = "payment_info" // awaiting_payment_info + payment_qr
	FlowAddPlan     Flow = "add_plan"     // awaiting_plan_input
)

// AllFlows lists every flow, used by /cancel.
var AllFlows = []Flow{FlowPayment, FlowActivation, FlowBroadcast, FlowDirect, FlowPaymentInfo, FlowAddPlan}

// Clear resets the flags owned by flow. Unknown flows are ignored.
func (s *ConversationState) Clear(flow Flow) {
	switch flow {
	case FlowPayment:
		s.AwaitingPaymentScreenshot = false
		s.SelectedPlan = ""
	case FlowActivation:
		s.AwaitingBotToken = ""
	case FlowBroadcast:
		s.BroadcastMode = false
	case FlowDirect:
		s.SendToUser = 0
	case FlowPaymentInfo:
		s.AwaitingPaymentInfo = false
		s.PaymentQR = ""
	case FlowAddPlan:
		s.AwaitingPlanInput = false
	}
}

func (s ConversationState) IsEmpty() bool { return s == ConversationState{} }
