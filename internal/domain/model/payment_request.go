package model

import (
	"crypto/rand"
	"time"

	"telegram-relay-subscription/internal/domain"

	"github.com/oklog/ulid/v2"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"  // proof uploaded, waiting for the operator
	PaymentStatusApproved PaymentStatus = "approved" // operator approved; a key was issued
)

// PaymentRequest is a user's proof of payment for a plan. Rejection is not
// persisted, so a request is either pending or approved.
type PaymentRequest struct {
	ID          string        `json:"id"` // ULID, sorts by creation time
	UserID      int64         `json:"user_id"`
	PlanID      string        `json:"plan_id"`
	ProofFileID string        `json:"proof_file_id"`
	Status      PaymentStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	ApprovedAt  *time.Time    `json:"approved_at,omitempty"`
}

func NewPaymentRequest(userID int64, planID, proofFileID string) (*PaymentRequest, error) {
	if userID <= 0 || planID == "" || proofFileID == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &PaymentRequest{
		ID:          ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		UserID:      userID,
		PlanID:      planID,
		ProofFileID: proofFileID,
		Status:      PaymentStatusPending,
		CreatedAt:   now,
	}, nil
}

func (p *PaymentRequest) IsPending() bool { return p.Status == PaymentStatusPending }
