package repository

import (
	"context"
	"time"

	"telegram-relay-subscription/internal/domain/model"
)

// -----------------------------
// Payment requests
// -----------------------------

type PaymentRequestRepository interface {
	Save(ctx context.Context, tx Tx, p *model.PaymentRequest) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.PaymentRequest, error)
	// MarkApproved flips pending to approved and reports whether this call did it.
	MarkApproved(ctx context.Context, tx Tx, id string, at time.Time) (bool, error)
	ListPending(ctx context.Context, tx Tx, limit int) ([]*model.PaymentRequest, error)
	CountPending(ctx context.Context, tx Tx) (int, error)
}

// -----------------------------
// Payment info (singleton)
// -----------------------------

type PaymentInfoRepository interface {
	// Get returns ErrNotFound until the operator configures it.
	Get(ctx context.Context, tx Tx) (*model.PaymentInfo, error)
	Save(ctx context.Context, tx Tx, info *model.PaymentInfo) error
}
