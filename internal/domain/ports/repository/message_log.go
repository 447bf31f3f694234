package repository

import (
	"context"

	"telegram-relay-subscription/internal/domain/model"
)

// MessageLogRepository records relay forwards between users and the operator.
type MessageLogRepository interface {
	Append(ctx context.Context, tx Tx, m *model.RelayMessage) error
	ListByUser(ctx context.Context, tx Tx, userID int64, limit int) ([]*model.RelayMessage, error)
}
