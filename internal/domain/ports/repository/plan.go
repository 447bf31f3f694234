package repository

import (
	"context"

	"telegram-relay-subscription/internal/domain/model"
)

// PlanRepository is the port for the subscription catalog.
type PlanRepository interface {
	Save(ctx context.Context, tx Tx, plan *model.Plan) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Plan, error)
	ListAll(ctx context.Context, tx Tx) ([]*model.Plan, error)
	// Delete does not cascade; keys and requests may keep orphaned plan ids.
	Delete(ctx context.Context, tx Tx, id string) error
}
