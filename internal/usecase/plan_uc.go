package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"telegram-relay-subscription/internal/domain"
	"telegram-relay-subscription/internal/domain/model"
	"telegram-relay-subscription/internal/domain/ports/repository"
	"telegram-relay-subscription/internal/infra/logging"

	"github.com/rs/zerolog"
)

var _ PlanUseCase = (*planUC)(nil)

// PlanUseCase is the subscription catalog.
type PlanUseCase interface {
	Create(ctx context.Context, name string, durationDays int, price float64) (*model.Plan, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*model.Plan, error)
	Get(ctx context.Context, id string) (*model.Plan, error)
}

type planUC struct {
	plans repository.PlanRepository
	log   *zerolog.Logger
}

func NewPlanUseCase(plans repository.PlanRepository, logger *zerolog.Logger) *planUC {
	return &planUC{plans: plans, log: logger}
}

func (p *planUC) Create(ctx context.Context, name string, durationDays int, price float64) (*model.Plan, error) {
	defer logging.TraceDuration(p.log, "PlanUC.Create")()

	plan, err := model.NewPlan("", name, durationDays, price)
	if err != nil {
		return nil, err
	}
	if err := p.plans.Save(ctx, repository.NoTX, plan); err != nil {
		return nil, fmt.Errorf("save plan: %w", err)
	}
	p.log.Info().Str("plan_id", plan.ID).Str("name", plan.Name).Int("days", plan.DurationDays).Msg("plan created")
	return plan, nil
}

// Delete does not touch keys or requests that still reference the plan.
func (p *planUC) Delete(ctx context.Context, id string) error {
	if err := p.plans.Delete(ctx, repository.NoTX, id); err != nil {
		return err
	}
	p.log.Info().Str("plan_id", id).Msg("plan deleted")
	return nil
}

func (p *planUC) List(ctx context.Context) ([]*model.Plan, error) {
	return p.plans.ListAll(ctx, repository.NoTX)
}

func (p *planUC) Get(ctx context.Context, id string) (*model.Plan, error) {
	return p.plans.FindByID(ctx, repository.NoTX, id)
}

// ParsePlanSpec reads the operator's "Name | days | price" line.
func ParsePlanSpec(s string) (name string, days int, price float64, err error) {
	parts := strings.Split(s, "|")
	if len(parts) != 3 {
		return "", 0, 0, fmt.Errorf("%w: want \"name | days | price\"", domain.ErrInvalidArgument)
	}
	name = strings.TrimSpace(parts[0])
	days, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return "", 0, 0, fmt.Errorf("%w: days: %v", domain.ErrInvalidArgument, err)
	}
	price, err = strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return "", 0, 0, fmt.Errorf("%w: price: %v", domain.ErrInvalidArgument, err)
	}
	if name == "" || days < 0 || !model.ValidPrice(price) {
		return "", 0, 0, domain.ErrInvalidArgument
	}
	return name, days, price, nil
}
