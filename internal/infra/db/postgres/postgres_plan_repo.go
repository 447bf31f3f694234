package postgres

import (
	"context"
	"fmt"

	"telegram-relay-subscription/internal/domain"
	"telegram-relay-subscription/internal/domain/model"
	"telegram-relay-subscription/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4/pgxpool"
)

// Ensure interface compliance
var _ repository.PlanRepository = (*PostgresPlanRepo)(nil)

type PostgresPlanRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresPlanRepo(pool *pgxpool.Pool) *PostgresPlanRepo {
	return &PostgresPlanRepo{pool: pool}
}

func (r *PostgresPlanRepo) Save(ctx context.Context, tx repository.Tx, plan *model.Plan) error {
	const sql = `
INSERT INTO plans (id, name, duration_days, price, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE
  SET name          = EXCLUDED.name,
      duration_days = EXCLUDED.duration_days,
      price         = EXCLUDED.price;
`
	_, err := execSQL(ctx, r.pool, tx, sql,
		plan.ID, plan.Name, plan.DurationDays, plan.Price, plan.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save plan: %w", err)
	}
	return nil
}

func (r *PostgresPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	const sql = `
SELECT id, name, duration_days, price::float8, created_at
  FROM plans
 WHERE id = $1;
`
	var p model.Plan
	if err := pickRow(ctx, r.pool, tx, sql, id).Scan(&p.ID, &p.Name, &p.DurationDays, &p.Price, &p.CreatedAt); err != nil {
		if isNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find plan: %w", err)
	}
	return &p, nil
}

func (r *PostgresPlanRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	const sql = `
SELECT id, name, duration_days, price::float8, created_at
  FROM plans
 ORDER BY price, name;
`
	rows, err := queryRows(ctx, r.pool, tx, sql)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()
	var out []*model.Plan
	for rows.Next() {
		var p model.Plan
		if err := rows.Scan(&p.ID, &p.Name, &p.DurationDays, &p.Price, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// Delete leaves keys and payment requests that reference the plan untouched.
func (r *PostgresPlanRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	ct, err := execSQL(ctx, r.pool, tx, `DELETE FROM plans WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
