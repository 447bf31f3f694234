package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-relay-subscription/internal/domain"
	"telegram-relay-subscription/internal/domain/model"
	"telegram-relay-subscription/internal/domain/ports/repository"
)

var (
	_ repository.PaymentRequestRepository = (*PostgresPaymentRequestRepo)(nil)
	_ repository.PaymentInfoRepository    = (*PostgresPaymentInfoRepo)(nil)
)

type PostgresPaymentRequestRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresPaymentRequestRepo(pool *pgxpool.Pool) *PostgresPaymentRequestRepo {
	return &PostgresPaymentRequestRepo{pool: pool}
}

const paymentColumns = `id, user_id, plan_id, proof_file_id, status, created_at, approved_at`

func scanPayment(row pgx.Row) (*model.PaymentRequest, error) {
	var (
		p      model.PaymentRequest
		status string
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.PlanID, &p.ProofFileID, &status, &p.CreatedAt, &p.ApprovedAt); err != nil {
		return nil, err
	}
	p.Status = model.PaymentStatus(status)
	return &p, nil
}

func (r *PostgresPaymentRequestRepo) Save(ctx context.Context, tx repository.Tx, p *model.PaymentRequest) error {
	const q = `
INSERT INTO payment_requests (` + paymentColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
  proof_file_id = EXCLUDED.proof_file_id,
  status        = EXCLUDED.status,
  approved_at   = EXCLUDED.approved_at;
`
	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.UserID, p.PlanID, p.ProofFileID, string(p.Status), p.CreatedAt, p.ApprovedAt)
	if err != nil {
		return fmt.Errorf("save payment request: %w", err)
	}
	return nil
}

func (r *PostgresPaymentRequestRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentRequest, error) {
	p, err := scanPayment(pickRow(ctx, r.pool, tx, `SELECT `+paymentColumns+` FROM payment_requests WHERE id = $1;`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find payment request: %w", err)
	}
	return p, nil
}

// MarkApproved is a conditional update, so two racing approvals see exactly one winner.
func (r *PostgresPaymentRequestRepo) MarkApproved(ctx context.Context, tx repository.Tx, id string, at time.Time) (bool, error) {
	ct, err := execSQL(ctx, r.pool, tx, `
UPDATE payment_requests
   SET status = $2, approved_at = $3
 WHERE id = $1 AND status = $4;`,
		id, string(model.PaymentStatusApproved), at, string(model.PaymentStatusPending))
	if err != nil {
		return false, fmt.Errorf("approve payment request: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

func (r *PostgresPaymentRequestRepo) ListPending(ctx context.Context, tx repository.Tx, limit int) ([]*model.PaymentRequest, error) {
	rows, err := queryRows(ctx, r.pool, tx, `
SELECT `+paymentColumns+`
  FROM payment_requests
 WHERE status = $1
 ORDER BY created_at
 LIMIT $2;`, string(model.PaymentStatusPending), limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("list pending payments: %w", err)
	}
	defer rows.Close()
	var out []*model.PaymentRequest
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresPaymentRequestRepo) CountPending(ctx context.Context, tx repository.Tx) (int, error) {
	var n int
	err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM payment_requests WHERE status = $1;`,
		string(model.PaymentStatusPending)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending payments: %w", err)
	}
	return n, nil
}

// PostgresPaymentInfoRepo keeps the single payment_info row (id = 1).
type PostgresPaymentInfoRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresPaymentInfoRepo(pool *pgxpool.Pool) *PostgresPaymentInfoRepo {
	return &PostgresPaymentInfoRepo{pool: pool}
}

func (r *PostgresPaymentInfoRepo) Get(ctx context.Context, tx repository.Tx) (*model.PaymentInfo, error) {
	var info model.PaymentInfo
	err := pickRow(ctx, r.pool, tx, `SELECT qr_file_id, address, updated_at FROM payment_info WHERE id = 1;`).
		Scan(&info.QRFileID, &info.Address, &info.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get payment info: %w", err)
	}
	return &info, nil
}

func (r *PostgresPaymentInfoRepo) Save(ctx context.Context, tx repository.Tx, info *model.PaymentInfo) error {
	const q = `
INSERT INTO payment_info (id, qr_file_id, address, updated_at)
VALUES (1, $1, $2, $3)
ON CONFLICT (id) DO UPDATE SET
  qr_file_id = EXCLUDED.qr_file_id,
  address    = EXCLUDED.address,
  updated_at = EXCLUDED.updated_at;
`
	at := info.UpdatedAt
	if at.IsZero() {
		at = time.Now()
	}
	if _, err := execSQL(ctx, r.pool, tx, q, info.QRFileID, info.Address, at); err != nil {
		return fmt.Errorf("save payment info: %w", err)
	}
	return nil
}
