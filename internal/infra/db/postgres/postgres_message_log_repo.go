package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-relay-subscription/internal/domain"
	"telegram-relay-subscription/internal/domain/model"
	"telegram-relay-subscription/internal/domain/ports/repository"
)

var _ repository.MessageLogRepository = (*PostgresMessageLogRepo)(nil)

type PostgresMessageLogRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresMessageLogRepo(pool *pgxpool.Pool) *PostgresMessageLogRepo {
	return &PostgresMessageLogRepo{pool: pool}
}

func (r *PostgresMessageLogRepo) Append(ctx context.Context, tx repository.Tx, m *model.RelayMessage) error {
	const q = `
INSERT INTO messages (from_user_id, to_user_id, kind, content, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id;
`
	err := pickRow(ctx, r.pool, tx, q, m.FromUserID, m.ToUserID, string(m.Kind), m.Content, m.CreatedAt).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("append relay message: %w", err)
	}
	return nil
}

// ListByUser returns messages sent by or to userID, newest first.
func (r *PostgresMessageLogRepo) ListByUser(ctx context.Context, tx repository.Tx, userID int64, limit int) ([]*model.RelayMessage, error) {
	rows, err := queryRows(ctx, r.pool, tx, `
SELECT id, from_user_id, to_user_id, kind, content, created_at
  FROM messages
 WHERE from_user_id = $1 OR to_user_id = $1
 ORDER BY created_at DESC, id DESC
 LIMIT $2;`, userID, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("list relay messages: %w", err)
	}
	defer rows.Close()
	var out []*model.RelayMessage
	for rows.Next() {
		var (
			m    model.RelayMessage
			kind string
		)
		if err := rows.Scan(&m.ID, &m.FromUserID, &m.ToUserID, &kind, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
		}
		m.Kind = model.ContentKind(kind)
		out = append(out, &m)
	}
	return out, rows.Err()
}
