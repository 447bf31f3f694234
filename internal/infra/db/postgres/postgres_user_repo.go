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

var _ repository.UserRepository = (*PostgresUserRepo)(nil)

type PostgresUserRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{pool: pool}
}

const userColumns = `id, username, first_name, is_banned, joined_at, last_active_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Username, &u.FirstName, &u.IsBanned, &u.JoinedAt, &u.LastActiveAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func collectUsers(rows pgx.Rows) ([]*model.User, error) {
	defer rows.Close()
	var out []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *PostgresUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	const q = `
INSERT INTO users (id, username, first_name, is_banned, joined_at, last_active_at)
VALUES ($1, $2, $3, FALSE, $4, $5)
ON CONFLICT (id) DO UPDATE SET
  username       = EXCLUDED.username,
  first_name     = EXCLUDED.first_name,
  last_active_at = GREATEST(users.last_active_at, EXCLUDED.last_active_at);
`
	joined := u.JoinedAt
	if joined.IsZero() {
		joined = time.Now()
	}
	active := u.LastActiveAt
	if active.IsZero() {
		active = joined
	}
	if _, err := execSQL(ctx, r.pool, tx, q, u.ID, u.Username, u.FirstName, joined, active); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (r *PostgresUserRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.User, error) {
	u, err := scanUser(pickRow(ctx, r.pool, tx, `SELECT `+userColumns+` FROM users WHERE id = $1;`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func (r *PostgresUserRepo) TouchLastActive(ctx context.Context, tx repository.Tx, id int64, at time.Time) error {
	ct, err := execSQL(ctx, r.pool, tx, `UPDATE users SET last_active_at = $2 WHERE id = $1;`, id, at)
	if err != nil {
		return fmt.Errorf("touch user: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresUserRepo) SetBanned(ctx context.Context, tx repository.Tx, id int64, banned bool) error {
	ct, err := execSQL(ctx, r.pool, tx, `UPDATE users SET is_banned = $2 WHERE id = $1;`, id, banned)
	if err != nil {
		return fmt.Errorf("set banned: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresUserRepo) List(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.User, error) {
	rows, err := queryRows(ctx, r.pool, tx,
		`SELECT `+userColumns+` FROM users ORDER BY joined_at DESC, id OFFSET $1 LIMIT $2;`,
		offset, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return collectUsers(rows)
}

func (r *PostgresUserRepo) ListAudience(ctx context.Context, tx repository.Tx) ([]*model.User, error) {
	rows, err := queryRows(ctx, r.pool, tx,
		`SELECT `+userColumns+` FROM users WHERE NOT is_banned ORDER BY id;`)
	if err != nil {
		return nil, fmt.Errorf("list audience: %w", err)
	}
	return collectUsers(rows)
}

func (r *PostgresUserRepo) ListBanned(ctx context.Context, tx repository.Tx, limit int) ([]*model.User, error) {
	rows, err := queryRows(ctx, r.pool, tx,
		`SELECT `+userColumns+` FROM users WHERE is_banned ORDER BY joined_at DESC, id LIMIT $1;`,
		limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("list banned: %w", err)
	}
	return collectUsers(rows)
}

func (r *PostgresUserRepo) CountUsers(ctx context.Context, tx repository.Tx) (int, error) {
	var n int
	if err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM users;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (r *PostgresUserRepo) CountBanned(ctx context.Context, tx repository.Tx) (int, error) {
	var n int
	if err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM users WHERE is_banned;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count banned: %w", err)
	}
	return n, nil
}
