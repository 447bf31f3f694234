package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-relay-subscription/internal/domain"
	"telegram-relay-subscription/internal/domain/model"
	"telegram-relay-subscription/internal/domain/ports/repository"
	"telegram-relay-subscription/internal/infra/security"
)

var _ repository.AuthorizationKeyRepository = (*PostgresAuthKeyRepo)(nil)

// PostgresAuthKeyRepo stores keys with the clone token sealed by cipher.
type PostgresAuthKeyRepo struct {
	pool   *pgxpool.Pool
	cipher security.TokenCipher
}

func NewPostgresAuthKeyRepo(pool *pgxpool.Pool, cipher security.TokenCipher) *PostgresAuthKeyRepo {
	if cipher == nil {
		cipher = security.PlainText{}
	}
	return &PostgresAuthKeyRepo{pool: pool, cipher: cipher}
}

const keyColumns = `key, user_id, plan_id, activated, clone_token, created_at, activated_at, expires_at, is_active`

func (r *PostgresAuthKeyRepo) scan(row pgx.Row) (*model.AuthorizationKey, error) {
	var (
		k     model.AuthorizationKey
		token sql.NullString
	)
	if err := row.Scan(&k.Key, &k.UserID, &k.PlanID, &k.Activated, &token, &k.CreatedAt, &k.ActivatedAt, &k.ExpiresAt, &k.Active); err != nil {
		return nil, err
	}
	if token.Valid {
		plain, err := r.cipher.Decrypt(token.String)
		if err != nil {
			return nil, fmt.Errorf("decrypt clone token for key %s: %w", k.Key, err)
		}
		k.CloneToken = &plain
	}
	return &k, nil
}

func (r *PostgresAuthKeyRepo) collect(rows pgx.Rows) ([]*model.AuthorizationKey, error) {
	defer rows.Close()
	var out []*model.AuthorizationKey
	for rows.Next() {
		k, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// Save upserts; is_active is AND-ed so a stale copy can never revive a revoked key.
func (r *PostgresAuthKeyRepo) Save(ctx context.Context, tx repository.Tx, k *model.AuthorizationKey) error {
	const q = `
INSERT INTO auth_keys (` + keyColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (key) DO UPDATE SET
  activated    = EXCLUDED.activated,
  clone_token  = EXCLUDED.clone_token,
  activated_at = EXCLUDED.activated_at,
  expires_at   = EXCLUDED.expires_at,
  is_active    = auth_keys.is_active AND EXCLUDED.is_active;
`
	var token sql.NullString
	if k.CloneToken != nil {
		sealed, err := r.cipher.Encrypt(*k.CloneToken)
		if err != nil {
			return fmt.Errorf("encrypt clone token: %w", err)
		}
		token = sql.NullString{String: sealed, Valid: true}
	}
	_, err := execSQL(ctx, r.pool, tx, q,
		k.Key, k.UserID, k.PlanID, k.Activated, token, k.CreatedAt, k.ActivatedAt, k.ExpiresAt, k.Active)
	if err != nil {
		return fmt.Errorf("save auth key: %w", err)
	}
	return nil
}

func (r *PostgresAuthKeyRepo) FindByKey(ctx context.Context, tx repository.Tx, key string) (*model.AuthorizationKey, error) {
	k, err := r.scan(pickRow(ctx, r.pool, tx, `SELECT `+keyColumns+` FROM auth_keys WHERE key = $1;`, key))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find auth key: %w", err)
	}
	return k, nil
}

func (r *PostgresAuthKeyRepo) Revoke(ctx context.Context, tx repository.Tx, key string) error {
	ct, err := execSQL(ctx, r.pool, tx, `UPDATE auth_keys SET is_active = FALSE WHERE key = $1;`, key)
	if err != nil {
		return fmt.Errorf("revoke auth key: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresAuthKeyRepo) ListActive(ctx context.Context, tx repository.Tx, limit int) ([]*model.AuthorizationKey, error) {
	rows, err := queryRows(ctx, r.pool, tx, `
SELECT `+keyColumns+`
  FROM auth_keys
 WHERE activated AND is_active
 ORDER BY created_at DESC
 LIMIT $1;`, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("list active keys: %w", err)
	}
	return r.collect(rows)
}

func (r *PostgresAuthKeyRepo) ListByUser(ctx context.Context, tx repository.Tx, userID int64) ([]*model.AuthorizationKey, error) {
	rows, err := queryRows(ctx, r.pool, tx,
		`SELECT `+keyColumns+` FROM auth_keys WHERE user_id = $1 ORDER BY created_at DESC;`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user keys: %w", err)
	}
	return r.collect(rows)
}

func (r *PostgresAuthKeyRepo) CountAll(ctx context.Context, tx repository.Tx) (int, error) {
	var n int
	if err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM auth_keys;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count keys: %w", err)
	}
	return n, nil
}

func (r *PostgresAuthKeyRepo) CountExpired(ctx context.Context, tx repository.Tx, now time.Time) (int, error) {
	var n int
	err := pickRow(ctx, r.pool, tx,
		`SELECT COUNT(*) FROM auth_keys WHERE activated AND is_active AND expires_at <= $1;`, now).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count expired keys: %w", err)
	}
	return n, nil
}
