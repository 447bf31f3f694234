package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle. Its concrete type belongs to the
// storage backend (pgx.Tx for Postgres); repositories accept NoTX for the
// non-transactional path.
type Tx interface{}

var NoTX interface{}

// TransactionManager runs fn inside one transaction and hands the handle to
// fn. A non-nil error from fn rolls back; otherwise the work is committed.
//
// USAGE
//
//	tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx Tx) error {
//		ok, err := payments.MarkApproved(ctx, tx, id, now)
//		...
//		return keys.Save(ctx, tx, key)
//	})
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
