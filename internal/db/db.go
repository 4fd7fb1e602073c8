// Package db implements the Postgres readers and writers consumed by the
// ordering engine on top of pgx and squirrel.
package db

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/noah-isme/foodtruck-orders/internal/deal"
	"github.com/noah-isme/foodtruck-orders/internal/menu"
	"github.com/noah-isme/foodtruck-orders/internal/offer"
	"github.com/noah-isme/foodtruck-orders/internal/order"
	"github.com/noah-isme/foodtruck-orders/internal/promo"
)

// ErrLedgerRejected is returned when an atomic ledger function refused the increment.
var ErrLedgerRejected = errors.New("db: ledger increment rejected")

var (
	_ menu.Reader   = (*Queries)(nil)
	_ promo.Querier = (*Queries)(nil)
	_ deal.Querier  = (*Queries)(nil)
	_ offer.Querier = (*Queries)(nil)
	_ order.Store   = (*Queries)(nil)
	_ order.Reader  = (*Queries)(nil)
)

// DBTX works with both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type scanner interface {
	Scan(dest ...any) error
}

func collect[T any](rows pgx.Rows, scan func(scanner) (T, error)) ([]T, error) {
	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (T, error) { return scan(r) })
}

// Queries groups every query of the service.
type Queries struct {
	db DBTX
	sb sq.StatementBuilderType
}

// New constructs Queries over db.
func New(db DBTX) *Queries {
	return &Queries{db: db, sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

// WithTx returns Queries bound to tx.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx, sb: q.sb}
}

func (q *Queries) inTx(ctx context.Context, fn func(*Queries) error) error {
	tx, err := q.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(q.WithTx(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (q *Queries) queryRow(ctx context.Context, b sq.Sqlizer) (pgx.Row, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	return q.db.QueryRow(ctx, query, args...), nil
}

func (q *Queries) query(ctx context.Context, b sq.Sqlizer) (pgx.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	return q.db.Query(ctx, query, args...)
}

func (q *Queries) exec(ctx context.Context, b sq.Sqlizer) (pgconn.CommandTag, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	return q.db.Exec(ctx, query, args...)
}
