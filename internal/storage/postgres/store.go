// Package postgres implements the ledger-store repositories over pgx.
//
// The workflow layer assumes no multi-statement transactions from this
// store, so every mutation here is a single statement with its own guard
// (status predicates, a partial unique index on origin_order_id) and
// conflicts are reported as domain errors for the caller to re-read.
package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store exposes the order, item, and moment repositories over one pool. It
// satisfies the app layer's TransferRepository, FulfillmentRepository,
// ReconcileRepository, and ItemRepository interfaces.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isInvalidUUID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}
