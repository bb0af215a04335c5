package sqlutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// MaxTxAttempts bounds how often Run restarts a transaction that Postgres
// aborted with a serialization failure or deadlock.
const MaxTxAttempts = 3

// Run executes fn inside a *sql.Tx bound to queries built by newQueries.
// If fn returns an error the tx rolls back, else it commits. Transactions
// aborted by Postgres for serialization or deadlock are run again from the
// start; fn must therefore not keep side effects outside the tx.
func Run[T any](
	ctx context.Context,
	db *sql.DB,
	newQueries func(*sql.Tx) *T,
	fn func(q *T) error,
) error {
	var err error
	for attempt := 1; attempt <= MaxTxAttempts; attempt++ {
		err = runOnce(ctx, db, newQueries, fn)
		if err == nil || !IsRetryable(err) || ctx.Err() != nil {
			return err
		}
		log.Debug().Err(err).Int("attempt", attempt).Msg("retrying aborted transaction")
	}
	return fmt.Errorf("transaction aborted %d times: %w", MaxTxAttempts, err)
}

func runOnce[T any](
	ctx context.Context,
	db *sql.DB,
	newQueries func(*sql.Tx) *T,
	fn func(q *T) error,
) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(newQueries(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// IsRetryable reports whether err is a Postgres serialization failure or
// deadlock, after which the whole transaction may be retried.
func IsRetryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code {
	case "40001", "40P01":
		return true
	}
	return false
}
