package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WithTx executes fn inside a RepeatableRead transaction, rolling back on error.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		if IsSerializationFailure(err) {
			return fmt.Errorf("platform/db: commit tx: %w", ErrSerialization)
		}
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}
	return nil
}

// ErrSerialization reports that a concurrent transaction won the race.
var ErrSerialization = errors.New("platform/db: serialization failure")

// IsSerializationFailure matches SQLSTATE 40001.
func IsSerializationFailure(err error) bool {
	var pgErr interface{ SQLState() string }
	return errors.As(err, &pgErr) && pgErr.SQLState() == "40001"
}
