package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/onboarding-api/internal/repository"
)

const (
	pqUniqueViolation      = "23505"
	pqSerializationFailure = "40001"
)

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	db *sqlx.DB
}

// NewBaseRepository creates a new base repository
func NewBaseRepository(db *sqlx.DB) BaseRepository {
	return BaseRepository{db: db}
}

// GetDB returns the database instance
func (r *BaseRepository) GetDB() *sqlx.DB {
	return r.db
}

// WithTx executes a function within a transaction
func (r *BaseRepository) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	return r.WithTxOptions(ctx, nil, fn)
}

// WithTxOptions executes fn within a transaction started with opts.
func (r *BaseRepository) WithTxOptions(ctx context.Context, opts *sql.TxOptions, fn func(*sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// WithSerializableTx runs fn in a SERIALIZABLE transaction, retrying up to attempts
// times when Postgres reports a serialization failure or a unique violation from a
// concurrent writer.
func (r *BaseRepository) WithSerializableTx(ctx context.Context, attempts int, fn func(*sqlx.Tx) error) error {
	opts := &sql.TxOptions{Isolation: sql.LevelSerializable}
	var err error
	for i := 0; i < attempts; i++ {
		err = r.WithTxOptions(ctx, opts, fn)
		if err == nil || !isRetryable(err) {
			return err
		}
	}
	return err
}

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pqCode(err) == pqUniqueViolation
}

func isRetryable(err error) bool {
	code := pqCode(err)
	return code == pqSerializationFailure || code == pqUniqueViolation
}

// translate maps driver errors onto repository sentinels, wrapping with op.
func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w: %v", op, repository.ErrDuplicate, err)
	default:
		return fmt.Errorf("failed to %s: %w", op, err)
	}
}

// expectOne turns a zero RowsAffected into ErrNotFound.
func expectOne(op string, result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}
	return nil
}
