package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/finsim/papertrade-backend/internal/domain"
)

// txContextKey carries the active *sql.Tx through the context so that every
// repository write issued inside UnitOfWork.WithinTx lands on the same
// database transaction.
type txContextKey struct{}

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
// Repositories resolve it per call, so the same repository instance works
// both standalone and inside a unit of work.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (db *DB) querier(ctx context.Context) querier {
	if tx, ok := ctx.Value(txContextKey{}).(*sql.Tx); ok {
		return tx
	}
	return db.DB
}

// unitOfWork implements domain.UnitOfWork over a single sql.Tx
type unitOfWork struct {
	db *DB
}

// NewUnitOfWork creates a new transactional unit of work
func NewUnitOfWork(db *DB) domain.UnitOfWork {
	return &unitOfWork{db: db}
}

// WithinTx begins a database transaction, runs fn with the transaction bound
// to the context, and commits only if fn succeeds. Any error rolls the whole
// transaction back, so a trade either fully commits or has no effect.
func (u *unitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txContextKey{}).(*sql.Tx); ok {
		// Already inside a unit of work; join it.
		return fn(ctx)
	}

	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", domain.ErrPersistence, err)
	}
	defer tx.Rollback()

	if err := fn(context.WithValue(ctx, txContextKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit transaction: %v", domain.ErrPersistence, err)
	}

	return nil
}
