package domain

import (
	"context"

	"github.com/google/uuid"
)

// PortfolioRepository defines the interface for portfolio persistence operations
type PortfolioRepository interface {
	// GetByID retrieves a portfolio by its ID
	// Returns ErrPortfolioNotFound if no portfolio exists
	GetByID(ctx context.Context, id uuid.UUID) (*Portfolio, error)

	// GetByOwner retrieves the portfolio owned by the given user
	// Returns ErrPortfolioNotFound if no portfolio exists
	GetByOwner(ctx context.Context, ownerID uuid.UUID) (*Portfolio, error)

	// Create inserts a new portfolio
	// Returns ErrPortfolioExists if the owner already has one; the caller
	// resolves concurrent first access by re-fetching the existing row
	Create(ctx context.Context, portfolio *Portfolio) error

	// Update persists cash balance, realized P&L and XP changes, guarded by
	// the optimistic version: the row is written only if its stored version
	// equals expectedVersion, and the version is bumped on success.
	// Returns ErrConcurrencyConflict on a stale read.
	Update(ctx context.Context, portfolio *Portfolio, expectedVersion int64) error
}

// PositionRepository defines the interface for position persistence operations
type PositionRepository interface {
	// GetOpen retrieves the open position for (portfolio, symbol)
	// Returns ErrPositionNotFound if no open position exists; closed
	// positions are never returned
	GetOpen(ctx context.Context, portfolioID uuid.UUID, symbol string) (*Position, error)

	// ListOpen retrieves all open positions of a portfolio, ordered by
	// symbol (stable across calls)
	ListOpen(ctx context.Context, portfolioID uuid.UUID) ([]*Position, error)

	// Create inserts a newly opened position
	Create(ctx context.Context, position *Position) error

	// Update persists quantity/avg-cost/status changes to an existing position
	Update(ctx context.Context, position *Position) error
}

// TransactionRepository defines the interface for the append-only trade ledger
type TransactionRepository interface {
	// Append inserts an executed trade. There is no update or delete path.
	Append(ctx context.Context, transaction *Transaction) error

	// ListByPortfolio retrieves the full trade history of a portfolio in
	// chronological order, oldest first (the only order offered).
	ListByPortfolio(ctx context.Context, portfolioID uuid.UUID) ([]*Transaction, error)
}

// UnitOfWork runs a function within a single transactional boundary: every
// repository write issued through the function's context commits atomically,
// or not at all. TradeExecutor commits its three-store update through this.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
