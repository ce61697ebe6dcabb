package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/finsim/papertrade-backend/internal/domain"
)

// uniqueViolation is the PostgreSQL error code raised when an insert hits the
// unique constraint on portfolios.owner_id.
const uniqueViolation = "23505"

// portfolioRepository implements domain.PortfolioRepository
type portfolioRepository struct {
	db *DB
}

// NewPortfolioRepository creates a new portfolio repository
func NewPortfolioRepository(db *DB) domain.PortfolioRepository {
	return &portfolioRepository{db: db}
}

const portfolioColumns = `id, owner_id, name, initial_balance, cash_balance, realized_pnl, xp, level, version, created_at, updated_at`

// GetByID retrieves a portfolio by its ID
func (r *portfolioRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Portfolio, error) {
	query := `
		SELECT ` + portfolioColumns + `
		FROM portfolios
		WHERE id = $1
	`
	return r.scanPortfolio(r.db.querier(ctx).QueryRowContext(ctx, query, id))
}

// GetByOwner retrieves the portfolio owned by the given user
func (r *portfolioRepository) GetByOwner(ctx context.Context, ownerID uuid.UUID) (*domain.Portfolio, error) {
	query := `
		SELECT ` + portfolioColumns + `
		FROM portfolios
		WHERE owner_id = $1
	`
	return r.scanPortfolio(r.db.querier(ctx).QueryRowContext(ctx, query, ownerID))
}

// Create inserts a new portfolio
// A concurrent insert for the same owner loses against the unique constraint
// on owner_id and surfaces as ErrPortfolioExists.
func (r *portfolioRepository) Create(ctx context.Context, portfolio *domain.Portfolio) error {
	query := `
		INSERT INTO portfolios (` + portfolioColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.querier(ctx).ExecContext(ctx, query,
		portfolio.ID,
		portfolio.OwnerID,
		portfolio.Name,
		portfolio.InitialBalance.String(),
		portfolio.CashBalance.String(),
		portfolio.RealizedPnL.String(),
		portfolio.XP,
		portfolio.Level,
		portfolio.Version,
		portfolio.CreatedAt,
		portfolio.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return domain.ErrPortfolioExists
		}
		return fmt.Errorf("%w: failed to insert portfolio: %v", domain.ErrPersistence, err)
	}

	return nil
}

// Update persists portfolio changes guarded by the optimistic version
func (r *portfolioRepository) Update(ctx context.Context, portfolio *domain.Portfolio, expectedVersion int64) error {
	query := `
		UPDATE portfolios
		SET cash_balance = $1, realized_pnl = $2, xp = $3, level = $4, updated_at = $5, version = version + 1
		WHERE id = $6 AND version = $7
	`

	res, err := r.db.querier(ctx).ExecContext(ctx, query,
		portfolio.CashBalance.String(),
		portfolio.RealizedPnL.String(),
		portfolio.XP,
		portfolio.Level,
		portfolio.UpdatedAt,
		portfolio.ID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to update portfolio: %v", domain.ErrPersistence, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to read affected rows: %v", domain.ErrPersistence, err)
	}
	if affected == 0 {
		// Row missing or version stale; either way the read is no longer valid.
		return domain.ErrConcurrencyConflict
	}

	portfolio.Version = expectedVersion + 1
	return nil
}

func (r *portfolioRepository) scanPortfolio(row *sql.Row) (*domain.Portfolio, error) {
	var portfolio domain.Portfolio
	var initialStr, cashStr, pnlStr string

	err := row.Scan(
		&portfolio.ID,
		&portfolio.OwnerID,
		&portfolio.Name,
		&initialStr,
		&cashStr,
		&pnlStr,
		&portfolio.XP,
		&portfolio.Level,
		&portfolio.Version,
		&portfolio.CreatedAt,
		&portfolio.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPortfolioNotFound
		}
		return nil, fmt.Errorf("%w: failed to get portfolio: %v", domain.ErrPersistence, err)
	}

	if portfolio.InitialBalance, err = decimal.NewFromString(initialStr); err != nil {
		return nil, fmt.Errorf("%w: failed to parse initial_balance: %v", domain.ErrPersistence, err)
	}
	if portfolio.CashBalance, err = decimal.NewFromString(cashStr); err != nil {
		return nil, fmt.Errorf("%w: failed to parse cash_balance: %v", domain.ErrPersistence, err)
	}
	if portfolio.RealizedPnL, err = decimal.NewFromString(pnlStr); err != nil {
		return nil, fmt.Errorf("%w: failed to parse realized_pnl: %v", domain.ErrPersistence, err)
	}

	return &portfolio, nil
}
