package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finsim/papertrade-backend/internal/domain"
)

// positionRepository implements domain.PositionRepository
type positionRepository struct {
	db *DB
}

// NewPositionRepository creates a new position repository
func NewPositionRepository(db *DB) domain.PositionRepository {
	return &positionRepository{db: db}
}

const positionColumns = `id, portfolio_id, symbol, asset_class, asset_name, quantity, avg_cost, status, opened_at, closed_at`

// GetOpen retrieves the open position for (portfolio, symbol)
// Closed positions are retained in the table but never returned here.
func (r *positionRepository) GetOpen(ctx context.Context, portfolioID uuid.UUID, symbol string) (*domain.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE portfolio_id = $1 AND symbol = $2 AND status = $3
	`

	row := r.db.querier(ctx).QueryRowContext(ctx, query, portfolioID, symbol, string(domain.PositionStatusOpen))
	position, err := scanPosition(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPositionNotFound
		}
		return nil, err
	}
	return position, nil
}

// ListOpen retrieves all open positions of a portfolio, ordered by symbol
func (r *positionRepository) ListOpen(ctx context.Context, portfolioID uuid.UUID) ([]*domain.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE portfolio_id = $1 AND status = $2
		ORDER BY symbol
	`

	rows, err := r.db.querier(ctx).QueryContext(ctx, query, portfolioID, string(domain.PositionStatusOpen))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list open positions: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()

	positions := make([]*domain.Position, 0)
	for rows.Next() {
		position, err := scanPosition(rows.Scan)
		if err != nil {
			return nil, err
		}
		positions = append(positions, position)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate positions: %v", domain.ErrPersistence, err)
	}

	return positions, nil
}

// Create inserts a newly opened position
func (r *positionRepository) Create(ctx context.Context, position *domain.Position) error {
	query := `
		INSERT INTO positions (` + positionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.querier(ctx).ExecContext(ctx, query,
		position.ID,
		position.PortfolioID,
		position.Symbol,
		string(position.AssetClass),
		position.AssetName,
		position.Quantity.String(),
		position.AvgCost.String(),
		string(position.Status),
		position.OpenedAt,
		position.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to insert position: %v", domain.ErrPersistence, err)
	}

	return nil
}

// Update persists quantity/avg-cost/status changes to an existing position
func (r *positionRepository) Update(ctx context.Context, position *domain.Position) error {
	query := `
		UPDATE positions
		SET quantity = $1, avg_cost = $2, status = $3, closed_at = $4
		WHERE id = $5
	`

	res, err := r.db.querier(ctx).ExecContext(ctx, query,
		position.Quantity.String(),
		position.AvgCost.String(),
		string(position.Status),
		position.ClosedAt,
		position.ID,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to update position: %v", domain.ErrPersistence, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to read affected rows: %v", domain.ErrPersistence, err)
	}
	if affected == 0 {
		return domain.ErrPositionNotFound
	}

	return nil
}

// scanPosition maps one row onto a domain.Position, shared by the single-row
// and multi-row read paths.
func scanPosition(scan func(dest ...any) error) (*domain.Position, error) {
	var position domain.Position
	var quantityStr, avgCostStr string
	var closedAt sql.NullTime

	err := scan(
		&position.ID,
		&position.PortfolioID,
		&position.Symbol,
		&position.AssetClass,
		&position.AssetName,
		&quantityStr,
		&avgCostStr,
		&position.Status,
		&position.OpenedAt,
		&closedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: failed to scan position: %v", domain.ErrPersistence, err)
	}

	if position.Quantity, err = decimal.NewFromString(quantityStr); err != nil {
		return nil, fmt.Errorf("%w: failed to parse quantity: %v", domain.ErrPersistence, err)
	}
	if position.AvgCost, err = decimal.NewFromString(avgCostStr); err != nil {
		return nil, fmt.Errorf("%w: failed to parse avg_cost: %v", domain.ErrPersistence, err)
	}
	if closedAt.Valid {
		position.ClosedAt = &closedAt.Time
	}

	return &position, nil
}
