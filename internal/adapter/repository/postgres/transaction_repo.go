package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finsim/papertrade-backend/internal/domain"
)

// transactionRepository implements domain.TransactionRepository.
// The table is append-only: no update or delete statement exists in this file
// on purpose.
type transactionRepository struct {
	db *DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *DB) domain.TransactionRepository {
	return &transactionRepository{db: db}
}

// Append inserts an executed trade into the ledger
func (r *transactionRepository) Append(ctx context.Context, transaction *domain.Transaction) error {
	query := `
		INSERT INTO transactions (id, portfolio_id, position_id, type, symbol, asset_class, quantity, price, fee, total_amount, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.querier(ctx).ExecContext(ctx, query,
		transaction.ID,
		transaction.PortfolioID,
		transaction.PositionID,
		string(transaction.Type),
		transaction.Symbol,
		string(transaction.AssetClass),
		transaction.Quantity.String(),
		transaction.Price.String(),
		transaction.Fee.String(),
		transaction.TotalAmount.String(),
		transaction.Notes,
		transaction.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to insert transaction: %v", domain.ErrPersistence, err)
	}

	return nil
}

// ListByPortfolio retrieves the full trade history of a portfolio,
// oldest first
func (r *transactionRepository) ListByPortfolio(ctx context.Context, portfolioID uuid.UUID) ([]*domain.Transaction, error) {
	query := `
		SELECT id, portfolio_id, position_id, type, symbol, asset_class, quantity, price, fee, total_amount, notes, created_at
		FROM transactions
		WHERE portfolio_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.querier(ctx).QueryContext(ctx, query, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list transactions: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()

	transactions := make([]*domain.Transaction, 0)
	for rows.Next() {
		var transaction domain.Transaction
		var positionID sql.NullString
		var quantityStr, priceStr, feeStr, totalStr string

		err := rows.Scan(
			&transaction.ID,
			&transaction.PortfolioID,
			&positionID,
			&transaction.Type,
			&transaction.Symbol,
			&transaction.AssetClass,
			&quantityStr,
			&priceStr,
			&feeStr,
			&totalStr,
			&transaction.Notes,
			&transaction.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan transaction: %v", domain.ErrPersistence, err)
		}

		if positionID.Valid {
			parsed, err := uuid.Parse(positionID.String)
			if err != nil {
				return nil, fmt.Errorf("%w: failed to parse position_id: %v", domain.ErrPersistence, err)
			}
			transaction.PositionID = &parsed
		}

		if transaction.Quantity, err = decimal.NewFromString(quantityStr); err != nil {
			return nil, fmt.Errorf("%w: failed to parse quantity: %v", domain.ErrPersistence, err)
		}
		if transaction.Price, err = decimal.NewFromString(priceStr); err != nil {
			return nil, fmt.Errorf("%w: failed to parse price: %v", domain.ErrPersistence, err)
		}
		if transaction.Fee, err = decimal.NewFromString(feeStr); err != nil {
			return nil, fmt.Errorf("%w: failed to parse fee: %v", domain.ErrPersistence, err)
		}
		if transaction.TotalAmount, err = decimal.NewFromString(totalStr); err != nil {
			return nil, fmt.Errorf("%w: failed to parse total_amount: %v", domain.ErrPersistence, err)
		}

		transactions = append(transactions, &transaction)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate transactions: %v", domain.ErrPersistence, err)
	}

	return transactions, nil
}
