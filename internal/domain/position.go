package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PositionStatus represents the lifecycle state of a position
type PositionStatus string

const (
	PositionStatusOpen   PositionStatus = "open"
	PositionStatusClosed PositionStatus = "closed"
)

// Position represents an aggregated holding of one asset within a portfolio,
// tracked by quantity and weighted-average cost.
// Invariants: while open, Quantity > 0 and AvgCost is defined; AvgCost is
// updated exclusively by buys. A position closes exactly when a sell reduces
// its quantity to zero, and closed positions are terminal: they are retained
// for audit and never resurrected (a later buy opens a new record).
type Position struct {
	ID          uuid.UUID
	PortfolioID uuid.UUID
	Symbol      string
	AssetClass  AssetClass
	AssetName   string // optional display name, captured on the opening buy
	Quantity    decimal.Decimal
	AvgCost     decimal.Decimal
	Status      PositionStatus
	OpenedAt    time.Time
	ClosedAt    *time.Time
}

// NewPosition opens a position from the first buy of a symbol.
// Fees are excluded from the cost basis; AvgCost is a pure price average.
func NewPosition(portfolioID uuid.UUID, symbol string, class AssetClass, name string, quantity, price decimal.Decimal) *Position {
	return &Position{
		ID:          uuid.New(),
		PortfolioID: portfolioID,
		Symbol:      symbol,
		AssetClass:  class,
		AssetName:   name,
		Quantity:    quantity,
		AvgCost:     price,
		Status:      PositionStatusOpen,
		OpenedAt:    time.Now().UTC(),
	}
}

// IsOpen reports whether the position is still open.
func (p *Position) IsOpen() bool {
	return p.Status == PositionStatusOpen
}

// ApplyBuy merges an additional purchase into the position, recomputing the
// weighted-average cost:
//
//	new_avg = (old_qty*old_avg + qty*price) / (old_qty + qty)
//
// The fee is intentionally absent from the formula; it affects cash only.
func (p *Position) ApplyBuy(quantity, price decimal.Decimal) error {
	if !p.IsOpen() {
		return fmt.Errorf("%w: position %s is closed", ErrPositionNotFound, p.ID)
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: buy quantity must be positive", ErrInvalidInput)
	}

	totalQuantity := p.Quantity.Add(quantity)
	totalCost := p.Quantity.Mul(p.AvgCost).Add(quantity.Mul(price))
	p.AvgCost = totalCost.Div(totalQuantity)
	p.Quantity = totalQuantity
	return nil
}

// ApplySell reduces the held quantity. Selling the full quantity closes the
// position: AvgCost is cleared, ClosedAt is set, and the record becomes
// terminal. A partial sell leaves AvgCost unchanged.
func (p *Position) ApplySell(quantity decimal.Decimal) error {
	if !p.IsOpen() {
		return fmt.Errorf("%w: position %s is closed", ErrPositionNotFound, p.ID)
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: sell quantity must be positive", ErrInvalidInput)
	}
	if quantity.GreaterThan(p.Quantity) {
		return fmt.Errorf("%w: held %s, requested %s", ErrInsufficientQuantity, p.Quantity, quantity)
	}

	p.Quantity = p.Quantity.Sub(quantity)
	if p.Quantity.IsZero() {
		now := time.Now().UTC()
		p.Status = PositionStatusClosed
		p.AvgCost = decimal.Zero
		p.ClosedAt = &now
	}
	return nil
}

// Validate ensures the position adheres to domain rules.
func (p *Position) Validate() error {
	if p.Symbol == "" {
		return fmt.Errorf("%w: position symbol cannot be empty", ErrInvalidInput)
	}
	if err := p.AssetClass.Validate(); err != nil {
		return err
	}
	switch p.Status {
	case PositionStatusOpen:
		if p.Quantity.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("%w: open position quantity must be positive", ErrInvalidInput)
		}
	case PositionStatusClosed:
		if !p.Quantity.IsZero() {
			return fmt.Errorf("%w: closed position quantity must be zero", ErrInvalidInput)
		}
		if p.ClosedAt == nil {
			return fmt.Errorf("%w: closed position must have a closed_at timestamp", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: position status must be open or closed", ErrInvalidInput)
	}
	return nil
}
