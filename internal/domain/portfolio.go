package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// XP awarded for each executed buy, mirroring the gamification hook of the
// original product. Level is derived, never stored independently.
const (
	xpPerBuy    = 10
	xpPerLevel  = 100
	defaultName = "My Portfolio"
)

// Portfolio represents a user's simulated trading account in the domain layer.
// It holds the cash balance every trade settles against and the cumulative
// realized P&L locked in by sells.
type Portfolio struct {
	ID             uuid.UUID
	OwnerID        uuid.UUID
	Name           string
	InitialBalance decimal.Decimal
	CashBalance    decimal.Decimal
	RealizedPnL    decimal.Decimal
	XP             int
	Level          int
	Version        int64 // optimistic lock counter, bumped on every committed update
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewPortfolio creates a portfolio for an owner with the configured starting
// balance. One portfolio exists per owner; creation is idempotent at the
// repository level via the uniqueness constraint on OwnerID.
func NewPortfolio(ownerID uuid.UUID, initialBalance decimal.Decimal) *Portfolio {
	now := time.Now().UTC()
	return &Portfolio{
		ID:             uuid.New(),
		OwnerID:        ownerID,
		Name:           defaultName,
		InitialBalance: initialBalance,
		CashBalance:    initialBalance,
		RealizedPnL:    decimal.Zero,
		XP:             0,
		Level:          1,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Debit removes amount from the cash balance.
// Returns ErrInsufficientFunds if the balance would go negative; the
// portfolio is left untouched on that path.
func (p *Portfolio) Debit(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: debit amount cannot be negative", ErrInvalidInput)
	}
	remaining := p.CashBalance.Sub(amount)
	if remaining.IsNegative() {
		return fmt.Errorf("%w: balance %s, required %s", ErrInsufficientFunds, p.CashBalance, amount)
	}
	p.CashBalance = remaining
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// Credit adds amount to the cash balance.
func (p *Portfolio) Credit(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: credit amount cannot be negative", ErrInvalidInput)
	}
	p.CashBalance = p.CashBalance.Add(amount)
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// AddRealizedPnL accumulates a realized profit/loss delta from a sell.
// The delta may be negative.
func (p *Portfolio) AddRealizedPnL(delta decimal.Decimal) {
	p.RealizedPnL = p.RealizedPnL.Add(delta)
	p.UpdatedAt = time.Now().UTC()
}

// AwardBuyXP grants the per-buy XP reward and recomputes the level.
func (p *Portfolio) AwardBuyXP() {
	p.XP += xpPerBuy
	p.Level = 1 + p.XP/xpPerLevel
	p.UpdatedAt = time.Now().UTC()
}

// Validate ensures the portfolio adheres to domain rules.
func (p *Portfolio) Validate() error {
	if p.OwnerID == uuid.Nil {
		return fmt.Errorf("%w: portfolio owner ID cannot be empty", ErrInvalidInput)
	}
	if p.CashBalance.IsNegative() {
		return fmt.Errorf("%w: cash balance cannot be negative", ErrInvalidInput)
	}
	if p.InitialBalance.IsNegative() {
		return fmt.Errorf("%w: initial balance cannot be negative", ErrInvalidInput)
	}
	return nil
}
