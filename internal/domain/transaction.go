package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TradeType represents the type of an executed trade
type TradeType string

const (
	TradeTypeBuy  TradeType = "buy"
	TradeTypeSell TradeType = "sell"
)

// Validate ensures the trade type is one of the closed set of variants.
func (t TradeType) Validate() error {
	switch t {
	case TradeTypeBuy, TradeTypeSell:
		return nil
	default:
		return fmt.Errorf("%w: trade type must be buy or sell", ErrInvalidInput)
	}
}

// AssetClass represents the class of a traded asset
type AssetClass string

const (
	AssetClassStock     AssetClass = "stock"
	AssetClassCrypto    AssetClass = "crypto"
	AssetClassForex     AssetClass = "forex"
	AssetClassCommodity AssetClass = "commodity"
)

// Validate ensures the asset class is one of the closed set of variants.
func (c AssetClass) Validate() error {
	switch c {
	case AssetClassStock, AssetClassCrypto, AssetClassForex, AssetClassCommodity:
		return nil
	default:
		return fmt.Errorf("%w: unknown asset class %q", ErrInvalidInput, string(c))
	}
}

// Transaction represents one executed trade in the append-only ledger.
// Once created it is never mutated or deleted: the signed sum of cash effects
// across a portfolio's transactions reconciles its cash balance against the
// starting balance.
type Transaction struct {
	ID          uuid.UUID
	PortfolioID uuid.UUID
	PositionID  *uuid.UUID
	Type        TradeType
	Symbol      string
	AssetClass  AssetClass
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	Fee         decimal.Decimal
	TotalAmount decimal.Decimal // buy: cost debited from cash; sell: proceeds credited
	Notes       string
	CreatedAt   time.Time
}

// NewTransaction records an executed trade against a portfolio and position.
func NewTransaction(portfolioID uuid.UUID, positionID *uuid.UUID, tradeType TradeType, symbol string, class AssetClass, quantity, price, fee, totalAmount decimal.Decimal, notes string) *Transaction {
	return &Transaction{
		ID:          uuid.New(),
		PortfolioID: portfolioID,
		PositionID:  positionID,
		Type:        tradeType,
		Symbol:      symbol,
		AssetClass:  class,
		Quantity:    quantity,
		Price:       price,
		Fee:         fee,
		TotalAmount: totalAmount,
		Notes:       notes,
		CreatedAt:   time.Now().UTC(),
	}
}

// CashEffect returns the signed effect of the transaction on the portfolio's
// cash balance: negative for buys, positive for sells.
func (t *Transaction) CashEffect() decimal.Decimal {
	if t.Type == TradeTypeBuy {
		return t.TotalAmount.Neg()
	}
	return t.TotalAmount
}

// Validate ensures the transaction adheres to domain rules
// Returns an error if validation fails
func (t *Transaction) Validate() error {
	if t.PortfolioID == uuid.Nil {
		return fmt.Errorf("%w: transaction portfolio ID cannot be empty", ErrInvalidInput)
	}
	if err := t.Type.Validate(); err != nil {
		return err
	}
	if t.Symbol == "" {
		return fmt.Errorf("%w: transaction symbol cannot be empty", ErrInvalidInput)
	}
	if err := t.AssetClass.Validate(); err != nil {
		return err
	}
	if t.Quantity.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: transaction quantity must be positive", ErrInvalidInput)
	}
	if t.Price.IsNegative() {
		return fmt.Errorf("%w: transaction price cannot be negative", ErrInvalidInput)
	}
	if t.Fee.IsNegative() {
		return fmt.Errorf("%w: transaction fee cannot be negative", ErrInvalidInput)
	}
	if t.TotalAmount.IsNegative() {
		return fmt.Errorf("%w: transaction total amount cannot be negative", ErrInvalidInput)
	}
	return nil
}
