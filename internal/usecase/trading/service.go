package trading

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/finsim/papertrade-backend/internal/domain"
)

// maxConflictRetries bounds transparent retries after an optimistic-version
// conflict before the error surfaces to the caller.
const maxConflictRetries = 3

// BuyInput represents the input for executing a buy
type BuyInput struct {
	OwnerID    uuid.UUID
	Symbol     string
	AssetClass domain.AssetClass
	AssetName  string // optional display name, stored on a newly opened position
	Quantity   decimal.Decimal
	Price      decimal.Decimal
	Fee        decimal.Decimal
	Notes      string
}

// SellInput represents the input for executing a sell
type SellInput struct {
	OwnerID  uuid.UUID
	Symbol   string
	Quantity decimal.Decimal
	Price    decimal.Decimal
	Fee      decimal.Decimal
	Notes    string
}

// TradeResult is the snapshot returned after a committed trade.
type TradeResult struct {
	Portfolio        *domain.Portfolio
	Position         *domain.Position
	Transaction      *domain.Transaction
	RealizedPnLDelta decimal.Decimal // zero for buys
}

// PortfolioSnapshot is the read model returned by GetPortfolio.
type PortfolioSnapshot struct {
	Portfolio     *domain.Portfolio
	OpenPositions []*domain.Position
}

// Service orchestrates trade execution against a portfolio: it validates the
// instruction, computes the cash/position/P&L deltas, and commits all three
// store updates as one atomic unit. It holds only configuration and
// repository handles; there is no ambient global instance.
type Service struct {
	PortfolioRepo   domain.PortfolioRepository
	PositionRepo    domain.PositionRepository
	TransactionRepo domain.TransactionRepository
	UoW             domain.UnitOfWork

	initialBalance decimal.Decimal
	locks          *portfolioLocker
	log            zerolog.Logger
}

// NewService creates a new trading Service instance.
// initialBalance is the cash granted to lazily created portfolios.
func NewService(
	portfolioRepo domain.PortfolioRepository,
	positionRepo domain.PositionRepository,
	transactionRepo domain.TransactionRepository,
	uow domain.UnitOfWork,
	initialBalance decimal.Decimal,
	log zerolog.Logger,
) *Service {
	return &Service{
		PortfolioRepo:   portfolioRepo,
		PositionRepo:    positionRepo,
		TransactionRepo: transactionRepo,
		UoW:             uow,
		initialBalance:  initialBalance,
		locks:           newPortfolioLocker(),
		log:             log.With().Str("component", "trading").Logger(),
	}
}

// GetPortfolio returns the owner's portfolio and its open positions, creating
// the portfolio with the configured starting balance on first access.
func (s *Service) GetPortfolio(ctx context.Context, ownerID uuid.UUID) (*PortfolioSnapshot, error) {
	portfolio, err := s.getOrCreate(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	positions, err := s.PositionRepo.ListOpen(ctx, portfolio.ID)
	if err != nil {
		return nil, err
	}

	return &PortfolioSnapshot{Portfolio: portfolio, OpenPositions: positions}, nil
}

// ListPositions returns the open positions of the owner's portfolio, ordered
// by symbol. Closed positions are retained for audit but never listed here.
func (s *Service) ListPositions(ctx context.Context, ownerID uuid.UUID) ([]*domain.Position, error) {
	portfolio, err := s.PortfolioRepo.GetByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, domain.ErrPortfolioNotFound) {
			return []*domain.Position{}, nil
		}
		return nil, err
	}
	return s.PositionRepo.ListOpen(ctx, portfolio.ID)
}

// ListTransactions returns the owner's full immutable trade history,
// oldest first.
func (s *Service) ListTransactions(ctx context.Context, ownerID uuid.UUID) ([]*domain.Transaction, error) {
	portfolio, err := s.PortfolioRepo.GetByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, domain.ErrPortfolioNotFound) {
			return []*domain.Transaction{}, nil
		}
		return nil, err
	}
	return s.TransactionRepo.ListByPortfolio(ctx, portfolio.ID)
}

// ExecuteBuy validates and executes a buy instruction: debit cash by
// quantity*price+fee, open or merge the position at the weighted-average cost
// (fee excluded from the basis), and append a buy transaction, all as one
// atomic commit. The portfolio must already exist; only GetPortfolio creates
// lazily, so a buy for an unknown owner surfaces ErrPortfolioNotFound.
func (s *Service) ExecuteBuy(ctx context.Context, input BuyInput) (*TradeResult, error) {
	if err := validateTradeInput(input.Symbol, input.Quantity, input.Price, input.Fee); err != nil {
		return nil, err
	}
	if err := input.AssetClass.Validate(); err != nil {
		return nil, err
	}

	portfolio, err := s.PortfolioRepo.GetByOwner(ctx, input.OwnerID)
	if err != nil {
		return nil, err
	}

	s.locks.Lock(portfolio.ID)
	defer s.locks.Unlock(portfolio.ID)

	var result *TradeResult
	err = s.withConflictRetry(func() error {
		var execErr error
		result, execErr = s.executeBuy(ctx, portfolio.ID, input)
		return execErr
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("portfolio_id", result.Portfolio.ID.String()).
		Str("symbol", input.Symbol).
		Str("quantity", input.Quantity.String()).
		Str("price", input.Price.String()).
		Msg("buy executed")
	return result, nil
}

func (s *Service) executeBuy(ctx context.Context, portfolioID uuid.UUID, input BuyInput) (*TradeResult, error) {
	portfolio, err := s.PortfolioRepo.GetByID(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	expectedVersion := portfolio.Version

	totalCost := input.Quantity.Mul(input.Price).Add(input.Fee)

	// Check-then-act: every validation happens before any mutation.
	if portfolio.CashBalance.LessThan(totalCost) {
		return nil, domain.ErrInsufficientFunds
	}

	symbol := normalizeSymbol(input.Symbol)

	position, err := s.PositionRepo.GetOpen(ctx, portfolioID, symbol)
	openedPosition := false
	switch {
	case err == nil:
		if err := position.ApplyBuy(input.Quantity, input.Price); err != nil {
			return nil, err
		}
	case errors.Is(err, domain.ErrPositionNotFound):
		position = domain.NewPosition(portfolioID, symbol, input.AssetClass, input.AssetName, input.Quantity, input.Price)
		openedPosition = true
	default:
		return nil, err
	}

	if err := portfolio.Debit(totalCost); err != nil {
		return nil, err
	}
	portfolio.AwardBuyXP()

	transaction := domain.NewTransaction(
		portfolioID, &position.ID,
		domain.TradeTypeBuy, symbol, position.AssetClass,
		input.Quantity, input.Price, input.Fee, totalCost,
		input.Notes,
	)
	if err := transaction.Validate(); err != nil {
		return nil, err
	}

	err = s.UoW.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.PortfolioRepo.Update(ctx, portfolio, expectedVersion); err != nil {
			return err
		}
		if openedPosition {
			if err := s.PositionRepo.Create(ctx, position); err != nil {
				return err
			}
		} else if err := s.PositionRepo.Update(ctx, position); err != nil {
			return err
		}
		return s.TransactionRepo.Append(ctx, transaction)
	})
	if err != nil {
		return nil, err
	}

	return &TradeResult{
		Portfolio:        portfolio,
		Position:         position,
		Transaction:      transaction,
		RealizedPnLDelta: decimal.Zero,
	}, nil
}

// ExecuteSell validates and executes a sell instruction: credit cash with
// quantity*price-fee, reduce (and possibly close) the position, accumulate
// realized P&L of quantity*(price-avg_cost)-fee, and append a sell
// transaction, all as one atomic commit.
func (s *Service) ExecuteSell(ctx context.Context, input SellInput) (*TradeResult, error) {
	if err := validateTradeInput(input.Symbol, input.Quantity, input.Price, input.Fee); err != nil {
		return nil, err
	}

	portfolio, err := s.PortfolioRepo.GetByOwner(ctx, input.OwnerID)
	if err != nil {
		return nil, err
	}

	s.locks.Lock(portfolio.ID)
	defer s.locks.Unlock(portfolio.ID)

	var result *TradeResult
	err = s.withConflictRetry(func() error {
		var execErr error
		result, execErr = s.executeSell(ctx, portfolio.ID, input)
		return execErr
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("portfolio_id", result.Portfolio.ID.String()).
		Str("symbol", input.Symbol).
		Str("quantity", input.Quantity.String()).
		Str("price", input.Price.String()).
		Str("realized_pnl_delta", result.RealizedPnLDelta.String()).
		Msg("sell executed")
	return result, nil
}

func (s *Service) executeSell(ctx context.Context, portfolioID uuid.UUID, input SellInput) (*TradeResult, error) {
	portfolio, err := s.PortfolioRepo.GetByID(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	expectedVersion := portfolio.Version

	symbol := normalizeSymbol(input.Symbol)

	position, err := s.PositionRepo.GetOpen(ctx, portfolioID, symbol)
	if err != nil {
		return nil, err
	}

	// Check-then-act: reject before mutating anything.
	if input.Quantity.GreaterThan(position.Quantity) {
		return nil, domain.ErrInsufficientQuantity
	}

	proceeds := input.Quantity.Mul(input.Price).Sub(input.Fee)
	pnlDelta := input.Quantity.Mul(input.Price.Sub(position.AvgCost)).Sub(input.Fee)

	if err := position.ApplySell(input.Quantity); err != nil {
		return nil, err
	}
	if err := portfolio.Credit(proceeds); err != nil {
		return nil, err
	}
	portfolio.AddRealizedPnL(pnlDelta)

	transaction := domain.NewTransaction(
		portfolioID, &position.ID,
		domain.TradeTypeSell, symbol, position.AssetClass,
		input.Quantity, input.Price, input.Fee, proceeds,
		input.Notes,
	)
	if err := transaction.Validate(); err != nil {
		return nil, err
	}

	err = s.UoW.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.PortfolioRepo.Update(ctx, portfolio, expectedVersion); err != nil {
			return err
		}
		if err := s.PositionRepo.Update(ctx, position); err != nil {
			return err
		}
		return s.TransactionRepo.Append(ctx, transaction)
	})
	if err != nil {
		return nil, err
	}

	return &TradeResult{
		Portfolio:        portfolio,
		Position:         position,
		Transaction:      transaction,
		RealizedPnLDelta: pnlDelta,
	}, nil
}

// getOrCreate returns the owner's portfolio, creating it idempotently on
// first access. A concurrent create losing the uniqueness race falls back to
// fetching the winner's row, so both callers observe the same portfolio.
func (s *Service) getOrCreate(ctx context.Context, ownerID uuid.UUID) (*domain.Portfolio, error) {
	if ownerID == uuid.Nil {
		return nil, domain.ErrInvalidInput
	}

	portfolio, err := s.PortfolioRepo.GetByOwner(ctx, ownerID)
	if err == nil {
		return portfolio, nil
	}
	if !errors.Is(err, domain.ErrPortfolioNotFound) {
		return nil, err
	}

	portfolio = domain.NewPortfolio(ownerID, s.initialBalance)
	if err := portfolio.Validate(); err != nil {
		return nil, err
	}

	if err := s.PortfolioRepo.Create(ctx, portfolio); err != nil {
		if errors.Is(err, domain.ErrPortfolioExists) {
			return s.PortfolioRepo.GetByOwner(ctx, ownerID)
		}
		return nil, err
	}

	s.log.Info().
		Str("portfolio_id", portfolio.ID.String()).
		Str("owner_id", ownerID.String()).
		Msg("portfolio created")
	return portfolio, nil
}

// withConflictRetry re-runs fn after an optimistic-version conflict, up to
// maxConflictRetries attempts. Each retry starts from a fresh read, so a
// conflicting commit by another writer is observed before re-validation.
func (s *Service) withConflictRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = fn()
		if !errors.Is(err, domain.ErrConcurrencyConflict) {
			return err
		}
		s.log.Warn().Int("attempt", attempt+1).Msg("version conflict, retrying trade")
	}
	return err
}

func validateTradeInput(symbol string, quantity, price, fee decimal.Decimal) error {
	if strings.TrimSpace(symbol) == "" {
		return domain.ErrInvalidInput
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return domain.ErrInvalidInput
	}
	if price.IsNegative() {
		return domain.ErrInvalidInput
	}
	if fee.IsNegative() {
		return domain.ErrInvalidInput
	}
	return nil
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
