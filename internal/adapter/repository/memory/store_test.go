package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsim/papertrade-backend/internal/domain"
)

func TestPortfolioRepository_OwnerUniqueness(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewPortfolioRepository(store)

	ownerID := uuid.New()
	first := domain.NewPortfolio(ownerID, decimal.NewFromInt(1000))
	second := domain.NewPortfolio(ownerID, decimal.NewFromInt(1000))

	require.NoError(t, repo.Create(ctx, first))
	assert.ErrorIs(t, repo.Create(ctx, second), domain.ErrPortfolioExists)

	got, err := repo.GetByOwner(ctx, ownerID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
}

func TestPortfolioRepository_ConcurrentCreateYieldsOnePortfolio(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewPortfolioRepository(store)
	ownerID := uuid.New()

	const attempts = 20
	var created, exists int
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			err := repo.Create(ctx, domain.NewPortfolio(ownerID, decimal.NewFromInt(1000)))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				created++
			} else if errors.Is(err, domain.ErrPortfolioExists) {
				exists++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created, "exactly one create wins")
	assert.Equal(t, attempts-1, exists)
}

func TestPortfolioRepository_OptimisticVersioning(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewPortfolioRepository(store)

	portfolio := domain.NewPortfolio(uuid.New(), decimal.NewFromInt(1000))
	require.NoError(t, repo.Create(ctx, portfolio))

	require.NoError(t, repo.Update(ctx, portfolio, 1))
	assert.Equal(t, int64(2), portfolio.Version)

	// A writer holding the old version loses.
	stale := *portfolio
	assert.ErrorIs(t, repo.Update(ctx, &stale, 1), domain.ErrConcurrencyConflict)
}

func TestPortfolioRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewPortfolioRepository(store)

	portfolio := domain.NewPortfolio(uuid.New(), decimal.NewFromInt(1000))
	require.NoError(t, repo.Create(ctx, portfolio))

	loaded, err := repo.GetByID(ctx, portfolio.ID)
	require.NoError(t, err)
	loaded.CashBalance = decimal.Zero

	reloaded, err := repo.GetByID(ctx, portfolio.ID)
	require.NoError(t, err)
	assert.Equal(t, "1000", reloaded.CashBalance.String(), "mutating a loaded copy must not leak into the store")
}

func TestPositionRepository_OpenFilteringAndOrdering(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewPositionRepository(store)
	portfolioID := uuid.New()

	msft := domain.NewPosition(portfolioID, "MSFT", domain.AssetClassStock, "", decimal.NewFromInt(1), decimal.NewFromInt(10))
	aapl := domain.NewPosition(portfolioID, "AAPL", domain.AssetClassStock, "", decimal.NewFromInt(2), decimal.NewFromInt(20))
	closed := domain.NewPosition(portfolioID, "GOOG", domain.AssetClassStock, "", decimal.NewFromInt(3), decimal.NewFromInt(30))
	require.NoError(t, closed.ApplySell(decimal.NewFromInt(3)))

	for _, p := range []*domain.Position{msft, aapl, closed} {
		require.NoError(t, repo.Create(ctx, p))
	}

	open, err := repo.ListOpen(ctx, portfolioID)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "AAPL", open[0].Symbol, "ordered by symbol")
	assert.Equal(t, "MSFT", open[1].Symbol)

	_, err = repo.GetOpen(ctx, portfolioID, "GOOG")
	assert.ErrorIs(t, err, domain.ErrPositionNotFound, "closed positions are never returned")
}

func TestUnitOfWork_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	portfolios := NewPortfolioRepository(store)
	transactions := NewTransactionRepository(store)
	uow := NewUnitOfWork(store)

	portfolio := domain.NewPortfolio(uuid.New(), decimal.NewFromInt(1000))
	require.NoError(t, portfolios.Create(ctx, portfolio))

	boom := errors.New("boom")
	err := uow.WithinTx(ctx, func(ctx context.Context) error {
		portfolio.CashBalance = decimal.Zero
		if err := portfolios.Update(ctx, portfolio, 1); err != nil {
			return err
		}
		tx := domain.NewTransaction(portfolio.ID, nil, domain.TradeTypeBuy, "AAPL",
			domain.AssetClassStock, decimal.NewFromInt(1), decimal.NewFromInt(1000), decimal.Zero, decimal.NewFromInt(1000), "")
		if err := transactions.Append(ctx, tx); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// Both staged writes were discarded.
	reloaded, err := portfolios.GetByID(ctx, portfolio.ID)
	require.NoError(t, err)
	assert.Equal(t, "1000", reloaded.CashBalance.String())
	assert.Equal(t, int64(1), reloaded.Version)

	history, err := transactions.ListByPortfolio(ctx, portfolio.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestUnitOfWork_CommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	portfolios := NewPortfolioRepository(store)
	uow := NewUnitOfWork(store)

	portfolio := domain.NewPortfolio(uuid.New(), decimal.NewFromInt(1000))
	require.NoError(t, portfolios.Create(ctx, portfolio))

	err := uow.WithinTx(ctx, func(ctx context.Context) error {
		portfolio.CashBalance = decimal.NewFromInt(750)
		return portfolios.Update(ctx, portfolio, 1)
	})
	require.NoError(t, err)

	reloaded, err := portfolios.GetByID(ctx, portfolio.ID)
	require.NoError(t, err)
	assert.Equal(t, "750", reloaded.CashBalance.String())
	assert.Equal(t, int64(2), reloaded.Version)
}

func TestTransactionRepository_AppendOnlyChronology(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewTransactionRepository(store)
	portfolioID := uuid.New()

	for i := 1; i <= 3; i++ {
		tx := domain.NewTransaction(portfolioID, nil, domain.TradeTypeBuy, "AAPL",
			domain.AssetClassStock, decimal.NewFromInt(int64(i)), decimal.NewFromInt(100), decimal.Zero, decimal.NewFromInt(int64(100*i)), "")
		require.NoError(t, repo.Append(ctx, tx))
	}

	history, err := repo.ListByPortfolio(ctx, portfolioID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i, tx := range history {
		assert.Equal(t, decimal.NewFromInt(int64(i+1)).String(), tx.Quantity.String(), "oldest first")
	}
}
