// Package memory provides in-memory implementations of the domain
// repositories. They back the unit and integration tests and let the server
// run without a database in dev mode. Semantics mirror the postgres adapter:
// optimistic versioning, owner uniqueness, append-only transactions, and
// all-or-nothing unit-of-work commits.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/finsim/papertrade-backend/internal/domain"
)

// txContextKey marks a context as running inside WithinTx, where the store
// lock is already held.
type txContextKey struct{}

// Store holds all in-memory state. Entities are stored by value and copied on
// the way in and out, so callers never alias internal state.
type Store struct {
	mu           sync.RWMutex
	portfolios   map[uuid.UUID]domain.Portfolio
	byOwner      map[uuid.UUID]uuid.UUID // owner -> portfolio
	positions    map[uuid.UUID]domain.Position
	transactions []domain.Transaction
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		portfolios: make(map[uuid.UUID]domain.Portfolio),
		byOwner:    make(map[uuid.UUID]uuid.UUID),
		positions:  make(map[uuid.UUID]domain.Position),
	}
}

func inTx(ctx context.Context) bool {
	_, ok := ctx.Value(txContextKey{}).(bool)
	return ok
}

func (s *Store) rlock(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

func (s *Store) lock(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// snapshot copies the full store state for rollback.
func (s *Store) snapshot() (map[uuid.UUID]domain.Portfolio, map[uuid.UUID]uuid.UUID, map[uuid.UUID]domain.Position, []domain.Transaction) {
	portfolios := make(map[uuid.UUID]domain.Portfolio, len(s.portfolios))
	for k, v := range s.portfolios {
		portfolios[k] = v
	}
	byOwner := make(map[uuid.UUID]uuid.UUID, len(s.byOwner))
	for k, v := range s.byOwner {
		byOwner[k] = v
	}
	positions := make(map[uuid.UUID]domain.Position, len(s.positions))
	for k, v := range s.positions {
		positions[k] = v
	}
	transactions := make([]domain.Transaction, len(s.transactions))
	copy(transactions, s.transactions)
	return portfolios, byOwner, positions, transactions
}

// NewUnitOfWork creates a unit of work over the store
func NewUnitOfWork(s *Store) domain.UnitOfWork {
	return &unitOfWork{s: s}
}

type unitOfWork struct {
	s *Store
}

// WithinTx holds the store lock for the duration of fn and restores the
// pre-transaction snapshot if fn fails, so writes apply all-or-nothing.
func (u *unitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	portfolios, byOwner, positions, transactions := u.s.snapshot()

	if err := fn(context.WithValue(ctx, txContextKey{}, true)); err != nil {
		u.s.portfolios = portfolios
		u.s.byOwner = byOwner
		u.s.positions = positions
		u.s.transactions = transactions
		return err
	}

	return nil
}

/* ---- Portfolio repository ---- */

type portfolioRepository struct {
	s *Store
}

// NewPortfolioRepository creates a portfolio repository over the store
func NewPortfolioRepository(s *Store) domain.PortfolioRepository {
	return &portfolioRepository{s: s}
}

func (r *portfolioRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Portfolio, error) {
	defer r.s.rlock(ctx)()
	p, ok := r.s.portfolios[id]
	if !ok {
		return nil, domain.ErrPortfolioNotFound
	}
	return &p, nil
}

func (r *portfolioRepository) GetByOwner(ctx context.Context, ownerID uuid.UUID) (*domain.Portfolio, error) {
	defer r.s.rlock(ctx)()
	id, ok := r.s.byOwner[ownerID]
	if !ok {
		return nil, domain.ErrPortfolioNotFound
	}
	p := r.s.portfolios[id]
	return &p, nil
}

func (r *portfolioRepository) Create(ctx context.Context, portfolio *domain.Portfolio) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.byOwner[portfolio.OwnerID]; ok {
		return domain.ErrPortfolioExists
	}
	r.s.portfolios[portfolio.ID] = *portfolio
	r.s.byOwner[portfolio.OwnerID] = portfolio.ID
	return nil
}

func (r *portfolioRepository) Update(ctx context.Context, portfolio *domain.Portfolio, expectedVersion int64) error {
	defer r.s.lock(ctx)()
	stored, ok := r.s.portfolios[portfolio.ID]
	if !ok || stored.Version != expectedVersion {
		return domain.ErrConcurrencyConflict
	}
	portfolio.Version = expectedVersion + 1
	r.s.portfolios[portfolio.ID] = *portfolio
	return nil
}

/* ---- Position repository ---- */

type positionRepository struct {
	s *Store
}

// NewPositionRepository creates a position repository over the store
func NewPositionRepository(s *Store) domain.PositionRepository {
	return &positionRepository{s: s}
}

func (r *positionRepository) GetOpen(ctx context.Context, portfolioID uuid.UUID, symbol string) (*domain.Position, error) {
	defer r.s.rlock(ctx)()
	for _, p := range r.s.positions {
		if p.PortfolioID == portfolioID && p.Symbol == symbol && p.IsOpen() {
			found := p
			return &found, nil
		}
	}
	return nil, domain.ErrPositionNotFound
}

func (r *positionRepository) ListOpen(ctx context.Context, portfolioID uuid.UUID) ([]*domain.Position, error) {
	defer r.s.rlock(ctx)()
	positions := make([]*domain.Position, 0)
	for _, p := range r.s.positions {
		if p.PortfolioID == portfolioID && p.IsOpen() {
			found := p
			positions = append(positions, &found)
		}
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })
	return positions, nil
}

func (r *positionRepository) Create(ctx context.Context, position *domain.Position) error {
	defer r.s.lock(ctx)()
	r.s.positions[position.ID] = *position
	return nil
}

func (r *positionRepository) Update(ctx context.Context, position *domain.Position) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.positions[position.ID]; !ok {
		return domain.ErrPositionNotFound
	}
	r.s.positions[position.ID] = *position
	return nil
}

/* ---- Transaction repository ---- */

type transactionRepository struct {
	s *Store
}

// NewTransactionRepository creates a transaction repository over the store
func NewTransactionRepository(s *Store) domain.TransactionRepository {
	return &transactionRepository{s: s}
}

func (r *transactionRepository) Append(ctx context.Context, transaction *domain.Transaction) error {
	defer r.s.lock(ctx)()
	r.s.transactions = append(r.s.transactions, *transaction)
	return nil
}

func (r *transactionRepository) ListByPortfolio(ctx context.Context, portfolioID uuid.UUID) ([]*domain.Transaction, error) {
	defer r.s.rlock(ctx)()
	transactions := make([]*domain.Transaction, 0)
	for i := range r.s.transactions {
		if r.s.transactions[i].PortfolioID == portfolioID {
			found := r.s.transactions[i]
			transactions = append(transactions, &found)
		}
	}
	// Appended in execution order; kept chronological, oldest first.
	return transactions, nil
}
