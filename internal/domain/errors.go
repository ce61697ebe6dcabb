package domain

import "errors"

// Sentinel errors returned by the trading core. Callers are expected to
// match them with errors.Is; every rejection path maps to exactly one kind.
var (
	// ErrInvalidInput marks a request rejected before any store access
	// (non-positive quantity, negative price or fee, unknown asset class).
	ErrInvalidInput = errors.New("invalid input")

	// ErrInsufficientFunds is returned when a buy would overdraw the
	// portfolio's cash balance. No state is mutated.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientQuantity is returned when a sell exceeds the open
	// position's held quantity. No state is mutated.
	ErrInsufficientQuantity = errors.New("insufficient quantity")

	// ErrPortfolioNotFound is returned when the referenced portfolio does not exist.
	ErrPortfolioNotFound = errors.New("portfolio not found")

	// ErrPositionNotFound is returned when no open position exists for the
	// requested symbol.
	ErrPositionNotFound = errors.New("position not found")

	// ErrPortfolioExists is returned by PortfolioRepository.Create when a
	// portfolio for the owner already exists. GetOrCreate resolves the race
	// by re-fetching the existing row.
	ErrPortfolioExists = errors.New("portfolio already exists")

	// ErrConcurrencyConflict is returned when a commit observes a stale
	// portfolio version. The whole operation is safe to retry from a fresh read.
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrPersistence marks a storage failure. The in-flight operation is
	// rolled back in full; nothing is partially applied.
	ErrPersistence = errors.New("persistence failure")
)
