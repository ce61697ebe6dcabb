package trading

import (
	"sync"

	"github.com/google/uuid"
)

// portfolioLocker serializes trades per portfolio. Trades against different
// portfolios proceed in parallel; trades against the same portfolio form a
// single-writer critical section around the read-validate-commit sequence.
type portfolioLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newPortfolioLocker() *portfolioLocker {
	return &portfolioLocker{locks: make(map[uuid.UUID]*sync.Mutex)}
}

// Lock acquires the exclusive lock for a portfolio, creating it on first use.
// The per-portfolio mutex is retained for the process lifetime; the map is
// bounded by the number of portfolios traded by this instance.
func (l *portfolioLocker) Lock(id uuid.UUID) {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
}

// Unlock releases the exclusive lock for a portfolio.
func (l *portfolioLocker) Unlock(id uuid.UUID) {
	l.mu.Lock()
	m := l.locks[id]
	l.mu.Unlock()

	m.Unlock()
}
