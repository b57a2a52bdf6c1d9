package credit

import (
	"context"
	"sync"
)

// Ledger is the admission-control boundary to the external credit subsystem.
// Admission is a reservation: Reserve atomically holds one credit before a
// unit of work, so concurrent callers can never over-admit against the same
// balance. Commit finalizes the held credit after a successful unit and
// Release returns it after a failed one; the core never stores or mutates
// credit state itself.
type Ledger interface {
	// Reserve atomically holds one credit for the caller. It reports false
	// when the caller has no credit remaining.
	Reserve(ctx context.Context, callerID string) (bool, error)

	// Commit finalizes a held credit after a successful unit of work.
	Commit(ctx context.Context, callerID string) error

	// Release returns a held credit after a failed unit of work.
	Release(ctx context.Context, callerID string) error
}

// MemoryLedger is an in-process ledger for development and tests.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[string]int
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{balances: make(map[string]int)}
}

// Grant sets the caller's remaining balance.
func (l *MemoryLedger) Grant(callerID string, credits int) {
	l.mu.Lock()
	l.balances[callerID] = credits
	l.mu.Unlock()
}

func (l *MemoryLedger) Reserve(_ context.Context, callerID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[callerID] <= 0 {
		return false, nil
	}
	l.balances[callerID]--
	return true, nil
}

func (l *MemoryLedger) Commit(_ context.Context, _ string) error {
	// The credit was consumed at reservation time.
	return nil
}

func (l *MemoryLedger) Release(_ context.Context, callerID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[callerID]++
	return nil
}
