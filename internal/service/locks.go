package service

import (
	"sync"

	"github.com/google/uuid"
)

// loanLocks serializes version appends per loan. A held entry means a
// mutation is in flight; a second attempt surfaces as a retryable conflict
// instead of queueing. Entries drop out on release, so the map only ever
// tracks loans with a mutation in flight.
type loanLocks struct {
	mu   sync.Mutex
	held map[uuid.UUID]struct{}
}

func newLoanLocks() *loanLocks {
	return &loanLocks{held: make(map[uuid.UUID]struct{})}
}

// acquire returns a release func, or ok=false when another mutation holds
// the loan.
func (l *loanLocks) acquire(loanID uuid.UUID) (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, inFlight := l.held[loanID]; inFlight {
		return nil, false
	}
	l.held[loanID] = struct{}{}
	release := func() {
		l.mu.Lock()
		delete(l.held, loanID)
		l.mu.Unlock()
	}
	return release, true
}
