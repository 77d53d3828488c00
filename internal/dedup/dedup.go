// Package dedup tracks which trade ids have already been evaluated.
package dedup

import "sync"

// Ledger guarantees at-most-once evaluation per trade id for the process
// lifetime. Sources re-deliver the same trades across polling ticks, so the
// gate both prevents duplicate alerts and bounds oracle/analyzer call volume.
type Ledger struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// New creates an empty Ledger.
func New() *Ledger {
	return &Ledger{seen: make(map[string]struct{})}
}

// MarkIfNew atomically checks and marks a trade id. It returns true exactly
// once per id: the caller that gets true owns the evaluation.
func (l *Ledger) MarkIfNew(tradeID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.seen[tradeID]; ok {
		return false
	}
	l.seen[tradeID] = struct{}{}
	return true
}

// Seen reports whether a trade id has been marked.
func (l *Ledger) Seen(tradeID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[tradeID]
	return ok
}

// Len returns the number of marked ids.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}

// Reset clears the ledger. Used by scratch evaluators and tests; the live
// scanner keeps one ledger for the whole process.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen = make(map[string]struct{})
}
