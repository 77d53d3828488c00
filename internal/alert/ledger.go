package alert

import (
	"sort"
	"sync"
)

// DefaultCapacity is how many ranked activities the ledger retains.
const DefaultCapacity = 50

// Ledger keeps the top suspicious activities ranked by score. It dedups by
// trade id with first-write-wins semantics, so a re-evaluated trade never
// displaces the record already on file.
type Ledger struct {
	mu       sync.RWMutex
	capacity int
	entries  []SuspiciousActivity
}

// NewLedger creates a Ledger with the given capacity. Zero or negative
// capacity falls back to DefaultCapacity.
func NewLedger(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ledger{capacity: capacity}
}

// Merge folds a batch of new activities into the ledger: dedup by id with
// existing entries winning, then re-rank and truncate to capacity. Ranking is
// score descending, then trade timestamp descending, then id ascending so the
// order is total and stable across merges.
func (l *Ledger) Merge(batch []SuspiciousActivity) {
	if len(batch) == 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	seen := make(map[string]struct{}, len(l.entries))
	for _, e := range l.entries {
		seen[e.ID] = struct{}{}
	}
	for _, a := range batch {
		if _, ok := seen[a.ID]; ok {
			continue
		}
		seen[a.ID] = struct{}{}
		l.entries = append(l.entries, a)
	}

	sort.Slice(l.entries, func(i, j int) bool {
		a, b := l.entries[i], l.entries[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Trade.Timestamp != b.Trade.Timestamp {
			return a.Trade.Timestamp > b.Trade.Timestamp
		}
		return a.ID < b.ID
	})

	if len(l.entries) > l.capacity {
		l.entries = l.entries[:l.capacity]
	}
}

// Snapshot returns a copy of the ranked entries, highest score first.
func (l *Ledger) Snapshot() []SuspiciousActivity {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]SuspiciousActivity, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of retained activities.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Clear drops all retained activities.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
