// Package stats maintains online per-market trade size statistics using
// Welford's single-pass algorithm, so memory stays flat regardless of how
// many trades a market has seen.
package stats

import (
	"math"
	"sync"
	"time"
)

// Snapshot is a point-in-time copy of one market's running statistics.
type Snapshot struct {
	Count      int64
	Mean       float64
	M2         float64 // sum of squared deviations
	LastUpdate time.Time
}

// Variance returns the population variance (M2/count).
func (s Snapshot) Variance() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.M2 / float64(s.Count)
}

// StdDev returns the population standard deviation.
func (s Snapshot) StdDev() float64 {
	return math.Sqrt(s.Variance())
}

type entry struct {
	mu   sync.Mutex
	snap Snapshot
}

// Store tracks running statistics keyed by market id. Updates to one market
// are serialized through a per-market lock: the Welford recurrence is not
// safe under concurrent read-modify-write, and the evaluator runs candidates
// for the same market in parallel.
type Store struct {
	mu      sync.RWMutex
	markets map[string]*entry
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{markets: make(map[string]*entry)}
}

func (s *Store) entryFor(marketID string) *entry {
	s.mu.RLock()
	e, ok := s.markets[marketID]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.markets[marketID]; ok {
		return e
	}
	e = &entry{}
	s.markets[marketID] = e
	return e
}

// Observe folds a new trade size into the market's statistics and returns
// the pre-update and post-update snapshots atomically. The pre-update
// snapshot is what z-scores are computed against, so a large trade does not
// dilute its own anomaly measure.
func (s *Store) Observe(marketID string, size float64) (pre, post Snapshot) {
	e := s.entryFor(marketID)

	e.mu.Lock()
	defer e.mu.Unlock()

	pre = e.snap

	count := pre.Count + 1
	delta := size - pre.Mean
	mean := pre.Mean + delta/float64(count)
	m2 := pre.M2 + delta*(size-mean)

	e.snap = Snapshot{
		Count:      count,
		Mean:       mean,
		M2:         m2,
		LastUpdate: time.Now(),
	}
	return pre, e.snap
}

// Snapshot returns the current statistics for a market.
func (s *Store) Snapshot(marketID string) Snapshot {
	s.mu.RLock()
	e, ok := s.markets[marketID]
	s.mu.RUnlock()
	if !ok {
		return Snapshot{}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap
}

// Len returns the number of markets with at least one observation.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.markets)
}

// ColdStartMinSamples is the observation count below which the sample
// estimator is not trusted for z-scores. Sparse markets produce explosive
// z values otherwise.
const ColdStartMinSamples = 5

// ZScore measures how many standard deviations size lies from the market's
// running mean, using the pre-update snapshot. Below the cold-start sample
// count, or when the sample spread collapses to zero, a fixed reference
// mean/spread pair is used instead.
func ZScore(size float64, pre Snapshot, refMean, refSpread float64) float64 {
	if refSpread <= 0 {
		refSpread = 1
	}
	if pre.Count < ColdStartMinSamples {
		return (size - refMean) / refSpread
	}
	sd := pre.StdDev()
	if sd <= 0 {
		return (size - pre.Mean) / refSpread
	}
	return (size - pre.Mean) / sd
}
