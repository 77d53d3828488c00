package scan

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/NibirNd/Poly/internal/alert"
	"github.com/NibirNd/Poly/internal/config"
	"github.com/NibirNd/Poly/internal/detector"
	"github.com/NibirNd/Poly/internal/metrics"
	"github.com/NibirNd/Poly/internal/model"
	"github.com/sirupsen/logrus"
)

// ErrScanInProgress is returned when a cycle is requested while the previous
// one is still running.
var ErrScanInProgress = errors.New("scan cycle already in progress")

// Archiver persists finished evaluations. Optional; a nil Archiver disables
// persistence.
type Archiver interface {
	SaveActivities(ctx context.Context, activities []alert.SuspiciousActivity) error
}

// StateStore checkpoints scanner progress. Archivers that also implement it
// get the last completed cycle time recorded after each cycle.
type StateStore interface {
	SetState(ctx context.Context, key, value string) error
}

// Status is a point-in-time view of the scanner for the ops endpoints.
type Status struct {
	State             string        `json:"state"` // idle or scanning
	CyclesCompleted   int64         `json:"cyclesCompleted"`
	CyclesSkipped     int64         `json:"cyclesSkipped"`
	LastCycleAt       time.Time     `json:"lastCycleAt"`
	LastCycleDuration time.Duration `json:"lastCycleDurationNs"`
	MarketsTracked    int           `json:"marketsTracked"`
	TradesEvaluated   int           `json:"tradesEvaluated"`
	AlertCount        int           `json:"alertCount"`
}

// Scanner drives the detection pipeline on a polling schedule. Cycles never
// overlap: a tick that fires while the previous cycle is still running is
// skipped, not queued.
type Scanner struct {
	cfg       *config.Config
	markets   MarketSource
	trades    TradeSource
	scorer    *detector.Scorer
	oracle    WalletOracle
	analyzer  SuspicionAnalyzer
	evaluator *Evaluator
	ledger    *alert.Ledger
	sender    alert.Sender
	archive   Archiver
	log       *logrus.Logger

	scanning        atomic.Bool
	cycleActive     atomic.Bool
	cyclesCompleted atomic.Int64
	cyclesSkipped   atomic.Int64

	mu                sync.Mutex
	lastCycleAt       time.Time
	lastCycleDuration time.Duration
	stop              chan struct{}
}

// NewScanner wires the scanner from its collaborators. archive may be nil.
func NewScanner(
	cfg *config.Config,
	markets MarketSource,
	trades TradeSource,
	oracle WalletOracle,
	analyzer SuspicionAnalyzer,
	sender alert.Sender,
	archive Archiver,
	log *logrus.Logger,
) *Scanner {
	scorer := detector.NewScorer(cfg.InsiderDenylist)
	return &Scanner{
		cfg:       cfg,
		markets:   markets,
		trades:    trades,
		scorer:    scorer,
		oracle:    oracle,
		analyzer:  analyzer,
		evaluator: NewEvaluator(cfg, scorer, oracle, analyzer, log),
		ledger:    alert.NewLedger(cfg.AlertCapacity),
		sender:    sender,
		archive:   archive,
		log:       log,
	}
}

// Start runs scan cycles until the context is cancelled or Stop is called.
// The first cycle starts immediately; subsequent cycles wait out the poll
// interval after the previous one finishes. Calling Start while a scanning
// session is already active is a no-op; after Stop, a new call resumes
// periodic scanning.
func (s *Scanner) Start(ctx context.Context) {
	if !s.scanning.CompareAndSwap(false, true) {
		s.log.Debug("Start ignored, scanner already running")
		return
	}
	defer s.scanning.Store(false)

	s.mu.Lock()
	s.stop = make(chan struct{})
	stop := s.stop
	s.mu.Unlock()

	// A new scanning session starts with an empty alert view.
	s.ledger.Clear()

	s.log.WithFields(logrus.Fields{
		"poll_interval": s.cfg.PollInterval,
		"concurrency":   s.cfg.EvalConcurrency,
	}).Info("Scanner started")

	for {
		if err := s.RunCycle(ctx); err != nil && !errors.Is(err, ErrScanInProgress) {
			s.log.WithError(err).Error("Scan cycle failed")
		}

		select {
		case <-ctx.Done():
			s.log.Info("Scanner stopped")
			return
		case <-stop:
			s.log.Info("Scanner stopped")
			return
		case <-time.After(s.cfg.PollInterval):
		}
	}
}

// Stop ends the current scanning session. It does not wait for an in-flight
// cycle; a late merge into the ledger after Stop is harmless. Calling Stop
// with no session active does nothing.
func (s *Scanner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
}

// RunCycle executes one full scan. Reentrant calls while a cycle is active
// return ErrScanInProgress without doing any work.
func (s *Scanner) RunCycle(ctx context.Context) error {
	if !s.cycleActive.CompareAndSwap(false, true) {
		s.cyclesSkipped.Add(1)
		metrics.RecordScanCycle(0, "skipped")
		s.log.Debug("Scan cycle skipped, previous cycle still running")
		return ErrScanInProgress
	}
	defer s.cycleActive.Store(false)

	start := time.Now()
	err := s.cycle(ctx)
	duration := time.Since(start)

	s.mu.Lock()
	s.lastCycleAt = start
	s.lastCycleDuration = duration
	s.mu.Unlock()

	if err != nil {
		metrics.RecordScanCycle(duration, "error")
		return err
	}

	s.cyclesCompleted.Add(1)
	metrics.RecordScanCycle(duration, "completed")
	return nil
}

func (s *Scanner) cycle(ctx context.Context) error {
	markets, err := s.markets.ActiveMarkets(ctx)
	if err != nil {
		return err
	}

	var candidates []Candidate
	for _, market := range markets {
		trades, err := s.trades.RecentTrades(ctx, market)
		if err != nil {
			// One market's feed failing must not sink the cycle.
			s.log.WithError(err).WithField("market", market.ID).Warn("Failed to fetch trades")
			continue
		}
		candidates = append(candidates, s.filter(market, trades)...)
	}

	s.log.WithFields(logrus.Fields{
		"markets":    len(markets),
		"candidates": len(candidates),
	}).Info("Scan cycle evaluating candidates")

	activities := s.evaluator.EvaluateBatch(ctx, candidates)
	s.ledger.Merge(activities)

	s.notify(ctx, activities)

	if s.archive != nil {
		if len(activities) > 0 {
			if err := s.archive.SaveActivities(ctx, activities); err != nil {
				s.log.WithError(err).Error("Failed to archive activities")
			}
		}
		if st, ok := s.archive.(StateStore); ok {
			if err := st.SetState(ctx, "last_cycle_at", time.Now().UTC().Format(time.RFC3339)); err != nil {
				s.log.WithError(err).Warn("Failed to checkpoint cycle time")
			}
		}
	}

	return nil
}

// filter drops trades too small or too old to be worth evaluating.
func (s *Scanner) filter(market model.Market, trades []model.Trade) []Candidate {
	cutoff := time.Now().Add(-s.cfg.RecencyWindow).UnixMilli()

	var out []Candidate
	for _, t := range trades {
		if t.Size < s.cfg.MinTradeUSD || t.Timestamp < cutoff {
			metrics.TradesEvaluated.WithLabelValues("filtered").Inc()
			continue
		}
		out = append(out, Candidate{Trade: t, Market: market})
	}
	return out
}

func (s *Scanner) notify(ctx context.Context, activities []alert.SuspiciousActivity) {
	minLevel := alert.Level(s.cfg.NotifyMinLevel)
	for i := range activities {
		a := &activities[i]
		if !a.Level.AtLeast(minLevel) {
			continue
		}
		if err := s.sender.Send(ctx, a); err != nil {
			s.log.WithError(err).WithField("trade_id", a.ID).Error("Failed to send alert")
			metrics.RecordAlert(string(a.Level), "error", s.cfg.AlertMode)
			continue
		}
		metrics.RecordAlert(string(a.Level), "success", s.cfg.AlertMode)
	}
}

// Alerts returns the ranked suspicious activities, highest score first.
func (s *Scanner) Alerts() []alert.SuspiciousActivity {
	return s.ledger.Snapshot()
}

// ClearAlerts drops all retained activities.
func (s *Scanner) ClearAlerts() {
	s.ledger.Clear()
}

// Status reports the scanner's current state.
func (s *Scanner) Status() Status {
	// A session waiting out the poll interval is still scanning; a direct
	// RunCycle caller counts while its cycle is in flight.
	state := "idle"
	if s.scanning.Load() || s.cycleActive.Load() {
		state = "scanning"
	}

	s.mu.Lock()
	lastAt, lastDur := s.lastCycleAt, s.lastCycleDuration
	s.mu.Unlock()

	return Status{
		State:             state,
		CyclesCompleted:   s.cyclesCompleted.Load(),
		CyclesSkipped:     s.cyclesSkipped.Load(),
		LastCycleAt:       lastAt,
		LastCycleDuration: lastDur,
		MarketsTracked:    s.evaluator.Stats().Len(),
		TradesEvaluated:   s.evaluator.EvaluatedCount(),
		AlertCount:        s.ledger.Len(),
	}
}

// EvaluateScenario runs ad hoc trades through a scratch evaluator with fresh
// statistics and dedup state, leaving the live pipeline untouched. The shared
// scorer, oracle and analyzer are reused so the verdicts match what the live
// scanner would produce.
func (s *Scanner) EvaluateScenario(ctx context.Context, market model.Market, trades []model.Trade) []alert.SuspiciousActivity {
	scratch := NewEvaluator(s.cfg, s.scorer, s.oracle, s.analyzer, s.log)

	candidates := make([]Candidate, 0, len(trades))
	for _, t := range trades {
		candidates = append(candidates, Candidate{Trade: t, Market: market})
	}
	return scratch.EvaluateBatch(ctx, candidates)
}
