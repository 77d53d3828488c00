package scan

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/NibirNd/Poly/internal/alert"
	"github.com/NibirNd/Poly/internal/config"
	"github.com/NibirNd/Poly/internal/dedup"
	"github.com/NibirNd/Poly/internal/detector"
	"github.com/NibirNd/Poly/internal/metrics"
	"github.com/NibirNd/Poly/internal/model"
	"github.com/NibirNd/Poly/internal/stats"
	"github.com/sirupsen/logrus"
)

// Candidate is one trade awaiting evaluation, paired with its market.
type Candidate struct {
	Trade  model.Trade
	Market model.Market
}

// Evaluator runs the scoring pipeline over candidate trades with bounded
// concurrency. Each trade id is evaluated at most once per Evaluator
// lifetime; one candidate failing or panicking does not affect the rest of
// the batch.
type Evaluator struct {
	cfg        *config.Config
	scorer     *detector.Scorer
	stats      *stats.Store
	seen       *dedup.Ledger
	oracle     WalletOracle
	analyzer   SuspicionAnalyzer
	workerPool chan struct{}
	log        *logrus.Logger
}

// NewEvaluator creates an Evaluator with its own statistics store and dedup
// ledger. The scorer, oracle and analyzer are shared with the caller.
func NewEvaluator(
	cfg *config.Config,
	scorer *detector.Scorer,
	oracle WalletOracle,
	analyzer SuspicionAnalyzer,
	log *logrus.Logger,
) *Evaluator {
	workerPool := make(chan struct{}, cfg.EvalConcurrency)
	for i := 0; i < cfg.EvalConcurrency; i++ {
		workerPool <- struct{}{}
	}

	return &Evaluator{
		cfg:        cfg,
		scorer:     scorer,
		stats:      stats.NewStore(),
		seen:       dedup.New(),
		oracle:     oracle,
		analyzer:   analyzer,
		workerPool: workerPool,
		log:        log,
	}
}

// Stats exposes the per-market statistics store for status reporting.
func (e *Evaluator) Stats() *stats.Store {
	return e.stats
}

// EvaluatedCount returns how many distinct trade ids have been evaluated.
func (e *Evaluator) EvaluatedCount() int {
	return e.seen.Len()
}

// EvaluateBatch runs all candidates through the pipeline and returns the
// resulting suspicious activities. Blocks until every candidate has finished.
func (e *Evaluator) EvaluateBatch(ctx context.Context, candidates []Candidate) []alert.SuspiciousActivity {
	var mu sync.Mutex
	var activities []alert.SuspiciousActivity

	var wg sync.WaitGroup
	for _, c := range candidates {
		wg.Add(1)
		go func(c Candidate) {
			defer wg.Done()

			<-e.workerPool
			defer func() { e.workerPool <- struct{}{} }()

			activity, err := e.evaluate(ctx, c)
			if err != nil {
				e.log.WithError(err).WithField("trade_id", c.Trade.ID).Error("Failed to evaluate trade")
				return
			}
			if activity != nil {
				mu.Lock()
				activities = append(activities, *activity)
				mu.Unlock()
			}
		}(c)
	}
	wg.Wait()

	return activities
}

// evaluate runs one candidate through dedup, statistics, heuristics and the
// analyzer. Returns nil with no error when the trade is a duplicate or not
// suspicious enough to qualify.
func (e *Evaluator) evaluate(ctx context.Context, c Candidate) (activity *alert.SuspiciousActivity, err error) {
	start := time.Now()
	status := "clean"
	defer func() {
		if r := recover(); r != nil {
			activity, err = nil, fmt.Errorf("evaluate trade %s: panic: %v", c.Trade.ID, r)
			status = "error"
		}
		metrics.RecordTradeEvaluation(time.Since(start), status)
	}()

	if !e.seen.MarkIfNew(c.Trade.ID) {
		status = "duplicate"
		return nil, nil
	}

	// Statistics update and z-score use the same atomic pre-update snapshot,
	// so the trade is measured against the market as it was before it landed.
	pre, _ := e.stats.Observe(c.Trade.MarketID, c.Trade.Size)
	z := stats.ZScore(c.Trade.Size, pre, e.cfg.ReferenceMeanUSD, e.cfg.ReferenceSpreadUSD)

	in := detector.Input{
		Trade:  c.Trade,
		Market: c.Market,
		Stats:  pre,
		ZScore: z,
	}
	base, factors := e.scorer.Score(in)

	// Cheap heuristics gate the expensive collaborators.
	if base < e.cfg.MinBaseScore {
		return nil, nil
	}

	wallet := e.lookupWallet(ctx, c.Trade.MakerAddress)
	if (wallet != nil && wallet.IsWhale) || e.isMarketWhale(ctx, c.Trade.MarketID, c.Trade.MakerAddress) {
		in.IsWhale = true
		base, factors = e.scorer.Score(in)
	}

	score, reasoning, factors := e.analyze(ctx, c, base, factors, wallet)
	level := alert.LevelForScore(score)
	metrics.RecordSuspicionScore(score)

	e.log.WithFields(logrus.Fields{
		"trade_id": c.Trade.ID,
		"market":   c.Trade.MarketID,
		"size_usd": c.Trade.Size,
		"z_score":  z,
		"base":     base,
		"score":    score,
		"level":    level,
	}).Debug("Trade evaluated")

	status = "suspicious"
	return &alert.SuspiciousActivity{
		ID:         c.Trade.ID,
		Trade:      c.Trade,
		Market:     c.Market,
		Score:      score,
		Level:      level,
		Reasoning:  reasoning,
		Factors:    factors,
		Wallet:     wallet,
		DetectedAt: time.Now().UTC(),
	}, nil
}

// lookupWallet consults the oracle, tolerating failure. A nil result simply
// means the whale heuristic cannot fire for this trade.
func (e *Evaluator) lookupWallet(ctx context.Context, address string) *model.WalletStats {
	if e.oracle == nil {
		return nil
	}
	wallet, err := e.oracle.WalletStats(ctx, address)
	if err != nil {
		e.log.WithError(err).WithField("wallet", address).Warn("Wallet oracle lookup failed")
		return nil
	}
	return wallet
}

// isMarketWhale reports whether the maker is among the market's whale-sized
// holders. Failure is tolerated; the wallet-level whale flag may still fire.
func (e *Evaluator) isMarketWhale(ctx context.Context, marketID, address string) bool {
	if e.oracle == nil {
		return false
	}
	whales, err := e.oracle.WhaleAddresses(ctx, marketID)
	if err != nil {
		e.log.WithError(err).WithField("market", marketID).Warn("Whale listing failed")
		return false
	}
	for _, w := range whales {
		if strings.EqualFold(w, address) {
			return true
		}
	}
	return false
}

// analyze asks the external analyzer for its verdict and fuses it with the
// heuristic base. When the analyzer fails or returns an out-of-range score,
// the deterministic fallback derived from the factor count stands in as the
// final score.
func (e *Evaluator) analyze(ctx context.Context, c Candidate, base int, factors []string, wallet *model.WalletStats) (int, string, []string) {
	if e.analyzer == nil {
		metrics.RecordAnalyzerRequest(nil, true)
		return detector.FallbackScore(len(factors)), "", factors
	}

	analysis, err := e.analyzer.Analyze(ctx, AnalyzerRequest{
		Trade:            c.Trade,
		Market:           c.Market,
		HeuristicFactors: factors,
		WalletStats:      wallet,
	})
	if err == nil && (analysis.Score < 0 || analysis.Score > 100) {
		err = fmt.Errorf("analyzer score %d out of range", analysis.Score)
	}
	if err != nil {
		e.log.WithError(err).WithField("trade_id", c.Trade.ID).Warn("Analyzer unavailable, using fallback score")
		metrics.RecordAnalyzerRequest(err, true)
		return detector.FallbackScore(len(factors)), "", factors
	}

	metrics.RecordAnalyzerRequest(nil, false)
	return detector.Fuse(base, analysis.Score), analysis.Reasoning, detector.UnionFactors(factors, analysis.Factors)
}
