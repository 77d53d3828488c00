package scan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/NibirNd/Poly/internal/config"
	"github.com/NibirNd/Poly/internal/detector"
	"github.com/NibirNd/Poly/internal/model"
	"github.com/sirupsen/logrus"
)

const testInsider = "0x8dd33CcbB7Fa4d0272dDa4F859320ee6d0d7B2a4"

func testConfig() *config.Config {
	return &config.Config{
		Mode:               config.ModeDemo,
		MinTradeUSD:        100,
		MinBaseScore:       30,
		ReferenceMeanUSD:   500,
		ReferenceSpreadUSD: 1500,
		RecencyWindow:      time.Hour,
		InsiderDenylist:    []string{testInsider},
		EvalConcurrency:    5,
		AlertCapacity:      50,
		PollInterval:       time.Second,
		NotifyMinLevel:     "HIGH",
		AlertMode:          "log",
	}
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

type stubOracle struct {
	stats  map[string]*model.WalletStats
	whales map[string][]string
	err    error
	calls  atomic.Int64
}

func (o *stubOracle) WalletStats(ctx context.Context, address string) (*model.WalletStats, error) {
	o.calls.Add(1)
	if o.err != nil {
		return nil, o.err
	}
	return o.stats[address], nil
}

func (o *stubOracle) WhaleAddresses(ctx context.Context, marketID string) ([]string, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.whales[marketID], nil
}

type stubAnalyzer struct {
	fn          func(req AnalyzerRequest) (Analysis, error)
	delay       time.Duration
	inFlight    atomic.Int64
	maxInFlight atomic.Int64
	calls       atomic.Int64
}

func (a *stubAnalyzer) Analyze(ctx context.Context, req AnalyzerRequest) (Analysis, error) {
	a.calls.Add(1)
	cur := a.inFlight.Add(1)
	for {
		max := a.maxInFlight.Load()
		if cur <= max || a.maxInFlight.CompareAndSwap(max, cur) {
			break
		}
	}
	if a.delay > 0 {
		time.Sleep(a.delay)
	}
	a.inFlight.Add(-1)

	if a.fn != nil {
		return a.fn(req)
	}
	return Analysis{Score: 80, Reasoning: "stub"}, nil
}

// suspiciousCandidate triggers size anomaly, liquidity impact, long odds and
// the denylist against a cold-start market.
func suspiciousCandidate(id string) Candidate {
	market := model.Market{ID: "m1", Question: "Will X happen?", Liquidity: 450000}
	return Candidate{
		Trade: model.Trade{
			ID:           id,
			MarketID:     market.ID,
			Price:        0.12,
			Size:         35000,
			Timestamp:    time.Now().UnixMilli(),
			MakerAddress: testInsider,
		},
		Market: market,
	}
}

func cleanCandidate(id string) Candidate {
	market := model.Market{ID: "m1", Liquidity: 10000000}
	return Candidate{
		Trade: model.Trade{
			ID:        id,
			MarketID:  market.ID,
			Price:     0.5,
			Size:      150,
			Timestamp: time.Now().UnixMilli(),
		},
		Market: market,
	}
}

func TestEvaluateBatchProducesActivity(t *testing.T) {
	analyzer := &stubAnalyzer{}
	e := NewEvaluator(testConfig(), detector.NewScorer([]string{testInsider}), &stubOracle{}, analyzer, testLogger())

	activities := e.EvaluateBatch(context.Background(), []Candidate{suspiciousCandidate("t1")})

	if len(activities) != 1 {
		t.Fatalf("activities = %d, want 1", len(activities))
	}
	a := activities[0]
	// Base 130 fused with the stub's 80 saturates at 100.
	if a.Score != 100 {
		t.Errorf("score = %d, want 100", a.Score)
	}
	if a.Level != "CRITICAL" {
		t.Errorf("level = %s, want CRITICAL", a.Level)
	}
	if len(a.Factors) != 4 {
		t.Errorf("factors = %v, want 4 heuristic tags", a.Factors)
	}
	if a.Reasoning != "stub" {
		t.Errorf("reasoning = %q, want analyzer reasoning", a.Reasoning)
	}
}

func TestEvaluateBatchIdempotent(t *testing.T) {
	e := NewEvaluator(testConfig(), detector.NewScorer([]string{testInsider}), &stubOracle{}, &stubAnalyzer{}, testLogger())

	first := e.EvaluateBatch(context.Background(), []Candidate{suspiciousCandidate("t1")})
	second := e.EvaluateBatch(context.Background(), []Candidate{suspiciousCandidate("t1")})

	if len(first) != 1 {
		t.Fatalf("first batch = %d activities, want 1", len(first))
	}
	if len(second) != 0 {
		t.Errorf("second batch = %d activities, want 0 (duplicate id)", len(second))
	}
}

func TestEvaluateBatchDuplicatesWithinBatch(t *testing.T) {
	e := NewEvaluator(testConfig(), detector.NewScorer([]string{testInsider}), &stubOracle{}, &stubAnalyzer{}, testLogger())

	batch := []Candidate{suspiciousCandidate("t1"), suspiciousCandidate("t1"), suspiciousCandidate("t1")}
	activities := e.EvaluateBatch(context.Background(), batch)

	if len(activities) != 1 {
		t.Errorf("activities = %d, want 1 for three copies of the same trade", len(activities))
	}
}

func TestEvaluateCleanTradeSkipsCollaborators(t *testing.T) {
	oracle := &stubOracle{}
	analyzer := &stubAnalyzer{}
	e := NewEvaluator(testConfig(), detector.NewScorer([]string{testInsider}), oracle, analyzer, testLogger())

	activities := e.EvaluateBatch(context.Background(), []Candidate{cleanCandidate("t1")})

	if len(activities) != 0 {
		t.Errorf("activities = %d, want 0", len(activities))
	}
	if oracle.calls.Load() != 0 {
		t.Errorf("oracle calls = %d, want 0 for unqualified trade", oracle.calls.Load())
	}
	if analyzer.calls.Load() != 0 {
		t.Errorf("analyzer calls = %d, want 0 for unqualified trade", analyzer.calls.Load())
	}
}

func TestEvaluateWhaleRescore(t *testing.T) {
	oracle := &stubOracle{stats: map[string]*model.WalletStats{
		testInsider: {TotalTrades: 900, WinRate: 0.8, IsWhale: true},
	}}
	// Echo the base score back so fusion preserves it exactly.
	analyzer := &stubAnalyzer{fn: func(req AnalyzerRequest) (Analysis, error) {
		return Analysis{Score: 100}, nil
	}}
	e := NewEvaluator(testConfig(), detector.NewScorer([]string{testInsider}), oracle, analyzer, testLogger())

	activities := e.EvaluateBatch(context.Background(), []Candidate{suspiciousCandidate("t1")})

	if len(activities) != 1 {
		t.Fatalf("activities = %d, want 1", len(activities))
	}
	a := activities[0]
	if len(a.Factors) != 5 {
		t.Errorf("factors = %v, want 5 including the whale tag", a.Factors)
	}
	found := false
	for _, f := range a.Factors {
		if f == "Verified whale activity" {
			found = true
		}
	}
	if !found {
		t.Error("whale factor missing after oracle re-score")
	}
	if a.Wallet == nil || !a.Wallet.IsWhale {
		t.Error("wallet stats not attached to activity")
	}
}

func TestEvaluateMarketWhaleSet(t *testing.T) {
	// No wallet-level whale flag, but the maker appears in the market's
	// holder listing (case differs). The whale heuristic still fires.
	oracle := &stubOracle{whales: map[string][]string{
		"m1": {strings.ToUpper(testInsider)},
	}}
	analyzer := &stubAnalyzer{fn: func(req AnalyzerRequest) (Analysis, error) {
		return Analysis{Score: 100}, nil
	}}
	e := NewEvaluator(testConfig(), detector.NewScorer([]string{testInsider}), oracle, analyzer, testLogger())

	activities := e.EvaluateBatch(context.Background(), []Candidate{suspiciousCandidate("t1")})

	if len(activities) != 1 {
		t.Fatalf("activities = %d, want 1", len(activities))
	}
	found := false
	for _, f := range activities[0].Factors {
		if f == "Verified whale activity" {
			found = true
		}
	}
	if !found {
		t.Errorf("factors = %v, want the whale tag from the market holder set", activities[0].Factors)
	}
}

func TestEvaluateAnalyzerFailureUsesFallback(t *testing.T) {
	analyzer := &stubAnalyzer{fn: func(req AnalyzerRequest) (Analysis, error) {
		return Analysis{}, errors.New("connection refused")
	}}
	e := NewEvaluator(testConfig(), detector.NewScorer([]string{testInsider}), &stubOracle{}, analyzer, testLogger())

	activities := e.EvaluateBatch(context.Background(), []Candidate{suspiciousCandidate("t1")})

	if len(activities) != 1 {
		t.Fatalf("activities = %d, want 1", len(activities))
	}
	a := activities[0]
	// Four heuristic factors cap the fallback at 50.
	if a.Score != 50 {
		t.Errorf("fallback score = %d, want 50", a.Score)
	}
	if a.Level != "MEDIUM" {
		t.Errorf("level = %s, want MEDIUM", a.Level)
	}
	if a.Reasoning != "" {
		t.Errorf("reasoning = %q, want empty on fallback", a.Reasoning)
	}
}

func TestEvaluateAnalyzerOutOfRangeUsesFallback(t *testing.T) {
	analyzer := &stubAnalyzer{fn: func(req AnalyzerRequest) (Analysis, error) {
		return Analysis{Score: 250}, nil
	}}
	e := NewEvaluator(testConfig(), detector.NewScorer([]string{testInsider}), &stubOracle{}, analyzer, testLogger())

	activities := e.EvaluateBatch(context.Background(), []Candidate{suspiciousCandidate("t1")})

	if len(activities) != 1 {
		t.Fatalf("activities = %d, want 1", len(activities))
	}
	if activities[0].Score != 50 {
		t.Errorf("score = %d, want fallback 50 for out-of-range analyzer score", activities[0].Score)
	}
}

func TestEvaluateBatchPanicIsolation(t *testing.T) {
	analyzer := &stubAnalyzer{fn: func(req AnalyzerRequest) (Analysis, error) {
		if req.Trade.ID == "t-poison" {
			panic("poison candidate")
		}
		return Analysis{Score: 80}, nil
	}}
	e := NewEvaluator(testConfig(), detector.NewScorer([]string{testInsider}), &stubOracle{}, analyzer, testLogger())

	batch := []Candidate{
		suspiciousCandidate("t1"),
		suspiciousCandidate("t-poison"),
		suspiciousCandidate("t2"),
	}
	activities := e.EvaluateBatch(context.Background(), batch)

	if len(activities) != 2 {
		t.Errorf("activities = %d, want 2 survivors of the poison candidate", len(activities))
	}
	for _, a := range activities {
		if a.ID == "t-poison" {
			t.Error("poison candidate produced an activity")
		}
	}
}

func TestEvaluateBatchBoundedConcurrency(t *testing.T) {
	cfg := testConfig()
	cfg.EvalConcurrency = 3

	analyzer := &stubAnalyzer{delay: 10 * time.Millisecond}
	e := NewEvaluator(cfg, detector.NewScorer([]string{testInsider}), &stubOracle{}, analyzer, testLogger())

	batch := make([]Candidate, 0, 20)
	for i := 0; i < 20; i++ {
		batch = append(batch, suspiciousCandidate(fmt.Sprintf("t%d", i)))
	}
	activities := e.EvaluateBatch(context.Background(), batch)

	if len(activities) != 20 {
		t.Fatalf("activities = %d, want 20", len(activities))
	}
	if max := analyzer.maxInFlight.Load(); max > 3 {
		t.Errorf("max in-flight analyzer calls = %d, want <= 3", max)
	}
}
