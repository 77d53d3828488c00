// Package demo provides deterministic in-process collaborators so the full
// pipeline can run without network access. Trade streams, wallet stats and
// analyzer verdicts are all derived from hashes of stable identifiers.
package demo

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/NibirNd/Poly/internal/model"
	"github.com/NibirNd/Poly/internal/scan"
)

// insiderAddr matches the default denylist entry so demo runs always surface
// at least one known-insider alert.
const insiderAddr = "0x8dd33CcbB7Fa4d0272dDa4F859320ee6d0d7B2a4"

func hash(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

// Source serves a fixed market set and a deterministic trade stream that
// advances each polling cycle.
type Source struct {
	markets []model.Market
	cycle   atomic.Int64
}

// NewSource creates the demo market and trade source.
func NewSource() *Source {
	return &Source{
		markets: []model.Market{
			{
				ID:            "demo-election",
				Question:      "Will the incumbent win the election?",
				Volume:        2500000,
				Liquidity:     450000,
				Outcomes:      []string{"Yes", "No"},
				OutcomePrices: []float64{0.62, 0.38},
			},
			{
				ID:            "demo-merger",
				Question:      "Will the acquisition close before Q4?",
				Volume:        800000,
				Liquidity:     120000,
				Outcomes:      []string{"Yes", "No"},
				OutcomePrices: []float64{0.12, 0.88},
			},
			{
				ID:            "demo-rates",
				Question:      "Will rates be cut at the next meeting?",
				Volume:        5200000,
				Liquidity:     900000,
				Outcomes:      []string{"Yes", "No"},
				OutcomePrices: []float64{0.47, 0.53},
			},
		},
	}
}

// ActiveMarkets returns the demo market set.
func (s *Source) ActiveMarkets(ctx context.Context) ([]model.Market, error) {
	s.cycle.Add(1)
	out := make([]model.Market, len(s.markets))
	copy(out, s.markets)
	return out, nil
}

// RecentTrades generates a deterministic batch of trades for the market.
// Most are routine; each cycle one market gets a large long-odds buy, and the
// merger market periodically sees the denylisted wallet accumulate.
func (s *Source) RecentTrades(ctx context.Context, market model.Market) ([]model.Trade, error) {
	cycle := s.cycle.Load()
	now := time.Now().UnixMilli()

	var trades []model.Trade
	for i := 0; i < 8; i++ {
		seed := hash(fmt.Sprintf("%s-%d-%d", market.ID, cycle, i))
		outcomeIdx := int(seed % 2)
		price := market.OutcomePrices[outcomeIdx]
		size := 50 + float64(seed%900)

		side := model.SideBuy
		if seed%3 == 0 {
			side = model.SideSell
		}

		ts := now - int64(i)*1500
		txHash := fmt.Sprintf("0x%016x", seed)
		trades = append(trades, model.Trade{
			ID:              model.TradeID(txHash, outcomeIdx, ts),
			MarketID:        market.ID,
			OutcomeIndex:    outcomeIdx,
			OutcomeLabel:    market.Outcomes[outcomeIdx],
			Side:            side,
			Price:           price,
			Size:            size,
			Timestamp:       ts,
			MakerAddress:    fmt.Sprintf("0x%040x", seed),
			TransactionHash: txHash,
		})
	}

	// Periodic anomaly: a large position at long odds.
	if hash(fmt.Sprintf("anomaly-%s-%d", market.ID, cycle))%3 == 0 {
		maker := fmt.Sprintf("0x%040x", hash(fmt.Sprintf("whale-%d", cycle)))
		if market.ID == "demo-merger" {
			maker = insiderAddr
		}
		ts := now - 500
		txHash := fmt.Sprintf("0x%016x", hash(fmt.Sprintf("big-%s-%d", market.ID, cycle)))
		trades = append(trades, model.Trade{
			ID:              model.TradeID(txHash, 0, ts),
			MarketID:        market.ID,
			OutcomeIndex:    0,
			OutcomeLabel:    market.Outcomes[0],
			Side:            model.SideBuy,
			Price:           market.OutcomePrices[0],
			Size:            25000 + float64(hash(txHash)%20000),
			Timestamp:       ts,
			MakerAddress:    maker,
			TransactionHash: txHash,
		})
	}

	return trades, nil
}

// Oracle derives wallet stats from the address hash.
type Oracle struct{}

// NewOracle creates the demo wallet oracle.
func NewOracle() *Oracle {
	return &Oracle{}
}

// WalletStats returns deterministic stats for an address. Roughly one wallet
// in four is a whale.
func (o *Oracle) WalletStats(ctx context.Context, address string) (*model.WalletStats, error) {
	seed := hash(strings.ToLower(address))
	return &model.WalletStats{
		TotalTrades:    int(seed % 1200),
		WinRate:        float64(seed%100) / 100,
		AccountAgeDays: int(seed % 700),
		IsWhale:        seed%4 == 0,
	}, nil
}

// WhaleAddresses returns a deterministic holder set per market. The merger
// market always lists the known insider among its whales.
func (o *Oracle) WhaleAddresses(ctx context.Context, marketID string) ([]string, error) {
	addrs := []string{
		fmt.Sprintf("0x%040x", hash("holder-"+marketID)),
	}
	if marketID == "demo-merger" {
		addrs = append(addrs, insiderAddr)
	}
	return addrs, nil
}

// Analyzer produces deterministic verdicts keyed on the trade id. It leans on
// the heuristic factor count so demo scores track the rule engine.
type Analyzer struct{}

// NewAnalyzer creates the demo analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze scores the request without leaving the process.
func (a *Analyzer) Analyze(ctx context.Context, req scan.AnalyzerRequest) (scan.Analysis, error) {
	seed := hash(req.Trade.ID)
	score := 20*len(req.HeuristicFactors) + int(seed%21)
	if score > 100 {
		score = 100
	}

	return scan.Analysis{
		Score: score,
		Reasoning: fmt.Sprintf("%d heuristic signals on %q with a $%.0f position",
			len(req.HeuristicFactors), req.Market.Question, req.Trade.Size),
		Factors: []string{"Pattern match against historical incidents"},
	}, nil
}
