// Package scan runs the detection pipeline: it pulls markets and trades from
// the configured sources, evaluates each new trade concurrently, and keeps a
// ranked ledger of suspicious activity.
package scan

import (
	"context"

	"github.com/NibirNd/Poly/internal/model"
)

// MarketSource lists the markets to scan.
type MarketSource interface {
	ActiveMarkets(ctx context.Context) ([]model.Market, error)
}

// TradeSource returns recent trades for one market.
type TradeSource interface {
	RecentTrades(ctx context.Context, market model.Market) ([]model.Trade, error)
}

// WalletOracle looks up wallet context for qualified trades. Lookups hit the
// network, so the evaluator only consults the oracle for trades that already
// passed the heuristic qualification bar.
type WalletOracle interface {
	// WalletStats returns behavioral statistics for a maker address.
	WalletStats(ctx context.Context, address string) (*model.WalletStats, error)
	// WhaleAddresses lists the whale-sized holders of a market.
	WhaleAddresses(ctx context.Context, marketID string) ([]string, error)
}

// Analysis is the external analyzer's verdict on one trade.
type Analysis struct {
	Score     int      `json:"score"`
	Reasoning string   `json:"reasoning"`
	Factors   []string `json:"factors"`
}

// AnalyzerRequest bundles everything the analyzer sees about a candidate.
type AnalyzerRequest struct {
	Trade            model.Trade        `json:"trade"`
	Market           model.Market       `json:"market"`
	HeuristicFactors []string           `json:"heuristicFactors"`
	WalletStats      *model.WalletStats `json:"walletStats,omitempty"`
}

// SuspicionAnalyzer scores a qualified trade out of process. A failing
// analyzer never fails an evaluation; the caller substitutes a deterministic
// fallback score.
type SuspicionAnalyzer interface {
	Analyze(ctx context.Context, req AnalyzerRequest) (Analysis, error)
}
