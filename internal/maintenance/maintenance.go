// Package maintenance holds the background jobs: market resolution with win
// rate bookkeeping, and archive pruning.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/NibirNd/Poly/internal/metrics"
	"github.com/NibirNd/Poly/internal/polymarket/gammaapi"
	"github.com/NibirNd/Poly/internal/storage"
	"github.com/sirupsen/logrus"
)

// Resolver checks markets with archived activity for resolution and updates
// wallet win rates when a winner is known.
type Resolver struct {
	db    *storage.DB
	gamma *gammaapi.Client
	log   *logrus.Logger
}

// NewResolver creates a Resolver.
func NewResolver(db *storage.DB, gamma *gammaapi.Client, log *logrus.Logger) *Resolver {
	return &Resolver{db: db, gamma: gamma, log: log}
}

// Run resolves newly closed markets and recalculates win rates for the
// wallets that traded them.
func (r *Resolver) Run(ctx context.Context) error {
	r.log.Info("Starting win rate recalculation")

	marketIDs, err := r.db.DistinctMarketIDs(ctx)
	if err != nil {
		return fmt.Errorf("list market ids: %w", err)
	}

	resolvedCount := 0
	for _, marketID := range marketIDs {
		existing, err := r.db.GetMarketOutcome(ctx, marketID)
		if err != nil {
			r.log.WithError(err).WithField("market", marketID).Warn("Failed to check resolution")
			continue
		}
		if existing != nil {
			continue
		}

		market, err := r.gamma.MarketByID(ctx, marketID)
		if err != nil {
			r.log.WithError(err).WithField("market", marketID).Debug("Failed to fetch market")
			continue
		}
		if !market.Closed {
			continue
		}

		m, err := market.ToModel()
		if err != nil {
			r.log.WithError(err).WithField("market", marketID).Warn("Failed to parse market outcomes")
			continue
		}

		winner := DetermineWinner(m.Outcomes, m.OutcomePrices)
		if winner == "" {
			r.log.WithFields(logrus.Fields{
				"market":   marketID,
				"question": m.Question,
			}).Debug("Could not determine winner")
			continue
		}

		if err := r.db.UpsertMarketOutcome(ctx, &storage.MarketOutcome{
			MarketID:       marketID,
			Question:       m.Question,
			WinningOutcome: winner,
			ResolvedTS:     time.Now().Unix(),
		}); err != nil {
			r.log.WithError(err).Error("Failed to store resolution")
			continue
		}

		if err := r.updateWinRates(ctx, marketID, winner); err != nil {
			r.log.WithError(err).Error("Failed to update wallet performance")
			continue
		}

		resolvedCount++
		r.log.WithFields(logrus.Fields{
			"market":          marketID,
			"question":        m.Question,
			"winning_outcome": winner,
		}).Info("Resolved market and updated win rates")
	}

	r.log.WithField("resolved_count", resolvedCount).Info("Win rate recalculation complete")
	metrics.RecordWinRateCalculation(resolvedCount)
	return nil
}

// DetermineWinner returns the outcome whose price has converged to at least
// 0.95, or empty when no outcome has.
func DetermineWinner(outcomes []string, prices []float64) string {
	if len(outcomes) == 0 || len(outcomes) != len(prices) {
		return ""
	}
	for i, price := range prices {
		if price >= 0.95 {
			return outcomes[i]
		}
	}
	return ""
}

func (r *Resolver) updateWinRates(ctx context.Context, marketID, winner string) error {
	records, err := r.db.ActivitiesByMarket(ctx, marketID)
	if err != nil {
		return fmt.Errorf("load activities: %w", err)
	}

	for wallet, net := range WalletNetPositions(records, winner) {
		perf, err := r.db.GetWalletPerformance(ctx, wallet)
		if err != nil {
			r.log.WithError(err).WithField("wallet", wallet).Warn("Failed to get wallet performance")
			continue
		}
		if perf == nil {
			perf = &storage.WalletPerformance{WalletAddress: wallet}
		}

		perf.TotalResolvedTrades++
		if net > 0 {
			perf.WinningTrades++
		} else if net < 0 {
			perf.LosingTrades++
		}
		// A net of zero is perfectly hedged and counts neither way.
		if perf.TotalResolvedTrades > 0 {
			perf.WinRate = float64(perf.WinningTrades) / float64(perf.TotalResolvedTrades)
		}
		perf.LastCalculatedTS = time.Now().Unix()

		if err := r.db.UpsertWalletPerformance(ctx, perf); err != nil {
			r.log.WithError(err).WithField("wallet", wallet).Error("Failed to update wallet performance")
		}
	}

	return nil
}

// WalletNetPositions folds a market's archived activities into each wallet's
// net exposure toward the winning outcome. Buying the winner or selling a
// loser counts positive.
func WalletNetPositions(records []storage.ActivityRecord, winner string) map[string]float64 {
	net := make(map[string]float64)
	for _, rec := range records {
		sign := 1.0
		if (rec.Side == "BUY") != (rec.Outcome == winner) {
			sign = -1.0
		}
		net[rec.MakerAddress] += sign * rec.SizeUSD
	}
	return net
}

// Pruner deletes archived activity past the retention window.
type Pruner struct {
	db        *storage.DB
	retention time.Duration
	log       *logrus.Logger
}

// NewPruner creates a Pruner with the given retention.
func NewPruner(db *storage.DB, retention time.Duration, log *logrus.Logger) *Pruner {
	return &Pruner{db: db, retention: retention, log: log}
}

// Run deletes everything older than the retention window.
func (p *Pruner) Run(ctx context.Context) error {
	cutoff := time.Now().Add(-p.retention)
	deleted, err := p.db.PruneActivitiesBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune activities: %w", err)
	}
	p.log.WithFields(logrus.Fields{
		"deleted": deleted,
		"cutoff":  cutoff.Format(time.RFC3339),
	}).Info("Pruned archived activities")
	return nil
}
