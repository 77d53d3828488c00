// Package detector scores trades for insider-style anomalies. The scorer is
// a pure function over its inputs so it can be unit tested without any
// collaborators.
package detector

import (
	"fmt"
	"math"
	"strings"

	"github.com/NibirNd/Poly/internal/model"
	"github.com/NibirNd/Poly/internal/stats"
)

// Point contributions per triggered heuristic. Contributions are additive
// and independent; no clamp is applied here, fusion saturates the result.
const (
	pointsSizeAnomaly     = 35
	pointsLiquidityImpact = 25
	pointsLongOdds        = 20
	pointsWhale           = 30
	pointsKnownInsider    = 50
)

// Trigger thresholds.
const (
	zScoreThreshold        = 3.0
	liquidityImpactRatio   = 0.01
	longOddsPriceThreshold = 0.20
	longOddsSizeThreshold  = 200.0
)

// Input carries everything the scorer looks at for one trade. ZScore is
// computed against the market's pre-update statistics.
type Input struct {
	Trade   model.Trade
	Market  model.Market
	Stats   stats.Snapshot
	ZScore  float64
	IsWhale bool
}

// Scorer applies the heuristic rules. The insider denylist is injected at
// construction rather than hardcoded, and matched case-insensitively.
type Scorer struct {
	denylist map[string]struct{}
}

// NewScorer creates a Scorer with the given denylisted maker addresses.
func NewScorer(denylist []string) *Scorer {
	set := make(map[string]struct{}, len(denylist))
	for _, addr := range denylist {
		if addr = strings.TrimSpace(addr); addr != "" {
			set[strings.ToLower(addr)] = struct{}{}
		}
	}
	return &Scorer{denylist: set}
}

// Denylisted reports whether a maker address is on the insider denylist.
func (s *Scorer) Denylisted(address string) bool {
	_, ok := s.denylist[strings.ToLower(address)]
	return ok
}

// Score returns the additive base suspicion score and the triggered factor
// tags for a trade. Contributions are order-insensitive; the function has no
// hidden state and performs no I/O.
func (s *Scorer) Score(in Input) (int, []string) {
	base := 0
	var factors []string

	if in.ZScore > zScoreThreshold {
		base += pointsSizeAnomaly
		factors = append(factors, fmt.Sprintf("Unusual trade size: %.1f std devs above market average", in.ZScore))
	}

	if in.Market.Liquidity > 0 && in.Trade.Size/in.Market.Liquidity > liquidityImpactRatio {
		base += pointsLiquidityImpact
		factors = append(factors, fmt.Sprintf("High liquidity impact: %.1f%% of market liquidity",
			in.Trade.Size/in.Market.Liquidity*100))
	}

	if in.Trade.Price < longOddsPriceThreshold && in.Trade.Size > longOddsSizeThreshold {
		base += pointsLongOdds
		factors = append(factors, "Speculative accumulation at long odds")
	}

	if in.IsWhale {
		base += pointsWhale
		factors = append(factors, "Verified whale activity")
	}

	if s.Denylisted(in.Trade.MakerAddress) {
		base += pointsKnownInsider
		factors = append(factors, "Known insider wallet")
	}

	return base, factors
}

// Fuse combines the heuristic base score with the external analyzer's score
// into a final 0-100 suspicion score: the rounded average, saturated.
func Fuse(baseScore, analyzerScore int) int {
	return clampScore(int(math.Round(float64(baseScore+analyzerScore) / 2)))
}

// FallbackScore is the deterministic substitute used when the analyzer is
// unavailable or returns malformed data: min(50, 15 x factor count).
func FallbackScore(factorCount int) int {
	score := 15 * factorCount
	if score > 50 {
		score = 50
	}
	return clampScore(score)
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// UnionFactors merges factor tag lists into a set, preserving first-seen
// order and collapsing duplicates.
func UnionFactors(lists ...[]string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, list := range lists {
		for _, f := range list {
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			out = append(out, f)
		}
	}
	return out
}
