package gammaapi

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/NibirNd/Poly/internal/model"
)

// Market is the Gamma API wire representation. Outcomes and OutcomePrices
// arrive as JSON-encoded string arrays inside strings.
type Market struct {
	ID            string  `json:"id"`
	ConditionID   string  `json:"conditionId"`
	Slug          string  `json:"slug"`
	Question      string  `json:"question"`
	EndDate       string  `json:"endDate"`
	Category      string  `json:"category"`
	VolumeNum     float64 `json:"volumeNum"`
	LiquidityNum  float64 `json:"liquidityNum"`
	Active        bool    `json:"active"`
	Closed        bool    `json:"closed"`
	Outcomes      string  `json:"outcomes"`      // e.g. `["Yes","No"]`
	OutcomePrices string  `json:"outcomePrices"` // e.g. `["0.02","0.98"]`
}

// ToModel decodes the double-encoded outcome fields into the domain market.
func (m *Market) ToModel() (model.Market, error) {
	outcomes, prices, err := parseOutcomes(m.Outcomes, m.OutcomePrices)
	if err != nil {
		return model.Market{}, fmt.Errorf("market %s: %w", m.ID, err)
	}
	return model.Market{
		ID:            m.ID,
		Question:      m.Question,
		Volume:        m.VolumeNum,
		Liquidity:     m.LiquidityNum,
		Outcomes:      outcomes,
		OutcomePrices: prices,
	}, nil
}

func parseOutcomes(outcomesJSON, pricesJSON string) ([]string, []float64, error) {
	if outcomesJSON == "" {
		return nil, nil, nil
	}

	var outcomes []string
	if err := json.Unmarshal([]byte(outcomesJSON), &outcomes); err != nil {
		return nil, nil, fmt.Errorf("parse outcomes: %w", err)
	}

	var priceStrings []string
	if pricesJSON != "" {
		if err := json.Unmarshal([]byte(pricesJSON), &priceStrings); err != nil {
			return nil, nil, fmt.Errorf("parse outcome prices: %w", err)
		}
	}

	prices := make([]float64, len(priceStrings))
	for i, s := range priceStrings {
		p, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("parse outcome price %q: %w", s, err)
		}
		prices[i] = p
	}

	if len(prices) > 0 && len(prices) != len(outcomes) {
		return nil, nil, fmt.Errorf("outcomes/prices length mismatch: %d vs %d", len(outcomes), len(prices))
	}

	return outcomes, prices, nil
}
