package dataapi

import (
	"strings"

	"github.com/NibirNd/Poly/internal/model"
)

// Trade is the Data API wire representation. Timestamps are Unix seconds.
type Trade struct {
	ProxyWallet     string  `json:"proxyWallet"`
	Side            string  `json:"side"` // BUY, SELL
	ConditionID     string  `json:"conditionId"`
	Size            float64 `json:"size"`
	Price           float64 `json:"price"`
	Timestamp       int64   `json:"timestamp"`
	Outcome         string  `json:"outcome"`
	OutcomeIndex    int     `json:"outcomeIndex"`
	Title           string  `json:"title"`
	Slug            string  `json:"slug"`
	TransactionHash string  `json:"transactionHash"`
	USDCSize        float64 `json:"usdcSize"` // Preferred notional
}

// ToModel converts a wire trade to the domain trade for the given market.
// Size becomes the USD notional and the composite id is derived from the
// transaction hash, outcome index and millisecond timestamp.
func (t *Trade) ToModel(marketID string) model.Trade {
	notional := t.USDCSize
	if notional <= 0 {
		notional = t.Size * t.Price
	}

	side := model.SideBuy
	if strings.EqualFold(t.Side, "SELL") {
		side = model.SideSell
	}

	ts := t.Timestamp * 1000
	return model.Trade{
		ID:              model.TradeID(t.TransactionHash, t.OutcomeIndex, ts),
		MarketID:        marketID,
		OutcomeIndex:    t.OutcomeIndex,
		OutcomeLabel:    t.Outcome,
		Side:            side,
		Price:           t.Price,
		Size:            notional,
		Timestamp:       ts,
		MakerAddress:    t.ProxyWallet,
		TransactionHash: t.TransactionHash,
	}
}

// ActivityEvent is one entry of a wallet's activity feed.
type ActivityEvent struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"` // TRADE, SPLIT, MERGE, REDEEM
	User      string  `json:"user"`
	Timestamp int64   `json:"timestamp"` // Unix seconds
	USDCSize  float64 `json:"usdcSize"`
}

// Position is one market position held by a wallet.
type Position struct {
	ConditionID  string  `json:"conditionId"`
	Size         float64 `json:"size"`
	CurrentValue float64 `json:"currentValue"`
}

// Holder is one wallet's aggregate holding in a market.
type Holder struct {
	Wallet string  `json:"proxyWallet"`
	Amount float64 `json:"amount"` // USD value held
}
