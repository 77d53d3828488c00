// Package model holds the shared data types flowing through the scan pipeline.
package model

import "fmt"

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Market is a tracked prediction market. It is treated as immutable for the
// duration of a scan cycle; the market source refreshes it out of band.
type Market struct {
	ID            string    `json:"id"`
	Question      string    `json:"question"`
	Volume        float64   `json:"volume"`
	Liquidity     float64   `json:"liquidity"`
	Outcomes      []string  `json:"outcomes"`
	OutcomePrices []float64 `json:"outcomePrices"`
}

// Trade is a single market trade event. Immutable once received.
type Trade struct {
	// ID is the composite identifier: transaction hash + outcome index +
	// timestamp. Sources re-deliver the same event across polls, so the
	// composite keeps the id stable per underlying fill.
	ID              string  `json:"id"`
	MarketID        string  `json:"marketId"`
	OutcomeIndex    int     `json:"outcomeIndex"`
	OutcomeLabel    string  `json:"outcomeLabel"`
	Side            Side    `json:"side"`
	Price           float64 `json:"price"`
	Size            float64 `json:"size"` // USD notional
	Timestamp       int64   `json:"timestamp"` // epoch millis
	MakerAddress    string  `json:"makerAddress"`
	TransactionHash string  `json:"transactionHash"`
}

// TradeID builds the composite trade identifier.
func TradeID(txHash string, outcomeIndex int, timestampMs int64) string {
	return fmt.Sprintf("%s-%d-%d", txHash, outcomeIndex, timestampMs)
}

// WalletStats is the optional wallet context attached to an alert.
type WalletStats struct {
	TotalTrades    int     `json:"totalTrades"`
	WinRate        float64 `json:"winRate"`
	AccountAgeDays int     `json:"accountAgeDays"`
	IsWhale        bool    `json:"isWhale"`
}
