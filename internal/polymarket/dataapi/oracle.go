package dataapi

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/NibirNd/Poly/internal/model"
)

// WinRateSource supplies historical win rates, typically backed by the
// archive database. Optional.
type WinRateSource interface {
	WalletWinRate(ctx context.Context, address string) (winRate float64, resolvedTrades int64, err error)
}

// Oracle derives wallet behavior statistics from the Data API. Results are
// cached because the evaluator may ask about the same wallet many times per
// cycle and lookups cost two rate-limited API calls.
type Oracle struct {
	client      *Client
	winRates    WinRateSource
	whaleMinUSD float64
	ttl         time.Duration

	mu     sync.Mutex
	cache  map[string]cachedStats
	whales map[string]cachedWhales
}

type cachedStats struct {
	stats   *model.WalletStats
	fetched time.Time
}

type cachedWhales struct {
	addrs   []string
	fetched time.Time
}

// NewOracle creates an Oracle. winRates may be nil.
func NewOracle(client *Client, winRates WinRateSource, whaleMinUSD float64) *Oracle {
	return &Oracle{
		client:      client,
		winRates:    winRates,
		whaleMinUSD: whaleMinUSD,
		ttl:         15 * time.Minute,
		cache:       make(map[string]cachedStats),
		whales:      make(map[string]cachedWhales),
	}
}

// WalletStats looks up behavior statistics for a maker address.
func (o *Oracle) WalletStats(ctx context.Context, address string) (*model.WalletStats, error) {
	key := strings.ToLower(address)

	o.mu.Lock()
	if c, ok := o.cache[key]; ok && time.Since(c.fetched) < o.ttl {
		o.mu.Unlock()
		return c.stats, nil
	}
	o.mu.Unlock()

	stats, err := o.fetch(ctx, address)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.cache[key] = cachedStats{stats: stats, fetched: time.Now()}
	o.mu.Unlock()

	return stats, nil
}

// WhaleAddresses lists the holders of a market whose position value clears
// the whale threshold, cached per market.
func (o *Oracle) WhaleAddresses(ctx context.Context, marketID string) ([]string, error) {
	o.mu.Lock()
	if c, ok := o.whales[marketID]; ok && time.Since(c.fetched) < o.ttl {
		o.mu.Unlock()
		return c.addrs, nil
	}
	o.mu.Unlock()

	holders, err := o.client.MarketHolders(ctx, marketID, 100)
	if err != nil {
		return nil, err
	}

	var addrs []string
	for _, h := range holders {
		if h.Amount >= o.whaleMinUSD {
			addrs = append(addrs, h.Wallet)
		}
	}

	o.mu.Lock()
	o.whales[marketID] = cachedWhales{addrs: addrs, fetched: time.Now()}
	o.mu.Unlock()

	return addrs, nil
}

// Flush empties both caches so long-running processes pick up changed wallet
// behavior sooner than the TTL alone would allow.
func (o *Oracle) Flush() {
	o.mu.Lock()
	o.cache = make(map[string]cachedStats)
	o.whales = make(map[string]cachedWhales)
	o.mu.Unlock()
}

func (o *Oracle) fetch(ctx context.Context, address string) (*model.WalletStats, error) {
	activity, err := o.client.WalletActivity(ctx, address, 100)
	if err != nil {
		return nil, err
	}

	stats := &model.WalletStats{}
	var firstSeen int64
	for _, ev := range activity {
		if ev.Type == "TRADE" {
			stats.TotalTrades++
		}
		if firstSeen == 0 || ev.Timestamp < firstSeen {
			firstSeen = ev.Timestamp
		}
	}
	if firstSeen > 0 {
		stats.AccountAgeDays = int(time.Since(time.Unix(firstSeen, 0)).Hours() / 24)
	}

	positions, err := o.client.WalletPositions(ctx, address)
	if err != nil {
		// Position value only feeds the whale flag; the rest of the stats
		// are still usable.
		positions = nil
	}
	var totalValue float64
	for _, p := range positions {
		totalValue += p.CurrentValue
	}
	stats.IsWhale = totalValue >= o.whaleMinUSD

	if o.winRates != nil {
		if winRate, resolved, err := o.winRates.WalletWinRate(ctx, address); err == nil && resolved > 0 {
			stats.WinRate = winRate
		}
	}

	return stats, nil
}
