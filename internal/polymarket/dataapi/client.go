// Package dataapi is a client for the Polymarket Data API, which serves
// trade history and wallet activity.
package dataapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/NibirNd/Poly/internal/config"
	"github.com/NibirNd/Poly/internal/metrics"
	"github.com/NibirNd/Poly/internal/model"
	"golang.org/x/time/rate"
)

// Client handles communication with the Polymarket Data API.
type Client struct {
	baseURL         string
	httpClient      *http.Client
	tradesLimiter   *rate.Limiter
	activityLimiter *rate.Limiter
}

// NewClient creates a new Data API client.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:         cfg.DataAPIBaseURL,
		httpClient:      &http.Client{Timeout: 30 * time.Second},
		tradesLimiter:   rate.NewLimiter(rate.Limit(cfg.DataAPITradesRPS), 1),
		activityLimiter: rate.NewLimiter(rate.Limit(cfg.DataAPIActivityRPS), 1),
	}
}

// RecentTrades fetches the latest trades for one market, newest first,
// converted to the domain model.
func (c *Client) RecentTrades(ctx context.Context, market model.Market) ([]model.Trade, error) {
	if err := c.tradesLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	u, err := url.Parse(c.baseURL + "/trades")
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}

	q := u.Query()
	q.Set("market", market.ID)
	q.Set("limit", "500")
	q.Set("takerOnly", "true")
	u.RawQuery = q.Encode()

	var raw []Trade
	if err := c.getJSON(ctx, "/trades", u.String(), &raw); err != nil {
		return nil, err
	}

	trades := make([]model.Trade, 0, len(raw))
	for i := range raw {
		trades = append(trades, raw[i].ToModel(market.ID))
	}
	return trades, nil
}

// WalletActivity fetches a wallet's activity feed, oldest first.
func (c *Client) WalletActivity(ctx context.Context, wallet string, limit int) ([]ActivityEvent, error) {
	if err := c.activityLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	u, err := url.Parse(c.baseURL + "/activity")
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}

	q := u.Query()
	q.Set("user", wallet)
	q.Set("sortBy", "TIMESTAMP")
	q.Set("sortDirection", "ASC")
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	var activities []ActivityEvent
	if err := c.getJSON(ctx, "/activity", u.String(), &activities); err != nil {
		return nil, err
	}
	return activities, nil
}

// WalletPositions fetches a wallet's current market positions.
func (c *Client) WalletPositions(ctx context.Context, wallet string) ([]Position, error) {
	if err := c.activityLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	u, err := url.Parse(c.baseURL + "/positions")
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}

	q := u.Query()
	q.Set("user", wallet)
	u.RawQuery = q.Encode()

	var positions []Position
	if err := c.getJSON(ctx, "/positions", u.String(), &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

// MarketHolders fetches the largest holders of one market.
func (c *Client) MarketHolders(ctx context.Context, marketID string, limit int) ([]Holder, error) {
	if err := c.activityLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	u, err := url.Parse(c.baseURL + "/holders")
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}

	q := u.Query()
	q.Set("market", marketID)
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	var holders []Holder
	if err := c.getJSON(ctx, "/holders", u.String(), &holders); err != nil {
		return nil, err
	}
	return holders, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, fullURL string, out interface{}) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordAPIRequest("data", endpoint, time.Since(start), err)
	}()

	req, err := http.NewRequestWithContext(ctx, "GET", fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
