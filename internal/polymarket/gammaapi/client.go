// Package gammaapi is a minimal client for the Polymarket Gamma API, which
// serves market metadata.
package gammaapi

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

// Client handles communication with the Polymarket Gamma API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a new Gamma API client.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:    cfg.GammaAPIBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(cfg.GammaAPIMarketsRPS), 1),
	}
}

// ActiveMarkets lists open markets ordered by volume, decoded into the
// domain model. Markets with malformed outcome data are skipped, not fatal.
func (c *Client) ActiveMarkets(ctx context.Context) ([]model.Market, error) {
	raw, err := c.listMarkets(ctx, 100)
	if err != nil {
		return nil, err
	}

	markets := make([]model.Market, 0, len(raw))
	for i := range raw {
		m, err := raw[i].ToModel()
		if err != nil {
			continue
		}
		markets = append(markets, m)
	}
	return markets, nil
}

func (c *Client) listMarkets(ctx context.Context, limit int) ([]Market, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	u, err := url.Parse(c.baseURL + "/markets")
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}

	q := u.Query()
	q.Set("active", "true")
	q.Set("closed", "false")
	q.Set("order", "volumeNum")
	q.Set("ascending", "false")
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	var markets []Market
	err = c.getJSON(ctx, "/markets", u.String(), &markets)
	if err != nil {
		return nil, err
	}
	return markets, nil
}

// MarketByID fetches one market by its Gamma id.
func (c *Client) MarketByID(ctx context.Context, id string) (*Market, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	var market Market
	if err := c.getJSON(ctx, "/markets/{id}", c.baseURL+"/markets/"+url.PathEscape(id), &market); err != nil {
		return nil, err
	}
	return &market, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, fullURL string, out interface{}) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordAPIRequest("gamma", endpoint, time.Since(start), err)
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
