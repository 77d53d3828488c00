// Package analyzer calls the external suspicion analyzer service over HTTP.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/NibirNd/Poly/internal/config"
	"github.com/NibirNd/Poly/internal/scan"
)

// Client posts qualified trades to the analyzer service and decodes its
// verdict. Failures are surfaced as errors; the evaluator decides what to do
// with them.
type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// New creates an analyzer client from configuration.
func New(cfg *config.Config) *Client {
	return &Client{
		url:        cfg.AnalyzerURL,
		apiKey:     cfg.AnalyzerAPIKey,
		httpClient: &http.Client{Timeout: cfg.AnalyzerTimeout},
	}
}

// Analyze submits one candidate for scoring.
func (c *Client) Analyze(ctx context.Context, req scan.AnalyzerRequest) (scan.Analysis, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return scan.Analysis{}, fmt.Errorf("marshal analyzer request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.url, bytes.NewReader(body))
	if err != nil {
		return scan.Analysis{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return scan.Analysis{}, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return scan.Analysis{}, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(b))
	}

	var analysis scan.Analysis
	if err := json.NewDecoder(resp.Body).Decode(&analysis); err != nil {
		return scan.Analysis{}, fmt.Errorf("decode analysis: %w", err)
	}

	if analysis.Score < 0 || analysis.Score > 100 {
		return scan.Analysis{}, fmt.Errorf("analyzer score %d out of range", analysis.Score)
	}

	return analysis, nil
}

var _ scan.SuspicionAnalyzer = (*Client)(nil)
