package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DiscordSender sends alerts to Discord via webhook.
type DiscordSender struct {
	webhookURL string
	httpClient *http.Client
}

// NewDiscordSender creates a new Discord sender.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts the activity as a webhook embed.
func (s *DiscordSender) Send(ctx context.Context, activity *SuspiciousActivity) error {
	webhookPayload := map[string]interface{}{
		"embeds": []interface{}{s.buildEmbed(activity)},
	}

	body, err := json.Marshal(webhookPayload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return nil
}

func (s *DiscordSender) buildEmbed(activity *SuspiciousActivity) map[string]interface{} {
	var title string
	var color int
	switch activity.Level {
	case LevelCritical:
		title = "🚨 Suspicious trade (CRITICAL)"
		color = 0xFF0000
	case LevelHigh:
		title = "⚠️ Suspicious trade (HIGH)"
		color = 0xFFA500
	case LevelMedium:
		title = "🔍 Suspicious trade (MEDIUM)"
		color = 0xFFFF00
	default:
		title = "ℹ️ Trade flagged"
		color = 0x0099FF
	}

	description := fmt.Sprintf("**$%.2f** %s **%s** @ **%.2f**\nSuspicion score **%d/100**",
		activity.Trade.Size,
		strings.ToLower(string(activity.Trade.Side)),
		activity.Trade.OutcomeLabel,
		activity.Trade.Price,
		activity.Score,
	)

	fields := []map[string]interface{}{
		{
			"name":   "Wallet",
			"value":  fmt.Sprintf("`%s`", shortAddr(activity.Trade.MakerAddress)),
			"inline": true,
		},
		{
			"name":   "Market",
			"value":  truncate(activity.Market.Question, 100),
			"inline": true,
		},
		{
			"name":   "Tx",
			"value":  fmt.Sprintf("`%s`", shortHash(activity.Trade.TransactionHash)),
			"inline": true,
		},
	}

	if activity.Wallet != nil {
		fields = append(fields, map[string]interface{}{
			"name": "Wallet Stats",
			"value": fmt.Sprintf("%d trades, %.0f%% win rate, %d days old",
				activity.Wallet.TotalTrades, activity.Wallet.WinRate*100, activity.Wallet.AccountAgeDays),
			"inline": false,
		})
	}

	if len(activity.Factors) > 0 {
		fields = append(fields, map[string]interface{}{
			"name":   "📊 Risk Factors",
			"value":  truncate(strings.Join(activity.Factors, "\n"), 1000),
			"inline": false,
		})
	}

	if activity.Reasoning != "" {
		fields = append(fields, map[string]interface{}{
			"name":   "Analysis",
			"value":  truncate(activity.Reasoning, 1000),
			"inline": false,
		})
	}

	return map[string]interface{}{
		"title":       title,
		"description": description,
		"color":       color,
		"fields":      fields,
		"footer": map[string]interface{}{
			"text": fmt.Sprintf("Poly • %s", activity.DetectedAt.UTC().Format("2006-01-02 15:04:05 UTC")),
		},
		"timestamp": activity.DetectedAt.Format(time.RFC3339),
	}
}

func shortAddr(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}

func shortHash(hash string) string {
	if len(hash) <= 14 {
		return hash
	}
	return hash[:10] + "…"
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
