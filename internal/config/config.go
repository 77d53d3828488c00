package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/NibirNd/Poly/internal/secrets"
)

// Mode selects where the scanner's collaborators come from.
type Mode string

const (
	// ModeLive polls the real Gamma/Data APIs.
	ModeLive Mode = "live"
	// ModeDemo wires deterministic in-process collaborators, no network.
	ModeDemo Mode = "demo"
)

// Config holds all application configuration.
type Config struct {
	// Environment
	Environment string
	Mode        Mode

	// Database (optional; empty DSN disables archival)
	DatabaseDSN         string
	DatabaseMaxConns    int
	DatabaseMaxIdleTime time.Duration

	// Data API
	DataAPIBaseURL string

	// Gamma API
	GammaAPIBaseURL string

	// Analyzer service
	AnalyzerURL     string
	AnalyzerAPIKey  string
	AnalyzerTimeout time.Duration

	// Detection thresholds
	MinTradeUSD        float64       // Minimum trade size worth evaluating
	MinBaseScore       int           // Heuristic score needed to qualify for deep evaluation
	ReferenceMeanUSD   float64       // Cold-start z-score reference mean
	ReferenceSpreadUSD float64       // Cold-start z-score reference spread
	RecencyWindow      time.Duration // Only trades this recent are evaluated
	InsiderDenylist    []string      // Maker addresses flagged as known insiders
	WhaleMinTradeUSD   float64       // Position size that qualifies a wallet as a whale

	// Evaluation
	EvalConcurrency int
	AlertCapacity   int

	// Rate limits (requests per second)
	DataAPITradesRPS   float64
	DataAPIActivityRPS float64
	GammaAPIMarketsRPS float64

	// Polling
	PollInterval time.Duration

	// Streaming (optional live trade feed)
	StreamEnabled bool
	StreamURL     string

	// Alerts
	AlertMode      string // log, discord, smtp (comma-separated)
	NotifyMinLevel string // minimum level that leaves the process
	DiscordWebURL  string
	SMTPHost       string
	SMTPPort       int
	SMTPUser       string
	SMTPPassword   string
	SMTPFrom       string
	SMTPTo         []string

	// Maintenance
	WinRateCronSpec string
	PruneCronSpec   string
	RetentionDays   int

	// Health and metrics HTTP server
	HealthPort int
}

// defaultDenylist seeds INSIDER_DENYLIST when the variable is unset.
const defaultDenylist = "0x8dd33CcbB7Fa4d0272dDa4F859320ee6d0d7B2a4"

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:         getEnv("ENVIRONMENT", "production"),
		Mode:                Mode(getEnv("MODE", "live")),
		DatabaseDSN:         getEnv("DATABASE_DSN", ""),
		DatabaseMaxConns:    getEnvInt("DATABASE_MAX_CONNS", 25),
		DatabaseMaxIdleTime: time.Duration(getEnvInt("DATABASE_MAX_IDLE_TIME_MINS", 5)) * time.Minute,
		DataAPIBaseURL:      getEnv("DATA_API_BASE_URL", "https://data-api.polymarket.com"),
		GammaAPIBaseURL:     getEnv("GAMMA_API_BASE_URL", "https://gamma-api.polymarket.com"),
		AnalyzerURL:         getEnv("ANALYZER_URL", ""),
		AnalyzerAPIKey:      secrets.GetOptionalSecret("ANALYZER_API_KEY", ""),
		AnalyzerTimeout:     time.Duration(getEnvInt("ANALYZER_TIMEOUT_SEC", 20)) * time.Second,
		MinTradeUSD:         getEnvFloat("MIN_TRADE_USD", 100.0),
		MinBaseScore:        getEnvInt("MIN_BASE_SCORE", 30),
		ReferenceMeanUSD:    getEnvFloat("REFERENCE_MEAN_USD", 500.0),
		ReferenceSpreadUSD:  getEnvFloat("REFERENCE_SPREAD_USD", 1500.0),
		RecencyWindow:       time.Duration(getEnvInt("RECENCY_WINDOW_MINS", 60)) * time.Minute,
		InsiderDenylist:     parseCSV(getEnv("INSIDER_DENYLIST", defaultDenylist)),
		WhaleMinTradeUSD:    getEnvFloat("WHALE_MIN_TRADE_USD", 50000.0),
		EvalConcurrency:     getEnvInt("EVAL_CONCURRENCY", 5),
		AlertCapacity:       getEnvInt("ALERT_CAPACITY", 50),
		DataAPITradesRPS:    getEnvFloat("DATA_API_TRADES_RPS", 2.0),
		DataAPIActivityRPS:  getEnvFloat("DATA_API_ACTIVITY_RPS", 1.0),
		GammaAPIMarketsRPS:  getEnvFloat("GAMMA_API_MARKETS_RPS", 5.0),
		PollInterval:        time.Duration(getEnvInt("POLL_INTERVAL_SEC", 30)) * time.Second,
		StreamEnabled:       getEnvBool("STREAM_ENABLED", false),
		StreamURL:           getEnv("STREAM_URL", "wss://ws-subscriptions-clob.polymarket.com/ws/market"),
		AlertMode:           getEnv("ALERT_MODE", "log"),
		NotifyMinLevel:      getEnv("NOTIFY_MIN_LEVEL", "HIGH"),
		DiscordWebURL:       secrets.GetOptionalSecret("DISCORD_WEBHOOK_URL", ""),
		SMTPHost:            getEnv("SMTP_HOST", ""),
		SMTPPort:            getEnvInt("SMTP_PORT", 587),
		SMTPUser:            getEnv("SMTP_USER", ""),
		SMTPPassword:        secrets.GetOptionalSecret("SMTP_PASSWORD", ""),
		SMTPFrom:            getEnv("SMTP_FROM", "poly@example.com"),
		SMTPTo:              parseCSV(getEnv("SMTP_TO", "")),
		WinRateCronSpec:     getEnv("WIN_RATE_CRON", "0 */6 * * *"),
		PruneCronSpec:       getEnv("PRUNE_CRON", "30 3 * * *"),
		RetentionDays:       getEnvInt("RETENTION_DAYS", 30),
		HealthPort:          getEnvInt("HEALTH_PORT", 8080),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks configuration for errors.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeLive, ModeDemo:
	default:
		return fmt.Errorf("invalid MODE: %s (must be live or demo)", c.Mode)
	}

	if c.EvalConcurrency < 1 {
		return fmt.Errorf("EVAL_CONCURRENCY must be at least 1, got %d", c.EvalConcurrency)
	}
	if c.AlertCapacity < 1 {
		return fmt.Errorf("ALERT_CAPACITY must be at least 1, got %d", c.AlertCapacity)
	}
	if c.ReferenceSpreadUSD <= 0 {
		return fmt.Errorf("REFERENCE_SPREAD_USD must be positive, got %v", c.ReferenceSpreadUSD)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL_SEC must be positive")
	}

	switch c.NotifyMinLevel {
	case "LOW", "MEDIUM", "HIGH", "CRITICAL":
	default:
		return fmt.Errorf("invalid NOTIFY_MIN_LEVEL: %s (valid values: LOW, MEDIUM, HIGH, CRITICAL)", c.NotifyMinLevel)
	}

	// Alert mode is a comma-separated list.
	hasDiscord := false
	hasSMTP := false
	for _, mode := range strings.Split(c.AlertMode, ",") {
		switch strings.TrimSpace(mode) {
		case "log":
		case "discord":
			hasDiscord = true
		case "smtp":
			hasSMTP = true
		default:
			return fmt.Errorf("invalid ALERT_MODE value: %s (valid values: log, discord, smtp)", mode)
		}
	}

	if hasDiscord && c.DiscordWebURL == "" {
		return fmt.Errorf("DISCORD_WEBHOOK_URL is required when discord is in ALERT_MODE")
	}
	if hasSMTP {
		if c.SMTPHost == "" {
			return fmt.Errorf("SMTP_HOST is required when smtp is in ALERT_MODE")
		}
		if len(c.SMTPTo) == 0 {
			return fmt.Errorf("SMTP_TO is required when smtp is in ALERT_MODE")
		}
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func parseCSV(s string) []string {
	var result []string
	for _, item := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
