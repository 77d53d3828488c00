package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/NibirNd/Poly/internal/alert"
	"github.com/NibirNd/Poly/internal/analyzer"
	"github.com/NibirNd/Poly/internal/config"
	"github.com/NibirNd/Poly/internal/demo"
	"github.com/NibirNd/Poly/internal/maintenance"
	"github.com/NibirNd/Poly/internal/metrics"
	"github.com/NibirNd/Poly/internal/model"
	"github.com/NibirNd/Poly/internal/polymarket/dataapi"
	"github.com/NibirNd/Poly/internal/polymarket/gammaapi"
	"github.com/NibirNd/Poly/internal/polymarket/stream"
	"github.com/NibirNd/Poly/internal/scan"
	"github.com/NibirNd/Poly/internal/storage"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

func main() {
	// Optional .env for local development; environment wins in production.
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(logrus.InfoLevel)

	log.Info("Starting polywatch service...")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	log.WithFields(logrus.Fields{
		"environment":    cfg.Environment,
		"mode":           cfg.Mode,
		"min_trade_usd":  cfg.MinTradeUSD,
		"poll_interval":  cfg.PollInterval,
		"concurrency":    cfg.EvalConcurrency,
		"alert_mode":     cfg.AlertMode,
		"alert_capacity": cfg.AlertCapacity,
	}).Info("Configuration loaded")

	// Database is optional; without a DSN the service runs in-memory only.
	var db *storage.DB
	if cfg.DatabaseDSN != "" {
		db, err = storage.New(cfg, log)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to database")
		}
		defer db.Close()

		if err := db.AutoMigrate(); err != nil {
			log.WithError(err).Fatal("Failed to run database migrations")
		}
		log.Info("Database migrations complete")

		if raw, err := db.GetState(context.Background(), "last_cycle_at"); err != nil {
			log.WithError(err).Warn("Failed to read scan checkpoint")
		} else if fields, ok := resumeFields(raw, time.Now()); ok {
			log.WithFields(fields).Info("Resuming after previous session")
		}
	} else {
		log.Info("No DATABASE_DSN configured, running without archive")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		marketSrc  scan.MarketSource
		tradeSrc   scan.TradeSource
		oracle     scan.WalletOracle
		suspicion  scan.SuspicionAnalyzer
		gammaForDB *gammaapi.Client
		dataOracle *dataapi.Oracle
	)

	switch cfg.Mode {
	case config.ModeDemo:
		src := demo.NewSource()
		marketSrc = src
		tradeSrc = src
		oracle = demo.NewOracle()
		suspicion = demo.NewAnalyzer()
		log.Info("Demo mode: deterministic in-process collaborators")

	default:
		gammaClient := gammaapi.NewClient(cfg)
		dataClient := dataapi.NewClient(cfg)
		gammaForDB = gammaClient

		marketSrc = gammaClient
		tradeSrc = dataClient

		var winRates dataapi.WinRateSource
		if db != nil {
			winRates = db
		}
		dataOracle = dataapi.NewOracle(dataClient, winRates, cfg.WhaleMinTradeUSD)
		oracle = dataOracle

		if cfg.AnalyzerURL != "" {
			suspicion = analyzer.New(cfg)
		} else {
			log.Warn("No ANALYZER_URL configured, scores will use the heuristic fallback")
		}

		if cfg.StreamEnabled {
			listener := stream.NewListener(cfg.StreamURL, nil, log)
			go listener.Run(ctx)
			tradeSrc = stream.NewMergedSource(dataClient, listener)
			log.WithField("url", cfg.StreamURL).Info("Live trade stream enabled")
		}
	}

	sender := createAlertSender(cfg, log)

	var archive scan.Archiver
	if db != nil {
		archive = db
	}

	scanner := scan.NewScanner(cfg, marketSrc, tradeSrc, oracle, suspicion, sender, archive, log)

	jobs := cron.New()
	jobCount := 0

	if dataOracle != nil {
		if _, err := jobs.AddFunc("@hourly", dataOracle.Flush); err != nil {
			log.WithError(err).Fatal("Failed to schedule wallet cache flush")
		}
		jobCount++
	}

	// Resolution and pruning need both an archive and a live API.
	if db != nil && gammaForDB != nil {
		resolver := maintenance.NewResolver(db, gammaForDB, log)
		pruner := maintenance.NewPruner(db, time.Duration(cfg.RetentionDays)*24*time.Hour, log)

		if _, err := jobs.AddFunc(cfg.WinRateCronSpec, func() {
			if err := resolver.Run(ctx); err != nil {
				log.WithError(err).Error("Win rate recalculation failed")
			}
		}); err != nil {
			log.WithError(err).Fatal("Invalid WIN_RATE_CRON")
		}
		if _, err := jobs.AddFunc(cfg.PruneCronSpec, func() {
			if err := pruner.Run(ctx); err != nil {
				log.WithError(err).Error("Archive prune failed")
			}
		}); err != nil {
			log.WithError(err).Fatal("Invalid PRUNE_CRON")
		}
		jobCount += 2
	}

	if jobCount > 0 {
		jobs.Start()
		log.WithField("jobs", jobCount).Info("Maintenance jobs scheduled")
	} else {
		jobs = nil
	}

	var records activityArchive
	if db != nil {
		records = db
	}
	go startHTTPServer(cfg.HealthPort, newOpsMux(scanner, records, log), log)
	go scanner.Start(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithField("signal", sig).Info("Received shutdown signal")

	scanner.Stop()
	if jobs != nil {
		jobs.Stop()
	}
	cancel()
	log.Info("Graceful shutdown complete")
}

func createAlertSender(cfg *config.Config, log *logrus.Logger) alert.Sender {
	var senders []alert.Sender

	for _, mode := range strings.Split(cfg.AlertMode, ",") {
		switch strings.TrimSpace(mode) {
		case "log":
			senders = append(senders, alert.NewLogSender(log))
		case "discord":
			if cfg.DiscordWebURL != "" {
				senders = append(senders, alert.NewDiscordSender(cfg.DiscordWebURL))
			} else {
				log.Warn("Discord mode specified but DISCORD_WEBHOOK_URL not set")
			}
		case "smtp":
			if cfg.SMTPHost != "" {
				senders = append(senders, alert.NewSMTPSender(
					cfg.SMTPHost,
					cfg.SMTPPort,
					cfg.SMTPUser,
					cfg.SMTPPassword,
					cfg.SMTPFrom,
					cfg.SMTPTo,
				))
			} else {
				log.Warn("SMTP mode specified but SMTP_HOST not set")
			}
		default:
			log.WithField("mode", mode).Warn("Unknown alert mode, skipping")
		}
	}

	if len(senders) == 0 {
		log.Warn("No valid alert senders configured, using log")
		return alert.NewLogSender(log)
	}
	if len(senders) == 1 {
		return senders[0]
	}
	return alert.NewMultiSender(senders...)
}

// resumeFields builds the log fields for a persisted scan checkpoint. The
// second return is false when no usable checkpoint exists.
func resumeFields(raw string, now time.Time) (logrus.Fields, bool) {
	if raw == "" {
		return nil, false
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, false
	}
	return logrus.Fields{
		"last_cycle_at":    raw,
		"since_last_cycle": now.Sub(at).Round(time.Second).String(),
	}, true
}

// scenarioRequest is the body of POST /scenario: ad hoc trades evaluated
// against a described market without touching the live pipeline.
type scenarioRequest struct {
	Market model.Market  `json:"market"`
	Trades []model.Trade `json:"trades"`
}

// activityArchive reads back persisted activities for the ops endpoints.
// Nil when the service runs without a database.
type activityArchive interface {
	RecentActivities(ctx context.Context, limit int) ([]storage.ActivityRecord, error)
}

func newOpsMux(scanner *scan.Scanner, records activityArchive, log *logrus.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		metrics.RecordHealthCheck(true)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"healthy"}`)
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		metrics.RecordHealthCheck(true)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ready"}`)
	})

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(scanner.Status())
	})

	mux.HandleFunc("/alerts", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			if r.URL.Query().Has("archived") {
				if records == nil {
					http.Error(w, "archive not configured", http.StatusNotFound)
					return
				}
				limit := 50
				if v := r.URL.Query().Get("limit"); v != "" {
					if n, err := strconv.Atoi(v); err == nil && n > 0 {
						limit = n
					}
				}
				archived, err := records.RecentActivities(r.Context(), limit)
				if err != nil {
					log.WithError(err).Error("Failed to read archived activities")
					http.Error(w, "archive query failed", http.StatusInternalServerError)
					return
				}
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(archived)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(scanner.Alerts())
		case http.MethodDelete:
			scanner.ClearAlerts()
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/scenario", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req scenarioRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("invalid scenario: %v", err), http.StatusBadRequest)
			return
		}
		activities := scanner.EvaluateScenario(r.Context(), req.Market, req.Trades)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(activities)
	})

	return mux
}

func startHTTPServer(port int, handler http.Handler, log *logrus.Logger) {
	addr := fmt.Sprintf(":%d", port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	log.WithField("port", port).Info("Starting HTTP server (health + metrics + ops)")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Error("HTTP server failed")
	}
}
