// Package storage archives finished evaluations and wallet performance in
// MySQL. The whole layer is optional; the scanner runs fine without it.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/NibirNd/Poly/internal/alert"
	"github.com/NibirNd/Poly/internal/config"
	"github.com/NibirNd/Poly/internal/metrics"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// DB wraps the GORM database connection.
type DB struct {
	conn *gorm.DB
	log  *logrus.Logger
}

// New creates a new database connection with GORM.
func New(cfg *config.Config, log *logrus.Logger) (*DB, error) {
	gormLogger := logger.New(
		&gormLogAdapter{log: log},
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	conn, err := gorm.Open(mysql.Open(cfg.DatabaseDSN), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.DatabaseMaxConns)
	sqlDB.SetMaxIdleConns(cfg.DatabaseMaxConns / 2)
	sqlDB.SetConnMaxIdleTime(cfg.DatabaseMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info("Database connection established")

	return &DB{conn: conn, log: log}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	sqlDB, err := db.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AutoMigrate runs GORM auto-migration.
func (db *DB) AutoMigrate() error {
	return db.conn.AutoMigrate(
		&AppState{},
		&ActivityRecord{},
		&MarketOutcome{},
		&WalletPerformance{},
	)
}

// GetState retrieves a state value by key.
func (db *DB) GetState(ctx context.Context, key string) (string, error) {
	var state AppState
	result := db.conn.WithContext(ctx).Where("state_key = ?", key).First(&state)
	if result.Error == gorm.ErrRecordNotFound {
		return "", nil
	}
	if result.Error != nil {
		return "", result.Error
	}
	return state.StateValue, nil
}

// SetState sets a state value.
func (db *DB) SetState(ctx context.Context, key, value string) error {
	state := AppState{
		StateKey:   key,
		StateValue: value,
		UpdatedTS:  time.Now().Unix(),
	}
	return db.conn.WithContext(ctx).Save(&state).Error
}

// SaveActivities archives a batch of suspicious activities. Re-inserts of an
// already archived trade id are silently ignored, matching the ledger's
// first-write-wins semantics.
func (db *DB) SaveActivities(ctx context.Context, activities []alert.SuspiciousActivity) error {
	if len(activities) == 0 {
		return nil
	}

	start := time.Now()
	records := make([]ActivityRecord, 0, len(activities))
	for _, a := range activities {
		factors, err := json.Marshal(a.Factors)
		if err != nil {
			factors = []byte("[]")
		}
		records = append(records, ActivityRecord{
			TradeID:          a.ID,
			MarketID:         a.Trade.MarketID,
			MarketQuestion:   a.Market.Question,
			MakerAddress:     a.Trade.MakerAddress,
			Side:             string(a.Trade.Side),
			Outcome:          a.Trade.OutcomeLabel,
			Price:            a.Trade.Price,
			SizeUSD:          a.Trade.Size,
			Score:            a.Score,
			Level:            string(a.Level),
			Reasoning:        a.Reasoning,
			FactorsJSON:      string(factors),
			TransactionHash:  a.Trade.TransactionHash,
			TradeTimestampMs: a.Trade.Timestamp,
		})
	}

	err := db.conn.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&records).Error
	metrics.RecordDatabaseQuery("insert_activities", time.Since(start), err)
	return err
}

// RecentActivities returns the most recently archived activities.
func (db *DB) RecentActivities(ctx context.Context, limit int) ([]ActivityRecord, error) {
	var records []ActivityRecord
	result := db.conn.WithContext(ctx).
		Order("created_ts DESC").
		Limit(limit).
		Find(&records)
	return records, result.Error
}

// ActivitiesByMarket returns all archived activities for one market.
func (db *DB) ActivitiesByMarket(ctx context.Context, marketID string) ([]ActivityRecord, error) {
	var records []ActivityRecord
	result := db.conn.WithContext(ctx).Where("market_id = ?", marketID).Find(&records)
	return records, result.Error
}

// DistinctMarketIDs returns every market id that has archived activity.
func (db *DB) DistinctMarketIDs(ctx context.Context) ([]string, error) {
	var ids []string
	result := db.conn.WithContext(ctx).Model(&ActivityRecord{}).
		Distinct("market_id").
		Pluck("market_id", &ids)
	return ids, result.Error
}

// GetMarketOutcome retrieves a market resolution, nil when unresolved.
func (db *DB) GetMarketOutcome(ctx context.Context, marketID string) (*MarketOutcome, error) {
	var outcome MarketOutcome
	result := db.conn.WithContext(ctx).Where("market_id = ?", marketID).First(&outcome)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &outcome, nil
}

// UpsertMarketOutcome inserts or updates a market resolution.
func (db *DB) UpsertMarketOutcome(ctx context.Context, outcome *MarketOutcome) error {
	return db.conn.WithContext(ctx).Save(outcome).Error
}

// GetWalletPerformance retrieves win rate bookkeeping for a wallet, nil when
// the wallet has no resolved trades.
func (db *DB) GetWalletPerformance(ctx context.Context, address string) (*WalletPerformance, error) {
	var perf WalletPerformance
	result := db.conn.WithContext(ctx).Where("wallet_address = ?", address).First(&perf)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &perf, nil
}

// UpsertWalletPerformance inserts or updates wallet performance.
func (db *DB) UpsertWalletPerformance(ctx context.Context, perf *WalletPerformance) error {
	return db.conn.WithContext(ctx).Save(perf).Error
}

// WalletWinRate reports a wallet's win rate and resolved trade count for the
// oracle.
func (db *DB) WalletWinRate(ctx context.Context, address string) (float64, int64, error) {
	perf, err := db.GetWalletPerformance(ctx, address)
	if err != nil || perf == nil {
		return 0, 0, err
	}
	return perf.WinRate, perf.TotalResolvedTrades, nil
}

// PruneActivitiesBefore deletes archived activities older than the cutoff
// and returns how many rows went away.
func (db *DB) PruneActivitiesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	start := time.Now()
	result := db.conn.WithContext(ctx).
		Where("created_ts < ?", cutoff.Unix()).
		Delete(&ActivityRecord{})
	metrics.RecordDatabaseQuery("prune_activities", time.Since(start), result.Error)
	return result.RowsAffected, result.Error
}

// gormLogAdapter adapts logrus to GORM's logger interface.
type gormLogAdapter struct {
	log *logrus.Logger
}

func (l *gormLogAdapter) Printf(format string, args ...interface{}) {
	l.log.Debugf(format, args...)
}
