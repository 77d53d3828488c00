package storage

import (
	"time"

	"gorm.io/gorm"
)

// AppState stores application state for checkpointing.
type AppState struct {
	StateKey   string `gorm:"primaryKey;size:64"`
	StateValue string `gorm:"type:text;not null"`
	UpdatedTS  int64  `gorm:"not null;index"`
}

func (AppState) TableName() string {
	return "app_state"
}

// ActivityRecord is an archived suspicious activity.
type ActivityRecord struct {
	ID               int64   `gorm:"primaryKey;autoIncrement"`
	TradeID          string  `gorm:"uniqueIndex;size:192;not null"`
	MarketID         string  `gorm:"size:128;not null;index"`
	MarketQuestion   string  `gorm:"size:512"`
	MakerAddress     string  `gorm:"size:128;not null;index"`
	Side             string  `gorm:"size:10;not null"`
	Outcome          string  `gorm:"size:255"`
	Price            float64 `gorm:"type:decimal(10,6);not null"`
	SizeUSD          float64 `gorm:"type:decimal(20,6);not null"`
	Score            int     `gorm:"not null;index"`
	Level            string  `gorm:"size:16;not null;index"`
	Reasoning        string  `gorm:"type:text"`
	FactorsJSON      string  `gorm:"type:text"`
	TransactionHash  string  `gorm:"size:128"`
	TradeTimestampMs int64   `gorm:"not null;index"`
	CreatedTS        int64   `gorm:"not null;index"`
}

func (ActivityRecord) TableName() string {
	return "suspicious_activities"
}

// MarketOutcome records which outcome won for a resolved market.
type MarketOutcome struct {
	MarketID       string `gorm:"primaryKey;size:128"`
	Question       string `gorm:"size:512"`
	WinningOutcome string `gorm:"size:255;not null"`
	ResolvedTS     int64  `gorm:"not null;index"`
}

func (MarketOutcome) TableName() string {
	return "market_outcomes"
}

// WalletPerformance tracks win rates for flagged wallets across resolved
// markets.
type WalletPerformance struct {
	WalletAddress       string  `gorm:"primaryKey;size:128"`
	TotalResolvedTrades int64   `gorm:"not null;default:0"`
	WinningTrades       int64   `gorm:"not null;default:0"`
	LosingTrades        int64   `gorm:"not null;default:0"`
	WinRate             float64 `gorm:"type:decimal(5,4);not null;default:0.0000;index"`
	LastCalculatedTS    int64   `gorm:"not null;index"`
}

func (WalletPerformance) TableName() string {
	return "wallet_performance"
}

// BeforeCreate hooks stamp creation times.
func (a *AppState) BeforeCreate(tx *gorm.DB) error {
	if a.UpdatedTS == 0 {
		a.UpdatedTS = time.Now().Unix()
	}
	return nil
}

func (a *ActivityRecord) BeforeCreate(tx *gorm.DB) error {
	if a.CreatedTS == 0 {
		a.CreatedTS = time.Now().Unix()
	}
	return nil
}

func (w *WalletPerformance) BeforeCreate(tx *gorm.DB) error {
	if w.LastCalculatedTS == 0 {
		w.LastCalculatedTS = time.Now().Unix()
	}
	return nil
}
