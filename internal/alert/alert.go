// Package alert holds the suspicious activity record, the capped ranked
// ledger that serves it, and the delivery senders.
package alert

import (
	"context"
	"time"

	"github.com/NibirNd/Poly/internal/model"
)

// Level buckets a fused suspicion score for display and routing.
type Level string

const (
	LevelLow      Level = "LOW"
	LevelMedium   Level = "MEDIUM"
	LevelHigh     Level = "HIGH"
	LevelCritical Level = "CRITICAL"
)

// LevelForScore maps a 0-100 suspicion score to its level.
func LevelForScore(score int) Level {
	switch {
	case score > 85:
		return LevelCritical
	case score > 65:
		return LevelHigh
	case score > 40:
		return LevelMedium
	default:
		return LevelLow
	}
}

// rank orders levels for minimum-level notification filtering.
func (l Level) rank() int {
	switch l {
	case LevelCritical:
		return 3
	case LevelHigh:
		return 2
	case LevelMedium:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether l is at or above min severity.
func (l Level) AtLeast(min Level) bool {
	return l.rank() >= min.rank()
}

// SuspiciousActivity is the finished evaluation of one trade. ID equals the
// trade's composite id, which is what the ledger dedups on.
type SuspiciousActivity struct {
	ID         string             `json:"id"`
	Trade      model.Trade        `json:"trade"`
	Market     model.Market       `json:"market"`
	Score      int                `json:"score"`
	Level      Level              `json:"level"`
	Reasoning  string             `json:"reasoning,omitempty"`
	Factors    []string           `json:"factors"`
	Wallet     *model.WalletStats `json:"walletStats,omitempty"`
	DetectedAt time.Time          `json:"detectedAt"`
}

// Sender delivers a finished suspicious activity record to a destination.
type Sender interface {
	Send(ctx context.Context, activity *SuspiciousActivity) error
}
