package alert

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogSender writes alerts to the logger. Always safe to use, and the default
// destination when no external channel is configured.
type LogSender struct {
	log *logrus.Logger
}

// NewLogSender creates a new log sender.
func NewLogSender(log *logrus.Logger) *LogSender {
	return &LogSender{log: log}
}

// Send logs the activity.
func (s *LogSender) Send(ctx context.Context, activity *SuspiciousActivity) error {
	s.log.WithFields(logrus.Fields{
		"trade_id":  activity.ID,
		"market":    activity.Market.Question,
		"maker":     activity.Trade.MakerAddress,
		"size_usd":  activity.Trade.Size,
		"price":     activity.Trade.Price,
		"score":     activity.Score,
		"level":     activity.Level,
		"factors":   activity.Factors,
		"reasoning": activity.Reasoning,
	}).Info("Suspicious activity detected")
	return nil
}
