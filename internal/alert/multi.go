package alert

import (
	"context"
	"fmt"
)

// MultiSender fans an alert out to multiple destinations. One destination
// failing does not stop the others.
type MultiSender struct {
	senders []Sender
}

// NewMultiSender creates a new multi-sender.
func NewMultiSender(senders ...Sender) *MultiSender {
	return &MultiSender{senders: senders}
}

// Send delivers the activity to all configured senders.
func (s *MultiSender) Send(ctx context.Context, activity *SuspiciousActivity) error {
	var errs []error
	for i, sender := range s.senders {
		if err := sender.Send(ctx, activity); err != nil {
			errs = append(errs, fmt.Errorf("sender %d: %w", i, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("multi-sender errors: %v", errs)
	}

	return nil
}
