package alert

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

// SMTPSender sends alerts via email.
type SMTPSender struct {
	host     string
	port     int
	user     string
	password string
	from     string
	to       []string
}

// NewSMTPSender creates a new SMTP sender.
func NewSMTPSender(host string, port int, user, password, from string, to []string) *SMTPSender {
	return &SMTPSender{
		host:     host,
		port:     port,
		user:     user,
		password: password,
		from:     from,
		to:       to,
	}
}

// Send sends the activity via email.
func (s *SMTPSender) Send(ctx context.Context, activity *SuspiciousActivity) error {
	subject := fmt.Sprintf("[%s] Suspicious trade: $%.2f on %s",
		activity.Level, activity.Trade.Size, activity.Market.Question)
	body := s.buildEmailBody(activity)

	message := fmt.Sprintf("From: %s\r\n", s.from)
	message += fmt.Sprintf("To: %s\r\n", s.to[0])
	message += fmt.Sprintf("Subject: %s\r\n", subject)
	message += "Content-Type: text/plain; charset=UTF-8\r\n"
	message += "\r\n"
	message += body

	auth := smtp.PlainAuth("", s.user, s.password, s.host)
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	if err := smtp.SendMail(addr, auth, s.from, s.to, []byte(message)); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	return nil
}

func (s *SMTPSender) buildEmailBody(activity *SuspiciousActivity) string {
	body := fmt.Sprintf("POLY ALERT - %s\n", activity.Level)
	body += "═══════════════════════════════════════\n\n"
	body += "A suspicious trade has been detected:\n\n"
	body += "TRADE DETAILS\n"
	body += "─────────────────────────────────────\n"
	body += fmt.Sprintf("Size:           $%.2f\n", activity.Trade.Size)
	body += fmt.Sprintf("Side:           %s %s\n", activity.Trade.Side, activity.Trade.OutcomeLabel)
	body += fmt.Sprintf("Price:          %.2f\n", activity.Trade.Price)
	body += fmt.Sprintf("Market:         %s\n\n", activity.Market.Question)
	body += "WALLET DETAILS\n"
	body += "─────────────────────────────────────\n"
	body += fmt.Sprintf("Address:        %s\n", activity.Trade.MakerAddress)
	if w := activity.Wallet; w != nil {
		body += fmt.Sprintf("Trades:         %d\n", w.TotalTrades)
		body += fmt.Sprintf("Win Rate:       %.0f%%\n", w.WinRate*100)
		body += fmt.Sprintf("Account Age:    %d days\n", w.AccountAgeDays)
	}
	body += fmt.Sprintf("Suspicion Score: %d/100\n\n", activity.Score)

	if len(activity.Factors) > 0 {
		body += "RISK FACTORS\n"
		body += "─────────────────────────────────────\n"
		for _, f := range activity.Factors {
			body += fmt.Sprintf("- %s\n", f)
		}
		body += "\n"
	}
	if activity.Reasoning != "" {
		body += "ANALYSIS\n"
		body += "─────────────────────────────────────\n"
		body += strings.TrimSpace(activity.Reasoning) + "\n\n"
	}

	body += "TRANSACTION\n"
	body += "─────────────────────────────────────\n"
	body += fmt.Sprintf("Hash:           %s\n", activity.Trade.TransactionHash)
	body += fmt.Sprintf("Time:           %s\n\n", time.UnixMilli(activity.Trade.Timestamp).UTC().Format(time.RFC3339))
	body += "═══════════════════════════════════════\n"
	body += fmt.Sprintf("Generated: %s\n", activity.DetectedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	body += "\nNote: This system detects suspicious behavior;\n"
	body += "it does NOT prove insider trading.\n"

	return body
}
