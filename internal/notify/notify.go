// Package notify delivers approved messages and records them. The log
// append after a successful send is the only durable record that a
// notification happened; the gate reads the same log, so delivery and
// throttling coordinate through the store alone.
package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/heraldhq/herald/internal/state"
	"github.com/heraldhq/herald/internal/telemetry"
)

// Sender is the delivery transport boundary.
type Sender interface {
	Send(ctx context.Context, subject, htmlBody string) error
	// Channel names the transport for logs and metrics.
	Channel() string
}

// Service wraps a transport with the log append and bookkeeping.
type Service struct {
	sender Sender
	repo   *state.Repository
	tel    *telemetry.Telemetry
	logger *log.Logger
	now    func() time.Time
}

func NewService(sender Sender, repo *state.Repository, tel *telemetry.Telemetry) *Service {
	return &Service{
		sender: sender,
		repo:   repo,
		tel:    tel,
		logger: log.New(log.Writer(), "[NOTIFY] ", log.LstdFlags),
		now:    time.Now,
	}
}

// SetClock overrides the timestamp source. Tests only.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Deliver sends through the transport and, on success, appends the log
// entry with the explicit kind tag, trimming the log to its cap. A failed
// append is reported even though the message went out: without the entry
// the gate cannot see the delivery.
func (s *Service) Deliver(ctx context.Context, kind state.NotificationKind, subject, htmlBody string) error {
	if err := s.sender.Send(ctx, subject, htmlBody); err != nil {
		return fmt.Errorf("deliver %s via %s: %w", kind, s.sender.Channel(), err)
	}
	s.tel.RecordNotification(string(kind), s.sender.Channel())

	entry := state.NotificationLogEntry{
		Kind:   kind,
		Type:   subject,
		SentAt: s.now(),
		HTML:   htmlBody,
	}
	if err := s.repo.AppendNotification(ctx, entry); err != nil {
		s.logger.Printf("sent %q but could not record it: %v", subject, err)
		return fmt.Errorf("record %s notification: %w", kind, err)
	}
	return nil
}

// LogSender is the degraded transport used when no delivery credentials
// are configured. It only logs and never fails, so the full pipeline
// (including the log append and the gate) still runs.
type LogSender struct {
	logger *log.Logger
}

func NewLogSender() *LogSender {
	return &LogSender{logger: log.New(log.Writer(), "[NOTIFY] ", log.LstdFlags)}
}

func (l *LogSender) Send(_ context.Context, subject, htmlBody string) error {
	l.logger.Printf("delivery unconfigured, logging only: %q (%d bytes)", subject, len(htmlBody))
	return nil
}

func (l *LogSender) Channel() string { return "log" }
