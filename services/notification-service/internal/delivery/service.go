package delivery

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/decorstudio/platform/libs/metrics"
	"github.com/decorstudio/platform/libs/notify"
	"github.com/decorstudio/platform/services/notification-service/internal/storage"
)

type Log interface {
	Sent(ctx context.Context, messageID string) (bool, error)
	Record(ctx context.Context, d storage.Delivery) error
}

type Config struct {
	Attempts int
	Backoff  time.Duration
}

// Service turns notification messages into e-mails. Send failures are
// retried in place and then recorded as failed; only delivery log errors
// are returned, so the consumer retries those.
type Service struct {
	sender   notify.Sender
	log      Log
	metrics  *metrics.NotificationMetrics
	logger   *slog.Logger
	attempts int
	backoff  time.Duration
}

func NewService(sender notify.Sender, log Log, m *metrics.NotificationMetrics, logger *slog.Logger, cfg Config) *Service {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 2 * time.Second
	}
	return &Service{sender: sender, log: log, metrics: m, logger: logger, attempts: cfg.Attempts, backoff: cfg.Backoff}
}

func (s *Service) Handle(ctx context.Context, km kafka.Message) error {
	msg, err := notify.Decode(km.Value)
	if err != nil {
		s.logger.Error("invalid notification payload", "err", err, "offset", km.Offset)
		s.metrics.ObserveDelivery("unknown", "invalid")
		return nil
	}

	sent, err := s.log.Sent(ctx, msg.ID)
	if err != nil {
		return err
	}
	if sent {
		s.logger.Info("notification already delivered", "id", msg.ID)
		s.metrics.ObserveDelivery(string(msg.Kind), "duplicate")
		return nil
	}

	d := storage.Delivery{
		MessageID: msg.ID,
		Kind:      string(msg.Kind),
		Recipient: msg.To.Email,
	}
	email, err := notify.Render(msg)
	if err != nil {
		d.Status = storage.StatusFailed
		d.LastError = err.Error()
		s.logger.Error("notification render failed", "err", err, "id", msg.ID, "kind", msg.Kind)
	} else {
		d.Subject = email.Subject
		d.Attempts, err = s.send(ctx, email)
		d.Status = storage.StatusSent
		if err != nil {
			d.Status = storage.StatusFailed
			d.LastError = err.Error()
			s.logger.Error("email send failed", "err", err, "id", msg.ID, "kind", msg.Kind, "attempts", d.Attempts)
		}
	}

	if err := s.log.Record(ctx, d); err != nil {
		return err
	}
	s.metrics.ObserveDelivery(d.Kind, d.Status)
	if d.Status == storage.StatusSent {
		s.logger.Info("notification delivered", "id", msg.ID, "kind", msg.Kind)
	}
	return nil
}

func (s *Service) send(ctx context.Context, e notify.Email) (int, error) {
	var err error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		if err = s.sender.Send(ctx, e); err == nil {
			return attempt, nil
		}
		if attempt == s.attempts {
			return attempt, err
		}
		select {
		case <-ctx.Done():
			return attempt, ctx.Err()
		case <-time.After(time.Duration(attempt) * s.backoff):
		}
	}
	return s.attempts, err
}
