package notify

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/decorstudio/platform/libs/config"
	"github.com/decorstudio/platform/libs/kafkax"
)

const (
	ModeKafka = "kafka"
	ModeEmail = "email"
	ModeLog   = "log"
	// ModeOutbox is wired by services that own an outbox table.
	ModeOutbox = "outbox"
)

type Config struct {
	Mode           string
	Brokers        []string
	EmailProvider  string
	SMTPHost       string
	SMTPPort       string
	From           string
	FromName       string
	SendGridAPIKey string
}

// ConfigFromEnv reads NOTIFY_MODE and the e-mail settings. Without an
// explicit mode, kafka is chosen when brokers are configured and log otherwise.
func ConfigFromEnv() Config {
	cfg := Config{
		Mode:           strings.ToLower(config.String("NOTIFY_MODE", "")),
		Brokers:        kafkax.SplitBrokers(config.String("KAFKA_BROKERS", "")),
		EmailProvider:  strings.ToLower(config.String("EMAIL_PROVIDER", "smtp")),
		SMTPHost:       config.String("SMTP_HOST", "localhost"),
		SMTPPort:       config.String("SMTP_PORT", "1025"),
		From:           config.String("SMTP_FROM", "no-reply@decorstudio.local"),
		FromName:       config.String("EMAIL_FROM_NAME", "Decor Studio"),
		SendGridAPIKey: config.String("SENDGRID_API_KEY", ""),
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeLog
		if len(cfg.Brokers) > 0 {
			cfg.Mode = ModeKafka
		}
	}
	return cfg
}

// NewSender builds the mail sender EMAIL_PROVIDER names.
func NewSender(cfg Config) (Sender, error) {
	switch cfg.EmailProvider {
	case "", "smtp":
		return NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.From), nil
	case "sendgrid":
		if cfg.SendGridAPIKey == "" {
			return nil, fmt.Errorf("SENDGRID_API_KEY is required for the sendgrid provider")
		}
		return NewSendGridSender(cfg.SendGridAPIKey, cfg.From, cfg.FromName), nil
	default:
		return nil, fmt.Errorf("unknown EMAIL_PROVIDER %q", cfg.EmailProvider)
	}
}

// NewTransport builds the transport for cfg.Mode. The returned close func
// flushes the Kafka writer, if one was created.
func NewTransport(cfg Config, logger *slog.Logger) (Transport, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Mode {
	case ModeKafka:
		if len(cfg.Brokers) == 0 {
			return nil, noop, fmt.Errorf("NOTIFY_MODE=kafka needs KAFKA_BROKERS")
		}
		w := kafkax.NewWriter(cfg.Brokers, Topic)
		return NewKafkaTransport(w), w.Close, nil
	case ModeEmail:
		s, err := NewSender(cfg)
		if err != nil {
			return nil, noop, err
		}
		return NewEmailTransport(s), noop, nil
	case ModeLog:
		return NewLogTransport(logger), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown NOTIFY_MODE %q", cfg.Mode)
	}
}
