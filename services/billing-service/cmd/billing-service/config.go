package main

import (
	"time"

	"github.com/decorstudio/platform/libs/config"
	"github.com/decorstudio/platform/services/billing-service/internal/outbox"
	"github.com/decorstudio/platform/services/billing-service/internal/payments"
	"github.com/decorstudio/platform/services/billing-service/internal/reconcile"
	"github.com/decorstudio/platform/services/billing-service/internal/stripeprovider"
)

type Config struct {
	Service       string
	Port          string
	DatabaseURL   string
	RedisURL      string
	JWTSecret     string
	CORSOrigins   []string
	Payments      payments.Config
	VATRateBps    int
	Stripe        stripeprovider.Config
	Reconcile     reconcile.Config
	ReconcileOn   bool
	AdvisoryKey   int64
	Outbox        outbox.PublisherConfig
	RateLimit     int
	RateLimitOpen bool
}

func loadConfig() (Config, error) {
	_ = config.LoadDotEnv()

	cfg := Config{
		Service:     config.String("SERVICE_NAME", "billing-service"),
		RedisURL:    config.String("REDIS_URL", ""),
		JWTSecret:   config.String("JWT_SECRET", ""),
		CORSOrigins: config.List("CORS_ALLOWED_ORIGINS"),
		Payments: payments.Config{
			Currency:      config.String("STRIPE_CURRENCY", "eur"),
			PublicBaseURL: config.String("PUBLIC_BASE_URL", "http://localhost:3000"),
		},
		Stripe: stripeprovider.Config{
			SecretKey:     config.String("STRIPE_SECRET_KEY", ""),
			WebhookSecret: config.String("STRIPE_WEBHOOK_SECRET", ""),
			Tolerance:     config.Seconds("STRIPE_WEBHOOK_TOLERANCE_SECONDS", 5*time.Minute),
		},
		Reconcile: reconcile.Config{
			Interval: config.Seconds("STRIPE_RECONCILE_INTERVAL_SECONDS", 5*time.Minute),
			Lookback: config.Seconds("STRIPE_RECONCILE_LOOKBACK_SECONDS", 72*time.Hour),
		},
		ReconcileOn:   config.Bool("STRIPE_RECONCILE_ENABLED", true),
		RateLimitOpen: config.Bool("RATE_LIMIT_FAIL_OPEN", false),
		Outbox: outbox.PublisherConfig{
			PollEvery: config.Seconds("OUTBOX_POLL_SECONDS", 2*time.Second),
		},
	}

	var err error
	if cfg.Port, err = config.Port("PORT", "8084"); err != nil {
		return Config{}, err
	}
	if cfg.DatabaseURL, err = config.RequiredString("DATABASE_URL"); err != nil {
		return Config{}, err
	}
	if cfg.Payments.Schedule.DepositPercent, err = config.Int("DEPOSIT_PERCENT", 30, 0, 100); err != nil {
		return Config{}, err
	}
	if cfg.Payments.Schedule.BalanceInstallment, err = config.Int("BALANCE_INSTALLMENTS", 2, 0, 24); err != nil {
		return Config{}, err
	}
	if cfg.Payments.ValidityDays, err = config.Int("QUOTE_VALIDITY_DAYS", 30, 1, 365); err != nil {
		return Config{}, err
	}
	if cfg.VATRateBps, err = config.Int("VAT_RATE_BPS", 2000, 0, 10000); err != nil {
		return Config{}, err
	}
	if cfg.Reconcile.PageSize, err = config.Int("STRIPE_RECONCILE_PAGE_SIZE", 100, 1, 100); err != nil {
		return Config{}, err
	}
	key, err := config.Int("STRIPE_RECONCILE_LOCK_KEY", 4242001, 1, 1<<31-1)
	if err != nil {
		return Config{}, err
	}
	cfg.AdvisoryKey = int64(key)
	if cfg.Outbox.BatchSize, err = config.Int("OUTBOX_BATCH_SIZE", 50, 1, 1000); err != nil {
		return Config{}, err
	}
	if cfg.RateLimit, err = config.Int("PUBLIC_RATE_LIMIT_PER_MINUTE", 30, 1, 10000); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
