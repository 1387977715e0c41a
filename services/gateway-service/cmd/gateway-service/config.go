package main

import (
	"net/url"
	"time"

	"github.com/decorstudio/platform/libs/config"
)

type Config struct {
	Service        string
	Port           string
	BookingURL     *url.URL
	BillingURL     *url.URL
	JWTSecret      string
	RedisURL       string
	CORSOrigins    []string
	RateLimit      int
	RateLimitOpen  bool
	BodyLimit      int64
	RequestTimeout time.Duration
}

func loadConfig() (Config, error) {
	_ = config.LoadDotEnv()

	cfg := Config{
		Service:        config.String("SERVICE_NAME", "gateway-service"),
		JWTSecret:      config.String("JWT_SECRET", ""),
		RedisURL:       config.String("REDIS_URL", ""),
		CORSOrigins:    config.List("CORS_ALLOWED_ORIGINS"),
		RateLimitOpen:  config.Bool("RATE_LIMIT_FAIL_OPEN", true),
		RequestTimeout: config.Seconds("REQUEST_TIMEOUT_SECONDS", 30*time.Second),
	}

	var err error
	if cfg.Port, err = config.Port("PORT", "8080"); err != nil {
		return cfg, err
	}
	if cfg.BookingURL, err = url.Parse(config.String("BOOKING_URL", "http://booking-service:8083")); err != nil {
		return cfg, err
	}
	if cfg.BillingURL, err = url.Parse(config.String("BILLING_URL", "http://billing-service:8084")); err != nil {
		return cfg, err
	}
	if cfg.RateLimit, err = config.Int("RATE_LIMIT_PER_MINUTE", 120, 1, 100000); err != nil {
		return cfg, err
	}
	limit, err := config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20, 1024, 32<<20)
	if err != nil {
		return cfg, err
	}
	cfg.BodyLimit = int64(limit)
	return cfg, nil
}
