package main

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/decorstudio/platform/libs/config"
	"github.com/decorstudio/platform/libs/kafkax"
	"github.com/decorstudio/platform/services/booking-service/internal/availability"
)

type Config struct {
	Service       string
	Port          string
	DatabaseURL   string
	RedisURL      string
	KafkaBrokers  []string
	JWTSecret     string
	CORSOrigins   []string
	Policy        availability.Policy
	CacheTTL      time.Duration
	RateLimit     int
	RateLimitOpen bool
}

func loadConfig() (Config, error) {
	_ = config.LoadDotEnv()

	cfg := Config{
		Service:       config.String("SERVICE_NAME", "booking-service"),
		RedisURL:      config.String("REDIS_URL", ""),
		KafkaBrokers:  kafkax.SplitBrokers(config.String("KAFKA_BROKERS", "")),
		JWTSecret:     config.String("JWT_SECRET", ""),
		CORSOrigins:   config.List("CORS_ALLOWED_ORIGINS"),
		CacheTTL:      config.Seconds("AVAILABILITY_CACHE_TTL_SECONDS", time.Minute),
		RateLimitOpen: config.Bool("RATE_LIMIT_FAIL_OPEN", false),
	}

	var err error
	if cfg.Port, err = config.Port("PORT", "8083"); err != nil {
		return Config{}, err
	}
	if cfg.DatabaseURL, err = config.RequiredString("DATABASE_URL"); err != nil {
		return Config{}, err
	}

	loc, err := time.LoadLocation(config.String("BUSINESS_TIMEZONE", "Europe/Paris"))
	if err != nil {
		return Config{}, fmt.Errorf("BUSINESS_TIMEZONE: %w", err)
	}
	slotMinutes, err := config.Int("SLOT_DURATION_MINUTES", 60, 5, 24*60)
	if err != nil {
		return Config{}, err
	}
	noticeHours, err := config.Int("MIN_BOOKING_NOTICE_HOURS", 24, 0, 24*90)
	if err != nil {
		return Config{}, err
	}
	months, err := config.Int("MAX_BOOKING_MONTHS_AHEAD", 3, 1, 24)
	if err != nil {
		return Config{}, err
	}
	cfg.Policy = availability.Policy{
		SlotLength:     time.Duration(slotMinutes) * time.Minute,
		MinNotice:      time.Duration(noticeHours) * time.Hour,
		MaxMonthsAhead: months,
		Location:       loc,
	}
	if cfg.RateLimit, err = config.Int("PUBLIC_RATE_LIMIT_PER_MINUTE", 20, 1, 10000); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
