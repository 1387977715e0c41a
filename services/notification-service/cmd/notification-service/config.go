package main

import (
	"fmt"
	"time"

	"github.com/decorstudio/platform/libs/config"
	"github.com/decorstudio/platform/libs/kafkax"
	"github.com/decorstudio/platform/libs/notify"
	"github.com/decorstudio/platform/services/notification-service/internal/consumer"
	"github.com/decorstudio/platform/services/notification-service/internal/delivery"
)

type Config struct {
	Service     string
	Port        string
	DatabaseURL string
	RedisURL    string
	InboxTTL    time.Duration
	Consumer    consumer.Config
	Delivery    delivery.Config
	Notify      notify.Config
}

func loadConfig() (Config, error) {
	_ = config.LoadDotEnv()

	cfg := Config{
		Service:  config.String("SERVICE_NAME", "notification-service"),
		RedisURL: config.String("REDIS_URL", ""),
		InboxTTL: config.Seconds("INBOX_TTL_SECONDS", 7*24*time.Hour),
		Consumer: consumer.Config{
			Brokers: kafkax.SplitBrokers(config.String("KAFKA_BROKERS", "")),
			GroupID: config.String("KAFKA_GROUP_ID", "notification-service"),
			Topic:   config.String("KAFKA_CONSUME_TOPIC", notify.Topic),
			Backoff: config.Seconds("CONSUMER_BACKOFF_SECONDS", time.Second),
		},
		Delivery: delivery.Config{
			Backoff: config.Seconds("SEND_BACKOFF_SECONDS", 2*time.Second),
		},
		Notify: notify.ConfigFromEnv(),
	}

	var err error
	if cfg.Port, err = config.Port("PORT", "8085"); err != nil {
		return cfg, err
	}
	if cfg.DatabaseURL, err = config.RequiredString("DATABASE_URL"); err != nil {
		return cfg, err
	}
	if len(cfg.Consumer.Brokers) == 0 {
		return cfg, fmt.Errorf("KAFKA_BROKERS is required")
	}
	if cfg.Consumer.MaxAttempts, err = config.Int("CONSUMER_MAX_ATTEMPTS", 5, 1, 100); err != nil {
		return cfg, err
	}
	if cfg.Delivery.Attempts, err = config.Int("SEND_ATTEMPTS", 3, 1, 10); err != nil {
		return cfg, err
	}
	return cfg, nil
}
