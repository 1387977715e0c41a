package main

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/decorstudio/platform/libs/db"
	"github.com/decorstudio/platform/libs/httpx"
	"github.com/decorstudio/platform/libs/kafkax"
	"github.com/decorstudio/platform/libs/metrics"
	"github.com/decorstudio/platform/libs/notify"
	otelx "github.com/decorstudio/platform/libs/otel"
	"github.com/decorstudio/platform/libs/runtime"
	"github.com/decorstudio/platform/services/notification-service/internal/consumer"
	"github.com/decorstudio/platform/services/notification-service/internal/delivery"
	"github.com/decorstudio/platform/services/notification-service/internal/inbox"
	"github.com/decorstudio/platform/services/notification-service/internal/storage"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(cfg.Service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.Service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	notificationMetrics := metrics.NewNotificationMetrics(reg)

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "kafka", Check: kafkax.ReadyCheck(cfg.Consumer.Brokers)},
	}

	var seen consumer.Inbox = inbox.NewRepository(pool)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			panic(err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		seen = inbox.NewRedisInbox(rdb, cfg.InboxTTL, cfg.Service)
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	} else {
		logger.Warn("REDIS_URL not set, using postgres inbox")
	}

	sender, err := notify.NewSender(cfg.Notify)
	if err != nil {
		panic(err)
	}
	svc := delivery.NewService(sender, storage.NewRepository(pool), notificationMetrics, logger, cfg.Delivery)
	go consumer.New(consumer.NewReader(cfg.Consumer), seen, logger, cfg.Consumer, svc.Handle).Run(ctx)

	mux := runtime.NewBaseMuxWithReady(reg, readyChecks...)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "topic", cfg.Consumer.Topic, "email_provider", cfg.Notify.EmailProvider)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
