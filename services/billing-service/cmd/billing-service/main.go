package main

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/decorstudio/platform/libs/auth"
	"github.com/decorstudio/platform/libs/db"
	"github.com/decorstudio/platform/libs/httpx"
	"github.com/decorstudio/platform/libs/kafkax"
	"github.com/decorstudio/platform/libs/metrics"
	"github.com/decorstudio/platform/libs/notify"
	otelx "github.com/decorstudio/platform/libs/otel"
	"github.com/decorstudio/platform/libs/runtime"
	"github.com/decorstudio/platform/services/billing-service/internal/handlers"
	"github.com/decorstudio/platform/services/billing-service/internal/invoices"
	"github.com/decorstudio/platform/services/billing-service/internal/outbox"
	"github.com/decorstudio/platform/services/billing-service/internal/payments"
	"github.com/decorstudio/platform/services/billing-service/internal/reconcile"
	"github.com/decorstudio/platform/services/billing-service/internal/storage"
	"github.com/decorstudio/platform/services/billing-service/internal/stripeprovider"
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
	billingMetrics := metrics.NewBillingMetrics(reg)

	readyChecks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}

	// NOTIFY_MODE=outbox stores mails in Postgres and relays them to Kafka
	// from here; the other modes are shared with booking-service.
	notifyCfg := notify.ConfigFromEnv()
	var transport notify.Transport
	if notifyCfg.Mode == notify.ModeOutbox {
		if len(notifyCfg.Brokers) == 0 {
			panic("NOTIFY_MODE=outbox needs KAFKA_BROKERS")
		}
		repo := outbox.NewRepository()
		transport = outbox.NewTransport(pool, repo)
		writer := kafkax.NewWriter(notifyCfg.Brokers, notify.Topic)
		defer writer.Close()
		go outbox.NewPublisher(pool, repo, writer, logger, cfg.Outbox).Run(ctx)
	} else {
		t, closeTransport, err := notify.NewTransport(notifyCfg, logger)
		if err != nil {
			panic(err)
		}
		defer func() { _ = closeTransport() }()
		transport = t
	}
	if len(notifyCfg.Brokers) > 0 && (notifyCfg.Mode == notify.ModeKafka || notifyCfg.Mode == notify.ModeOutbox) {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(notifyCfg.Brokers)})
	}

	stripeClient := stripeprovider.New(cfg.Stripe)
	svc, err := payments.NewService(
		payments.NewPgStore(storage.NewStore(pool)),
		stripeClient,
		invoices.NewIssuer(cfg.VATRateBps),
		notify.NewDispatcher(transport),
		cfg.Payments,
		payments.WithLogger(logger),
		payments.WithMetrics(billingMetrics),
	)
	if err != nil {
		panic(err)
	}

	if cfg.ReconcileOn && cfg.Stripe.SecretKey != "" {
		r := reconcile.New(stripeClient, svc, reconcile.NewAdvisoryLock(pool.Pool, cfg.AdvisoryKey), logger, cfg.Reconcile)
		go r.Run(ctx)
	} else {
		logger.Warn("stripe reconcile disabled")
	}

	var limiter httpx.Limiter = httpx.NewMemoryRateLimiter(cfg.RateLimit, time.Minute)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			panic(err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		limiter = httpx.NewRedisRateLimiter(rdb, cfg.RateLimit, time.Minute, cfg.Service+":ratelimit")
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	mux := runtime.NewBaseMuxWithReady(reg, readyChecks...)
	handlers.NewWebhookHandler(stripeClient, svc, logger, billingMetrics).Register(mux)
	handlers.NewQuoteHandler(svc, logger).Register(mux,
		httpx.RateLimit(limiter, logger, cfg.RateLimitOpen),
		auth.RequireRole(cfg.JWTSecret, "admin"),
	)
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithCORS(cfg.CORSOrigins),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(30*time.Second),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "billing")
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "notify_mode", notifyCfg.Mode)
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
