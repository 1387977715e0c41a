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
	"github.com/decorstudio/platform/services/booking-service/internal/availability"
	"github.com/decorstudio/platform/services/booking-service/internal/booking"
	"github.com/decorstudio/platform/services/booking-service/internal/handlers"
	"github.com/decorstudio/platform/services/booking-service/internal/storage"
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
	bookingMetrics := metrics.NewBookingMetrics(reg)

	readyChecks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}

	store := storage.NewStore(pool)
	engineOpts := []availability.Option{
		availability.WithLogger(logger),
		availability.WithMetrics(bookingMetrics),
	}
	var limiter httpx.Limiter = httpx.NewMemoryRateLimiter(cfg.RateLimit, time.Minute)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			panic(err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		engineOpts = append(engineOpts, availability.WithCache(availability.NewRedisCache(rdb, cfg.CacheTTL, cfg.Service)))
		limiter = httpx.NewRedisRateLimiter(rdb, cfg.RateLimit, time.Minute, cfg.Service+":ratelimit")
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	} else {
		logger.Warn("REDIS_URL not set; availability cache disabled and rate limiting is per process")
	}

	engine, err := availability.NewEngine(store, cfg.Policy, engineOpts...)
	if err != nil {
		panic(err)
	}

	notifyCfg := notify.ConfigFromEnv()
	transport, closeTransport, err := notify.NewTransport(notifyCfg, logger)
	if err != nil {
		panic(err)
	}
	defer func() { _ = closeTransport() }()
	if notifyCfg.Mode == notify.ModeKafka {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.KafkaBrokers)})
	}

	svc := booking.NewService(booking.NewPgStore(store), engine, notify.NewDispatcher(transport), logger, bookingMetrics)
	bookingHandler := handlers.NewBookingHandler(engine, svc, logger)

	mux := runtime.NewBaseMuxWithReady(reg, readyChecks...)
	bookingHandler.Register(mux,
		httpx.RateLimit(limiter, logger, cfg.RateLimitOpen),
		auth.RequireRole(cfg.JWTSecret, "admin"),
	)
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithCORS(cfg.CORSOrigins),
		httpx.WithBodyLimit(64<<10),
		httpx.WithTimeout(15*time.Second),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "timezone", cfg.Policy.Location.String(), "notify_mode", notifyCfg.Mode)
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
