package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wonderland/toystore/internal/admin"
	"github.com/wonderland/toystore/internal/auth"
	"github.com/wonderland/toystore/internal/catalog"
	"github.com/wonderland/toystore/internal/config"
	"github.com/wonderland/toystore/internal/identity"
	"github.com/wonderland/toystore/internal/messaging"
	"github.com/wonderland/toystore/internal/orders"
	"github.com/wonderland/toystore/internal/ratelimit"
	"github.com/wonderland/toystore/internal/telemetry"
)

const serviceName = "toystore-api"

func main() {
	ctx := context.Background()
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	loader := config.NewLoader()
	cfg, err := loader.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}
	level.Set(config.ParseLevel(cfg.LogLevel))
	loader.WatchLogLevel(level, logger)

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.OTLPEndpoint, serviceName, cfg.ServiceVersion)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(serviceName, cfg.ServiceVersion)
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	db, err := telemetry.OpenDB("postgres", cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	var limiter ratelimit.Limiter = ratelimit.NewMemory(cfg.LoginRateLimit, cfg.LoginRateWindow)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		limiter = ratelimit.NewRedis(rdb, "login", cfg.LoginRateLimit, cfg.LoginRateWindow)
	}

	var publisher orders.Publisher
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		producer := messaging.NewProducer(brokers, cfg.OrderEventsTopic)
		defer func() { _ = producer.Close() }()
		publisher = producer
	}

	users := identity.NewUserRepository(db)
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)

	orderService, err := orders.NewService(orders.NewOrderRepository(db), publisher, logger)
	if err != nil {
		logger.Error("failed to create order service", "error", err)
		os.Exit(1)
	}

	router := newRouter(handlers{
		identity: identity.NewHandler(identity.NewService(users, tokens, limiter, logger), logger),
		catalog:  catalog.NewHandler(catalog.NewProductRepository(db), logger),
		orders:   orders.NewHandler(orderService, logger),
		admin:    admin.NewHandler(admin.NewStatsRepository(db), orderService, cfg.LowStockThreshold, logger),
		auth:     auth.NewMiddleware(tokens, users, logger),
		metrics:  metricsHandler,
		db:       db,
	}, logger)

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: otelhttp.NewHandler(router, serviceName,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting api server", "port", cfg.Port, "kafka", publisher != nil, "redis", cfg.RedisAddr != "")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
