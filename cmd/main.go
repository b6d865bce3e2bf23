package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"listing-service/internal/config"
	"listing-service/internal/delivery/handler"
	"listing-service/internal/delivery/middleware"
	"listing-service/internal/delivery/router"
	"listing-service/internal/infrastructure/cache"
	"listing-service/internal/infrastructure/messaging"
	"listing-service/internal/infrastructure/metrics"
	"listing-service/internal/repository"
	"listing-service/internal/service"
	"listing-service/pkg/database"
	"listing-service/pkg/logger"
	"listing-service/pkg/utils"

	"github.com/go-chi/chi/v5"
	redisClient "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

func main() {
	cfg := config.MustLoadConfig()

	loggers, err := logger.SetupLogger(cfg.Logger.Level)
	if err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}
	defer loggers.Sync()
	loggers.InfoLogger.Info("Logger initialized")

	db, cleanupDB := setupDatabase(cfg, loggers)
	defer cleanupDB()

	rdb, cleanupRedis := setupRedis(cfg, loggers)
	defer cleanupRedis()

	tracerProvider := setupTracer(cfg, loggers)
	defer shutdownTracer(tracerProvider, loggers)

	registry, ok := prometheus.DefaultRegisterer.(metrics.Registry)
	if !ok {
		registry = metrics.NewRegistry()
	}
	handlerMetrics := metrics.NewHandlerMetrics(registry)
	serviceMetrics := metrics.NewServiceMetrics(registry)
	repositoryMetrics := metrics.NewRepositoryMetrics(registry)
	messagingMetrics := metrics.NewMessagingMetrics(registry)
	sweepMetrics := metrics.NewSweepMetrics(registry)
	loggers.InfoLogger.Info("Prometheus metrics initialized")

	publisher := setupPublisher(cfg, loggers, messagingMetrics)
	defer publisher.Close()

	listingCache := cache.NewListingCache(cache.NewRedisCache(rdb), cfg.Listing.CacheTTL)
	listingRepo := repository.NewMysqlListingRepository(db, listingCache, repositoryMetrics)
	favoriteRepo := repository.NewMysqlFavoriteRepository(db, repositoryMetrics)
	userRepo := repository.NewMysqlUserRepository(db, repositoryMetrics)

	notifier := service.NewStatusNotifier(listingCache, publisher, loggers)
	listingService := service.NewListingService(listingRepo, favoriteRepo, serviceMetrics)
	queryService := service.NewQueryService(listingRepo, favoriteRepo, serviceMetrics, cfg.Listing.StrictSortDir)
	statusService := service.NewStatusService(listingRepo, notifier, serviceMetrics)
	favoriteService := service.NewFavoriteService(listingRepo, favoriteRepo, serviceMetrics)

	expirationOpts, err := service.ParseExpirationOptions(cfg.Expiration.FromStatuses, cfg.Expiration.ToStatus)
	if err != nil {
		loggers.ErrorLogger.Error("Invalid expiration configuration", utils.Err(err))
		os.Exit(1)
	}
	expirationService := service.NewExpirationService(listingRepo, expirationOpts, loggers, sweepMetrics)
	loggers.InfoLogger.Info("Service and repository layers initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Expiration.Interval > 0 {
		go expirationService.Run(ctx, cfg.Expiration.Interval, cfg.Expiration.OlderThanDays)
	}

	listingHandler := handler.NewListingHandler(listingService, queryService, statusService, favoriteService, loggers, handlerMetrics)
	health := handler.NewHealthHandler(map[string]handler.HealthCheck{
		"mysql": db.PingContext,
		"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}, 2*time.Second, loggers)
	auth := middleware.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, userRepo, loggers)

	r := chi.NewRouter()
	router.SetupRoutes(ctx, r, listingHandler, health, auth, handlerMetrics, router.Options{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		RateLimitRPS:   cfg.RateLimit.RPS,
		RateLimitBurst: cfg.RateLimit.Burst,
	})
	loggers.InfoLogger.Info("Router and routes initialized")

	server := startServer(cfg, r, loggers)

	waitForShutdown(server, cancel, loggers)
}

func setupDatabase(cfg *config.Config, loggers *logger.Loggers) (*sql.DB, func()) {
	db, err := database.NewDatabase(cfg.Database.DSN(), database.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		loggers.ErrorLogger.Error("Failed to connect to database", utils.Err(err))
		os.Exit(1)
	}
	loggers.InfoLogger.Info("Connected to database")

	cleanup := func() {
		if err := db.Close(); err != nil {
			loggers.ErrorLogger.Error("Failed to close database connection", utils.Err(err))
		}
	}

	return db, cleanup
}

func setupRedis(cfg *config.Config, loggers *logger.Loggers) (*redisClient.Client, func()) {
	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		loggers.ErrorLogger.Error("Failed to connect to Redis", utils.Err(err))
		os.Exit(1)
	}
	loggers.InfoLogger.Info("Connected to Redis")

	cleanup := func() {
		if err := rdb.Close(); err != nil {
			loggers.ErrorLogger.Error("Failed to close Redis client", utils.Err(err))
		}
	}

	return rdb, cleanup
}

func setupPublisher(cfg *config.Config, loggers *logger.Loggers, m *metrics.MessagingMetrics) messaging.EventPublisher {
	publisher, err := messaging.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.ConnectTimeout, messaging.Options{
		Stream:     cfg.NATS.Stream,
		Subject:    cfg.NATS.Subject,
		AckTimeout: cfg.NATS.AckTimeout,
	}, loggers, m)
	if err != nil {
		loggers.ErrorLogger.Error("Failed to connect to NATS", utils.Err(err))
		os.Exit(1)
	}
	loggers.InfoLogger.Info("Connected to NATS JetStream", zap.String("subject", cfg.NATS.Subject))
	return publisher
}

func setupTracer(cfg *config.Config, loggers *logger.Loggers) *sdktrace.TracerProvider {
	tracerProvider, err := metrics.InitTracer(
		cfg.Tracing.ServiceName,
		cfg.Tracing.Environment,
		cfg.Tracing.Version,
		cfg.Tracing.Endpoint,
	)
	if err != nil {
		loggers.ErrorLogger.Error("Failed to initialize tracer", utils.Err(err))
		os.Exit(1)
	}
	loggers.InfoLogger.Info("OpenTelemetry Tracer initialized")
	return tracerProvider
}

func shutdownTracer(tp *sdktrace.TracerProvider, loggers *logger.Loggers) {
	if err := tp.Shutdown(context.Background()); err != nil {
		loggers.ErrorLogger.Error("Failed to shut down tracer provider", utils.Err(err))
	}
}

func startServer(cfg *config.Config, handler http.Handler, loggers *logger.Loggers) *http.Server {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.Timeout,
		WriteTimeout: cfg.HTTP.Timeout,
	}

	go func() {
		loggers.InfoLogger.Info("Starting server", zap.Int("port", cfg.HTTP.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			loggers.ErrorLogger.Error("Failed to start server", utils.Err(err))
			os.Exit(1)
		}
	}()

	return server
}

func waitForShutdown(server *http.Server, stopBackground context.CancelFunc, loggers *logger.Loggers) {
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	<-shutdownCh
	loggers.InfoLogger.Info("Shutdown signal received, shutting down gracefully")
	stopBackground()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		loggers.ErrorLogger.Error("Server forced to shutdown", utils.Err(err))
	} else {
		loggers.InfoLogger.Info("Server shutdown gracefully")
	}
}
