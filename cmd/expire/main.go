// Command expire runs one expiration sweep and exits. It is meant for cron or a
// Kubernetes CronJob when the in-process ticker is disabled.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"listing-service/internal/config"
	"listing-service/internal/infrastructure/metrics"
	"listing-service/internal/repository"
	"listing-service/internal/service"
	"listing-service/pkg/database"
	"listing-service/pkg/logger"
	"listing-service/pkg/utils"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	cfg := config.MustLoadConfig()

	olderThan := pflag.IntP("older-than", "d", cfg.Expiration.OlderThanDays, "expire listings created more than this many days ago")
	timeout := pflag.Duration("timeout", cfg.Expiration.Timeout, "maximum duration of the sweep")
	pflag.Parse()

	loggers, err := logger.SetupLogger(cfg.Logger.Level)
	if err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}
	defer loggers.Sync()

	os.Exit(run(cfg, loggers, *olderThan, *timeout))
}

func run(cfg *config.Config, loggers *logger.Loggers, olderThan int, timeout time.Duration) int {
	opts, err := service.ParseExpirationOptions(cfg.Expiration.FromStatuses, cfg.Expiration.ToStatus)
	if err != nil {
		loggers.ErrorLogger.Error("Invalid expiration configuration", utils.Err(err))
		return 2
	}

	db, err := database.NewDatabase(cfg.Database.DSN(), database.Options{
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		loggers.ErrorLogger.Error("Failed to connect to database", utils.Err(err))
		return 1
	}
	defer db.Close()

	// The sweep is a single bulk UPDATE and never reads or writes the listing cache.
	registry := metrics.NewRegistry()
	listingRepo := repository.NewMysqlListingRepository(db, nil, metrics.NewRepositoryMetrics(registry))
	expiration := service.NewExpirationService(listingRepo, opts, loggers, metrics.NewSweepMetrics(registry))

	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	affected, err := expiration.ExpireOlderThan(ctx, olderThan)
	if err != nil {
		return 1
	}

	loggers.InfoLogger.Info("Expired listings", zap.Int64("count", affected), zap.Int("olderThanDays", olderThan))
	return 0
}
