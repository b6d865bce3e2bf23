package service

import (
	"context"
	"fmt"
	"time"

	"listing-service/internal/domain"
	"listing-service/internal/infrastructure/metrics"
	"listing-service/internal/repository"
	"listing-service/pkg/logger"
	"listing-service/pkg/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const DefaultExpirationDays = 14

type ExpirationOptions struct {
	FromStatuses []domain.ListingStatus
	ToStatus     domain.ListingStatus
}

// DefaultExpirationOptions expires the live bucket to INACTIVE.
func DefaultExpirationOptions() ExpirationOptions {
	return ExpirationOptions{
		FromStatuses: append([]domain.ListingStatus(nil), domain.LiveStatuses...),
		ToStatus:     domain.StatusInactive,
	}
}

// ParseExpirationOptions validates configured status names against the transition table.
func ParseExpirationOptions(from []string, to string) (ExpirationOptions, error) {
	opts := DefaultExpirationOptions()

	if to != "" {
		target, err := domain.ParseListingStatus(to)
		if err != nil {
			return opts, err
		}
		opts.ToStatus = target
	}

	if len(from) > 0 {
		opts.FromStatuses = opts.FromStatuses[:0]
		for _, name := range from {
			status, err := domain.ParseListingStatus(name)
			if err != nil {
				return opts, err
			}
			opts.FromStatuses = append(opts.FromStatuses, status)
		}
	}

	for _, status := range opts.FromStatuses {
		if !domain.CanTransition(status, opts.ToStatus) {
			return opts, fmt.Errorf("%w: listings cannot expire from %s to %s", domain.ErrInvalidArgument, status, opts.ToStatus)
		}
	}

	return opts, nil
}

type ExpirationService interface {
	ExpireOlderThan(ctx context.Context, days int) (int64, error)
	Run(ctx context.Context, interval time.Duration, days int)
}

type expirationService struct {
	listings repository.ListingRepository
	opts     ExpirationOptions
	loggers  *logger.Loggers
	metrics  *metrics.SweepMetrics
	tracer   trace.Tracer
	now      func() time.Time
}

func NewExpirationService(listings repository.ListingRepository, opts ExpirationOptions, loggers *logger.Loggers, metrics *metrics.SweepMetrics) ExpirationService {
	return &expirationService{
		listings: listings,
		opts:     opts,
		loggers:  loggers,
		metrics:  metrics,
		tracer:   otel.Tracer("listing-service/service"),
		now:      time.Now,
	}
}

// ExpireOlderThan transitions every listing in the configured statuses created more
// than days ago, in one statement, and returns the number of rows affected.
func (s *expirationService) ExpireOlderThan(ctx context.Context, days int) (affected int64, err error) {
	ctx, span := s.tracer.Start(ctx, "ExpireOlderThan")
	defer span.End()

	startTime := time.Now()
	defer func() {
		status := statusLabel(err)
		s.metrics.RunCount.WithLabelValues(status).Inc()
		s.metrics.RunDuration.Observe(time.Since(startTime).Seconds())
		if err == nil {
			s.metrics.ExpiredTotal.Add(float64(affected))
			s.metrics.LastRunTime.SetToCurrentTime()
		}
	}()

	if days < 0 {
		return 0, fmt.Errorf("%w: days must not be negative, got %d", domain.ErrInvalidArgument, days)
	}

	now := s.now().UTC()
	threshold := now.Add(-time.Duration(days) * 24 * time.Hour)

	span.SetAttributes(
		attribute.Int("expiration.days", days),
		attribute.String("expiration.threshold", threshold.Format(time.RFC3339)),
	)

	affected, err = s.listings.BulkTransition(ctx, s.opts.FromStatuses, s.opts.ToStatus, threshold, now)
	if err != nil {
		span.RecordError(err)
		s.loggers.ErrorLogger.Error("Expiration sweep failed", zap.Int("days", days), utils.Err(err))
		return 0, err
	}

	s.loggers.InfoLogger.Info("Expiration sweep finished",
		zap.Int("days", days),
		zap.Time("threshold", threshold),
		zap.String("to_status", string(s.opts.ToStatus)),
		zap.Int64("affected", affected),
	)

	return affected, nil
}

// Run sweeps once per interval until ctx is cancelled.
func (s *expirationService) Run(ctx context.Context, interval time.Duration, days int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.loggers.InfoLogger.Info("Expiration ticker started",
		zap.Duration("interval", interval), zap.Int("days", days))

	for {
		select {
		case <-ctx.Done():
			s.loggers.InfoLogger.Info("Expiration ticker stopped")
			return
		case <-ticker.C:
			_, _ = s.ExpireOlderThan(ctx, days)
		}
	}
}
