package service

import (
	"context"

	"listing-service/internal/domain"
	"listing-service/internal/infrastructure/cache"
	"listing-service/internal/infrastructure/messaging"
	"listing-service/pkg/logger"
	"listing-service/pkg/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Notifier runs the after-commit effects of a moderation decision. Both effects are
// best effort: failures are logged and never returned.
type Notifier interface {
	ListingStatusChanged(ctx context.Context, listing *domain.Listing)
}

type statusNotifier struct {
	cache     *cache.ListingCache
	publisher messaging.EventPublisher
	loggers   *logger.Loggers
	tracer    trace.Tracer
}

func NewStatusNotifier(cache *cache.ListingCache, publisher messaging.EventPublisher, loggers *logger.Loggers) Notifier {
	return &statusNotifier{
		cache:     cache,
		publisher: publisher,
		loggers:   loggers,
		tracer:    otel.Tracer("listing-service/service"),
	}
}

func (n *statusNotifier) ListingStatusChanged(ctx context.Context, listing *domain.Listing) {
	ctx, span := n.tracer.Start(ctx, "ListingStatusChanged")
	defer span.End()

	cacheSpanCtx, cacheSpan := n.tracer.Start(ctx, "Redis Set")
	if err := n.cache.Put(cacheSpanCtx, listing); err != nil {
		cacheSpan.RecordError(err)
		n.loggers.ErrorLogger.Error("Failed to cache listing after status change",
			zap.Int64("listing_id", listing.ID), utils.Err(err))
	}
	cacheSpan.End()

	event := domain.NewStatusChangedEvent(listing)
	if err := n.publisher.PublishStatusChanged(ctx, event); err != nil {
		span.RecordError(err)
		n.loggers.ErrorLogger.Error("Failed to publish status change event",
			zap.Int64("listing_id", listing.ID),
			zap.String("status", string(listing.Status)),
			utils.Err(err))
		return
	}

	n.loggers.InfoLogger.Info("Status change event published",
		zap.Int64("listing_id", listing.ID),
		zap.String("status", string(listing.Status)))
}
