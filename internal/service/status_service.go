package service

import (
	"context"
	"fmt"
	"time"

	"listing-service/internal/domain"
	"listing-service/internal/infrastructure/metrics"
	"listing-service/internal/repository"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// StatusService applies moderation decisions. Callers are responsible for checking
// that the actor is a moderator.
type StatusService interface {
	ChangeStatus(ctx context.Context, id int64, target domain.ListingStatus) (*domain.Listing, error)
}

type statusService struct {
	listings repository.ListingRepository
	notifier Notifier
	metrics  *metrics.ServiceMetrics
	tracer   trace.Tracer
	now      func() time.Time
}

func NewStatusService(listings repository.ListingRepository, notifier Notifier, metrics *metrics.ServiceMetrics) StatusService {
	return &statusService{
		listings: listings,
		notifier: notifier,
		metrics:  metrics,
		tracer:   otel.Tracer("listing-service/service"),
		now:      time.Now,
	}
}

func (s *statusService) ChangeStatus(ctx context.Context, id int64, target domain.ListingStatus) (listing *domain.Listing, err error) {
	ctx, span := s.tracer.Start(ctx, "ChangeStatus")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("listing.id", id),
		attribute.String("listing.target_status", string(target)),
	)

	startTime := time.Now()
	defer func() { observe(s.metrics, "ChangeStatus", startTime, err) }()

	if !domain.IsModerationOutcome(target) {
		return nil, fmt.Errorf("%w: target status must be APPROVED or REJECTED, got %s", domain.ErrInvalidArgument, target)
	}

	listing, err = s.listings.ChangeStatus(ctx, id, func(l *domain.Listing) error {
		return l.TransitionTo(target, s.now().UTC())
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	// Runs only after commit so a rolled back decision is never cached or announced.
	s.notifier.ListingStatusChanged(ctx, listing)

	return listing, nil
}
