package service

import (
	"context"
	"errors"
	"time"

	"listing-service/internal/domain"
	"listing-service/internal/infrastructure/metrics"
	"listing-service/internal/repository"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type FavoriteService interface {
	Toggle(ctx context.Context, user *domain.Principal, listingID int64) (bool, error)
}

type favoriteService struct {
	listings  repository.ListingRepository
	favorites repository.FavoriteRepository
	metrics   *metrics.ServiceMetrics
	tracer    trace.Tracer
}

func NewFavoriteService(listings repository.ListingRepository, favorites repository.FavoriteRepository, metrics *metrics.ServiceMetrics) FavoriteService {
	return &favoriteService{
		listings:  listings,
		favorites: favorites,
		metrics:   metrics,
		tracer:    otel.Tracer("listing-service/service"),
	}
}

// Toggle flips the user's membership for the listing and returns the new state.
// Losing an insert race to a concurrent toggle counts as already favorited.
func (s *favoriteService) Toggle(ctx context.Context, user *domain.Principal, listingID int64) (favorite bool, err error) {
	ctx, span := s.tracer.Start(ctx, "ToggleFavorite")
	defer span.End()

	startTime := time.Now()
	defer func() { observe(s.metrics, "ToggleFavorite", startTime, err) }()

	if user == nil {
		return false, domain.ErrAccessDenied
	}

	span.SetAttributes(
		attribute.Int64("listing.id", listingID),
		attribute.Int64("user.id", user.UserID),
	)

	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return false, err
	}
	if !listing.VisibleTo(user) {
		return false, domain.ErrListingNotFound
	}

	exists, err := s.favorites.Exists(ctx, user.UserID, listingID)
	if err != nil {
		span.RecordError(err)
		return false, err
	}

	if exists {
		if err := s.favorites.Remove(ctx, user.UserID, listingID); err != nil {
			span.RecordError(err)
			return false, err
		}
		return false, nil
	}

	if err := s.favorites.Add(ctx, user.UserID, listingID); err != nil {
		if errors.Is(err, domain.ErrFavoriteExists) {
			span.AddEvent("favorite created concurrently")
			return true, nil
		}
		span.RecordError(err)
		return false, err
	}

	return true, nil
}
