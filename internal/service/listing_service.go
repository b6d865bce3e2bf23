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

type ListingService interface {
	Create(ctx context.Context, principal *domain.Principal, input domain.ListingFields) (*domain.Listing, error)
	Update(ctx context.Context, id int64, input domain.ListingFields, actor *domain.Principal) (*domain.Listing, error)
	Delete(ctx context.Context, id int64, actor *domain.Principal) error
	Get(ctx context.Context, id int64, viewer *domain.Principal) (*domain.ListingView, error)
}

type listingService struct {
	listings  repository.ListingRepository
	favorites repository.FavoriteRepository
	metrics   *metrics.ServiceMetrics
	tracer    trace.Tracer
	now       func() time.Time
}

func NewListingService(listings repository.ListingRepository, favorites repository.FavoriteRepository, metrics *metrics.ServiceMetrics) ListingService {
	tracer := otel.Tracer("listing-service/service")
	return &listingService{
		listings:  listings,
		favorites: favorites,
		metrics:   metrics,
		tracer:    tracer,
		now:       time.Now,
	}
}

func (s *listingService) Create(ctx context.Context, principal *domain.Principal, input domain.ListingFields) (listing *domain.Listing, err error) {
	ctx, span := s.tracer.Start(ctx, "Create")
	defer span.End()

	startTime := time.Now()
	defer func() { observe(s.metrics, "Create", startTime, err) }()

	if principal == nil {
		return nil, fmt.Errorf("%w: authentication required", domain.ErrAccessDenied)
	}
	if err := ValidateListingFields(input); err != nil {
		return nil, err
	}

	listing, err = s.listings.Create(ctx, domain.NewListing(principal.UserID, input, s.now().UTC()))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int64("listing.id", listing.ID),
		attribute.Int64("listing.owner_id", listing.OwnerID),
	)
	return listing, nil
}

func (s *listingService) Update(ctx context.Context, id int64, input domain.ListingFields, actor *domain.Principal) (listing *domain.Listing, err error) {
	ctx, span := s.tracer.Start(ctx, "Update")
	defer span.End()

	span.SetAttributes(attribute.Int64("listing.id", id))

	startTime := time.Now()
	defer func() { observe(s.metrics, "Update", startTime, err) }()

	if err := ValidateListingFields(input); err != nil {
		return nil, err
	}

	// The edit is checked against the locked row, never against a cached copy.
	listing, err = s.listings.Update(ctx, id, func(l *domain.Listing) error {
		return l.Edit(actor, input, s.now().UTC())
	})
	if err != nil {
		if statusLabel(err) == "error" {
			span.RecordError(err)
		}
		return nil, err
	}

	return listing, nil
}

func (s *listingService) Delete(ctx context.Context, id int64, actor *domain.Principal) (err error) {
	ctx, span := s.tracer.Start(ctx, "Delete")
	defer span.End()

	span.SetAttributes(attribute.Int64("listing.id", id))

	startTime := time.Now()
	defer func() { observe(s.metrics, "Delete", startTime, err) }()

	listing, err := s.listings.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if !listing.CanBeDeletedBy(actor) {
		return fmt.Errorf("%w: only the owner or an administrator can delete this listing", domain.ErrAccessDenied)
	}

	if err := s.listings.Delete(ctx, id); err != nil {
		span.RecordError(err)
		return err
	}

	return nil
}

// Get returns the listing if viewer may see it. A hidden listing is reported as not found.
func (s *listingService) Get(ctx context.Context, id int64, viewer *domain.Principal) (view *domain.ListingView, err error) {
	ctx, span := s.tracer.Start(ctx, "Get")
	defer span.End()

	span.SetAttributes(attribute.Int64("listing.id", id))

	startTime := time.Now()
	defer func() { observe(s.metrics, "Get", startTime, err) }()

	listing, err := s.listings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !listing.VisibleTo(viewer) {
		return nil, domain.ErrListingNotFound
	}

	view = &domain.ListingView{Listing: listing}
	if viewer != nil {
		favorite, err := s.favorites.Exists(ctx, viewer.UserID, id)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		view.IsFavorite = &favorite
	}

	return view, nil
}
