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

type ListingPage = domain.PaginatedResult[*domain.ListingView]

// QueryService runs filtered, paginated listing queries for the three browse surfaces.
type QueryService interface {
	Browse(ctx context.Context, filter domain.QueryFilter, viewer *domain.Principal) (*ListingPage, error)
	MyListings(ctx context.Context, filter domain.QueryFilter, principal *domain.Principal) (*ListingPage, error)
	MyFavorites(ctx context.Context, filter domain.QueryFilter, principal *domain.Principal) (*ListingPage, error)
}

type queryService struct {
	listings      repository.ListingRepository
	favorites     repository.FavoriteRepository
	metrics       *metrics.ServiceMetrics
	tracer        trace.Tracer
	strictSortDir bool
}

func NewQueryService(listings repository.ListingRepository, favorites repository.FavoriteRepository, metrics *metrics.ServiceMetrics, strictSortDir bool) QueryService {
	return &queryService{
		listings:      listings,
		favorites:     favorites,
		metrics:       metrics,
		tracer:        otel.Tracer("listing-service/service"),
		strictSortDir: strictSortDir,
	}
}

func (s *queryService) Browse(ctx context.Context, filter domain.QueryFilter, viewer *domain.Principal) (page *ListingPage, err error) {
	ctx, span := s.tracer.Start(ctx, "Browse")
	defer span.End()

	startTime := time.Now()
	defer func() { observe(s.metrics, "Browse", startTime, err) }()

	return s.run(ctx, span, filter.ForPublic(), viewer, false)
}

func (s *queryService) MyListings(ctx context.Context, filter domain.QueryFilter, principal *domain.Principal) (page *ListingPage, err error) {
	ctx, span := s.tracer.Start(ctx, "MyListings")
	defer span.End()

	startTime := time.Now()
	defer func() { observe(s.metrics, "MyListings", startTime, err) }()

	if principal == nil {
		return nil, fmt.Errorf("%w: authentication required", domain.ErrAccessDenied)
	}
	return s.run(ctx, span, filter.WithOwner(principal.UserID), principal, false)
}

func (s *queryService) MyFavorites(ctx context.Context, filter domain.QueryFilter, principal *domain.Principal) (page *ListingPage, err error) {
	ctx, span := s.tracer.Start(ctx, "MyFavorites")
	defer span.End()

	startTime := time.Now()
	defer func() { observe(s.metrics, "MyFavorites", startTime, err) }()

	if principal == nil {
		return nil, fmt.Errorf("%w: authentication required", domain.ErrAccessDenied)
	}
	return s.run(ctx, span, filter.WithFavoritesOf(principal.UserID), principal, true)
}

func (s *queryService) run(ctx context.Context, span trace.Span, filter domain.QueryFilter, viewer *domain.Principal, allFavorites bool) (*ListingPage, error) {
	if err := ValidateQuery(filter); err != nil {
		return nil, err
	}

	spec, err := repository.BuildSpecification(filter, s.strictSortDir)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("query.page", filter.Page),
		attribute.Int("query.size", filter.Size),
		attribute.String("query.order", spec.Order.SQL()),
	)

	listings, total, err := s.listings.FindPage(ctx, spec, filter.ZeroBasedPage(), filter.Size)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	views := make([]*domain.ListingView, 0, len(listings))
	for _, l := range listings {
		views = append(views, &domain.ListingView{Listing: l})
	}

	if err := s.annotate(ctx, views, viewer, allFavorites); err != nil {
		span.RecordError(err)
		return nil, err
	}

	return &ListingPage{
		Data:       views,
		Pagination: domain.NewPagination(filter.ZeroBasedPage(), filter.Size, total),
	}, nil
}

// annotate sets isFavorite on every item for an authenticated viewer, loading the
// viewer's favorite ids once per page.
func (s *queryService) annotate(ctx context.Context, views []*domain.ListingView, viewer *domain.Principal, allFavorites bool) error {
	if viewer == nil || len(views) == 0 {
		return nil
	}

	if allFavorites {
		for _, v := range views {
			favorite := true
			v.IsFavorite = &favorite
		}
		return nil
	}

	ids, err := s.favorites.ListingIDsByUser(ctx, viewer.UserID)
	if err != nil {
		return err
	}

	for _, v := range views {
		_, favorite := ids[v.ID]
		v.IsFavorite = &favorite
	}
	return nil
}
