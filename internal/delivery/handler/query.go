package handler

import (
	"context"
	"net/http"
	"time"

	"listing-service/internal/domain"
	"listing-service/internal/service"
	"listing-service/pkg/utils"

	"go.opentelemetry.io/otel/attribute"
)

type queryFunc func(ctx context.Context, filter domain.QueryFilter, principal *domain.Principal) (*service.ListingPage, error)

func (h *ListingHandler) BrowseListings(w http.ResponseWriter, r *http.Request) {
	h.serveQuery(w, r, "BrowseListings", "/listings", h.queries.Browse)
}

func (h *ListingHandler) MyListings(w http.ResponseWriter, r *http.Request) {
	h.serveQuery(w, r, "MyListings", "/users/me/listings", h.queries.MyListings)
}

func (h *ListingHandler) MyFavorites(w http.ResponseWriter, r *http.Request) {
	h.serveQuery(w, r, "MyFavorites", "/users/me/favorites", h.queries.MyFavorites)
}

func (h *ListingHandler) serveQuery(w http.ResponseWriter, r *http.Request, name, endpoint string, run queryFunc) {
	ctx, span := h.tracer.Start(r.Context(), name)
	defer span.End()

	startTime := time.Now()
	status := "success"
	defer func() { h.observe("GET", endpoint, startTime, status) }()

	filter, err := parseQueryFilter(r)
	if err != nil {
		status = h.respondError(w, span, err, "query listings")
		return
	}

	span.SetAttributes(
		attribute.Int("query.page", filter.Page),
		attribute.Int("query.size", filter.Size),
		attribute.String("query.sort_by", filter.SortBy),
		attribute.String("query.sort_dir", filter.SortDir),
	)

	page, err := run(ctx, filter, principal(r))
	if err != nil {
		status = h.respondError(w, span, err, "query listings")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, page)
}
