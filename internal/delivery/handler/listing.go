package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"listing-service/internal/domain"
	"listing-service/internal/service"
	"listing-service/pkg/utils"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

type listingRequest struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	City        string           `json:"city"`
}

// fields converts the request and validates it. A missing price is reported next to the
// field constraint violations.
func (req listingRequest) fields() (domain.ListingFields, error) {
	fields := domain.ListingFields{
		Title:       req.Title,
		Description: req.Description,
		City:        req.City,
	}
	if req.Price != nil {
		fields.Price = *req.Price
	}

	v := domain.NewValidationError()
	if req.Price == nil {
		v.Add("price", "price is required")
	}
	if err := service.ValidateListingFields(fields); err != nil {
		var fieldErr *domain.ValidationError
		if !errors.As(err, &fieldErr) {
			return fields, err
		}
		for field, msg := range fieldErr.Fields {
			v.Add(field, msg)
		}
	}
	return fields, v.Err()
}

type createListingResponse struct {
	Message   string               `json:"message"`
	Status    domain.ListingStatus `json:"status"`
	ListingID int64                `json:"listingId"`
}

type updateListingResponse struct {
	Message string               `json:"message"`
	Status  domain.ListingStatus `json:"status"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func decodeListingRequest(r *http.Request) (domain.ListingFields, error) {
	var req listingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return domain.ListingFields{}, errInvalidPayload
	}
	return req.fields()
}

func (h *ListingHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateListing")
	defer span.End()

	startTime := time.Now()
	status := "success"
	defer func() { h.observe("POST", "/listings", startTime, status) }()

	fields, err := decodeListingRequest(r)
	if err != nil {
		status = h.respondError(w, span, err, "create listing")
		return
	}

	span.SetAttributes(
		attribute.String("listing.title", fields.Title),
		attribute.String("listing.price", fields.Price.String()),
	)

	listing, err := h.listings.Create(ctx, principal(r), fields)
	if err != nil {
		status = h.respondError(w, span, err, "create listing")
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, createListingResponse{
		Message:   "listing created and sent for moderation",
		Status:    listing.Status,
		ListingID: listing.ID,
	})
}

func (h *ListingHandler) UpdateListing(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateListing")
	defer span.End()

	startTime := time.Now()
	status := "success"
	defer func() { h.observe("PUT", "/listings/{id}", startTime, status) }()

	id, err := parseID(r)
	if err != nil {
		status = h.respondError(w, span, err, "update listing")
		return
	}
	span.SetAttributes(attribute.Int64("listing.id", id))

	fields, err := decodeListingRequest(r)
	if err != nil {
		status = h.respondError(w, span, err, "update listing")
		return
	}

	listing, err := h.listings.Update(ctx, id, fields, principal(r))
	if err != nil {
		status = h.respondError(w, span, err, "update listing")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, updateListingResponse{
		Message: "listing updated",
		Status:  listing.Status,
	})
}

func (h *ListingHandler) DeleteListing(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "DeleteListing")
	defer span.End()

	startTime := time.Now()
	status := "success"
	defer func() { h.observe("DELETE", "/listings/{id}", startTime, status) }()

	id, err := parseID(r)
	if err != nil {
		status = h.respondError(w, span, err, "delete listing")
		return
	}
	span.SetAttributes(attribute.Int64("listing.id", id))

	if err := h.listings.Delete(ctx, id, principal(r)); err != nil {
		status = h.respondError(w, span, err, "delete listing")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, messageResponse{Message: "listing deleted"})
}

func (h *ListingHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetListing")
	defer span.End()

	startTime := time.Now()
	status := "success"
	defer func() { h.observe("GET", "/listings/{id}", startTime, status) }()

	id, err := parseID(r)
	if err != nil {
		status = h.respondError(w, span, err, "get listing")
		return
	}
	span.SetAttributes(attribute.Int64("listing.id", id))

	view, err := h.listings.Get(ctx, id, principal(r))
	if err != nil {
		status = h.respondError(w, span, err, "get listing")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, view)
}
