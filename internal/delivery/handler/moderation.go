package handler

import (
	"net/http"
	"time"

	"listing-service/internal/domain"
	"listing-service/pkg/utils"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type statusResponse struct {
	Status domain.ListingStatus `json:"status"`
}

func (h *ListingHandler) ApproveListing(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, domain.StatusApproved, "/admin/listings/{id}/approve")
}

func (h *ListingHandler) RejectListing(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, domain.StatusRejected, "/admin/listings/{id}/reject")
}

func (h *ListingHandler) moderate(w http.ResponseWriter, r *http.Request, target domain.ListingStatus, endpoint string) {
	ctx, span := h.tracer.Start(r.Context(), "ModerateListing")
	defer span.End()

	startTime := time.Now()
	status := "success"
	defer func() { h.observe("PATCH", endpoint, startTime, status) }()

	id, err := parseID(r)
	if err != nil {
		status = h.respondError(w, span, err, "moderate listing")
		return
	}

	span.SetAttributes(
		attribute.Int64("listing.id", id),
		attribute.String("listing.target_status", string(target)),
	)

	listing, err := h.statuses.ChangeStatus(ctx, id, target)
	if err != nil {
		status = h.respondError(w, span, err, "moderate listing")
		return
	}

	if p := principal(r); p != nil {
		h.logger.InfoLogger.Info("listing moderated",
			zap.Int64("listingId", listing.ID),
			zap.String("status", string(listing.Status)),
			zap.Int64("moderatorId", p.UserID),
		)
	}

	utils.RespondWithJSON(w, http.StatusOK, statusResponse{Status: listing.Status})
}
