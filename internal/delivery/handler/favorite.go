package handler

import (
	"net/http"
	"time"

	"listing-service/pkg/utils"

	"go.opentelemetry.io/otel/attribute"
)

type favoriteResponse struct {
	IsFavorite bool `json:"isFavorite"`
}

func (h *ListingHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ToggleFavorite")
	defer span.End()

	startTime := time.Now()
	status := "success"
	defer func() { h.observe("POST", "/listings/{id}/toggle-favorite", startTime, status) }()

	id, err := parseID(r)
	if err != nil {
		status = h.respondError(w, span, err, "toggle favorite")
		return
	}
	span.SetAttributes(attribute.Int64("listing.id", id))

	favorite, err := h.favorites.Toggle(ctx, principal(r), id)
	if err != nil {
		status = h.respondError(w, span, err, "toggle favorite")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, favoriteResponse{IsFavorite: favorite})
}
