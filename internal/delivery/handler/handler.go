package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"listing-service/internal/delivery/middleware"
	"listing-service/internal/domain"
	"listing-service/internal/infrastructure/metrics"
	"listing-service/internal/service"
	"listing-service/pkg/logger"
	"listing-service/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var errInvalidPayload = fmt.Errorf("%w: invalid request payload", domain.ErrInvalidArgument)

type ListingHandler struct {
	listings  service.ListingService
	queries   service.QueryService
	statuses  service.StatusService
	favorites service.FavoriteService
	logger    *logger.Loggers
	metrics   *metrics.HandlerMetrics
	tracer    trace.Tracer
}

func NewListingHandler(
	listings service.ListingService,
	queries service.QueryService,
	statuses service.StatusService,
	favorites service.FavoriteService,
	logger *logger.Loggers,
	metrics *metrics.HandlerMetrics,
) *ListingHandler {
	tracer := otel.Tracer("listing-service/handler")
	return &ListingHandler{
		listings:  listings,
		queries:   queries,
		statuses:  statuses,
		favorites: favorites,
		logger:    logger,
		metrics:   metrics,
		tracer:    tracer,
	}
}

func (h *ListingHandler) observe(method, endpoint string, startTime time.Time, status string) {
	duration := time.Since(startTime).Seconds()
	h.metrics.RequestCount.WithLabelValues(method, endpoint, status).Inc()
	h.metrics.RequestDuration.WithLabelValues(method, endpoint, status).Observe(duration)
}

// respondError maps a service error to its HTTP response and returns the metrics status label.
func (h *ListingHandler) respondError(w http.ResponseWriter, span trace.Span, err error, action string) string {
	var validationErr *domain.ValidationError

	switch {
	case errors.As(err, &validationErr):
		utils.RespondWithValidationErrors(w, "validation failed", validationErr.Fields)
		return "invalid"
	case errors.Is(err, domain.ErrListingNotFound):
		utils.RespondWithErrorJSON(w, http.StatusNotFound, "listing not found")
		return "not_found"
	case errors.Is(err, domain.ErrInvalidListingState):
		utils.RespondWithErrorJSON(w, http.StatusConflict, publicMessage(err, domain.ErrInvalidListingState))
		return "conflict"
	case errors.Is(err, domain.ErrAccessDenied):
		utils.RespondWithErrorJSON(w, http.StatusForbidden, publicMessage(err, domain.ErrAccessDenied))
		return "forbidden"
	case errors.Is(err, domain.ErrInvalidArgument):
		utils.RespondWithErrorJSON(w, http.StatusBadRequest, publicMessage(err, domain.ErrInvalidArgument))
		return "invalid"
	default:
		span.RecordError(err)
		h.logger.ErrorLogger.Error("failed to "+action, utils.Err(err))
		utils.RespondWithErrorJSON(w, http.StatusInternalServerError, "internal server error")
		return "error"
	}
}

// publicMessage strips the sentinel prefix from a wrapped domain error,
// e.g. "access denied: you are not the owner" becomes "you are not the owner".
func publicMessage(err, sentinel error) string {
	msg := strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
	if msg == "" {
		return sentinel.Error()
	}
	return msg
}

func parseID(r *http.Request) (int64, error) {
	idParam := chi.URLParam(r, "id")
	if idParam == "" {
		return 0, fmt.Errorf("%w: missing id parameter", domain.ErrInvalidArgument)
	}

	id, err := strconv.ParseInt(idParam, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id parameter", domain.ErrInvalidArgument)
	}
	return id, nil
}

func parseQueryFilter(r *http.Request) (domain.QueryFilter, error) {
	query := r.URL.Query()
	filter := domain.DefaultQueryFilter()
	v := domain.NewValidationError()

	parseInt := func(name string, dst *int) {
		raw := strings.TrimSpace(query.Get(name))
		if raw == "" {
			return
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			v.Add(name, name+" must be an integer")
			return
		}
		*dst = n
	}
	parseDecimal := func(name string) *decimal.Decimal {
		raw := strings.TrimSpace(query.Get(name))
		if raw == "" {
			return nil
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			v.Add(name, name+" must be a decimal number")
			return nil
		}
		return &d
	}

	parseInt("page", &filter.Page)
	parseInt("size", &filter.Size)
	filter.PriceFrom = parseDecimal("priceFrom")
	filter.PriceTo = parseDecimal("priceTo")

	if sortBy := strings.TrimSpace(query.Get("sortBy")); sortBy != "" {
		filter.SortBy = sortBy
	}
	if sortDir := strings.TrimSpace(query.Get("sortDir")); sortDir != "" {
		filter.SortDir = sortDir
	}

	filter.Title = query.Get("title")
	filter.Description = query.Get("description")
	filter.City = query.Get("city")

	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status, err := domain.ParseListingStatus(raw)
		if err != nil {
			return filter, err
		}
		filter.Status = &status
	}

	return filter, v.Err()
}

func principal(r *http.Request) *domain.Principal {
	return middleware.PrincipalFromContext(r.Context())
}
