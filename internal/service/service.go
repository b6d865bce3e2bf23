package service

import (
	"errors"
	"time"

	"listing-service/internal/domain"
	"listing-service/internal/infrastructure/metrics"
)

// statusLabel maps an operation result to the metrics status label.
func statusLabel(err error) string {
	var validationErr *domain.ValidationError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrListingNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrAccessDenied):
		return "forbidden"
	case errors.Is(err, domain.ErrInvalidListingState):
		return "conflict"
	case errors.Is(err, domain.ErrInvalidArgument), errors.As(err, &validationErr):
		return "invalid"
	default:
		return "error"
	}
}

func observe(m *metrics.ServiceMetrics, method string, startTime time.Time, err error) {
	status := statusLabel(err)
	duration := time.Since(startTime).Seconds()
	m.MethodCount.WithLabelValues(method, status).Inc()
	m.MethodDuration.WithLabelValues(method, status).Observe(duration)
}
