package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"listing-service/pkg/logger"
	"listing-service/pkg/utils"

	"go.uber.org/zap"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type HealthHandler struct {
	checks  map[string]HealthCheck
	timeout time.Duration
	logger  *logger.Loggers
}

func NewHealthHandler(checks map[string]HealthCheck, timeout time.Duration, logger *logger.Loggers) *HealthHandler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthHandler{checks: checks, timeout: timeout, logger: logger}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := healthResponse{Status: "UP", Checks: make(map[string]string, len(names))}
	code := http.StatusOK
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.logger.ErrorLogger.Error("health check failed", zap.String("check", name), utils.Err(err))
			resp.Checks[name] = "DOWN"
			resp.Status = "DOWN"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "UP"
	}

	utils.RespondWithJSON(w, code, resp)
}
