package router

import (
	"context"
	"net/http"

	"listing-service/internal/delivery/handler"
	"listing-service/internal/delivery/middleware"
	"listing-service/internal/domain"
	"listing-service/internal/infrastructure/metrics"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

type Options struct {
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
}

// SetupRoutes mounts the listing API under /api/v1 plus /metrics and /health.
// The rate limiter's cleanup goroutine stops when ctx is done.
func SetupRoutes(
	ctx context.Context,
	r chi.Router,
	listingHandler *handler.ListingHandler,
	health http.Handler,
	auth *middleware.Authenticator,
	handlerMetrics *metrics.HandlerMetrics,
	opts Options,
) {
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(corsHandler(opts.AllowedOrigins))

	limit := middleware.RateLimit(ctx, opts.RateLimitRPS, opts.RateLimitBurst)

	r.Route("/api/v1", func(api chi.Router) {
		api.Group(func(public chi.Router) {
			public.Use(auth.Optional)
			public.Get("/listings", listingHandler.BrowseListings)
			public.Get("/listings/{id}", listingHandler.GetListing)
		})

		api.Group(func(user chi.Router) {
			user.Use(auth.Required)

			user.Group(func(mutating chi.Router) {
				mutating.Use(limit)
				mutating.Post("/listings", listingHandler.CreateListing)
				mutating.Put("/listings/{id}", listingHandler.UpdateListing)
				mutating.Delete("/listings/{id}", listingHandler.DeleteListing)
				mutating.Post("/listings/{id}/toggle-favorite", listingHandler.ToggleFavorite)
			})

			user.Get("/users/me/listings", listingHandler.MyListings)
			user.Get("/users/me/favorites", listingHandler.MyFavorites)
		})

		api.Group(func(admin chi.Router) {
			admin.Use(auth.Required)
			admin.Use(middleware.RequireRole(domain.RoleAdmin))
			admin.Patch("/admin/listings/{id}/approve", listingHandler.ApproveListing)
			admin.Patch("/admin/listings/{id}/reject", listingHandler.RejectListing)
		})
	})

	r.Handle("/metrics", handlerMetrics.HTTPHandler())
	r.Handle("/health", health)
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler
}
