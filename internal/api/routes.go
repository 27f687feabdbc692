package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Referral-Session"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.HandleHealth)

	// Shareable referral links
	r.Get("/r/{code}", h.HandleClickThrough)

	r.Route("/api", func(r chi.Router) {
		r.Post("/clicks", h.HandleRecordClick)
		r.Post("/attribution/resolve", h.HandleResolve)

		r.Route("/directory", func(r chi.Router) {
			r.Post("/", h.HandleCreateEntry)
			r.Get("/{code}", h.HandleGetEntry)
			r.Get("/{code}/stats", h.HandleEntryStats)
			r.Post("/{code}/block", h.HandleBlockEntry)
			r.Post("/{code}/activate", h.HandleActivateEntry)
		})

		r.Route("/referrals", func(r chi.Router) {
			r.Get("/user/{userID}", h.HandleGetReferralForUser)
			r.Get("/referrer/{referrerID}", h.HandleListReferralsByReferrer)
		})
	})

	return r
}
