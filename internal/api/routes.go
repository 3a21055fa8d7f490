package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures the admin API routes.
func SetupRoutes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.HandleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/monitor", func(r chi.Router) {
			r.Post("/start", h.HandleMonitorStart)
			r.Post("/stop", h.HandleMonitorStop)
			r.Post("/run", h.HandleMonitorRun)
			r.Get("/status", h.HandleMonitorStatus)
		})

		r.Post("/watch", h.HandleWatch)

		r.Route("/subsystems", func(r chi.Router) {
			r.Get("/", h.HandleListSubsystems)
			r.Get("/search", h.HandleSearchSubsystems)
			r.Post("/subscribe", h.HandleSubscribe)
			r.Post("/unsubscribe", h.HandleUnsubscribe)
		})

		r.Get("/operations", h.HandleRecentOperations)

		r.Route("/filters", func(r chi.Router) {
			r.Get("/", h.HandleListFilters)
			r.Post("/", h.HandleCreateFilter)
			r.Delete("/", h.HandleClearFilters)
			r.Get("/types", h.HandleFilterTypes)
			r.Get("/config/exclusive", h.HandleGetExclusiveMode)
			r.Put("/config/exclusive", h.HandleSetExclusiveMode)
			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", h.HandleGetFilter)
				r.Delete("/", h.HandleDeleteFilter)
				r.Post("/enable", h.HandleEnableFilter)
				r.Post("/disable", h.HandleDisableFilter)
				r.Post("/toggle", h.HandleToggleFilter)
				r.Post("/conditions", h.HandleAddCondition)
				r.Delete("/conditions", h.HandleRemoveCondition)
				r.Delete("/types", h.HandleRemoveTypes)
			})
		})
	})

	return r
}
