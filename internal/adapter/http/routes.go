package http

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		// Entities
		r.Route("/entities/{kind}", func(r chi.Router) {
			r.Post("/", h.CreateEntity)
			r.Get("/", h.ListEntities)
			r.Get("/{externalID}", h.GetEntity)
			r.Patch("/{externalID}", h.UpdateEntity)
			r.Delete("/{externalID}", h.DeleteEntity)
		})

		// Sync queue and audit log
		r.Route("/sync", func(r chi.Router) {
			r.Get("/queue", h.ListQueue)
			r.Get("/queue/stats", h.QueueStats)
			r.Post("/queue/{id}/resubmit", h.ResubmitEntry)
			r.Get("/log", h.SyncLog)
			r.Post("/process", h.TriggerSync)
		})

		// API keys
		r.Post("/auth/keys", h.CreateAPIKey)
	})
}
