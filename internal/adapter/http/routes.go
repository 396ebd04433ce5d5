package http

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Route("/api/v1", func(r chi.Router) {
		// Stateless operations
		r.Post("/optimize", h.OptimizeTasks)
		r.Post("/parse-tasks", h.ParseTasks)

		// Session-scoped operations
		r.Route("/sessions/{department}/{subDepartment}", func(r chi.Router) {
			r.Get("/tasks", h.ListTasks)
			r.Post("/tasks", h.CreateTask)
			r.Delete("/tasks/{id}", h.DeleteTask)
			r.Put("/tasks/{id}/status", h.SetTaskStatus)

			r.Get("/view", h.ViewTasks)
			r.Get("/optimization", h.GetOptimization)
			r.Post("/optimize", h.RunOptimization)
			r.Post("/import", h.ImportTasks)
		})
	})
}
