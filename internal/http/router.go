package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Kluncker/rockville-cg-app/internal/models"
)

// NewRouter builds the API with CORS and request logging in front.
func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))
	r.Use(app.requestLogger)
	RegisterRoutes(r, app)
	return r
}

func RegisterRoutes(r chi.Router, app *App) {
	r.Get("/healthz", healthHandler)

	// email links, no sign-in
	r.Get("/api/task/confirm", app.confirmLink)
	r.Get("/api/task/decline", app.declineLink)
	r.Post("/api/tasks/confirm-by-token", app.confirmByToken)
	r.Post("/api/tasks/decline-by-token", app.declineByToken)

	r.Group(func(r chi.Router) {
		r.Use(app.authenticate)

		r.Get("/api/tasks/mine", app.myTasks)
		r.Get("/api/tasks/{task_id}", app.getTask)
		r.Get("/api/events/{event_id}", app.getEvent)
		r.Post("/api/tasks/{task_id}/confirm", app.confirmTask)
		r.Post("/api/tasks/{task_id}/decline", app.declineTask)

		r.Group(func(r chi.Router) {
			r.Use(requireRole(models.RoleLeader, models.RoleAdmin))
			r.Post("/api/events", app.createEvent)
			r.Delete("/api/events/{event_id}", app.deleteEvent)
			r.Post("/api/tasks", app.createTask)
			r.Patch("/api/tasks/{task_id}", app.updateTask)
			r.Post("/api/tasks/{task_id}/assign", app.assignTask)
		})

		r.With(requireRole(models.RoleAdmin)).Post("/api/reminders/run", app.runReminders)
	})
}
