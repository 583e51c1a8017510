package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter assembles the API routes. Every route requires a forwarded user
// identity; authentication itself is upstream's concern.
func NewRouter(
	users *UserHandler,
	posts *PostHandler,
	search *SearchHandler,
	tasks *TaskHandler,
	notifications *NotificationHandler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		// Provisioning routes, called by the gateway itself rather than on
		// behalf of an end user.
		r.Post("/users", users.CreateUser)
		r.Get("/users/{id}", users.GetUser)

		r.Group(func(r chi.Router) {
			r.Use(RequireUser)

			r.Post("/posts", posts.CreatePost)
			r.Delete("/posts/{id}", posts.DeletePost)

			r.Get("/search", search.Search)

			r.Post("/tasks/{name}", tasks.LaunchTask)
			r.Get("/tasks", tasks.ListTasks)

			r.Get("/notifications", notifications.Poll)
		})
	})

	return r
}
