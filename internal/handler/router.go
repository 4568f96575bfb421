package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	custommiddleware "github.com/walleai/walle-agent/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware агента Walle.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/cards", h.GetCards)
			r.Post("/cards", h.AddCard)
			r.Put("/cards/{index}", h.UpdateCard)
			r.Delete("/cards/{index}", h.DeleteCard)
			r.Post("/cards/reset", h.ResetCards)

			r.Post("/chat", h.Chat)
			r.Post("/reminders", h.GetReminders)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
