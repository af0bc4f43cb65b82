package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/tirebot/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Get("/healthz", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.With(h.signature.Middleware).Post("/whatsapp/webhook", h.WhatsAppWebhook)
		r.Post("/webhook/stripe", h.StripeWebhook)

		r.Post("/search-tyres", h.SearchTyres)

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.CreateOrder)
			r.Get("/{id}", h.GetOrder)

			r.Group(func(r chi.Router) {
				r.Use(h.admin.Middleware)

				r.Post("/{id}/ready", h.MarkReady)
				r.Post("/{id}/complete", h.MarkCompleted)
			})
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
