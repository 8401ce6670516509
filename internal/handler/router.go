package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/billy-enrizky/matchmaking-drugs-v2/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware биржи.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Use(h.clientMiddleware.Middleware)
		r.Use(h.withSession)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/email", h.CheckEmail)
			r.Post("/register", h.Register)
			r.Post("/hospital", h.SubmitHospital)
			r.Post("/login", h.Login)
			r.Post("/logout", h.Logout)
			r.Get("/session", h.GetSession)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.requireHospital)

			r.Post("/requests", h.SubmitRequest)
			r.Get("/requests", h.GetRequests)
			r.Post("/requests/{id}/cancel", h.CancelRequest)

			r.Post("/offers", h.SubmitOffer)
			r.Get("/offers", h.GetOffers)
			r.Post("/offers/{id}/cancel", h.CancelOffer)

			r.Post("/drugs/csv", h.ImportDrugs)

			r.Get("/matches", h.GetMatches)
			r.Post("/matches/{id}/status", h.UpdateMatchStatus)
			r.Get("/matches/{id}/messages", h.GetMessages)
			r.Post("/matches/{id}/messages", h.SendMessage)

			r.Post("/messages/{id}/read", h.MarkMessageRead)
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
