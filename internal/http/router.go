package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter assembles the HTTP facade.
func NewRouter(ch *CheckoutHandler, ah *AddressHandler, requestTimeout time.Duration) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/checkout", func(r chi.Router) {
			r.Post("/quote", ch.Quote)
			r.Post("/pix", ch.StartPix)
			r.Post("/card", ch.PayCard)
			r.Get("/{reference}/status", ch.Status)
			r.Delete("/{reference}", ch.Cancel)
		})
		r.Get("/address/{cep}", ah.Get)
	})

	return r
}
