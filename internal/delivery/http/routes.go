package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/metrics"
)

func (h *HTTPHandler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(Metrics)

	r.Get("/health", h.HealthCheck)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Post("/register", h.Register)
	r.Post("/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(h.Authenticate)

		r.Get("/request_for_ticketing_link", h.RequestTicketingLink)
		r.Get("/get_ticketing_link", h.GetTicketingLink)
		r.Get("/buy_ticket/{accessToken}", h.BuyTicket)
	})

	return r
}
