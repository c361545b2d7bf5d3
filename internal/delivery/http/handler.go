package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	grpcDelivery "github.com/vogiaan1904/ticketbottle-ticketlink/internal/delivery/grpc"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/service"
	pkgGrpc "github.com/vogiaan1904/ticketbottle-ticketlink/pkg/grpc"
	"github.com/vogiaan1904/ticketbottle-ticketlink/pkg/logger"
	"github.com/vogiaan1904/ticketbottle-ticketlink/pkg/response"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type HTTPHandler struct {
	authSvc    service.AuthService
	tlSvc      service.TicketLinkService
	ruleHealth healthpb.HealthClient
	l          logger.Logger
	validator  *validator.Validate
}

type Option func(*HTTPHandler)

// WithRuleHealth makes /health report the rule service's gRPC health status.
func WithRuleHealth(cli healthpb.HealthClient) Option {
	return func(h *HTTPHandler) { h.ruleHealth = cli }
}

func NewHTTPHandler(authSvc service.AuthService, tlSvc service.TicketLinkService, l logger.Logger, opts ...Option) *HTTPHandler {
	h := &HTTPHandler{
		authSvc:   authSvc,
		tlSvc:     tlSvc,
		l:         l,
		validator: validator.New(),
	}
	for _, opt := range opts {
		opt(h)
	}

	return h
}

// HealthCheck answers 200 and reports "degraded" while the rule service is not serving.
func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{
		"status":  "healthy",
		"service": "ticketing-service",
	}

	if h.ruleHealth != nil {
		status, err := pkgGrpc.CheckStatus(r.Context(), h.ruleHealth, grpcDelivery.RuleServiceName, 2*time.Second)
		if err != nil {
			h.l.Warnf(r.Context(), "delivery.http.HealthCheck: %v", err)
		}

		resp["rule_service"] = status.String()
		if status != healthpb.HealthCheckResponse_SERVING {
			resp["status"] = "degraded"
		}
	}

	h.respondJSON(w, r, http.StatusOK, resp)
}

func (h *HTTPHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.respondError(w, r, errInvalidRequest("Invalid request body"))
		return
	}

	if err := h.validator.Struct(in); err != nil {
		h.respondError(w, r, errInvalidRequest(err.Error()))
		return
	}

	out, err := h.authSvc.Register(r.Context(), in)
	if err != nil {
		h.respondError(w, r, h.mapHTTPError(err))
		return
	}

	h.respondJSON(w, r, http.StatusOK, out)
}

// Login accepts the OAuth2 password form fields.
func (h *HTTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.respondError(w, r, errInvalidRequest("Invalid form body"))
		return
	}

	in := service.LoginInput{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}
	if err := h.validator.Struct(in); err != nil {
		h.respondError(w, r, errInvalidRequest(err.Error()))
		return
	}

	out, err := h.authSvc.Login(r.Context(), in)
	if err != nil {
		h.respondError(w, r, h.mapHTTPError(err))
		return
	}

	h.respondJSON(w, r, http.StatusOK, out)
}

func (h *HTTPHandler) RequestTicketingLink(w http.ResponseWriter, r *http.Request) {
	out, err := h.tlSvc.RequestLink(r.Context(), identityFrom(r.Context()))
	if err != nil {
		h.respondError(w, r, h.mapHTTPError(err))
		return
	}

	h.respondJSON(w, r, http.StatusOK, out)
}

func (h *HTTPHandler) GetTicketingLink(w http.ResponseWriter, r *http.Request) {
	out, err := h.tlSvc.GetLink(r.Context(), identityFrom(r.Context()), baseURL(r))
	if err != nil {
		h.respondError(w, r, h.mapHTTPError(err))
		return
	}

	h.respondJSON(w, r, http.StatusOK, out)
}

func (h *HTTPHandler) BuyTicket(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "accessToken")

	out, err := h.tlSvc.Redeem(r.Context(), identityFrom(r.Context()), token)
	if err != nil {
		h.respondError(w, r, h.mapHTTPError(err))
		return
	}

	h.respondJSON(w, r, http.StatusOK, out)
}

// baseURL is the scheme and host the client used to reach us.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p == "http" || p == "https" {
		scheme = p
	}

	return scheme + "://" + r.Host
}

func (h *HTTPHandler) respondJSON(w http.ResponseWriter, r *http.Request, statusCode int, data any) {
	if err := response.JSON(w, statusCode, data); err != nil {
		h.l.Errorf(r.Context(), "delivery.http.respondJSON: %v", err)
	}
}

func (h *HTTPHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	h.l.Debugf(r.Context(), "delivery.http.respondError: %v", err)
	if err := response.Error(w, err); err != nil {
		h.l.Errorf(r.Context(), "delivery.http.respondError: %v", err)
	}
}
