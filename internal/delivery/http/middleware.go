package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/metrics"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/models"
)

type identityKey struct{}

func identityFrom(ctx context.Context) models.Identity {
	if id, ok := ctx.Value(identityKey{}).(models.Identity); ok {
		return id
	}
	return models.GuestIdentity()
}

// Authenticate resolves the bearer credential, if any, to an identity.
// Requests without a valid credential proceed as guest.
func (h *HTTPHandler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var token string
		if scheme, cred, ok := strings.Cut(r.Header.Get("Authorization"), " "); ok && strings.EqualFold(scheme, "Bearer") {
			token = strings.TrimSpace(cred)
		}

		id := h.authSvc.Identify(r.Context(), token)
		ctx := context.WithValue(r.Context(), identityKey{}, id)
		ctx = h.l.With(ctx, "username", id.Username)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestLogger logs each request at a level chosen by its status code.
func (h *HTTPHandler) RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := h.l.With(r.Context(), "request_id", middleware.GetReqID(r.Context()))
		r = r.WithContext(ctx)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		switch {
		case status >= 500:
			h.l.Errorf(ctx, "%s %s %d %s", r.Method, r.URL.Path, status, time.Since(start))
		case status >= 400:
			h.l.Warnf(ctx, "%s %s %d %s", r.Method, r.URL.Path, status, time.Since(start))
		default:
			h.l.Infof(ctx, "%s %s %d %s", r.Method, r.URL.Path, status, time.Since(start))
		}
	})
}

// Metrics records request latency labelled by route pattern, not raw path,
// so access tokens never become label values.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		metrics.HTTPRequestDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}
