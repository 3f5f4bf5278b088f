package http

import (
	"context"
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/identity-service/internal/application"
)

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// MetricsExporter instruments requests and serves the scrape endpoint.
type MetricsExporter interface {
	Instrument(next http.Handler) http.Handler
	Handler() http.Handler
}

// Handler is the HTTP adapter entrypoint for identity use-cases.
type Handler struct {
	service   *application.Service
	readiness map[string]ReadinessCheck
}

func NewHandler(service *application.Service, readiness map[string]ReadinessCheck) *Handler {
	return &Handler{service: service, readiness: readiness}
}

type RouterOptions struct {
	Metrics   MetricsExporter
	RateLimit RateLimitConfig
	// TrustedProxies lists the peers whose X-Forwarded-For header is honoured.
	TrustedProxies []netip.Prefix
}

// NewRouter registers routes and the middleware stack.
func NewRouter(handler *Handler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(clientIPMiddleware(opts.TrustedProxies))
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Instrument)
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)

	r.Route("/api/authentication", func(r chi.Router) {
		if opts.RateLimit.Enabled() {
			r.Use(newIPRateLimiter(opts.RateLimit).middleware)
		}
		r.Post("/register", handler.register)
		r.Post("/login", handler.login)
		r.Post("/refresh-token", handler.refreshToken)
		r.Post("/logout", handler.logout)
	})

	return r
}
