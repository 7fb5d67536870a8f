// Package httptransport assembles module handlers behind the shared
// middleware chain.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"disposisi/pkg/domain"
	"disposisi/pkg/platform/httputil"
	authmw "disposisi/pkg/platform/middleware/auth"
	"disposisi/pkg/platform/middleware/metadata"
	"disposisi/pkg/platform/middleware/request"
	"disposisi/pkg/platform/middleware/requesttime"
)

const healthCheckTimeout = 2 * time.Second

// AuthRoutes registers login and directory routes.
type AuthRoutes interface {
	RegisterPublic(r chi.Router)
	Register(r chi.Router)
}

// WorkflowRoutes registers record routes; RegisterTU holds the intake-only ones.
type WorkflowRoutes interface {
	RegisterPublic(r chi.Router)
	Register(r chi.Router)
	RegisterTU(r chi.Router)
}

// AttachmentRoutes registers download and upload routes.
type AttachmentRoutes interface {
	Register(r chi.Router)
	RegisterUpload(r chi.Router)
}

// HealthCheck reports whether a backing service is reachable.
type HealthCheck func(ctx context.Context) error

// Deps are the collaborators NewRouter wires together.
type Deps struct {
	Logger   *slog.Logger
	Tokens   authmw.TokenValidator
	Observer request.Observer
	Gatherer prometheus.Gatherer
	Health   map[string]HealthCheck

	// TrustedProxies may set X-Forwarded-For and X-Real-IP.
	TrustedProxies []netip.Prefix

	Auth        AuthRoutes
	Workflow    WorkflowRoutes
	Attachments AttachmentRoutes
}

// NewRouter builds the HTTP surface:
//
//	public:        /health, /metrics, POST /auth/login, GET /public/records
//	authenticated: directory, record reads, transitions, attachment download
//	TU only:       record create/edit/delete, attachment upload
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata(d.TrustedProxies))
	r.Use(requesttime.Middleware)
	r.Use(request.Recovery(d.Logger))
	r.Use(request.Logger(d.Logger, d.Observer))

	r.Get("/health", healthHandler(d.Health))
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	d.Auth.RegisterPublic(r)
	d.Workflow.RegisterPublic(r)

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(d.Tokens, d.Logger))
		d.Auth.Register(r)
		d.Workflow.Register(r)
		d.Attachments.Register(r)

		r.Group(func(r chi.Router) {
			r.Use(authmw.RequireRole(d.Logger, domain.RoleTU))
			d.Workflow.RegisterTU(r)
			d.Attachments.RegisterUpload(r)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: "not_found", ErrorDescription: "route not found"})
	})
	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		status := http.StatusOK
		components := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				components[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			components[name] = "ok"
		}
		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		httputil.WriteJSON(w, status, map[string]any{"status": overall, "components": components})
	}
}
