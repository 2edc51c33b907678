// Package httptransport is the thin HTTP layer. Handlers decode, delegate to
// domain services and encode; business rules stay out of this package.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lendgate/pkg/requestcontext"
)

// Handlers groups the per-area handlers mounted on the router.
type Handlers struct {
	Rules      *RulesHandler
	Conditions *ConditionsHandler
	Workflow   *WorkflowHandler
	Decisions  *DecisionsHandler
	Pricing    *PricingHandler
	AppData    *AppDataHandler
	Audit      *AuditHandler
}

// NewRouter wires middleware and every endpoint group.
func NewRouter(h Handlers, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))
	r.Use(requestMeta)
	r.Use(requestLogger(logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	if h.Rules != nil {
		h.Rules.Register(r)
	}
	if h.Conditions != nil {
		h.Conditions.Register(r)
	}
	if h.Workflow != nil {
		h.Workflow.Register(r)
	}
	if h.Decisions != nil {
		h.Decisions.Register(r)
	}
	if h.Pricing != nil {
		h.Pricing.Register(r)
	}
	if h.AppData != nil {
		h.AppData.Register(r)
	}
	if h.Audit != nil {
		h.Audit.Register(r)
	}

	return r
}

// requestMeta copies transport metadata into the request context so services
// see only context values, never headers.
func requestMeta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = requestcontext.WithRequestID(ctx, chimiddleware.GetReqID(ctx))
		if actor := r.Header.Get("X-Actor-ID"); actor != "" {
			ctx = requestcontext.WithActor(ctx, actor)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", requestcontext.RequestID(r.Context()),
			)
		})
	}
}
