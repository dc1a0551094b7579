// Package router wires the gateway routes and middleware chain.
package router

import (
	"net/http"

	gwhandler "github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/gateway/handler"
	gwmw "github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/gateway/middleware"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/metrics"
	pkgmw "github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/middleware"
)

// Options carries the collaborators the chain needs besides the handler.
type Options struct {
	Validator  gwmw.KeyValidator
	Limiter    gwmw.Limiter
	GuestLimit int
	CORS       gwmw.CORSConfig
	Checker    *health.Checker
	Metrics    *metrics.Metrics
}

// New builds the gateway HTTP handler.
//
// Route table:
//
//	GET    /api/v1/search                  → search service
//	GET    /api/v1/index/stats             → search service
//	GET    /api/v1/cache/stats             → search service
//	GET    /api/v1/analytics               → analytics service
//	GET    /api/v1/analytics/snapshots     → analytics service
//	POST   /api/v1/admin/index/rebuild     → search service  (admin)
//	POST   /api/v1/admin/cache/invalidate  → search service  (admin)
//	PUT    /api/v1/admin/pages/{id}        → page store      (admin)
//	POST   /api/v1/admin/keys              → create key      (admin)
//	GET    /api/v1/admin/keys              → list keys       (admin)
//	DELETE /api/v1/admin/keys/{id}         → revoke key      (admin)
//	GET    /health/live, /health/ready
//
// Middleware chain (outermost first):
//
//	RequestID → Logging → Metrics → CORS → Identify → RateLimit → mux
func New(h *gwhandler.Handler, opts Options) http.Handler {
	mux := http.NewServeMux()

	if opts.Checker != nil {
		mux.HandleFunc("GET /health/live", opts.Checker.LiveHandler())
		mux.HandleFunc("GET /health/ready", opts.Checker.ReadyHandler())
	}

	mux.HandleFunc("GET /api/v1/search", h.ProxySearch)
	mux.HandleFunc("GET /api/v1/index/stats", h.ProxySearch)
	mux.HandleFunc("GET /api/v1/cache/stats", h.ProxySearch)
	mux.HandleFunc("GET /api/v1/analytics", h.ProxyAnalytics)
	mux.HandleFunc("GET /api/v1/analytics/snapshots", h.ProxyAnalytics)

	admin := func(f http.HandlerFunc) http.Handler { return gwmw.RequireAdmin(f) }
	mux.Handle("POST /api/v1/admin/index/rebuild", admin(stripAdmin(h.ProxySearch)))
	mux.Handle("POST /api/v1/admin/cache/invalidate", admin(stripAdmin(h.ProxySearch)))
	mux.Handle("PUT /api/v1/admin/pages/{id}", admin(h.PutPage))
	mux.Handle("DELETE /api/v1/admin/pages/{id}", admin(h.DeletePage))
	mux.Handle("POST /api/v1/admin/keys", admin(h.CreateKey))
	mux.Handle("GET /api/v1/admin/keys", admin(h.ListKeys))
	mux.Handle("DELETE /api/v1/admin/keys/{id}", admin(h.RevokeKey))

	mws := []func(http.Handler) http.Handler{pkgmw.RequestID, pkgmw.Logging}
	if opts.Metrics != nil {
		mws = append(mws, pkgmw.Metrics(opts.Metrics))
	}
	mws = append(mws,
		gwmw.CORS(opts.CORS),
		gwmw.Identify(opts.Validator),
		gwmw.RateLimit(opts.Limiter, opts.GuestLimit),
	)
	return pkgmw.Chain(mux, mws...)
}

// stripAdmin maps /api/v1/admin/<rest> onto the backend's /api/v1/<rest>.
func stripAdmin(next http.HandlerFunc) http.HandlerFunc {
	const prefix = "/api/v1/admin"
	return func(w http.ResponseWriter, r *http.Request) {
		r2 := r.Clone(r.Context())
		r2.URL.Path = "/api/v1" + r.URL.Path[len(prefix):]
		r2.URL.RawPath = ""
		next(w, r2)
	}
}
