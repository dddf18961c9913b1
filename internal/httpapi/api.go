// Package httpapi exposes the HTTP surface: the JSON API under /api/,
// the server-rendered pages, and the access gate in front of both.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"temida.org/internal/audit"
	"temida.org/internal/auth"
	"temida.org/internal/mail"
	"temida.org/internal/obs"
	"temida.org/internal/ratelimit"
)

// API wires the auth service, stores and middleware into one handler.
type API struct {
	mux        *http.ServeMux
	auth       *auth.Service
	tokens     *auth.Tokens
	identities auth.IdentityStore
	audit      *audit.Recorder
	limiter    ratelimit.Limiter
	mail       mail.Sender

	db      *sql.DB // nil when running on the in-memory store
	version string

	maxBodyBytes      int64
	throttleBurst     int
	throttlePerSecond int
}

// Option customizes the API outside the required collaborators.
type Option func(*API)

// WithDB attaches the database handle used by the readiness probe.
func WithDB(db *sql.DB) Option {
	return func(a *API) { a.db = db }
}

// WithVersion reports a build version from /healthz.
func WithVersion(v string) Option {
	return func(a *API) { a.version = v }
}

// WithThrottle overrides the edge per-IP throttle parameters.
func WithThrottle(burst, perSecond int) Option {
	return func(a *API) {
		a.throttleBurst = burst
		a.throttlePerSecond = perSecond
	}
}

// New assembles the API and registers every route.
func New(svc *auth.Service, tokens *auth.Tokens, identities auth.IdentityStore, rec *audit.Recorder, limiter ratelimit.Limiter, sender mail.Sender, opts ...Option) *API {
	a := &API{
		mux:               http.NewServeMux(),
		auth:              svc,
		tokens:            tokens,
		identities:        identities,
		audit:             rec,
		limiter:           limiter,
		mail:              sender,
		version:           "dev",
		maxBodyBytes:      1 << 20,
		throttleBurst:     20,
		throttlePerSecond: 10,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.routes()
	return a
}

func (a *API) routes() {
	// Operational endpoints.
	a.mux.HandleFunc("/healthz", a.handleHealthz)
	a.mux.HandleFunc("/readyz", a.handleReadyz)
	a.mux.Handle("/metrics", obs.Handler())

	// Session lifecycle.
	a.mux.HandleFunc("/api/auth/login", a.handleLogin)
	a.mux.HandleFunc("/api/auth/register", a.handleRegister)
	a.mux.HandleFunc("/api/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("/api/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/api/auth/forgot-password", a.handleForgotPassword)
	a.mux.HandleFunc("/api/auth/reset-password", a.handleResetPassword)
	a.mux.HandleFunc("/api/auth/change-password", a.handleChangePassword)
	a.mux.HandleFunc("/api/auth/me", a.handleMe)

	// Admin surface.
	a.mux.HandleFunc("/api/admin/users", a.handleAdminUsers)
	a.mux.HandleFunc("/api/admin/users/bulk-status", a.handleAdminBulkStatus)
	a.mux.HandleFunc("/api/admin/audit", a.handleAdminAudit)

	// Pages.
	a.mux.HandleFunc("/", a.handleIndex)
	a.mux.HandleFunc("/login", a.handleLoginPage)
	a.mux.HandleFunc("/register", a.handleRegisterPage)
	a.mux.HandleFunc("/forgot-password", a.handleForgotPasswordPage)
	a.mux.HandleFunc("/reset-password", a.handleResetPasswordPage)
	a.mux.HandleFunc("/dashboard", a.handleDashboardPage)
	a.mux.HandleFunc("/admin", a.handleAdminPage)
}

// Handler returns the full middleware chain. Order matters: the request
// id exists before anything logs, the throttle runs before the gate
// spends signature checks but inside instrumentation so its 429s show up
// in the request metrics, and the gate runs last so every handler sees
// an authenticated context.
func (a *API) Handler() http.Handler {
	h := a.gate(a.mux)
	h = Throttle(h, a.throttleBurst, a.throttlePerSecond)
	h = obs.Instrument(h)
	h = MaxBodyBytes(h, a.maxBodyBytes)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return h
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": a.version,
	})
}

func (a *API) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if a.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.db.PingContext(ctx); err != nil {
			writeError(w, r, http.StatusServiceUnavailable, "database unreachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// record forwards to the audit trail when one is configured. Auditing is
// fire-and-forget; request handling never depends on it.
func (a *API) record(ctx context.Context, action, actorID string, metadata map[string]any) {
	if a.audit == nil {
		return
	}
	a.audit.Record(ctx, audit.Event{
		ActorID:  actorID,
		Action:   action,
		Category: "auth",
		Metadata: metadata,
	})
}
