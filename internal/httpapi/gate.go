package httpapi

import (
	"net/http"
	"net/url"
	"strings"

	"temida.org/internal/audit"
	"temida.org/internal/auth"
	"temida.org/internal/obs"
)

// SessionCookie carries the access token for the server-rendered pages.
// API clients may instead send Authorization: Bearer.
const SessionCookie = "temida_session"

// Public routes pass through the gate unauthenticated. The allow-list is
// checked first and short-circuits everything else, including for paths
// that are lexical prefixes of protected ones.
var publicPaths = []string{
	"/",
	"/login",
	"/register",
	"/forgot-password",
	"/reset-password",
	"/healthz",
	"/readyz",
	"/metrics",
	"/api/auth/login",
	"/api/auth/register",
	"/api/auth/refresh",
	"/api/auth/forgot-password",
	"/api/auth/reset-password",
}

var publicPrefixes = []string{
	"/assets/",
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func isAdminPath(path string) bool {
	return path == "/admin" || strings.HasPrefix(path, "/admin/") ||
		strings.HasPrefix(path, "/api/admin/")
}

// isAPIPath separates the JSON surface from the page surface: the former
// answers failures with status codes, the latter with redirects.
func isAPIPath(path string) bool {
	return strings.HasPrefix(path, "/api/")
}

// gate classifies every inbound request as public, authenticated-required
// or admin-required, verifies the token once, and injects the principal
// into the downstream context. Handlers never re-derive these checks.
func (a *API) gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		if isPublicPath(path) {
			next.ServeHTTP(w, r)
			return
		}

		raw := extractToken(r)
		if raw == "" {
			a.denyUnauthenticated(w, r)
			return
		}
		claims, err := a.tokens.Verify(raw, auth.TokenAccess)
		if err != nil {
			obs.TokenFailures.Inc()
			// Pre-auth failure: no actor. The path is enough to reconstruct
			// the rejection; the token itself never enters the trail.
			if a.audit != nil {
				a.audit.Record(r.Context(), audit.Event{
					Action:   "auth.token_rejected",
					Category: "auth",
					Severity: audit.SeverityWarn,
					Metadata: map[string]any{"path": path},
				})
			}
			a.denyUnauthenticated(w, r)
			return
		}

		if isAdminPath(path) && claims.Role != auth.RoleAdmin {
			// Valid identity, insufficient role: permission denied, not an
			// authentication failure.
			a.record(r.Context(), "auth.permission_denied", claims.Subject, map[string]any{
				"path": path,
				"role": string(claims.Role),
			})
			if isAPIPath(path) {
				writeError(w, r, http.StatusForbidden, "permission_denied")
			} else {
				http.Redirect(w, r, "/", http.StatusSeeOther)
			}
			return
		}

		ctx := auth.ContextWithPrincipal(r.Context(), auth.Principal{
			SubjectID: claims.Subject,
			Role:      claims.Role,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *API) denyUnauthenticated(w http.ResponseWriter, r *http.Request) {
	if isAPIPath(r.URL.Path) {
		writeError(w, r, http.StatusUnauthorized, "authentication_required")
		return
	}
	// Pages bounce to login, preserving the original destination.
	target := "/login?next=" + url.QueryEscape(r.URL.RequestURI())
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// extractToken prefers the session cookie (pages) and falls back to a
// bearer header (API clients).
func extractToken(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const bearer = "Bearer "
	if len(header) > len(bearer) && strings.EqualFold(header[:len(bearer)], bearer) {
		return strings.TrimSpace(header[len(bearer):])
	}
	return ""
}
