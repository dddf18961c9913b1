package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"temida.org/internal/auth"
)

func TestGatePublicPathsPassWithoutToken(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/", "/login", "/register", "/forgot-password", "/healthz"} {
		rec := env.do(t, http.MethodGet, path, nil, "")
		if rec.Code == http.StatusUnauthorized || rec.Code == http.StatusSeeOther {
			t.Fatalf("public path %s blocked: %d", path, rec.Code)
		}
	}
}

func TestGateAPIWithoutTokenGets401JSON(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/auth/me", nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("content type = %q", ct)
	}
	body := decodeBody(t, rec)
	if body["error"] != "authentication_required" {
		t.Fatalf("error = %v", body["error"])
	}
}

func TestGatePageWithoutTokenRedirectsToLogin(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/dashboard?tab=cases", nil, "")
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d", rec.Code)
	}
	loc := rec.Header().Get("Location")
	u, err := url.Parse(loc)
	if err != nil {
		t.Fatal(err)
	}
	if u.Path != "/login" {
		t.Fatalf("redirected to %q", loc)
	}
	if next := u.Query().Get("next"); next != "/dashboard?tab=cases" {
		t.Fatalf("next = %q", next)
	}
}

func TestGateInvalidTokenDenied(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/auth/me", nil, "garbage-token")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

// A rejected token leaves an actorless trail entry carrying the path but
// never the token itself.
func TestGateTokenRejectionIsAudited(t *testing.T) {
	env := newTestEnv(t)
	const badToken = "expired-or-forged"
	env.do(t, http.MethodGet, "/api/auth/me", nil, badToken)

	events, err := env.audits.ListRecent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, ev := range events {
		if ev.Action != "auth.token_rejected" {
			continue
		}
		if ev.ActorID != "" {
			t.Fatalf("pre-auth rejection has actor %q", ev.ActorID)
		}
		if ev.Metadata["path"] != "/api/auth/me" {
			t.Fatalf("path = %v", ev.Metadata["path"])
		}
		for _, v := range ev.Metadata {
			if s, ok := v.(string); ok && strings.Contains(s, badToken) {
				t.Fatal("token material leaked into audit metadata")
			}
		}
		return
	}
	t.Fatal("token rejection not recorded in the audit trail")
}

func TestGateValidTokenPasses(t *testing.T) {
	env := newTestEnv(t)
	id := env.register(t, "dana@example.org", "s3cret-pass")
	rec := env.do(t, http.MethodGet, "/api/auth/me", nil, env.accessToken(t, id))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["email"] != "dana@example.org" {
		t.Fatalf("email = %v", body["email"])
	}
}

func TestGateSessionCookieAccepted(t *testing.T) {
	env := newTestEnv(t)
	id := env.register(t, "dana@example.org", "s3cret-pass")

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: env.accessToken(t, id)})
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGateRefreshTokenRejectedAsSession(t *testing.T) {
	env := newTestEnv(t)
	id := env.register(t, "dana@example.org", "s3cret-pass")
	refresh, _, err := env.tokens.Issue(id, auth.TokenRefresh)
	if err != nil {
		t.Fatal(err)
	}
	rec := env.do(t, http.MethodGet, "/api/auth/me", nil, refresh)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh token accepted at the gate: %d", rec.Code)
	}
}

// A valid but non-admin identity on an admin path must get 403, never 401.
func TestGateNonAdminOnAdminAPIGets403(t *testing.T) {
	env := newTestEnv(t)
	id := env.register(t, "dana@example.org", "s3cret-pass")
	rec := env.do(t, http.MethodGet, "/api/admin/users", nil, env.accessToken(t, id))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "permission_denied" {
		t.Fatalf("error = %v", body["error"])
	}
}

func TestGateNonAdminOnAdminPageRedirectsHome(t *testing.T) {
	env := newTestEnv(t)
	id := env.register(t, "dana@example.org", "s3cret-pass")

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: env.accessToken(t, id)})
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/" {
		t.Fatalf("redirected to %q", loc)
	}
}

func TestGateAdminAllowed(t *testing.T) {
	env := newTestEnv(t)
	admin := env.registerAdmin(t, "root@example.org", "s3cret-pass")
	rec := env.do(t, http.MethodGet, "/api/admin/users", nil, env.accessToken(t, admin))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

// Prefix rules: /administrator is not an admin path, /admin/anything is.
func TestIsAdminPath(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"/admin", true},
		{"/admin/", true},
		{"/admin/users", true},
		{"/api/admin/users", true},
		{"/administrator", false},
		{"/api/administrator", false},
		{"/api/auth/me", false},
	}
	for _, c := range cases {
		if got := isAdminPath(c.path); got != c.want {
			t.Errorf("isAdminPath(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}

// The allow-list is exact: "/" is public, "/dashboard" is not, and a public
// path being a lexical prefix of a protected one grants nothing.
func TestIsPublicPath(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"/", true},
		{"/login", true},
		{"/assets/app.css", true},
		{"/api/auth/login", true},
		{"/api/auth/me", false},
		{"/dashboard", false},
		{"/loginx", false},
		{"/api/auth/login/extra", false},
	}
	for _, c := range cases {
		if got := isPublicPath(c.path); got != c.want {
			t.Errorf("isPublicPath(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}
