package httpapi

import (
	"html/template"
	"net/http"

	"temida.org/internal/auth"
)

// The page surface is deliberately thin: static shells that the frontend
// hydrates against /api/. The gate still protects /dashboard and /admin so
// unauthenticated visitors are redirected before any markup is served.

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}} — Temida</title>
<link rel="stylesheet" href="/assets/app.css">
</head>
<body>
<main id="app" data-page="{{.Page}}"{{if .Next}} data-next="{{.Next}}"{{end}}>
<h1>{{.Title}}</h1>
<noscript>This page requires JavaScript.</noscript>
</main>
<script src="/assets/app.js"></script>
</body>
</html>
`))

type pageData struct {
	Title string
	Page  string
	Next  string
}

func renderPage(w http.ResponseWriter, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = pageTmpl.Execute(w, data)
}

func (a *API) handleIndex(w http.ResponseWriter, r *http.Request) {
	// ServeMux routes everything unmatched here; unknown paths are 404s,
	// not copies of the landing page.
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	renderPage(w, pageData{Title: "Legal aid for everyone", Page: "index"})
}

func (a *API) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	// Already signed in? Straight to the dashboard.
	if raw := extractToken(r); raw != "" {
		if _, err := a.tokens.Verify(raw, auth.TokenAccess); err == nil {
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
			return
		}
	}
	renderPage(w, pageData{
		Title: "Sign in",
		Page:  "login",
		Next:  r.URL.Query().Get("next"),
	})
}

func (a *API) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	renderPage(w, pageData{Title: "Create an account", Page: "register"})
}

func (a *API) handleForgotPasswordPage(w http.ResponseWriter, r *http.Request) {
	renderPage(w, pageData{Title: "Forgot password", Page: "forgot-password"})
}

func (a *API) handleResetPasswordPage(w http.ResponseWriter, r *http.Request) {
	renderPage(w, pageData{Title: "Choose a new password", Page: "reset-password"})
}

func (a *API) handleDashboardPage(w http.ResponseWriter, r *http.Request) {
	renderPage(w, pageData{Title: "Your cases", Page: "dashboard"})
}

func (a *API) handleAdminPage(w http.ResponseWriter, r *http.Request) {
	renderPage(w, pageData{Title: "Administration", Page: "admin"})
}
