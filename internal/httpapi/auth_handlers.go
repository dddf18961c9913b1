package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"temida.org/internal/auth"
	"temida.org/internal/obs"
)

// Per-action rate-limit policies. The primitive is uniform; only the
// policy varies per call site.
const (
	loginLimit   = 5
	loginWindow  = time.Minute
	forgotLimit  = 3
	forgotWindow = 15 * time.Minute
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	AccessToken      string           `json:"access_token"`
	AccessExpiresAt  time.Time        `json:"access_expires_at"`
	RefreshToken     string           `json:"refresh_token"`
	RefreshExpiresAt time.Time        `json:"refresh_expires_at"`
	Identity         identityResponse `json:"identity"`
}

type identityResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Language    string `json:"language"`
	Verified    bool   `json:"verified"`
}

func toIdentityResponse(id *auth.Identity) identityResponse {
	return identityResponse{
		ID:          id.ID,
		Email:       id.Email,
		DisplayName: id.DisplayName,
		Role:        string(id.Role),
		Language:    id.Language,
		Verified:    id.Verified,
	}
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	email := auth.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	// The limiter runs before any KDF work so abusive traffic stays cheap.
	if !a.allow(w, r, "login:"+email, loginLimit, loginWindow, "login") {
		obs.LoginAttempts.WithLabelValues("rate_limited").Inc()
		return
	}

	id, pair, err := a.auth.Authenticate(r.Context(), email, req.Password)
	if err != nil {
		switch err {
		case auth.ErrInvalidCredentials:
			obs.LoginAttempts.WithLabelValues("invalid").Inc()
		case auth.ErrAccountInactive:
			obs.LoginAttempts.WithLabelValues("inactive").Inc()
		}
		handleAuthError(w, r, err)
		return
	}
	obs.LoginAttempts.WithLabelValues("success").Inc()

	a.setSessionCookie(w, pair.Access, pair.AccessExpiresAt)
	writeJSON(w, http.StatusOK, sessionResponse{
		AccessToken:      pair.Access,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshToken:     pair.Refresh,
		RefreshExpiresAt: pair.RefreshExpiresAt,
		Identity:         toIdentityResponse(id),
	})
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Phone       string `json:"phone"`
	Language    string `json:"language"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	id, pair, err := a.auth.Register(r.Context(), auth.RegisterParams{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Phone:       req.Phone,
		Language:    req.Language,
	})
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.setSessionCookie(w, pair.Access, pair.AccessExpiresAt)
	writeJSON(w, http.StatusCreated, sessionResponse{
		AccessToken:      pair.Access,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshToken:     pair.Refresh,
		RefreshExpiresAt: pair.RefreshExpiresAt,
		Identity:         toIdentityResponse(id),
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	id, pair, err := a.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.setSessionCookie(w, pair.Access, pair.AccessExpiresAt)
	writeJSON(w, http.StatusOK, sessionResponse{
		AccessToken:      pair.Access,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshToken:     pair.Refresh,
		RefreshExpiresAt: pair.RefreshExpiresAt,
		Identity:         toIdentityResponse(id),
	})
}

// handleLogout clears the session cookie. Tokens are not revocable
// server-side before expiry; the audit entry records the intent.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	a.record(r.Context(), "auth.logout", p.SubjectID, nil)
	a.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

func (a *API) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req forgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	email := auth.NormalizeEmail(req.Email)
	if email == "" {
		writeError(w, r, http.StatusBadRequest, "email is required")
		return
	}
	if !a.allow(w, r, "forgot:"+email, forgotLimit, forgotWindow, "forgot") {
		return
	}

	secret, id, err := a.auth.RequestPasswordReset(r.Context(), email)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	obs.PasswordResets.WithLabelValues("requested").Inc()
	if id != nil {
		if err := a.mail.SendPasswordReset(r.Context(), id.Email, secret); err != nil {
			// The token stays valid; a fresh request simply reissues.
			writeError(w, r, http.StatusBadGateway, "could not send reset email")
			return
		}
	}
	// Identical response whether or not the account exists.
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"detail": "if the account exists, a reset link has been sent",
	})
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (a *API) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Token == "" || req.NewPassword == "" {
		writeError(w, r, http.StatusBadRequest, "token and new_password are required")
		return
	}
	id, err := a.auth.ConsumePasswordReset(r.Context(), req.Token, req.NewPassword)
	if err != nil {
		if err == auth.ErrResetExpired {
			obs.PasswordResets.WithLabelValues("expired").Inc()
		}
		handleAuthError(w, r, err)
		return
	}
	obs.PasswordResets.WithLabelValues("consumed").Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "password_updated",
		"email":  id.Email,
	})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication_required")
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.auth.ChangePassword(r.Context(), p.SubjectID, req.CurrentPassword, req.NewPassword); err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "password_updated"})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication_required")
		return
	}
	id, err := a.identities.Find(r.Context(), p.SubjectID)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toIdentityResponse(id))
}

// allow applies a fixed-window policy and writes the 429 with a
// Retry-After hint on denial.
func (a *API) allow(w http.ResponseWriter, r *http.Request, key string, limit int, window time.Duration, scope string) bool {
	res := a.limiter.Check(key, limit, window)
	if res.Allowed {
		return true
	}
	obs.RateLimited.WithLabelValues(scope).Inc()
	retryAfter := int(res.ResetIn.Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
	writeError(w, r, http.StatusTooManyRequests, "rate_limit_exceeded")
	return false
}

func (a *API) setSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *API) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
