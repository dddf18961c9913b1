package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"temida.org/internal/audit"
	"temida.org/internal/ids"
	"temida.org/internal/obs"
)

// Service is the high level authentication facade: credential checks, token
// issuance and the password-reset lifecycle. Handlers talk to this, never to
// the vault or the store directly, so the contract is enforced in one place.
type Service struct {
	store    IdentityStore
	tokens   *Tokens
	audit    *audit.Recorder
	now      func() time.Time
	resetTTL time.Duration

	// dummyHash soaks up one KDF verification when the email is unknown,
	// flattening the timing difference against account enumeration.
	dummyHash string
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithResetTTL overrides the password-reset validity window.
func WithResetTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.resetTTL = ttl
		}
	}
}

// WithAudit wires the audit recorder. Without it events are dropped, which
// only tests should do.
func WithAudit(rec *audit.Recorder) ServiceOption {
	return func(s *Service) {
		s.audit = rec
	}
}

// NewService constructs the facade.
func NewService(store IdentityStore, tokens *Tokens, opts ...ServiceOption) (*Service, error) {
	if store == nil || tokens == nil {
		return nil, errors.New("auth: store and tokens are required")
	}
	dummy, err := HashPassword("temida-dummy-credential")
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	svc := &Service{
		store:     store,
		tokens:    tokens,
		now:       time.Now,
		resetTTL:  DefaultResetTTL,
		dummyHash: dummy,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// TokenPair bundles the access and refresh tokens issued at login.
type TokenPair struct {
	Access           string
	AccessExpiresAt  time.Time
	Refresh          string
	RefreshExpiresAt time.Time
}

// NormalizeEmail is the canonical form used for lookups and rate-limit keys.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Authenticate verifies credentials and issues a token pair. Unknown email
// and wrong password collapse into ErrInvalidCredentials; a deactivated
// account with a correct password returns ErrAccountInactive.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Identity, TokenPair, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, TokenPair{}, ErrInvalidCredentials
	}

	id, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Burn the same KDF cost as a real verification.
			VerifyPassword(password, s.dummyHash)
			s.record(ctx, audit.Event{
				Action:   "auth.login",
				Category: "auth",
				Severity: audit.SeverityWarn,
				Metadata: map[string]any{"email": email, "outcome": "unknown_identity"},
			})
			return nil, TokenPair{}, ErrInvalidCredentials
		}
		return nil, TokenPair{}, err
	}

	if !VerifyPassword(password, id.PasswordHash) {
		s.record(ctx, audit.Event{
			ActorID:  id.ID,
			Action:   "auth.login",
			Category: "auth",
			Severity: audit.SeverityWarn,
			Metadata: map[string]any{"email": email, "outcome": "wrong_password"},
		})
		return nil, TokenPair{}, ErrInvalidCredentials
	}
	if !id.Active {
		s.record(ctx, audit.Event{
			ActorID:  id.ID,
			Action:   "auth.login",
			Category: "auth",
			Severity: audit.SeverityWarn,
			Metadata: map[string]any{"email": email, "outcome": "inactive"},
		})
		return nil, TokenPair{}, ErrAccountInactive
	}

	pair, err := s.issuePair(id)
	if err != nil {
		return nil, TokenPair{}, err
	}
	// last_login_at is telemetry; a failed touch never blocks a valid login.
	if err := s.store.TouchLogin(ctx, id.ID, s.now().UTC()); err != nil {
		obs.LogEntry(map[string]any{
			"level": "warn",
			"msg":   "touch last_login failed",
			"id":    id.ID,
			"error": err.Error(),
		})
	}
	s.record(ctx, audit.Event{
		ActorID:  id.ID,
		Action:   "auth.login",
		Category: "auth",
		Metadata: map[string]any{"email": email, "outcome": "success"},
	})
	return id, pair, nil
}

// RegisterParams carries the fields accepted at self-registration. The role
// is always CITIZEN; elevated roles are assigned through the admin console.
type RegisterParams struct {
	Email       string
	Password    string
	DisplayName string
	Phone       string
	Language    string
}

// Register creates an active, unverified citizen account and issues its
// first token pair.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*Identity, TokenPair, error) {
	email := NormalizeEmail(params.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, TokenPair{}, fmt.Errorf("%w: email", ErrInvalidInput)
	}
	if len(params.Password) < 8 {
		return nil, TokenPair{}, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	hash, err := HashPassword(params.Password)
	if err != nil {
		return nil, TokenPair{}, err
	}

	name := strings.TrimSpace(params.DisplayName)
	if name == "" {
		name = deriveNameFromEmail(email)
	}
	lang := strings.TrimSpace(params.Language)
	if lang == "" {
		lang = "en"
	}
	now := s.now().UTC()
	id := &Identity{
		ID:           ids.New(),
		Email:        email,
		Phone:        strings.TrimSpace(params.Phone),
		DisplayName:  name,
		PasswordHash: hash,
		Role:         RoleCitizen,
		Active:       true,
		Verified:     false,
		Language:     lang,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, id); err != nil {
		return nil, TokenPair{}, err
	}
	pair, err := s.issuePair(id)
	if err != nil {
		return nil, TokenPair{}, err
	}
	s.record(ctx, audit.Event{
		ActorID:  id.ID,
		Action:   "auth.register",
		Category: "auth",
		Metadata: map[string]any{"email": email},
	})
	return id, pair, nil
}

// Refresh exchanges a valid refresh token for a fresh pair. The identity is
// re-read so deactivation takes effect at the next refresh even though
// outstanding access tokens cannot be revoked.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Identity, TokenPair, error) {
	claims, err := s.tokens.Verify(refreshToken, TokenRefresh)
	if err != nil {
		return nil, TokenPair{}, ErrTokenInvalid
	}
	id, err := s.store.Find(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, TokenPair{}, ErrTokenInvalid
		}
		return nil, TokenPair{}, err
	}
	if !id.Active {
		return nil, TokenPair{}, ErrAccountInactive
	}
	pair, err := s.issuePair(id)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return id, pair, nil
}

// RequestPasswordReset issues a single-use reset token for the account, if
// one exists and is active. The returned identity is nil otherwise; callers
// must respond identically in both cases. Work is constant either way: a
// secret is generated and digested even for unknown accounts.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, *Identity, error) {
	email = NormalizeEmail(email)
	secret, err := NewResetSecret()
	if err != nil {
		return "", nil, err
	}
	digest := ResetDigest(secret)

	id, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.record(ctx, audit.Event{
				Action:   "auth.password.reset_requested",
				Category: "auth",
				Severity: audit.SeverityWarn,
				Metadata: map[string]any{"email": email, "outcome": "unknown_identity"},
			})
			return "", nil, nil
		}
		return "", nil, err
	}
	if !id.Active {
		s.record(ctx, audit.Event{
			ActorID:  id.ID,
			Action:   "auth.password.reset_requested",
			Category: "auth",
			Severity: audit.SeverityWarn,
			Metadata: map[string]any{"email": email, "outcome": "inactive"},
		})
		return "", nil, nil
	}

	expiresAt := s.now().UTC().Add(s.resetTTL)
	if err := s.store.SetResetToken(ctx, id.ID, digest, expiresAt); err != nil {
		return "", nil, err
	}
	s.record(ctx, audit.Event{
		ActorID:  id.ID,
		Action:   "auth.password.reset_requested",
		Category: "auth",
		Metadata: map[string]any{"email": email, "outcome": "issued"},
	})
	return secret, id, nil
}

// ConsumePasswordReset redeems a reset secret. The password update and the
// token clear happen in one conditional store operation; a half-applied
// state is never observable.
func (s *Service) ConsumePasswordReset(ctx context.Context, secret, newPassword string) (*Identity, error) {
	if len(newPassword) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return nil, err
	}
	id, err := s.store.ConsumeResetToken(ctx, ResetDigest(secret), hash, s.now().UTC())
	if err != nil {
		sev := audit.SeverityWarn
		outcome := "not_found"
		if errors.Is(err, ErrResetExpired) {
			outcome = "expired"
		}
		s.record(ctx, audit.Event{
			Action:   "auth.password.reset_consumed",
			Category: "auth",
			Severity: sev,
			Metadata: map[string]any{"outcome": outcome},
		})
		return nil, err
	}
	s.record(ctx, audit.Event{
		ActorID:  id.ID,
		Action:   "auth.password.reset_consumed",
		Category: "auth",
		Metadata: map[string]any{"email": id.Email, "outcome": "success"},
	})
	return id, nil
}

// ChangePassword rotates the password for an authenticated identity after
// re-verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, identityID, current, next string) error {
	if len(next) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	id, err := s.store.Find(ctx, identityID)
	if err != nil {
		return err
	}
	if !VerifyPassword(current, id.PasswordHash) {
		s.record(ctx, audit.Event{
			ActorID:  id.ID,
			Action:   "auth.password.changed",
			Category: "auth",
			Severity: audit.SeverityWarn,
			Metadata: map[string]any{"outcome": "wrong_password"},
		})
		return ErrInvalidCredentials
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePassword(ctx, id.ID, hash); err != nil {
		return err
	}
	s.record(ctx, audit.Event{
		ActorID:  id.ID,
		Action:   "auth.password.changed",
		Category: "auth",
		Metadata: map[string]any{"outcome": "success"},
	})
	return nil
}

func (s *Service) issuePair(id *Identity) (TokenPair, error) {
	access, accessExp, err := s.tokens.Issue(id, TokenAccess)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := s.tokens.Issue(id, TokenRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		Access:           access,
		AccessExpiresAt:  accessExp,
		Refresh:          refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *Service) record(ctx context.Context, event audit.Event) {
	if s.audit != nil {
		s.audit.Record(ctx, event)
	}
}

// deriveNameFromEmail builds a presentable display name from the local part
// of an email address when registration omits one.
func deriveNameFromEmail(email string) string {
	local := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		local = email[:at]
	}
	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	if len(parts) == 0 {
		return "User"
	}
	for i, p := range parts {
		runes := []rune(p)
		runes[0] = unicode.ToUpper(runes[0])
		parts[i] = string(runes)
	}
	return strings.Join(parts, " ")
}
