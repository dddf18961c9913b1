package auth

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind discriminates the two token classes. Both use the identical
// signing mechanism and differ only in claims and lifetime.
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

const (
	DefaultAccessTTL  = 7 * 24 * time.Hour
	DefaultRefreshTTL = 30 * 24 * time.Hour
)

// Claims is the self-contained session claim set. The server keeps no
// record of outstanding tokens: a token is valid iff signature and expiry
// check out.
type Claims struct {
	Role      Role   `json:"role"`
	Name      string `json:"name,omitempty"`
	Language  string `json:"lang,omitempty"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 session tokens under one server-wide
// secret. Safe for concurrent use; the secret is read-only after
// construction.
type Tokens struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// TokensOption configures Tokens.
type TokensOption func(*Tokens)

// WithTokenClock overrides the time source (useful for expiry tests).
func WithTokenClock(fn func() time.Time) TokensOption {
	return func(t *Tokens) {
		if fn != nil {
			t.now = fn
		}
	}
}

// NewTokens constructs the token service. The secret is required; empty
// secrets would make every signature forgeable.
func NewTokens(secret, issuer string, accessTTL, refreshTTL time.Duration, opts ...TokensOption) (*Tokens, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: signing secret is not configured")
	}
	t := &Tokens{
		secret:     []byte(secret),
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
	if t.accessTTL <= 0 {
		t.accessTTL = DefaultAccessTTL
	}
	if t.refreshTTL <= 0 {
		t.refreshTTL = DefaultRefreshTTL
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Issue signs a token for the identity. Claims carry subject id, role,
// display name and language so page handlers need no database read.
func (t *Tokens) Issue(id *Identity, kind TokenKind) (string, time.Time, error) {
	ttl := t.accessTTL
	if kind == TokenRefresh {
		ttl = t.refreshTTL
	}
	now := t.now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		Role:      id.Role,
		Name:      id.DisplayName,
		Language:  id.Language,
		TokenType: string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify checks signature integrity, then expiry, then the kind
// discriminator. Every failure collapses into ErrTokenInvalid so responses
// cannot be used as a forgery-probing oracle.
func (t *Tokens) Verify(raw string, kind TokenKind) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrTokenInvalid
	}
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(tok *jwt.Token) (any, error) {
		if tok.Method != jwt.SigningMethodHS256 {
			return nil, ErrTokenInvalid
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, ErrTokenInvalid
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if t.issuer != "" && claims.Issuer != t.issuer {
		return nil, ErrTokenInvalid
	}
	if strings.TrimSpace(claims.Subject) == "" || claims.ExpiresAt == nil {
		return nil, ErrTokenInvalid
	}
	if claims.TokenType != string(kind) {
		return nil, ErrTokenInvalid
	}
	if _, ok := ParseRole(string(claims.Role)); !ok {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// ParseLifetime parses the <integer><unit> lifetime grammar with unit one
// of d, h, m. Unrecognized input returns the fallback and ok=false so the
// caller can log the misconfiguration instead of failing startup.
func ParseLifetime(raw string, fallback time.Duration) (time.Duration, bool) {
	raw = strings.TrimSpace(raw)
	if len(raw) < 2 {
		return fallback, false
	}
	n, err := strconv.Atoi(raw[:len(raw)-1])
	if err != nil || n <= 0 {
		return fallback, false
	}
	switch raw[len(raw)-1] {
	case 'd':
		return time.Duration(n) * 24 * time.Hour, true
	case 'h':
		return time.Duration(n) * time.Hour, true
	case 'm':
		return time.Duration(n) * time.Minute, true
	default:
		return fallback, false
	}
}
