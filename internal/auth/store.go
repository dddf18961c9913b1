package auth

import (
	"context"
	"time"
)

// IdentityStore describes persistence required by the auth core. The
// conditional primitives (ConsumeResetToken, SetActive) must be atomic: no
// reader may observe a password changed with the reset token still live, or
// the reverse.
type IdentityStore interface {
	Create(ctx context.Context, id *Identity) error
	Find(ctx context.Context, id string) (*Identity, error)
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	List(ctx context.Context) ([]*Identity, error)

	UpdatePassword(ctx context.Context, id, passwordHash string) error
	TouchLogin(ctx context.Context, id string, at time.Time) error

	// SetResetToken stores the digest and expiry of a freshly issued reset
	// token, overwriting any prior pending one.
	SetResetToken(ctx context.Context, id, digest string, expiresAt time.Time) error

	// ConsumeResetToken atomically replaces the password hash and clears the
	// reset digest for the active identity matching digest, provided the
	// token has not expired at now. Returns ErrResetNotFound when no
	// identity matches and ErrResetExpired when one matches but its window
	// has passed (the expired token is left untouched, never resurrected).
	ConsumeResetToken(ctx context.Context, digest, newPasswordHash string, now time.Time) (*Identity, error)

	// SetActive flips the active flag for the given identity ids and
	// reports how many rows changed.
	SetActive(ctx context.Context, ids []string, active bool) (int64, error)
}
