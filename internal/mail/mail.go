// Package mail is the delivery boundary for out-of-band secrets. The auth
// core hands over (address, secret) and never retries; a delivery failure
// surfaces on the triggering request while the stored token stays valid.
package mail

import (
	"context"
	"fmt"

	"temida.org/internal/obs"
)

// Sender delivers a password-reset secret to the account's email address.
type Sender interface {
	SendPasswordReset(ctx context.Context, email, secret string) error
}

// LogSender is the development stand-in for an SMTP integration: it prints
// the reset link to the local log, which acts as the out-of-band channel.
// Not for production use.
type LogSender struct {
	BaseURL string
}

func (s LogSender) SendPasswordReset(ctx context.Context, email, secret string) error {
	base := s.BaseURL
	if base == "" {
		base = "http://localhost:8080"
	}
	obs.LogEntry(map[string]any{
		"type": "mail",
		"msg":  "password reset link (dev delivery)",
		"to":   email,
		"link": fmt.Sprintf("%s/reset-password?token=%s", base, secret),
	})
	return nil
}
