package auth

import (
	"strings"
	"testing"
	"time"
)

func testIdentity() *Identity {
	return &Identity{
		ID:          "01TESTIDENTITY0000000000",
		Email:       "aruzhan@example.org",
		DisplayName: "Aruzhan",
		Role:        RoleCitizen,
		Language:    "kk",
		Active:      true,
	}
}

func newTestTokens(t *testing.T, opts ...TokensOption) *Tokens {
	t.Helper()
	tokens, err := NewTokens("test-secret", "temida-test", time.Hour, 24*time.Hour, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return tokens
}

func TestTokensRequireSecret(t *testing.T) {
	if _, err := NewTokens("", "iss", time.Hour, time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, err := NewTokens("   ", "iss", time.Hour, time.Hour); err == nil {
		t.Fatal("expected error for blank secret")
	}
}

func TestIssueAndVerifyRoundtrip(t *testing.T) {
	tokens := newTestTokens(t)
	id := testIdentity()

	raw, exp, err := tokens.Issue(id, TokenAccess)
	if err != nil {
		t.Fatal(err)
	}
	if time.Until(exp) < 55*time.Minute {
		t.Fatalf("expiry too soon: %v", exp)
	}

	claims, err := tokens.Verify(raw, TokenAccess)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Subject != id.ID {
		t.Fatalf("subject = %q, want %q", claims.Subject, id.ID)
	}
	if claims.Role != RoleCitizen {
		t.Fatalf("role = %q", claims.Role)
	}
	if claims.Name != "Aruzhan" || claims.Language != "kk" {
		t.Fatalf("profile claims lost: %+v", claims)
	}
}

func TestVerifyRejectsWrongKind(t *testing.T) {
	tokens := newTestTokens(t)
	refresh, _, err := tokens.Issue(testIdentity(), TokenRefresh)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tokens.Verify(refresh, TokenAccess); err != ErrTokenInvalid {
		t.Fatalf("refresh token accepted as access token: %v", err)
	}
	access, _, err := tokens.Issue(testIdentity(), TokenAccess)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tokens.Verify(access, TokenRefresh); err != ErrTokenInvalid {
		t.Fatalf("access token accepted as refresh token: %v", err)
	}
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	tokens := newTestTokens(t)
	raw, _, err := tokens.Issue(testIdentity(), TokenAccess)
	if err != nil {
		t.Fatal(err)
	}

	// Flip one character in the payload segment.
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %q", raw)
	}
	payload := []byte(parts[1])
	if payload[10] == 'A' {
		payload[10] = 'B'
	} else {
		payload[10] = 'A'
	}
	tampered := parts[0] + "." + string(payload) + "." + parts[2]

	if _, err := tokens.Verify(tampered, TokenAccess); err != ErrTokenInvalid {
		t.Fatalf("tampered token verified: %v", err)
	}
}

func TestVerifyRejectsOtherSecret(t *testing.T) {
	a := newTestTokens(t)
	b, err := NewTokens("another-secret", "temida-test", time.Hour, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	raw, _, err := b.Issue(testIdentity(), TokenAccess)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Verify(raw, TokenAccess); err != ErrTokenInvalid {
		t.Fatalf("token signed under a different secret verified: %v", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return clock }
	tokens := newTestTokens(t, WithTokenClock(func() time.Time { return now() }))

	raw, _, err := tokens.Issue(testIdentity(), TokenAccess)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tokens.Verify(raw, TokenAccess); err != nil {
		t.Fatalf("fresh token rejected: %v", err)
	}

	clock = clock.Add(2 * time.Hour)
	if _, err := tokens.Verify(raw, TokenAccess); err != ErrTokenInvalid {
		t.Fatalf("expired token verified: %v", err)
	}
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	other, err := NewTokens("test-secret", "someone-else", time.Hour, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	raw, _, err := other.Issue(testIdentity(), TokenAccess)
	if err != nil {
		t.Fatal(err)
	}
	tokens := newTestTokens(t)
	if _, err := tokens.Verify(raw, TokenAccess); err != ErrTokenInvalid {
		t.Fatalf("token with wrong issuer verified: %v", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	tokens := newTestTokens(t)
	for _, raw := range []string{"", "   ", "garbage", "a.b.c"} {
		if _, err := tokens.Verify(raw, TokenAccess); err != ErrTokenInvalid {
			t.Fatalf("garbage %q verified: %v", raw, err)
		}
	}
}

func TestParseLifetime(t *testing.T) {
	fallback := 7 * 24 * time.Hour
	cases := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"7d", 7 * 24 * time.Hour, true},
		{"1d", 24 * time.Hour, true},
		{"12h", 12 * time.Hour, true},
		{"30m", 30 * time.Minute, true},
		{" 15m ", 15 * time.Minute, true},
		{"", fallback, false},
		{"d", fallback, false},
		{"7", fallback, false},
		{"0d", fallback, false},
		{"-5h", fallback, false},
		{"7w", fallback, false},
		{"abc", fallback, false},
		{"7dd", fallback, false},
	}
	for _, c := range cases {
		got, ok := ParseLifetime(c.in, fallback)
		if got != c.want || ok != c.ok {
			t.Errorf("ParseLifetime(%q) = (%v, %v), want (%v, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}
