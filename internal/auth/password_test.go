package auth

import (
	"strings"
	"testing"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Fatalf("unexpected hash format: %s", hash)
	}
	if !VerifyPassword("correct horse battery staple", hash) {
		t.Fatal("correct password rejected")
	}
	if VerifyPassword("wrong password", hash) {
		t.Fatal("wrong password accepted")
	}
}

func TestHashPasswordUnique(t *testing.T) {
	h1, err := HashPassword("same-input")
	if err != nil {
		t.Fatal(err)
	}
	h2, err := HashPassword("same-input")
	if err != nil {
		t.Fatal(err)
	}
	if h1 == h2 {
		t.Fatal("two hashes of the same password share a salt")
	}
	if !VerifyPassword("same-input", h1) || !VerifyPassword("same-input", h2) {
		t.Fatal("either hash failed to verify")
	}
}

// The bootstrap admin hash shipped in migrations/seeds/0001_admin.sql must
// encode the password its comment documents, or a fresh deployment has no
// working admin account.
func TestBootstrapAdminHashMatchesDocumentedPassword(t *testing.T) {
	const seeded = "$argon2id$v=19$m=65536,t=3,p=2$c2VlZC1hZG1pbi1zYWx0$PE7oKU7b9QBa9E/u2N4rZpTqci41NzrLM5dI8XRxyls"
	if !VerifyPassword("change-me-on-first-login", seeded) {
		t.Fatal("seeded admin hash does not verify against the documented password")
	}
	if VerifyPassword("some-other-password", seeded) {
		t.Fatal("seeded admin hash verified a wrong password")
	}
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	cases := []string{
		"",
		"not-a-hash",
		"$argon2id$v=19$m=65536,t=3,p=2$bad!!salt$digest",
		"$bcrypt$whatever",
	}
	for _, c := range cases {
		if VerifyPassword("anything", c) {
			t.Fatalf("malformed hash %q verified", c)
		}
	}
}
