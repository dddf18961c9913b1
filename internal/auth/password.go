package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters. Memory-hardness is the defense against offline
// GPU/ASIC cracking; the values are embedded in every hash so they can be
// raised later without breaking verification of old hashes.
const (
	argonMemory  uint32 = 64 * 1024 // KiB
	argonTime    uint32 = 3
	argonThreads uint8  = 2
	argonSaltLen        = 16
	argonKeyLen  uint32 = 32
)

// HashPassword derives an Argon2id digest and returns it in PHC string
// format ($argon2id$v=19$m=...,t=...,p=...$salt$hash). It fails only when
// the system entropy source does.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password is empty")
	}
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword re-derives the digest with the parameters embedded in the
// stored hash and compares in constant time. Malformed or corrupt hashes
// return false; callers must not distinguish that case from a wrong
// password.
func VerifyPassword(password, encoded string) bool {
	memory, timeCost, threads, salt, key, err := decodeHash(encoded)
	if err != nil {
		return false
	}
	derived := argon2.IDKey([]byte(password), salt, timeCost, memory, threads, uint32(len(key)))
	return subtle.ConstantTimeCompare(derived, key) == 1
}

func decodeHash(encoded string) (memory, timeCost uint32, threads uint8, salt, key []byte, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return 0, 0, 0, nil, nil, errors.New("malformed hash")
	}
	var version int
	if _, err = fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return 0, 0, 0, nil, nil, errors.New("unsupported argon2 version")
	}
	var par uint32
	if _, err = fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &timeCost, &par); err != nil {
		return 0, 0, 0, nil, nil, errors.New("malformed parameters")
	}
	if memory == 0 || timeCost == 0 || par == 0 || par > 255 {
		return 0, 0, 0, nil, nil, errors.New("parameters out of range")
	}
	threads = uint8(par)
	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return 0, 0, 0, nil, nil, errors.New("malformed salt")
	}
	key, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return 0, 0, 0, nil, nil, errors.New("malformed digest")
	}
	return memory, timeCost, threads, salt, key, nil
}
