package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	timeCost uint32 = 3
	memory   uint32 = 64 * 1024
	threads  uint8  = 2
	keyLen   uint32 = 32
	saltLen         = 16
)

// ErrInvalidHash marks stored hashes that cannot be parsed. Callers should
// treat it as a non-match, not a fault.
var ErrInvalidHash = errors.New("invalid password hash")

// Hash derives an argon2id hash of the password with a fresh random salt.
// The returned string embeds the parameters so Verify stays compatible with
// hashes produced under older cost settings.
func Hash(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	sum := argon2.IDKey([]byte(password), salt, timeCost, memory, threads, keyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, memory, timeCost, threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	), nil
}

// Verify reports whether the password matches the encoded argon2id hash.
// Comparison is constant time over the derived key.
func Verify(password, encoded string) (bool, error) {
	var (
		version int
		mem, t  uint32
		par     uint8
		rest    string
	)
	n, err := fmt.Sscanf(encoded, "$argon2id$v=%d$m=%d,t=%d,p=%d$%s", &version, &mem, &t, &par, &rest)
	if err != nil || n != 5 || version != argon2.Version {
		return false, ErrInvalidHash
	}
	// Sscanf's %s is greedy, so salt and digest arrive as one token.
	rawSalt, rawDigest, ok := strings.Cut(rest, "$")
	if !ok {
		return false, ErrInvalidHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(rawSalt)
	if err != nil {
		return false, ErrInvalidHash
	}
	digest, err := base64.RawStdEncoding.DecodeString(rawDigest)
	if err != nil || len(digest) == 0 {
		return false, ErrInvalidHash
	}

	derived := argon2.IDKey([]byte(password), salt, t, mem, par, uint32(len(digest)))
	return subtle.ConstantTimeCompare(derived, digest) == 1, nil
}
