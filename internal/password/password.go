// Package password provides the one-way hash-and-verify capability used for
// user passwords and refresh-token secrets. Hashes are argon2id in the
// standard encoded form, so parameters can be tightened without breaking
// verification of older hashes.
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
	defaultTime    uint32 = 3
	defaultMemory  uint32 = 64 * 1024
	defaultThreads uint8  = 2
	defaultKeyLen  uint32 = 32
	saltLen               = 16
)

// ErrInvalidHash is returned when the stored value is not a recognizable
// argon2id encoding. Callers use it to detect legacy plaintext records.
var ErrInvalidHash = errors.New("password: invalid hash encoding")

// Hash derives an argon2id hash of secret with a fresh random salt.
func Hash(secret string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	sum := argon2.IDKey([]byte(secret), salt, defaultTime, defaultMemory, defaultThreads, defaultKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		defaultMemory,
		defaultTime,
		defaultThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	), nil
}

// Verify checks secret against an encoded argon2id hash in constant time.
func Verify(secret, encoded string) (bool, error) {
	params, salt, expected, err := decode(encoded)
	if err != nil {
		return false, err
	}
	actual := argon2.IDKey([]byte(secret), salt, params.time, params.memory, params.threads, uint32(len(expected)))
	return subtle.ConstantTimeCompare(actual, expected) == 1, nil
}

// NeedsRehash reports whether an encoded hash was produced with weaker
// parameters than the current defaults.
func NeedsRehash(encoded string) bool {
	params, _, _, err := decode(encoded)
	if err != nil {
		return true
	}
	return params.time < defaultTime || params.memory < defaultMemory
}

type hashParams struct {
	memory  uint32
	time    uint32
	threads uint8
}

func decode(encoded string) (hashParams, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return hashParams{}, nil, nil, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return hashParams{}, nil, nil, ErrInvalidHash
	}

	var params hashParams
	var threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.memory, &params.time, &threads); err != nil || threads == 0 || threads > 255 {
		return hashParams{}, nil, nil, ErrInvalidHash
	}
	params.threads = uint8(threads)

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return hashParams{}, nil, nil, ErrInvalidHash
	}
	sum, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(sum) == 0 {
		return hashParams{}, nil, nil, ErrInvalidHash
	}

	return params, salt, sum, nil
}
