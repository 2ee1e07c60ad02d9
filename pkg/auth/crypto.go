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

var errInvalidHash = errors.New("invalid argon2id hash encoding")

func randomBytes(b []byte) (int, error) {
	return rand.Read(b)
}

// GenerateToken returns n random bytes encoded as unpadded base64url.
func GenerateToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := randomBytes(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateTempPassword returns a one-time password for a freshly onboarded tenant admin.
func GenerateTempPassword() (string, error) {
	return GenerateToken(tempPasswordLen)
}

func constantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// encodeArgon2Hash renders the PHC string: $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
func encodeArgon2Hash(hash, salt []byte, time, memory uint32, threads uint8) string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, memory, time, threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)
}

func decodeArgon2Hash(encoded string) (hash, salt []byte, time, memory uint32, threads uint8, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, nil, 0, 0, 0, errInvalidHash
	}

	var version int
	if _, err = fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, nil, 0, 0, 0, errInvalidHash
	}
	if version != argon2.Version {
		return nil, nil, 0, 0, 0, errInvalidHash
	}

	if _, err = fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return nil, nil, 0, 0, 0, errInvalidHash
	}

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, 0, 0, 0, errInvalidHash
	}
	hash, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(hash) == 0 {
		return nil, nil, 0, 0, 0, errInvalidHash
	}

	return hash, salt, time, memory, threads, nil
}
