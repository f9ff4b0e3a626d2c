package crypto

import (
	"crypto/rand"
	"fmt"
)

// credentialAlphabet excludes visually ambiguous characters (0/O, 1/l/I) so
// provisioned credentials survive being read aloud or copied by hand.
const credentialAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghjkmnpqrstuvwxyz23456789"

const (
	schoolIDPrefix  = "SCH_"
	schoolIDRandLen = 8 // prefix + 8 = 12 characters total
	passwordLen     = 16
)

// Credential is a freshly generated identifier/password pair. The password
// lives in an unexported field: it cannot be marshaled, and nothing below the
// HTTP response that reveals it once ever sees it; persistence only receives
// the digest.
type Credential struct {
	Identifier string
	password   string
}

// Password returns the one-time plaintext.
func (c Credential) Password() string {
	return c.password
}

// GenerateCredential produces a random school login identifier and password
// from the unambiguous alphabet.
func GenerateCredential() (Credential, error) {
	id, err := randomString(schoolIDRandLen)
	if err != nil {
		return Credential{}, fmt.Errorf("generating identifier: %w", err)
	}
	pw, err := GeneratePassword()
	if err != nil {
		return Credential{}, err
	}
	return Credential{Identifier: schoolIDPrefix + id, password: pw}, nil
}

// GeneratePassword produces just the password half, for forced resets where
// the identifier stays the same.
func GeneratePassword() (string, error) {
	pw, err := randomString(passwordLen)
	if err != nil {
		return "", fmt.Errorf("generating password: %w", err)
	}
	return pw, nil
}

// randomString draws n characters from credentialAlphabet using rejection
// sampling so every character is uniformly likely.
func randomString(n int) (string, error) {
	// Largest multiple of len(alphabet) that fits in a byte; bytes at or
	// above it are rejected to avoid modulo bias.
	limit := byte(256 - 256%len(credentialAlphabet))

	out := make([]byte, 0, n)
	buf := make([]byte, n*2)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, credentialAlphabet[int(b)%len(credentialAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
