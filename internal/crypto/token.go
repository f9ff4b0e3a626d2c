package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"
)

// Session tokens are opaque lookup keys. Nothing is encoded in them; the
// only structure a holder can observe is the length.
const sessionTokenBytes = 32

var tokenEncoding = base64.RawURLEncoding

// NewSessionToken draws a fresh token from the system CSPRNG.
func NewSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", err
	}
	return tokenEncoding.EncodeToString(buf), nil
}

// HashToken maps a token to its at-rest form. Only the hash touches the
// sessions table, so a leaked table does not leak usable tokens.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return tokenEncoding.EncodeToString(sum[:])
}
