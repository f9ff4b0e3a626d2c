package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Scheme tags the hashing scheme a stored digest was produced under.
type Scheme string

const (
	// SchemeBcrypt is the only scheme new digests are written with.
	SchemeBcrypt Scheme = "bcrypt"
	// SchemeLegacySHA256 is the pre-migration fast hash: hex-encoded
	// SHA-256 of the server pepper concatenated with the password.
	SchemeLegacySHA256 Scheme = "legacy_sha256"
	// SchemeLegacyPlain is historical plaintext storage, the oldest
	// accounts only.
	SchemeLegacyPlain Scheme = "legacy_plain"
)

// Legacy reports whether a digest under this scheme should be rewritten with
// the current scheme on the next successful verification.
func (s Scheme) Legacy() bool {
	return s != SchemeBcrypt
}

// ClassifyDigest determines the scheme of a stored digest from its shape
// alone. The order is load-bearing: a 64-hex value must classify as the
// legacy fast hash before the plaintext fallback is considered, otherwise a
// real legacy hash would be compared as a literal password and rejected.
func ClassifyDigest(digest string) Scheme {
	if strings.HasPrefix(digest, "$2a$") || strings.HasPrefix(digest, "$2b$") || strings.HasPrefix(digest, "$2y$") {
		return SchemeBcrypt
	}
	if isHex64(digest) {
		return SchemeLegacySHA256
	}
	return SchemeLegacyPlain
}

func isHex64(s string) bool {
	if len(s) != 64 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// PasswordHasher hashes and verifies passwords across the three schemes.
// New digests are always bcrypt; the legacy schemes exist only so that
// pre-migration accounts keep authenticating until their digest is upgraded.
//
// bcrypt work is deliberately expensive, so the hasher bounds how many
// hash/verify computations run at once: one slow hash cannot occupy every
// serving goroutine.
type PasswordHasher struct {
	cost         int
	legacyPepper string
	gate         chan struct{}
}

// NewPasswordHasher builds a hasher with the given bcrypt cost, the
// server-side pepper the legacy fast hashes were salted with, and the
// maximum number of concurrent hash computations.
func NewPasswordHasher(cost int, legacyPepper string, maxConcurrent int) (*PasswordHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d,%d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	if maxConcurrent < 1 {
		return nil, errors.New("hasher concurrency must be at least 1")
	}
	return &PasswordHasher{
		cost:         cost,
		legacyPepper: legacyPepper,
		gate:         make(chan struct{}, maxConcurrent),
	}, nil
}

// Hash produces a digest under the current scheme.
func (h *PasswordHasher) Hash(password string) (string, error) {
	h.gate <- struct{}{}
	defer func() { <-h.gate }()

	digest, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Verify checks password against a stored digest of any scheme and reports
// which scheme the digest was under. The caller decides whether a legacy
// scheme warrants rewriting the digest; Verify never writes anything.
func (h *PasswordHasher) Verify(password, digest string) (bool, Scheme) {
	scheme := ClassifyDigest(digest)
	switch scheme {
	case SchemeBcrypt:
		h.gate <- struct{}{}
		err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(password))
		<-h.gate
		return err == nil, scheme
	case SchemeLegacySHA256:
		return ConstantTimeEqual(h.LegacyHash(password), strings.ToLower(digest)), scheme
	default:
		return ConstantTimeEqual(password, digest), scheme
	}
}

// LegacyHash computes the legacy fast hash of a password. Exposed for
// migration tooling and tests; never used for new digests.
func (h *PasswordHasher) LegacyHash(password string) string {
	sum := sha256.Sum256([]byte(h.legacyPepper + password))
	return hex.EncodeToString(sum[:])
}
