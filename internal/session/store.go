// Package session issues and checks the opaque tokens the rest of the
// platform authenticates with. Tokens are pure lookup keys: 32 random bytes,
// stored only as a SHA-256 hash, valid for 24 hours unless revoked first.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"skolar/auth-authority/internal/crypto"
	"skolar/auth-authority/internal/model"
	"skolar/auth-authority/internal/repository"
)

// TTL is the absolute session lifetime, fixed at issue time.
const TTL = 24 * time.Hour

// Repo is the slice of the persistence layer the store needs.
type Repo interface {
	CreateSession(ctx context.Context, session model.Session) error
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (model.Session, error)
	RevokeSession(ctx context.Context, sessionID string, revokedAt time.Time) error
	RevokeSessionsByPrincipal(ctx context.Context, kind model.Kind, principalID string, revokedAt time.Time) error
}

type Store struct {
	repo Repo
	now  func() time.Time
}

func NewStore(repo Repo) *Store {
	return &Store{repo: repo, now: time.Now}
}

// Issue creates a session for the principal and returns the plaintext token.
// The token is never persisted; only its hash is.
func (s *Store) Issue(ctx context.Context, principalID string, kind model.Kind, ipAddress, userAgent string) (string, error) {
	token, err := crypto.NewSessionToken()
	if err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}

	now := s.now().UTC()
	session := model.Session{
		ID:          uuid.NewString(),
		PrincipalID: principalID,
		Kind:        kind,
		TokenHash:   crypto.HashToken(token),
		CreatedAt:   now,
		ExpiresAt:   now.Add(TTL),
	}
	if userAgent != "" {
		session.UserAgent = &userAgent
	}
	if ipAddress != "" {
		session.IPAddress = &ipAddress
	}

	if err := s.repo.CreateSession(ctx, session); err != nil {
		return "", fmt.Errorf("persisting session: %w", err)
	}
	return token, nil
}

// Result is what Validate reports for a usable token.
type Result struct {
	Valid       bool
	PrincipalID string
	Kind        model.Kind
}

// Validate resolves a token. Unknown, revoked, expired, and mismatched
// tokens all come back as the same zero Result; callers must not be able to
// tell which, or the answer becomes a token-validity oracle.
//
// expectedKind and expectedPrincipalID are optional; pass zero values to
// accept any.
func (s *Store) Validate(ctx context.Context, token string, expectedKind model.Kind, expectedPrincipalID string) (Result, error) {
	if token == "" {
		return Result{}, nil
	}

	session, err := s.repo.GetSessionByTokenHash(ctx, crypto.HashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Result{}, nil
		}
		return Result{}, fmt.Errorf("looking up session: %w", err)
	}

	if !session.Usable(s.now().UTC()) {
		return Result{}, nil
	}
	if expectedKind != "" && session.Kind != expectedKind {
		return Result{}, nil
	}
	if expectedPrincipalID != "" && session.PrincipalID != expectedPrincipalID {
		return Result{}, nil
	}

	return Result{Valid: true, PrincipalID: session.PrincipalID, Kind: session.Kind}, nil
}

// Revoke invalidates a single token (logout). Revoking an unknown or already
// dead token is not an error; the outcome the caller asked for holds either
// way.
func (s *Store) Revoke(ctx context.Context, token string) error {
	session, err := s.repo.GetSessionByTokenHash(ctx, crypto.HashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("looking up session: %w", err)
	}
	if session.RevokedAt != nil {
		return nil
	}
	return s.repo.RevokeSession(ctx, session.ID, s.now().UTC())
}

// RevokeAll invalidates every live session for a principal. Sessions of other
// principals are untouched.
func (s *Store) RevokeAll(ctx context.Context, kind model.Kind, principalID string) error {
	return s.repo.RevokeSessionsByPrincipal(ctx, kind, principalID, s.now().UTC())
}
