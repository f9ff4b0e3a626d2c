package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"skolar/auth-authority/internal/model"
	"skolar/auth-authority/internal/repository"
)

// fakeRepo is an in-memory Repo with the same semantics as the pgx store:
// rows are never deleted, revocation only flips revoked_at.
type fakeRepo struct {
	mu       sync.Mutex
	sessions map[string]model.Session // token hash -> session
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{sessions: make(map[string]model.Session)}
}

func (f *fakeRepo) CreateSession(_ context.Context, session model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[session.TokenHash] = session
	return nil
}

func (f *fakeRepo) GetSessionByTokenHash(_ context.Context, tokenHash string) (model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[tokenHash]
	if !ok {
		return model.Session{}, repository.ErrNotFound
	}
	return session, nil
}

func (f *fakeRepo) RevokeSession(_ context.Context, sessionID string, revokedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for hash, session := range f.sessions {
		if session.ID == sessionID && session.RevokedAt == nil {
			session.RevokedAt = &revokedAt
			f.sessions[hash] = session
		}
	}
	return nil
}

func (f *fakeRepo) RevokeSessionsByPrincipal(_ context.Context, kind model.Kind, principalID string, revokedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for hash, session := range f.sessions {
		if session.PrincipalID == principalID && session.Kind == kind && session.RevokedAt == nil {
			session.RevokedAt = &revokedAt
			f.sessions[hash] = session
		}
	}
	return nil
}

func TestIssueAndValidate(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newFakeRepo())

	token, err := store.Issue(ctx, "principal-1", model.KindSchool, "203.0.113.9", "reports-ui/2.4")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if token == "" {
		t.Fatalf("empty token")
	}

	result, err := store.Validate(ctx, token, "", "")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !result.Valid || result.PrincipalID != "principal-1" || result.Kind != model.KindSchool {
		t.Fatalf("unexpected result %+v", result)
	}

	// Kind and principal constraints.
	if r, _ := store.Validate(ctx, token, model.KindAdmin, ""); r.Valid {
		t.Fatalf("wrong kind validated")
	}
	if r, _ := store.Validate(ctx, token, model.KindSchool, "someone-else"); r.Valid {
		t.Fatalf("wrong principal validated")
	}
	if r, _ := store.Validate(ctx, "no-such-token", "", ""); r.Valid {
		t.Fatalf("unknown token validated")
	}
	if r, _ := store.Validate(ctx, "", "", ""); r.Valid {
		t.Fatalf("empty token validated")
	}
}

func TestValidateExpired(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	store := NewStore(repo)

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	token, err := store.Issue(ctx, "principal-1", model.KindAdmin, "", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	now = now.Add(23 * time.Hour)
	if r, _ := store.Validate(ctx, token, "", ""); !r.Valid {
		t.Fatalf("token dead before the 24h expiry")
	}

	now = now.Add(2 * time.Hour)
	result, err := store.Validate(ctx, token, "", "")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if result.Valid {
		t.Fatalf("expired token validated")
	}
	// Expired is indistinguishable from unknown in the result.
	if result.PrincipalID != "" || result.Kind != "" {
		t.Fatalf("expired token leaked principal data: %+v", result)
	}
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newFakeRepo())

	token, err := store.Issue(ctx, "principal-1", model.KindSchool, "", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := store.Revoke(ctx, token); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if r, _ := store.Validate(ctx, token, "", ""); r.Valid {
		t.Fatalf("revoked token validated")
	}

	// Revoking again, or revoking garbage, is a no-op.
	if err := store.Revoke(ctx, token); err != nil {
		t.Fatalf("second revoke: %v", err)
	}
	if err := store.Revoke(ctx, "never-issued"); err != nil {
		t.Fatalf("revoke unknown: %v", err)
	}
}

func TestRevokeAllScopedToPrincipal(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newFakeRepo())

	one, err := store.Issue(ctx, "principal-1", model.KindSchool, "", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	two, err := store.Issue(ctx, "principal-1", model.KindSchool, "", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	other, err := store.Issue(ctx, "principal-2", model.KindSchool, "", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	// Same principal id under the admin kind is a different principal.
	sameIDOtherKind, err := store.Issue(ctx, "principal-1", model.KindAdmin, "", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if err := store.RevokeAll(ctx, model.KindSchool, "principal-1"); err != nil {
		t.Fatalf("revoke all: %v", err)
	}

	if r, _ := store.Validate(ctx, one, "", ""); r.Valid {
		t.Fatalf("first session survived revoke all")
	}
	if r, _ := store.Validate(ctx, two, "", ""); r.Valid {
		t.Fatalf("second session survived revoke all")
	}
	if r, _ := store.Validate(ctx, other, "", ""); !r.Valid {
		t.Fatalf("another principal's session was revoked")
	}
	if r, _ := store.Validate(ctx, sameIDOtherKind, "", ""); !r.Valid {
		t.Fatalf("other-kind session was revoked")
	}
}

func TestTokenStoredHashed(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	store := NewStore(repo)

	token, err := store.Issue(ctx, "principal-1", model.KindSchool, "", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	for hash, session := range repo.sessions {
		if hash == token || session.TokenHash == token {
			t.Fatalf("plaintext token persisted")
		}
		if session.ExpiresAt.Sub(session.CreatedAt) != TTL {
			t.Fatalf("expiry %s after creation, want %s", session.ExpiresAt.Sub(session.CreatedAt), TTL)
		}
	}
}
