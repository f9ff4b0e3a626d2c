package model

import "time"

// Kind distinguishes the two principal populations. The public identifier is
// unique within a kind, not across kinds.
type Kind string

const (
	KindAdmin  Kind = "admin"
	KindSchool Kind = "school"
)

func (k Kind) Valid() bool {
	return k == KindAdmin || k == KindSchool
}

type Admin struct {
	ID                    string
	LoginID               string
	PasswordDigest        string
	Role                  string
	PasswordResetRequired bool
	PasswordUpdatedAt     *time.Time
	CreatedAt             time.Time
}

type School struct {
	ID                    string
	LoginID               string
	PasswordDigest        string
	Name                  string
	District              string
	Banned                bool
	FeePaid               bool
	PasswordResetRequired bool
	PasswordUpdatedAt     *time.Time
	CreatedAt             time.Time
}

// Principal is the kind-independent view the auth flows operate on.
type Principal struct {
	ID                    string
	Kind                  Kind
	LoginID               string
	PasswordDigest        string
	Banned                bool
	PasswordResetRequired bool
}

func (a Admin) Principal() Principal {
	return Principal{
		ID:                    a.ID,
		Kind:                  KindAdmin,
		LoginID:               a.LoginID,
		PasswordDigest:        a.PasswordDigest,
		PasswordResetRequired: a.PasswordResetRequired,
	}
}

func (s School) Principal() Principal {
	return Principal{
		ID:                    s.ID,
		Kind:                  KindSchool,
		LoginID:               s.LoginID,
		PasswordDigest:        s.PasswordDigest,
		Banned:                s.Banned,
		PasswordResetRequired: s.PasswordResetRequired,
	}
}

// Session rows are append-only: after creation only RevokedAt ever changes.
// Expired and revoked rows are kept for audit.
type Session struct {
	ID          string
	PrincipalID string
	Kind        Kind
	TokenHash   string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	RevokedAt   *time.Time
	UserAgent   *string
	IPAddress   *string
}

// Usable reports whether the session grants access at the given instant.
func (s Session) Usable(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
