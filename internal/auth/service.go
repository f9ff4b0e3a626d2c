// Package auth orchestrates the credential and session flows: login, session
// validation, both password-reset paths, and tenant provisioning. It is the
// only package that makes flow-level decisions; hashing, rate limiting, and
// session bookkeeping live behind the collaborators it is built with.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"skolar/auth-authority/internal/crypto"
	"skolar/auth-authority/internal/model"
	"skolar/auth-authority/internal/ratelimit"
	"skolar/auth-authority/internal/repository"
	"skolar/auth-authority/internal/session"
)

// MinPasswordLength applies to caller-chosen passwords (self-service reset).
// Generated passwords are longer than this by construction.
const MinPasswordLength = 8

// PrincipalStore is the slice of the persistence layer the flows need.
type PrincipalStore interface {
	GetAdminByLoginID(ctx context.Context, loginID string) (model.Admin, error)
	GetSchoolByLoginID(ctx context.Context, loginID string) (model.School, error)
	GetSchoolByID(ctx context.Context, id string) (model.School, error)
	CreateSchool(ctx context.Context, school model.School) error
	UpdatePasswordDigest(ctx context.Context, kind model.Kind, principalID, digest string, resetRequired bool, updatedAt time.Time) error
}

type Service struct {
	principals PrincipalStore
	sessions   *session.Store
	limiter    ratelimit.Limiter
	hasher     *crypto.PasswordHasher
	now        func() time.Time
}

func NewService(principals PrincipalStore, sessions *session.Store, limiter ratelimit.Limiter, hasher *crypto.PasswordHasher) *Service {
	return &Service{
		principals: principals,
		sessions:   sessions,
		limiter:    limiter,
		hasher:     hasher,
		now:        time.Now,
	}
}

type LoginInput struct {
	Kind       model.Kind
	Identifier string
	Password   string
	IPAddress  string
	UserAgent  string
}

type LoginResult struct {
	Token                 string
	RequiresPasswordReset bool
	PrincipalID           string
	Kind                  model.Kind
	Identifier            string
}

// Login runs the full gate sequence: rate limiter, principal lookup, ban
// check, password verification, opportunistic digest upgrade, session issue.
func (s *Service) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	if !in.Kind.Valid() {
		loginsTotal.WithLabelValues(kindUnknown, outcomeInvalid).Inc()
		return LoginResult{}, ErrInvalidCredentials
	}

	key := ratelimit.Key{Kind: string(in.Kind), Identifier: in.Identifier}
	if key.Identifier == "" {
		key.Identifier = in.IPAddress
	}

	decision, err := s.limiter.Check(ctx, key)
	if err != nil {
		loginsTotal.WithLabelValues(string(in.Kind), outcomeError).Inc()
		return LoginResult{}, fmt.Errorf("rate limiter: %w", err)
	}
	if !decision.Allowed {
		loginsTotal.WithLabelValues(string(in.Kind), outcomeRateLimited).Inc()
		return LoginResult{}, &RateLimitedError{RetryAfter: decision.RetryAfter}
	}

	principal, err := s.lookup(ctx, in.Kind, in.Identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Unknown identifier costs an attempt and yields the exact
			// failure a wrong password does.
			if rerr := s.limiter.RecordAttempt(ctx, key, false); rerr != nil {
				return LoginResult{}, fmt.Errorf("rate limiter: %w", rerr)
			}
			loginsTotal.WithLabelValues(string(in.Kind), outcomeInvalid).Inc()
			return LoginResult{}, ErrInvalidCredentials
		}
		loginsTotal.WithLabelValues(string(in.Kind), outcomeError).Inc()
		return LoginResult{}, fmt.Errorf("principal lookup: %w", err)
	}

	// Suspension is not a credential-guessing signal: the check neither
	// consumes an attempt nor hides behind the generic failure. The tenant
	// already knows it is suspended.
	if principal.Banned {
		loginsTotal.WithLabelValues(string(in.Kind), outcomeSuspended).Inc()
		return LoginResult{}, ErrAccountSuspended
	}

	valid, scheme := s.hasher.Verify(in.Password, principal.PasswordDigest)
	if !valid {
		if rerr := s.limiter.RecordAttempt(ctx, key, false); rerr != nil {
			return LoginResult{}, fmt.Errorf("rate limiter: %w", rerr)
		}
		loginsTotal.WithLabelValues(string(in.Kind), outcomeInvalid).Inc()
		return LoginResult{}, ErrInvalidCredentials
	}

	if err := s.limiter.RecordAttempt(ctx, key, true); err != nil {
		return LoginResult{}, fmt.Errorf("rate limiter: %w", err)
	}

	if shouldUpgrade(scheme, principal) {
		if err := s.upgradeDigest(ctx, principal, in.Password, scheme); err != nil {
			// Best effort. The credentials already verified; the account
			// stays on its legacy digest until the next login.
			log.Printf("digest upgrade for %s %s failed: %v", principal.Kind, principal.ID, err)
		}
	}

	token, err := s.sessions.Issue(ctx, principal.ID, principal.Kind, in.IPAddress, in.UserAgent)
	if err != nil {
		loginsTotal.WithLabelValues(string(in.Kind), outcomeError).Inc()
		return LoginResult{}, err
	}

	loginsTotal.WithLabelValues(string(in.Kind), outcomeSuccess).Inc()
	return LoginResult{
		Token:                 token,
		RequiresPasswordReset: scheme.Legacy() || principal.PasswordResetRequired,
		PrincipalID:           principal.ID,
		Kind:                  principal.Kind,
		Identifier:            principal.LoginID,
	}, nil
}

func (s *Service) lookup(ctx context.Context, kind model.Kind, identifier string) (model.Principal, error) {
	switch kind {
	case model.KindAdmin:
		admin, err := s.principals.GetAdminByLoginID(ctx, identifier)
		if err != nil {
			return model.Principal{}, err
		}
		return admin.Principal(), nil
	default:
		school, err := s.principals.GetSchoolByLoginID(ctx, identifier)
		if err != nil {
			return model.Principal{}, err
		}
		return school.Principal(), nil
	}
}

// shouldUpgrade decides whether a successful verification should rewrite the
// stored digest under the current scheme. Pure function; the write is a
// separate, explicit step.
//
// Accounts with a pending forced reset are skipped: they are about to replace
// the password anyway, and rewriting the digest would mask that the stored
// value predates the migration.
func shouldUpgrade(scheme crypto.Scheme, principal model.Principal) bool {
	return scheme.Legacy() && !principal.PasswordResetRequired
}

func (s *Service) upgradeDigest(ctx context.Context, principal model.Principal, password string, from crypto.Scheme) error {
	digest, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	if err := s.principals.UpdatePasswordDigest(ctx, principal.Kind, principal.ID, digest, false, s.now().UTC()); err != nil {
		return err
	}
	digestUpgradesTotal.WithLabelValues(string(from)).Inc()
	return nil
}

// ValidateSession is a pass-through to the session store; every protected
// endpoint in the platform calls it before doing work.
func (s *Service) ValidateSession(ctx context.Context, token string, expectedKind model.Kind) (session.Result, error) {
	result, err := s.sessions.Validate(ctx, token, expectedKind, "")
	if err != nil {
		sessionValidationsTotal.WithLabelValues("error").Inc()
		return session.Result{}, err
	}
	if result.Valid {
		sessionValidationsTotal.WithLabelValues("valid").Inc()
	} else {
		sessionValidationsTotal.WithLabelValues("invalid").Inc()
	}
	return result, nil
}

// Logout revokes the presented token. Idempotent.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Revoke(ctx, token)
}

// ResetOwnPassword lets a session holder replace their own password. The
// presented token dies with every other session of the principal, and a fresh
// token comes back so the caller is not forced to log in again with the
// password they just replaced.
func (s *Service) ResetOwnPassword(ctx context.Context, token, newPassword, ipAddress, userAgent string) (string, error) {
	result, err := s.sessions.Validate(ctx, token, "", "")
	if err != nil {
		return "", err
	}
	if !result.Valid {
		return "", ErrSessionInvalid
	}
	if len(newPassword) < MinPasswordLength {
		return "", ErrWeakPassword
	}

	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	if err := s.principals.UpdatePasswordDigest(ctx, result.Kind, result.PrincipalID, digest, false, s.now().UTC()); err != nil {
		return "", fmt.Errorf("persisting password: %w", err)
	}
	if err := s.sessions.RevokeAll(ctx, result.Kind, result.PrincipalID); err != nil {
		return "", fmt.Errorf("revoking sessions: %w", err)
	}
	return s.sessions.Issue(ctx, result.PrincipalID, result.Kind, ipAddress, userAgent)
}

// ForcePasswordReset replaces a school's password with a generated one, marks
// the account reset-required, and revokes its sessions. The plaintext is
// returned to the admin caller exactly once; only the digest is stored.
// Admin authorization happens at the transport layer.
func (s *Service) ForcePasswordReset(ctx context.Context, schoolID string) (string, error) {
	school, err := s.principals.GetSchoolByID(ctx, schoolID)
	if err != nil {
		return "", err
	}

	password, err := crypto.GeneratePassword()
	if err != nil {
		return "", fmt.Errorf("generating password: %w", err)
	}
	digest, err := s.hasher.Hash(password)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}

	if err := s.principals.UpdatePasswordDigest(ctx, model.KindSchool, school.ID, digest, true, s.now().UTC()); err != nil {
		return "", fmt.Errorf("persisting password: %w", err)
	}
	if err := s.sessions.RevokeAll(ctx, model.KindSchool, school.ID); err != nil {
		return "", fmt.Errorf("revoking sessions: %w", err)
	}
	return password, nil
}

type ProvisionInput struct {
	Name     string
	District string
	FeePaid  bool
}

// ProvisionTenant creates a school with generated credentials. The returned
// credential is the only copy of the plaintext that will ever exist.
func (s *Service) ProvisionTenant(ctx context.Context, in ProvisionInput) (model.School, crypto.Credential, error) {
	cred, err := crypto.GenerateCredential()
	if err != nil {
		return model.School{}, crypto.Credential{}, fmt.Errorf("generating credentials: %w", err)
	}
	digest, err := s.hasher.Hash(cred.Password())
	if err != nil {
		return model.School{}, crypto.Credential{}, fmt.Errorf("hashing password: %w", err)
	}

	now := s.now().UTC()
	school := model.School{
		ID:             uuid.NewString(),
		LoginID:        cred.Identifier,
		PasswordDigest: digest,
		Name:           in.Name,
		District:       in.District,
		FeePaid:        in.FeePaid,
		CreatedAt:      now,
	}
	if err := s.principals.CreateSchool(ctx, school); err != nil {
		return model.School{}, crypto.Credential{}, fmt.Errorf("creating school: %w", err)
	}
	return school, cred, nil
}
