package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"skolar/auth-authority/internal/model"
)

// ErrNotFound is returned when a lookup matches no row. Callers translate it
// into domain outcomes; it never reaches an end user verbatim.
var ErrNotFound = errors.New("not found")

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) GetAdminByLoginID(ctx context.Context, loginID string) (model.Admin, error) {
	var admin model.Admin
	row := s.pool.QueryRow(ctx, `
		SELECT id, login_id, password_digest, role, password_reset_required, password_updated_at, created_at
		FROM admins
		WHERE login_id = $1
	`, loginID)
	err := row.Scan(
		&admin.ID,
		&admin.LoginID,
		&admin.PasswordDigest,
		&admin.Role,
		&admin.PasswordResetRequired,
		&admin.PasswordUpdatedAt,
		&admin.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Admin{}, ErrNotFound
	}
	return admin, err
}

func (s *Store) GetSchoolByLoginID(ctx context.Context, loginID string) (model.School, error) {
	return s.getSchool(ctx, `WHERE login_id = $1`, loginID)
}

func (s *Store) GetSchoolByID(ctx context.Context, id string) (model.School, error) {
	return s.getSchool(ctx, `WHERE id = $1`, id)
}

func (s *Store) getSchool(ctx context.Context, where, arg string) (model.School, error) {
	var school model.School
	row := s.pool.QueryRow(ctx, `
		SELECT id, login_id, password_digest, name, district, banned, fee_paid,
		       password_reset_required, password_updated_at, created_at
		FROM schools
	`+where, arg)
	err := row.Scan(
		&school.ID,
		&school.LoginID,
		&school.PasswordDigest,
		&school.Name,
		&school.District,
		&school.Banned,
		&school.FeePaid,
		&school.PasswordResetRequired,
		&school.PasswordUpdatedAt,
		&school.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.School{}, ErrNotFound
	}
	return school, err
}

func (s *Store) CreateSchool(ctx context.Context, school model.School) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO schools (id, login_id, password_digest, name, district, banned, fee_paid,
		                     password_reset_required, password_updated_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, school.ID, school.LoginID, school.PasswordDigest, school.Name, school.District,
		school.Banned, school.FeePaid, school.PasswordResetRequired,
		school.PasswordUpdatedAt, school.CreatedAt)
	return err
}

// UpdatePasswordDigest rewrites a principal's digest, stamps the update time,
// and sets the forced-reset flag as instructed. Used by both reset flows and
// by the transparent legacy upgrade.
func (s *Store) UpdatePasswordDigest(ctx context.Context, kind model.Kind, principalID, digest string, resetRequired bool, updatedAt time.Time) error {
	table := "schools"
	if kind == model.KindAdmin {
		table = "admins"
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE `+table+`
		SET password_digest = $1, password_reset_required = $2, password_updated_at = $3
		WHERE id = $4
	`, digest, resetRequired, updatedAt, principalID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) CreateSession(ctx context.Context, session model.Session) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (id, principal_id, kind, token_hash, created_at, expires_at, revoked_at, user_agent, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, session.ID, session.PrincipalID, session.Kind, session.TokenHash,
		session.CreatedAt, session.ExpiresAt, session.RevokedAt, session.UserAgent, session.IPAddress)
	return err
}

func (s *Store) GetSessionByTokenHash(ctx context.Context, tokenHash string) (model.Session, error) {
	var session model.Session
	row := s.pool.QueryRow(ctx, `
		SELECT id, principal_id, kind, token_hash, created_at, expires_at, revoked_at, user_agent, ip_address
		FROM sessions
		WHERE token_hash = $1
	`, tokenHash)
	err := row.Scan(
		&session.ID,
		&session.PrincipalID,
		&session.Kind,
		&session.TokenHash,
		&session.CreatedAt,
		&session.ExpiresAt,
		&session.RevokedAt,
		&session.UserAgent,
		&session.IPAddress,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Session{}, ErrNotFound
	}
	return session, err
}

// RevokeSession flips a single session's revoked_at. Rows are never deleted;
// revoked and expired sessions stay behind as the audit trail.
func (s *Store) RevokeSession(ctx context.Context, sessionID string, revokedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE sessions SET revoked_at = $1 WHERE id = $2 AND revoked_at IS NULL
	`, revokedAt, sessionID)
	return err
}

// RevokeSessionsByPrincipal revokes every live session for a principal/kind
// pair. Called whenever a password changes so sessions issued under the old
// password die with it.
func (s *Store) RevokeSessionsByPrincipal(ctx context.Context, kind model.Kind, principalID string, revokedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE sessions SET revoked_at = $1
		WHERE principal_id = $2 AND kind = $3 AND revoked_at IS NULL
	`, revokedAt, principalID, kind)
	return err
}
