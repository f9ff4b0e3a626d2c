package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Migrate applies the schema. Every statement is idempotent, so running it on
// every start is safe. Note there is no rate-limit table: attempt tracking is
// intentionally ephemeral.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS admins (
    id                      UUID PRIMARY KEY,
    login_id                TEXT NOT NULL UNIQUE,
    password_digest         TEXT NOT NULL,
    role                    TEXT NOT NULL DEFAULT 'admin',
    password_reset_required BOOLEAN NOT NULL DEFAULT FALSE,
    password_updated_at     TIMESTAMPTZ,
    created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS schools (
    id                      UUID PRIMARY KEY,
    login_id                TEXT NOT NULL UNIQUE,
    password_digest         TEXT NOT NULL,
    name                    TEXT NOT NULL,
    district                TEXT NOT NULL DEFAULT '',
    banned                  BOOLEAN NOT NULL DEFAULT FALSE,
    fee_paid                BOOLEAN NOT NULL DEFAULT FALSE,
    password_reset_required BOOLEAN NOT NULL DEFAULT FALSE,
    password_updated_at     TIMESTAMPTZ,
    created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS sessions (
    id           UUID PRIMARY KEY,
    principal_id UUID NOT NULL,
    kind         TEXT NOT NULL,
    token_hash   TEXT NOT NULL UNIQUE,
    created_at   TIMESTAMPTZ NOT NULL,
    expires_at   TIMESTAMPTZ NOT NULL,
    revoked_at   TIMESTAMPTZ,
    user_agent   TEXT,
    ip_address   TEXT
);

CREATE INDEX IF NOT EXISTS sessions_principal_idx ON sessions (principal_id, kind);
`
