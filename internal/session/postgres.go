package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const schema = `
CREATE TABLE IF NOT EXISTS revoked_sessions (
    jti TEXT PRIMARY KEY,
    expires_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS revoked_sessions_expires_idx ON revoked_sessions (expires_at);`

// PostgresStore shares revocations between every replica behind the gateway.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateTable(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create revoked_sessions: %w", err)
	}
	return nil
}

func (s *PostgresStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM revoked_sessions WHERE expires_at <= NOW()`); err != nil {
		return fmt.Errorf("purge revoked sessions: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO revoked_sessions (jti, expires_at)
		VALUES ($1, NOW() + make_interval(secs => $2))
		ON CONFLICT (jti) DO UPDATE
		SET expires_at = GREATEST(revoked_sessions.expires_at, EXCLUDED.expires_at)`,
		jti, ttl.Seconds())
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return tx.Commit()
}

func (s *PostgresStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_sessions WHERE jti = $1 AND expires_at > NOW())`,
		jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked session: %w", err)
	}
	return revoked, nil
}
