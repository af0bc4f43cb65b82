package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/tirebot/internal/session"
)

var _ session.Store = (*PostgresRepository)(nil)

// Get загружает сессию по ключу. Истёкшая сессия считается отсутствующей.
func (r *PostgresRepository) Get(ctx context.Context, key string) (*session.Session, error) {
	var data []byte
	err := r.pool.QueryRow(ctx,
		`SELECT data FROM sessions WHERE key = $1 AND expires_at > $2`,
		key, r.now(),
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	s, err := session.Decode(data)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Set сохраняет сессию целиком, продлевая срок жизни на ttl.
func (r *PostgresRepository) Set(ctx context.Context, key string, s *session.Session, ttl time.Duration) error {
	data, err := session.Encode(s)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO sessions (key, data, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, expires_at = EXCLUDED.expires_at`,
		key, data, r.now().Add(ttl),
	)
	if err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

// PurgeExpiredSessions удаляет истёкшие сессии и возвращает их число.
func (r *PostgresRepository) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, r.now())
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
