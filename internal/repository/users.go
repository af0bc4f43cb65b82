package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/tirebot/internal/model"
)

// UpsertUserByPhone возвращает пользователя по номеру телефона, создавая его при первом обращении.
func (r *PostgresRepository) UpsertUserByPhone(ctx context.Context, phone string) (*model.User, error) {
	var u model.User
	err := r.withRetry(ctx, func() error {
		return r.pool.QueryRow(ctx,
			`INSERT INTO users (id, phone_number) VALUES ($1, $2)
			 ON CONFLICT (phone_number) DO UPDATE SET phone_number = EXCLUDED.phone_number
			 RETURNING id, phone_number, email, created_at`,
			uuid.NewString(), phone,
		).Scan(&u.ID, &u.PhoneNumber, &u.Email, &u.CreatedAt)
	})
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return &u, nil
}

// GetUserByPhone возвращает пользователя по номеру телефона.
func (r *PostgresRepository) GetUserByPhone(ctx context.Context, phone string) (*model.User, error) {
	var u model.User
	err := r.pool.QueryRow(ctx,
		`SELECT id, phone_number, email, created_at FROM users WHERE phone_number = $1`,
		phone,
	).Scan(&u.ID, &u.PhoneNumber, &u.Email, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// SetUserEmail сохраняет адрес электронной почты пользователя.
func (r *PostgresRepository) SetUserEmail(ctx context.Context, userID, email string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET email = $2 WHERE id = $1`, userID, email)
	if err != nil {
		return fmt.Errorf("update user email: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
