package repository

import (
	"context"
	"fmt"
)

// MarkInboundMessage регистрирует входящее сообщение по идентификатору провайдера.
// Возвращает false, если сообщение уже обрабатывалось.
func (r *PostgresRepository) MarkInboundMessage(ctx context.Context, sid string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO inbound_messages (sid, received_at) VALUES ($1, $2) ON CONFLICT (sid) DO NOTHING`,
		sid, r.now(),
	)
	if err != nil {
		return false, fmt.Errorf("insert inbound message: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
