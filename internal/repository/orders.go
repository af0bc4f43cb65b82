package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/tirebot/internal/model"
)

const orderNumberConstraint = "orders_order_number_key"

const orderColumns = `o.id, o.user_id, u.phone_number, u.email, o.order_number, o.status, o.total_amount,
	o.payment_intent_id, o.created_at, o.updated_at`

// LastOrderSequence возвращает наибольший выданный порядковый номер заказа за все годы.
// Заказы не удаляются, поэтому значение не убывает и совпадает с числом заказов,
// пока в нумерации нет пропусков.
func (r *PostgresRepository) LastOrderSequence(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, lastSequenceQuery).Scan(&n); err != nil {
		return 0, fmt.Errorf("last order sequence: %w", err)
	}
	return n, nil
}

const lastSequenceQuery = `SELECT COALESCE(MAX(split_part(order_number, '-', 3)::integer), 0) FROM orders`

// CreateOrder сохраняет заказ со строками в одной транзакции.
// Занятый номер заказа возвращает ErrDuplicateOrderNumber.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o *model.Order) error {
	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		now := r.now()
		_, err = tx.Exec(ctx,
			`INSERT INTO orders (id, user_id, order_number, status, total_amount, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $6)`,
			o.ID, o.UserID, o.OrderNumber, string(o.Status), o.TotalAmount, now,
		)
		if err != nil {
			if isUniqueViolation(err, orderNumberConstraint) {
				return fmt.Errorf("%w: %s", ErrDuplicateOrderNumber, o.OrderNumber)
			}
			return fmt.Errorf("insert order: %w", err)
		}

		batch := &pgx.Batch{}
		for _, it := range o.Items {
			batch.Queue(
				`INSERT INTO order_items (order_id, product_id, brand, model, quantity, unit_price, subtotal)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				o.ID, it.ProductID, it.Brand, it.Model, it.Quantity, it.UnitPrice, it.Subtotal,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert order items: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		o.CreatedAt = now
		o.UpdatedAt = now
		return nil
	})
	return err
}

// SetPaymentIntent сохраняет идентификатор платёжного намерения заказа.
func (r *PostgresRepository) SetPaymentIntent(ctx context.Context, orderID, intentID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders SET payment_intent_id = $2, updated_at = $3 WHERE id = $1`,
		orderID, intentID, r.now(),
	)
	if err != nil {
		return fmt.Errorf("update payment intent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// CancelOrder отменяет заказ, ожидающий оплаты. Строка остаётся, чтобы номер не выдавался повторно.
func (r *PostgresRepository) CancelOrder(ctx context.Context, orderID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`,
		orderID, string(model.OrderStatusPending), string(model.OrderStatusCancelled), r.now(),
	)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	return nil
}

// GetOrder возвращает заказ со строками.
func (r *PostgresRepository) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders o JOIN users u ON u.id = o.user_id WHERE o.id = $1`,
		orderID,
	)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	items, err := r.orderItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

// ListOrdersByUser возвращает последние заказы пользователя, новые первыми. Отменённые не попадают в список.
func (r *PostgresRepository) ListOrdersByUser(ctx context.Context, userID string, limit int) ([]model.Order, error) {
	return r.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders o JOIN users u ON u.id = o.user_id
		 WHERE o.user_id = $1 AND o.status <> $3
		 ORDER BY o.created_at DESC, o.order_number DESC
		 LIMIT $2`,
		userID, limit, string(model.OrderStatusCancelled),
	)
}

// ListPendingWithIntent возвращает неоплаченные заказы с платёжным намерением,
// созданные не раньше since, новые первыми.
func (r *PostgresRepository) ListPendingWithIntent(ctx context.Context, since time.Time, limit int) ([]model.Order, error) {
	return r.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders o JOIN users u ON u.id = o.user_id
		 WHERE o.status = $1 AND o.payment_intent_id IS NOT NULL AND o.created_at >= $2
		 ORDER BY o.created_at DESC
		 LIMIT $3`,
		string(model.OrderStatusPending), since, limit,
	)
}

// UpdateOrderStatus переводит заказ из статуса from в статус to.
// Возвращает false, если заказ уже не находится в статусе from.
func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, orderID string, from, to model.OrderStatus) (bool, error) {
	var updated bool
	err := r.withRetry(ctx, func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE orders SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`,
			orderID, string(from), string(to), r.now(),
		)
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		updated = tag.RowsAffected() == 1
		return nil
	})
	return updated, err
}

func (r *PostgresRepository) queryOrders(ctx context.Context, q string, args ...any) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

func (r *PostgresRepository) orderItems(ctx context.Context, orderID string) ([]model.OrderItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT product_id, brand, model, quantity, unit_price, subtotal
		 FROM order_items WHERE order_id = $1 ORDER BY id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	var items []model.OrderItem
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ProductID, &it.Brand, &it.Model, &it.Quantity, &it.UnitPrice, &it.Subtotal); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o      model.Order
		status string
	)
	err := row.Scan(&o.ID, &o.UserID, &o.PhoneNumber, &o.Email, &o.OrderNumber, &status,
		&o.TotalAmount, &o.PaymentIntentID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	o.Status = model.OrderStatus(status)
	return &o, nil
}
