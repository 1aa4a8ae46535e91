package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/order-pipeline/internal/core/domain"
)

type MySQLOrderRepository struct {
	db *sql.DB
}

func NewMySQLOrderRepository(db *sql.DB) *MySQLOrderRepository {
	return &MySQLOrderRepository{db: db}
}

func (r *MySQLOrderRepository) Create(ctx context.Context, o domain.Order) error {
	_, err := q(ctx, r.db).ExecContext(ctx, `
		INSERT INTO orders (id, order_number, user_id, status, payment_status, total_amount, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.Number, o.UserID, o.Status, o.PaymentStatus, o.TotalAmount, o.CreatedAt, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *MySQLOrderRepository) AddLines(ctx context.Context, orderID string, lines []domain.OrderLine) error {
	for _, line := range lines {
		_, err := q(ctx, r.db).ExecContext(ctx, `
			INSERT INTO order_lines (order_id, product_id, product_name, unit_price, quantity, line_total, created_at)
			VALUES (?, ?, ?, ?, ?, ?, NOW())`,
			orderID, line.ProductID, line.ProductName, line.UnitPrice, line.Quantity, line.LineTotal,
		)
		if err != nil {
			return fmt.Errorf("insert order line: %w", err)
		}
	}
	return nil
}

// Finalize is guarded on PENDING, so the terminal pair is written at
// most once; a second call affects zero rows and is a no-op.
func (r *MySQLOrderRepository) Finalize(ctx context.Context, orderID string, status domain.OrderStatus, payment domain.PaymentStatus) error {
	_, err := q(ctx, r.db).ExecContext(ctx, `
		UPDATE orders SET status = ?, payment_status = ?, updated_at = NOW()
		WHERE id = ? AND status = ?`,
		status, payment, orderID, domain.OrderStatusPending,
	)
	if err != nil {
		return fmt.Errorf("finalize order: %w", err)
	}
	return nil
}

func (r *MySQLOrderRepository) FindByID(ctx context.Context, orderID string) (*domain.Order, error) {
	var o domain.Order
	err := q(ctx, r.db).QueryRowContext(ctx, `
		SELECT id, order_number, user_id, status, payment_status, total_amount, created_at, updated_at
		FROM orders WHERE id = ?`, orderID,
	).Scan(&o.ID, &o.Number, &o.UserID, &o.Status, &o.PaymentStatus, &o.TotalAmount, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	lines, err := r.linesFor(ctx, orderID)
	if err != nil {
		return nil, err
	}
	o.Lines = lines
	return &o, nil
}

func (r *MySQLOrderRepository) FindByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := q(ctx, r.db).QueryContext(ctx, `
		SELECT id, order_number, user_id, status, payment_status, total_amount, created_at, updated_at
		FROM orders WHERE user_id = ? ORDER BY created_at DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query orders by user: %w", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.Number, &o.UserID, &o.Status, &o.PaymentStatus, &o.TotalAmount, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		lines, err := r.linesFor(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Lines = lines
	}
	return out, nil
}

func (r *MySQLOrderRepository) linesFor(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	rows, err := q(ctx, r.db).QueryContext(ctx, `
		SELECT order_id, product_id, product_name, unit_price, quantity, line_total
		FROM order_lines WHERE order_id = ?`, orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("query order lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.OrderLine
	for rows.Next() {
		var l domain.OrderLine
		if err := rows.Scan(&l.OrderID, &l.ProductID, &l.ProductName, &l.UnitPrice, &l.Quantity, &l.LineTotal); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
