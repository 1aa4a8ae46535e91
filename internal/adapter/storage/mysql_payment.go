package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/order-pipeline/internal/core/domain"
)

type MySQLPaymentRepository struct {
	db *sql.DB
}

func NewMySQLPaymentRepository(db *sql.DB) *MySQLPaymentRepository {
	return &MySQLPaymentRepository{db: db}
}

func (r *MySQLPaymentRepository) FindByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error) {
	var p domain.Payment
	var txnID, errMsg sql.NullString
	err := q(ctx, r.db).QueryRowContext(ctx, `
		SELECT id, idempotency_key, order_id, payment_method, amount, attempt, status, transaction_id, error_message, created_at, processed_at
		FROM payments WHERE idempotency_key = ?`, key,
	).Scan(&p.ID, &p.IdempotencyKey, &p.OrderID, &p.Method, &p.Amount, &p.Attempt, &p.Status, &txnID, &errMsg, &p.CreatedAt, &p.ProcessedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query payment by key: %w", err)
	}
	p.TransactionID = txnID.String
	p.ErrorMessage = errMsg.String
	return &p, nil
}

func (r *MySQLPaymentRepository) Record(ctx context.Context, p domain.Payment) error {
	_, err := q(ctx, r.db).ExecContext(ctx, `
		INSERT INTO payments (id, idempotency_key, order_id, payment_method, amount, attempt, status, transaction_id, error_message, created_at, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.IdempotencyKey, p.OrderID, p.Method, p.Amount, p.Attempt, p.Status,
		nullable(p.TransactionID), nullable(p.ErrorMessage), p.CreatedAt, p.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *MySQLPaymentRepository) FindByOrder(ctx context.Context, orderID string) ([]domain.Payment, error) {
	rows, err := q(ctx, r.db).QueryContext(ctx, `
		SELECT id, idempotency_key, order_id, payment_method, amount, attempt, status, transaction_id, error_message, created_at, processed_at
		FROM payments WHERE order_id = ? ORDER BY attempt`, orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("query payments by order: %w", err)
	}
	defer rows.Close()

	var out []domain.Payment
	for rows.Next() {
		var p domain.Payment
		var txnID, errMsg sql.NullString
		if err := rows.Scan(&p.ID, &p.IdempotencyKey, &p.OrderID, &p.Method, &p.Amount, &p.Attempt, &p.Status, &txnID, &errMsg, &p.CreatedAt, &p.ProcessedAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		p.TransactionID = txnID.String
		p.ErrorMessage = errMsg.String
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *MySQLPaymentRepository) NextAttemptNumber(ctx context.Context, orderID string) (int, error) {
	var next int
	err := q(ctx, r.db).QueryRowContext(ctx, `
		SELECT COALESCE(MAX(attempt), 0) + 1 FROM payments WHERE order_id = ?`, orderID,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("query next attempt number: %w", err)
	}
	return next, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
