package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/order-pipeline/internal/core/domain"
)

const mysqlDuplicateEntry = 1062

// MySQLInventoryRepository keeps the product stock counter and the
// reservation table. Every mutation is a single guarded statement so the
// contention window is one row update, never the whole saga.
type MySQLInventoryRepository struct {
	db *sql.DB
}

func NewMySQLInventoryRepository(db *sql.DB) *MySQLInventoryRepository {
	return &MySQLInventoryRepository{db: db}
}

func (r *MySQLInventoryRepository) FindProduct(ctx context.Context, productID string) (*domain.Product, error) {
	var p domain.Product
	err := q(ctx, r.db).QueryRowContext(ctx, `
		SELECT id, name, price, stock, created_at, updated_at
		FROM products WHERE id = ?`, productID,
	).Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}

// Reserve inserts a PENDING reservation guarded by the availability
// check in the same statement: zero rows affected means the remaining
// stock (total minus other PENDING holds) would not cover the quantity.
// FOR UPDATE takes an exclusive lock on the product row, so concurrent
// reserves for the same product serialize at any isolation level and
// each one evaluates the guard against the previous winner's hold.
func (r *MySQLInventoryRepository) Reserve(ctx context.Context, res domain.Reservation) error {
	result, err := q(ctx, r.db).ExecContext(ctx, `
		INSERT INTO stock_reservations (id, product_id, order_id, quantity, status, expires_at, created_at, updated_at)
		SELECT ?, p.id, ?, ?, ?, ?, NOW(), NOW()
		FROM products p
		WHERE p.id = ?
		  AND p.stock - COALESCE((
			SELECT SUM(sr.quantity) FROM stock_reservations sr
			WHERE sr.product_id = p.id AND sr.status = ?
		  ), 0) >= ?
		FOR UPDATE`,
		res.ID, res.OrderID, res.Quantity, domain.ReservationPending, res.ExpiresAt,
		res.ProductID, domain.ReservationPending, res.Quantity,
	)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
			return fmt.Errorf("%w: order %s", domain.ErrReservationExists, res.OrderID)
		}
		return fmt.Errorf("insert reservation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: product %s", domain.ErrInsufficientStock, res.ProductID)
	}
	return nil
}

// Confirm decrements stock and flips the reservation to confirmed in one
// statement. The PENDING guard makes redelivery a no-op.
func (r *MySQLInventoryRepository) Confirm(ctx context.Context, reservationID string) (bool, error) {
	result, err := q(ctx, r.db).ExecContext(ctx, `
		UPDATE products p
		JOIN stock_reservations sr ON sr.product_id = p.id
		SET p.stock = p.stock - sr.quantity,
		    p.updated_at = NOW(),
		    sr.status = ?,
		    sr.updated_at = NOW()
		WHERE sr.id = ? AND sr.status = ?`,
		domain.ReservationConfirmed, reservationID, domain.ReservationPending,
	)
	if err != nil {
		return false, fmt.Errorf("confirm reservation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *MySQLInventoryRepository) Release(ctx context.Context, reservationID string) (bool, error) {
	return r.transition(ctx, reservationID, domain.ReservationReleased, false)
}

func (r *MySQLInventoryRepository) Expire(ctx context.Context, reservationID string) (bool, error) {
	return r.transition(ctx, reservationID, domain.ReservationExpired, true)
}

func (r *MySQLInventoryRepository) transition(ctx context.Context, reservationID string, to domain.ReservationStatus, requireExpired bool) (bool, error) {
	query := `UPDATE stock_reservations SET status = ?, updated_at = NOW() WHERE id = ? AND status = ?`
	args := []any{to, reservationID, domain.ReservationPending}
	if requireExpired {
		query += ` AND expires_at < NOW()`
	}

	result, err := q(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("transition reservation to %s: %w", to, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *MySQLInventoryRepository) ListExpired(ctx context.Context, now time.Time) ([]domain.Reservation, error) {
	rows, err := q(ctx, r.db).QueryContext(ctx, `
		SELECT id, product_id, order_id, quantity, status, expires_at, created_at, updated_at
		FROM stock_reservations
		WHERE status = ? AND expires_at < ?
		ORDER BY expires_at`,
		domain.ReservationPending, now,
	)
	if err != nil {
		return nil, fmt.Errorf("query expired reservations: %w", err)
	}
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		var res domain.Reservation
		if err := rows.Scan(&res.ID, &res.ProductID, &res.OrderID, &res.Quantity, &res.Status, &res.ExpiresAt, &res.CreatedAt, &res.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func (r *MySQLInventoryRepository) FindReservationByOrder(ctx context.Context, orderID string) (*domain.Reservation, error) {
	var res domain.Reservation
	err := q(ctx, r.db).QueryRowContext(ctx, `
		SELECT id, product_id, order_id, quantity, status, expires_at, created_at, updated_at
		FROM stock_reservations WHERE order_id = ?`, orderID,
	).Scan(&res.ID, &res.ProductID, &res.OrderID, &res.Quantity, &res.Status, &res.ExpiresAt, &res.CreatedAt, &res.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query reservation: %w", err)
	}
	return &res, nil
}

func (r *MySQLInventoryRepository) AvailableStock(ctx context.Context, productID string) (int, error) {
	var available int
	err := q(ctx, r.db).QueryRowContext(ctx, `
		SELECT p.stock - COALESCE((
			SELECT SUM(sr.quantity) FROM stock_reservations sr
			WHERE sr.product_id = p.id AND sr.status = ?
		), 0)
		FROM products p WHERE p.id = ?`,
		domain.ReservationPending, productID,
	).Scan(&available)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	}
	if err != nil {
		return 0, fmt.Errorf("query available stock: %w", err)
	}
	return available, nil
}
