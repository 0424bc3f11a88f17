package store

import (
	"context"
	"database/sql"
	"fmt"

	"shop-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// InsertOrder creates the order row inside the placement transaction
func (s *Store) InsertOrder(ctx context.Context, tx *sqlx.Tx, order *models.Order) error {
	query := `
		INSERT INTO orders (order_number, user_id, status, total_amount,
		                    shipping_address, billing_address, payment_method,
		                    payment_status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	return tx.GetContext(ctx, order, query,
		order.OrderNumber, order.UserID, order.Status, order.TotalAmount,
		order.ShippingAddress, order.BillingAddress, order.PaymentMethod,
		order.PaymentStatus, order.Notes)
}

// InsertOrderItem creates an order line inside the placement transaction
func (s *Store) InsertOrderItem(ctx context.Context, tx *sqlx.Tx, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, quantity, price)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	return tx.GetContext(ctx, item, query,
		item.OrderID, item.ProductID, item.Quantity, item.Price)
}

// GetOrderByID retrieves an order with its items. If userID is non-zero
// the lookup is scoped to that owner; a foreign order reads as absent.
func (s *Store) GetOrderByID(ctx context.Context, orderID, userID int64) (*models.Order, error) {
	query := "SELECT * FROM orders WHERE id = $1"
	args := []interface{}{orderID}
	if userID != 0 {
		query += " AND user_id = $2"
		args = append(args, userID)
	}

	var order models.Order
	err := s.db.GetContext(ctx, &order, query, args...)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: id=%d", ErrOrderNotFound, orderID)
	}
	if err != nil {
		return nil, err
	}

	items, err := s.GetOrderItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return &order, nil
}

// GetOrderItems retrieves all items for an order
func (s *Store) GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// GetOrderItemsTx retrieves order items inside tx (cancellation path)
func (s *Store) GetOrderItemsTx(ctx context.Context, tx *sqlx.Tx, orderID int64) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	err := tx.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY product_id", orderID)
	return items, err
}

// LockOrder loads an order row FOR UPDATE so status transitions serialize
func (s *Store) LockOrder(ctx context.Context, tx *sqlx.Tx, orderID int64) (*models.Order, error) {
	var order models.Order
	err := tx.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE id = $1 FOR UPDATE", orderID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: id=%d", ErrOrderNotFound, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock order %d: %w", orderID, err)
	}
	return &order, nil
}

// UpdateOrderStatusTx sets the order status inside tx
func (s *Store) UpdateOrderStatusTx(ctx context.Context, tx *sqlx.Tx, orderID int64, status models.OrderStatus) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		status, orderID)
	return err
}

// ConfirmOrderTx flips the order to confirmed with payment_status paid
func (s *Store) ConfirmOrderTx(ctx context.Context, tx *sqlx.Tx, orderID int64) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE orders SET status = $1, payment_status = $2, updated_at = NOW() WHERE id = $3",
		models.OrderStatusConfirmed, models.PaymentStatusPaid, orderID)
	return err
}

// AdminOrderUpdate carries the fields an administrator may overwrite
// directly. Nil fields are left untouched.
type AdminOrderUpdate struct {
	Status         *models.OrderStatus
	PaymentStatus  *string
	TrackingNumber *string
	Notes          *string
}

// AdminUpdateOrder overwrites order fields without consulting the
// lifecycle transition table. Administrative correction path only.
func (s *Store) AdminUpdateOrder(ctx context.Context, orderID int64, upd AdminOrderUpdate) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET status = COALESCE($1, status),
		    payment_status = COALESCE($2, payment_status),
		    tracking_number = COALESCE($3, tracking_number),
		    notes = COALESCE($4, notes),
		    updated_at = NOW()
		WHERE id = $5`,
		upd.Status, upd.PaymentStatus, upd.TrackingNumber, upd.Notes, orderID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: id=%d", ErrOrderNotFound, orderID)
	}
	return nil
}

// ListOrders retrieves orders newest first. userID of zero lists every
// user's orders (admin view).
func (s *Store) ListOrders(ctx context.Context, userID int64, limit, offset int) ([]models.Order, error) {
	query := "SELECT * FROM orders"
	args := []interface{}{}
	if userID != 0 {
		query += " WHERE user_id = $1"
		args = append(args, userID)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d",
		len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders, query, args...)
	return orders, err
}

// CreatePayment records a payment intent for an order
func (s *Store) CreatePayment(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (order_id, amount, status, provider_ref)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, payment, query,
		payment.OrderID, payment.Amount, payment.Status, payment.ProviderRef)
}

// UpdatePaymentStatus updates a payment record after the gateway reports
func (s *Store) UpdatePaymentStatus(ctx context.Context, paymentID int64, status, providerRef string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE payments SET status = $1, provider_ref = $2, updated_at = NOW() WHERE id = $3",
		status, providerRef, paymentID)
	return err
}

// GetPaymentByOrderID retrieves the latest payment for an order
func (s *Store) GetPaymentByOrderID(ctx context.Context, orderID int64) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment,
		"SELECT * FROM payments WHERE order_id = $1 ORDER BY created_at DESC LIMIT 1", orderID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("payment not found for order %d: %w", orderID, ErrOrderNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}
