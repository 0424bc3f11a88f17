package store

import (
	"context"
	"database/sql"
	"fmt"

	"shop-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const cartLineColumns = `
	ci.id, ci.user_id, ci.product_id, ci.quantity, ci.created_at, ci.updated_at,
	p.name AS product_name, p.sku AS product_sku, p.price AS product_price,
	p.stock_quantity AS stock_on_hand, p.is_active AS is_active`

// LoadCartWithProducts returns the user's cart lines joined with their
// current product snapshots, oldest line first. One query, no lazy joins.
func (s *Store) LoadCartWithProducts(ctx context.Context, userID int64) ([]models.CartLine, error) {
	query := `
		SELECT` + cartLineColumns + `
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1
		ORDER BY ci.id`

	lines := []models.CartLine{}
	if err := s.db.SelectContext(ctx, &lines, query, userID); err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return lines, nil
}

// LoadCartForUpdate loads the user's cart lines inside tx with the backing
// product rows locked. Lines are ordered by product id so concurrent
// placements acquire locks in a consistent order.
func (s *Store) LoadCartForUpdate(ctx context.Context, tx *sqlx.Tx, userID int64) ([]models.CartLine, error) {
	query := `
		SELECT` + cartLineColumns + `
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1
		ORDER BY ci.product_id
		FOR UPDATE OF p`

	lines := []models.CartLine{}
	if err := tx.SelectContext(ctx, &lines, query, userID); err != nil {
		return nil, fmt.Errorf("load cart for update: %w", err)
	}
	return lines, nil
}

// GetCartItemTx fetches a single cart line by id scoped to its owner.
// A line owned by another user reads as absent.
func (s *Store) GetCartItemTx(ctx context.Context, tx *sqlx.Tx, userID, itemID int64) (*models.CartItem, error) {
	var item models.CartItem
	err := tx.GetContext(ctx, &item,
		"SELECT * FROM cart_items WHERE id = $1 AND user_id = $2", itemID, userID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: id=%d", ErrCartItemNotFound, itemID)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// FindCartItemByProductTx returns the user's existing line for a product,
// or nil if there is none.
func (s *Store) FindCartItemByProductTx(ctx context.Context, tx *sqlx.Tx, userID, productID int64) (*models.CartItem, error) {
	var item models.CartItem
	err := tx.GetContext(ctx, &item,
		"SELECT * FROM cart_items WHERE user_id = $1 AND product_id = $2", userID, productID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// InsertCartItem creates a new cart line
func (s *Store) InsertCartItem(ctx context.Context, tx *sqlx.Tx, item *models.CartItem) error {
	query := `
		INSERT INTO cart_items (user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`

	err := tx.GetContext(ctx, item, query, item.UserID, item.ProductID, item.Quantity)
	return wrapConflict(err, "cart line already exists for product")
}

// UpdateCartItemQuantity overwrites a line's quantity
func (s *Store) UpdateCartItemQuantity(ctx context.Context, tx *sqlx.Tx, itemID int64, quantity int) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE cart_items SET quantity = $1, updated_at = NOW() WHERE id = $2",
		quantity, itemID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: id=%d", ErrCartItemNotFound, itemID)
	}
	return nil
}

// DeleteCartItem removes a single line scoped to its owner
func (s *Store) DeleteCartItem(ctx context.Context, userID, itemID int64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM cart_items WHERE id = $1 AND user_id = $2", itemID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: id=%d", ErrCartItemNotFound, itemID)
	}
	return nil
}

// ClearCart deletes every line for the user. Idempotent.
func (s *Store) ClearCart(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = $1", userID)
	return err
}

// ClearCartTx deletes every line for the user inside tx (checkout step)
func (s *Store) ClearCartTx(ctx context.Context, tx *sqlx.Tx, userID int64) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = $1", userID)
	return err
}
