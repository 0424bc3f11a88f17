package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"shop-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// NewStoreFromDB wraps an existing connection (used by tests)
func NewStoreFromDB(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetProductByID retrieves a product by ID. Inactive products are treated
// as absent unless includeInactive is set (admin and cancellation paths).
func (s *Store) GetProductByID(ctx context.Context, id int64, includeInactive bool) (*models.Product, error) {
	query := "SELECT * FROM products WHERE id = $1"
	if !includeInactive {
		query += " AND is_active = TRUE"
	}

	var product models.Product
	err := s.db.GetContext(ctx, &product, query, id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: id=%d", ErrProductNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductBySKU retrieves a product by SKU
func (s *Store) GetProductBySKU(ctx context.Context, sku string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE sku = $1", sku)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: sku=%s", ErrProductNotFound, sku)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListProducts retrieves products, active-only by default
func (s *Store) ListProducts(ctx context.Context, activeOnly bool, limit, offset int) ([]models.Product, error) {
	query := "SELECT * FROM products"
	if activeOnly {
		query += " WHERE is_active = TRUE"
	}
	query += " ORDER BY id LIMIT $1 OFFSET $2"

	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products, query, limit, offset)
	return products, err
}

// CreateProduct inserts a product; duplicate SKUs surface as ErrConflict
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (sku, name, description, price, stock_quantity, image_url, is_active, category_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	err := s.db.GetContext(ctx, p, query,
		p.SKU, p.Name, p.Description, p.Price, p.StockQuantity, p.ImageURL, p.IsActive, p.CategoryID)
	return wrapConflict(err, "sku already exists")
}

// UpdateProduct overwrites mutable product fields
func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $1, description = $2, price = $3, stock_quantity = $4,
		    image_url = $5, is_active = $6, category_id = $7, updated_at = NOW()
		WHERE id = $8`,
		p.Name, p.Description, p.Price, p.StockQuantity, p.ImageURL, p.IsActive, p.CategoryID, p.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: id=%d", ErrProductNotFound, p.ID)
	}
	return nil
}

// DeactivateProduct soft-deletes a product. Rows referenced by orders are
// never physically removed.
func (s *Store) DeactivateProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE products SET is_active = FALSE, updated_at = NOW() WHERE id = $1", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: id=%d", ErrProductNotFound, id)
	}
	return nil
}

// LockProduct loads a product row FOR UPDATE inside tx. The row lock is
// what keeps two concurrent placements from both passing the stock check.
func (s *Store) LockProduct(ctx context.Context, tx *sqlx.Tx, productID int64) (*models.Product, error) {
	var product models.Product
	err := tx.GetContext(ctx, &product,
		"SELECT * FROM products WHERE id = $1 FOR UPDATE", productID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: id=%d", ErrProductNotFound, productID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock product %d: %w", productID, err)
	}
	return &product, nil
}

// DecrementStock subtracts quantity from a locked product's stock. The
// guard clause keeps stock_quantity from ever going negative even if the
// caller's check raced.
func (s *Store) DecrementStock(ctx context.Context, tx *sqlx.Tx, productID int64, quantity int) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity - $1, updated_at = NOW()
		WHERE id = $2 AND stock_quantity >= $1`,
		quantity, productID)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: product=%d", ErrInsufficientStock, productID)
	}
	return nil
}

// CreditStock adds quantity back onto a product's stock (cancellation
// compensation). Works on inactive products too.
func (s *Store) CreditStock(ctx context.Context, tx *sqlx.Tx, productID int64, quantity int) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity + $1, updated_at = NOW()
		WHERE id = $2`,
		quantity, productID)
	if err != nil {
		return fmt.Errorf("failed to credit stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: id=%d", ErrProductNotFound, productID)
	}
	return nil
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
