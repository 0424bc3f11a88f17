package store

import (
	"context"
	"database/sql"
	"fmt"

	"shop-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// InsertAddress creates an address inside tx. Default-flag handling is the
// service's job; this just writes the row.
func (s *Store) InsertAddress(ctx context.Context, tx *sqlx.Tx, addr *models.Address) error {
	query := `
		INSERT INTO addresses (user_id, street, city, state, postal_code, country, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	return tx.GetContext(ctx, addr, query,
		addr.UserID, addr.Street, addr.City, addr.State, addr.PostalCode, addr.Country, addr.IsDefault)
}

// UpdateAddressTx overwrites address fields inside tx
func (s *Store) UpdateAddressTx(ctx context.Context, tx *sqlx.Tx, addr *models.Address) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE addresses
		SET street = $1, city = $2, state = $3, postal_code = $4, country = $5,
		    is_default = $6, updated_at = NOW()
		WHERE id = $7 AND user_id = $8`,
		addr.Street, addr.City, addr.State, addr.PostalCode, addr.Country,
		addr.IsDefault, addr.ID, addr.UserID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: id=%d", ErrAddressNotFound, addr.ID)
	}
	return nil
}

// ClearDefaultAddresses clears is_default on every address the user owns,
// optionally excluding one row (the address being updated). Run inside the
// same tx that sets the new default so two concurrent calls cannot leave
// zero or two defaults behind.
func (s *Store) ClearDefaultAddresses(ctx context.Context, tx *sqlx.Tx, userID, excludeID int64) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE addresses SET is_default = FALSE, updated_at = NOW() WHERE user_id = $1 AND is_default = TRUE AND id <> $2",
		userID, excludeID)
	return err
}

// LockUserAddresses serializes concurrent default-address changes for one
// user by locking the user row.
func (s *Store) LockUserAddresses(ctx context.Context, tx *sqlx.Tx, userID int64) error {
	var id int64
	err := tx.GetContext(ctx, &id, "SELECT id FROM users WHERE id = $1 FOR UPDATE", userID)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: id=%d", ErrUserNotFound, userID)
	}
	return err
}

// GetAddress fetches an address scoped to its owner
func (s *Store) GetAddress(ctx context.Context, userID, addressID int64) (*models.Address, error) {
	var addr models.Address
	err := s.db.GetContext(ctx, &addr,
		"SELECT * FROM addresses WHERE id = $1 AND user_id = $2", addressID, userID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: id=%d", ErrAddressNotFound, addressID)
	}
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

// GetAddressTx fetches an address scoped to its owner inside tx
func (s *Store) GetAddressTx(ctx context.Context, tx *sqlx.Tx, userID, addressID int64) (*models.Address, error) {
	var addr models.Address
	err := tx.GetContext(ctx, &addr,
		"SELECT * FROM addresses WHERE id = $1 AND user_id = $2", addressID, userID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: id=%d", ErrAddressNotFound, addressID)
	}
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

// ListAddresses returns every address the user owns, default first
func (s *Store) ListAddresses(ctx context.Context, userID int64) ([]models.Address, error) {
	addrs := []models.Address{}
	err := s.db.SelectContext(ctx, &addrs,
		"SELECT * FROM addresses WHERE user_id = $1 ORDER BY is_default DESC, id", userID)
	return addrs, err
}

// DeleteAddress removes an address scoped to its owner
func (s *Store) DeleteAddress(ctx context.Context, userID, addressID int64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM addresses WHERE id = $1 AND user_id = $2", addressID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: id=%d", ErrAddressNotFound, addressID)
	}
	return nil
}

// CountDefaultAddresses reports how many defaults the user currently has.
// Used by tests to assert the single-default invariant.
func (s *Store) CountDefaultAddresses(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM addresses WHERE user_id = $1 AND is_default = TRUE", userID)
	return n, err
}
