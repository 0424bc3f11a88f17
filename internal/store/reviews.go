package store

import (
	"context"
	"database/sql"
	"fmt"

	"shop-service/internal/models"
)

// HasPurchased reports whether the user has an order item for the product.
// Cancelled orders still count as purchases, mirroring the order-item join.
func (s *Store) HasPurchased(ctx context.Context, userID, productID int64) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM order_items oi
			JOIN orders o ON o.id = oi.order_id
			WHERE o.user_id = $1 AND oi.product_id = $2
		)`, userID, productID)
	return exists, err
}

// InsertReview creates a review; the (user, product) unique constraint
// surfaces as ErrConflict.
func (s *Store) InsertReview(ctx context.Context, review *models.Review) error {
	query := `
		INSERT INTO reviews (user_id, product_id, rating, comment)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	err := s.db.GetContext(ctx, review, query,
		review.UserID, review.ProductID, review.Rating, review.Comment)
	return wrapConflict(err, "product already reviewed")
}

// GetReview fetches a review by id
func (s *Store) GetReview(ctx context.Context, reviewID int64) (*models.Review, error) {
	var review models.Review
	err := s.db.GetContext(ctx, &review,
		"SELECT * FROM reviews WHERE id = $1", reviewID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: id=%d", ErrReviewNotFound, reviewID)
	}
	if err != nil {
		return nil, err
	}
	return &review, nil
}

// ListReviewsByProduct returns reviews for a product, newest first
func (s *Store) ListReviewsByProduct(ctx context.Context, productID int64, limit, offset int) ([]models.Review, error) {
	reviews := []models.Review{}
	err := s.db.SelectContext(ctx, &reviews,
		"SELECT * FROM reviews WHERE product_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3",
		productID, limit, offset)
	return reviews, err
}

// UpdateReview overwrites rating and comment, scoped to the owner
func (s *Store) UpdateReview(ctx context.Context, review *models.Review) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE reviews SET rating = $1, comment = $2, updated_at = NOW() WHERE id = $3 AND user_id = $4",
		review.Rating, review.Comment, review.ID, review.UserID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: id=%d", ErrReviewNotFound, review.ID)
	}
	return nil
}

// DeleteReview removes a review scoped to the owner
func (s *Store) DeleteReview(ctx context.Context, userID, reviewID int64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM reviews WHERE id = $1 AND user_id = $2", reviewID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: id=%d", ErrReviewNotFound, reviewID)
	}
	return nil
}

// CreateUser inserts a user row (used by seeding and tests)
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (username, email, is_admin)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`

	err := s.db.GetContext(ctx, user, query, user.Username, user.Email, user.IsAdmin)
	return wrapConflict(err, "username or email already exists")
}
