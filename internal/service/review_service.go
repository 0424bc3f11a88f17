package service

import (
	"context"
	"fmt"

	"shop-service/internal/models"
	"shop-service/internal/store"
	"shop-service/internal/util"

	"go.uber.org/zap"
)

// ReviewService owns product reviews: one per (user, product), and only
// for products the user has actually purchased.
type ReviewService struct {
	store  *store.Store
	logger *zap.Logger
}

func NewReviewService(st *store.Store) *ReviewService {
	return &ReviewService{
		store:  st,
		logger: util.GetLogger(),
	}
}

// ReviewRequest carries the writable review fields
type ReviewRequest struct {
	ProductID int64  `json:"product_id" binding:"required"`
	Rating    int    `json:"rating" binding:"required,min=1,max=5"`
	Comment   string `json:"comment"`
}

func validRating(rating int) bool {
	return rating >= 1 && rating <= 5
}

// CreateReview adds a review for a purchased product. Duplicates surface
// as a conflict through the (user, product) unique constraint.
func (s *ReviewService) CreateReview(ctx context.Context, userID int64, req *ReviewRequest) (*models.Review, error) {
	ctx, span := util.StartSpan(ctx, "ReviewService.CreateReview")
	defer span.End()

	if !validRating(req.Rating) {
		return nil, fmt.Errorf("rating must be between 1 and 5, got %d", req.Rating)
	}

	if _, err := s.store.GetProductByID(ctx, req.ProductID, false); err != nil {
		return nil, err
	}

	purchased, err := s.store.HasPurchased(ctx, userID, req.ProductID)
	if err != nil {
		return nil, err
	}
	if !purchased {
		return nil, fmt.Errorf("%w: product=%d", store.ErrNotPurchased, req.ProductID)
	}

	review := &models.Review{
		UserID:    userID,
		ProductID: req.ProductID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	}
	if err := s.store.InsertReview(ctx, review); err != nil {
		return nil, err
	}

	s.logger.Info("Review created",
		zap.Int64("user_id", userID),
		zap.Int64("product_id", req.ProductID),
		zap.Int("rating", req.Rating))
	return review, nil
}

// UpdateReview overwrites the caller's own review
func (s *ReviewService) UpdateReview(ctx context.Context, userID, reviewID int64, rating int, comment string) (*models.Review, error) {
	ctx, span := util.StartSpan(ctx, "ReviewService.UpdateReview")
	defer span.End()

	if !validRating(rating) {
		return nil, fmt.Errorf("rating must be between 1 and 5, got %d", rating)
	}

	review := &models.Review{
		ID:      reviewID,
		UserID:  userID,
		Rating:  rating,
		Comment: comment,
	}
	if err := s.store.UpdateReview(ctx, review); err != nil {
		return nil, err
	}
	return s.store.GetReview(ctx, reviewID)
}

// DeleteReview removes the caller's own review
func (s *ReviewService) DeleteReview(ctx context.Context, userID, reviewID int64) error {
	return s.store.DeleteReview(ctx, userID, reviewID)
}

// ListReviews returns reviews for a product
func (s *ReviewService) ListReviews(ctx context.Context, productID int64, limit, offset int) ([]models.Review, error) {
	return s.store.ListReviewsByProduct(ctx, productID, limit, offset)
}
