package integration

import (
	"context"
	"errors"
	"testing"

	"shop-service/internal/service"
	"shop-service/internal/store"
)

func buyProduct(t *testing.T, st *store.Store, userID, productID int64, quantity int) {
	t.Helper()

	ctx := context.Background()
	carts := service.NewCartService(st, nil)
	orders := service.NewOrderService(st, nil, nil)

	if _, err := carts.AddToCart(ctx, userID, productID, quantity); err != nil {
		t.Fatalf("Add to cart: %v", err)
	}
	if _, err := orders.PlaceOrder(ctx, userID, placeRequest()); err != nil {
		t.Fatalf("Place order: %v", err)
	}
}

func TestCreateReviewRequiresPurchase(t *testing.T) {
	st, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	reviews := service.NewReviewService(st)

	buyer := createUser(t, st, "review_buyer")
	browser := createUser(t, st, "review_browser")
	product := createProduct(t, st, "REV-001", "Widget", "10.00", 10)

	buyProduct(t, st, buyer.ID, product.ID, 1)

	_, err := reviews.CreateReview(ctx, browser.ID, &service.ReviewRequest{
		ProductID: product.ID,
		Rating:    5,
	})
	if !errors.Is(err, store.ErrNotPurchased) {
		t.Fatalf("Expected not purchased error, got: %v", err)
	}

	review, err := reviews.CreateReview(ctx, buyer.ID, &service.ReviewRequest{
		ProductID: product.ID,
		Rating:    4,
		Comment:   "solid",
	})
	if err != nil {
		t.Fatalf("Create review: %v", err)
	}
	if review.ID == 0 {
		t.Error("Review ID should not be 0")
	}
	if review.Rating != 4 {
		t.Errorf("Expected rating 4, got %d", review.Rating)
	}
}

func TestCreateReviewDuplicateConflicts(t *testing.T) {
	st, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	reviews := service.NewReviewService(st)

	buyer := createUser(t, st, "review_dup")
	product := createProduct(t, st, "REV-002", "Widget", "10.00", 10)

	buyProduct(t, st, buyer.ID, product.ID, 1)

	if _, err := reviews.CreateReview(ctx, buyer.ID, &service.ReviewRequest{
		ProductID: product.ID,
		Rating:    5,
	}); err != nil {
		t.Fatalf("Create review: %v", err)
	}

	_, err := reviews.CreateReview(ctx, buyer.ID, &service.ReviewRequest{
		ProductID: product.ID,
		Rating:    1,
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("Expected conflict on duplicate review, got: %v", err)
	}
}

func TestUpdateAndDeleteReviewScopedToOwner(t *testing.T) {
	st, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	reviews := service.NewReviewService(st)

	buyer := createUser(t, st, "review_owner")
	other := createUser(t, st, "review_other")
	product := createProduct(t, st, "REV-003", "Widget", "10.00", 10)

	buyProduct(t, st, buyer.ID, product.ID, 1)

	review, err := reviews.CreateReview(ctx, buyer.ID, &service.ReviewRequest{
		ProductID: product.ID,
		Rating:    3,
	})
	if err != nil {
		t.Fatalf("Create review: %v", err)
	}

	_, err = reviews.UpdateReview(ctx, other.ID, review.ID, 1, "sabotage")
	if !errors.Is(err, store.ErrReviewNotFound) {
		t.Fatalf("Foreign update should read as not found, got: %v", err)
	}

	updated, err := reviews.UpdateReview(ctx, buyer.ID, review.ID, 5, "grew on me")
	if err != nil {
		t.Fatalf("Update review: %v", err)
	}
	if updated.Rating != 5 {
		t.Errorf("Expected rating 5, got %d", updated.Rating)
	}

	err = reviews.DeleteReview(ctx, other.ID, review.ID)
	if !errors.Is(err, store.ErrReviewNotFound) {
		t.Fatalf("Foreign delete should read as not found, got: %v", err)
	}

	if err := reviews.DeleteReview(ctx, buyer.ID, review.ID); err != nil {
		t.Fatalf("Delete own review: %v", err)
	}
}

func TestListReviewsByProduct(t *testing.T) {
	st, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	reviews := service.NewReviewService(st)

	buyer := createUser(t, st, "review_list")
	product := createProduct(t, st, "REV-004", "Widget", "10.00", 10)
	unreviewed := createProduct(t, st, "REV-005", "Gadget", "15.00", 10)

	buyProduct(t, st, buyer.ID, product.ID, 1)

	if _, err := reviews.CreateReview(ctx, buyer.ID, &service.ReviewRequest{
		ProductID: product.ID,
		Rating:    4,
	}); err != nil {
		t.Fatalf("Create review: %v", err)
	}

	list, err := reviews.ListReviews(ctx, product.ID, 10, 0)
	if err != nil {
		t.Fatalf("List reviews: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("Expected 1 review, got %d", len(list))
	}

	empty, err := reviews.ListReviews(ctx, unreviewed.ID, 10, 0)
	if err != nil {
		t.Fatalf("List reviews for unreviewed product: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("Expected no reviews, got %d", len(empty))
	}
}
