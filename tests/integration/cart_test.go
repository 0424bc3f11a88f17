package integration

import (
	"context"
	"errors"
	"testing"

	"shop-service/internal/service"
	"shop-service/internal/store"
)

func TestAddToCartMergesLines(t *testing.T) {
	st, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	carts := service.NewCartService(st, nil)

	user := createUser(t, st, "cart_merge")
	product := createProduct(t, st, "CART-001", "Widget", "10.00", 10)

	first, err := carts.AddToCart(ctx, user.ID, product.ID, 2)
	if err != nil {
		t.Fatalf("First add: %v", err)
	}
	if first.Quantity != 2 {
		t.Errorf("Expected quantity 2, got %d", first.Quantity)
	}

	second, err := carts.AddToCart(ctx, user.ID, product.ID, 3)
	if err != nil {
		t.Fatalf("Second add: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("Expected the same cart line, got %d and %d", first.ID, second.ID)
	}
	if second.Quantity != 5 {
		t.Errorf("Expected merged quantity 5, got %d", second.Quantity)
	}

	cart, err := carts.GetCart(ctx, user.ID)
	if err != nil {
		t.Fatalf("Get cart: %v", err)
	}
	if len(cart.Items) != 1 {
		t.Fatalf("Expected a single cart line, got %d", len(cart.Items))
	}
	if cart.TotalItems != 5 {
		t.Errorf("Expected total items 5, got %d", cart.TotalItems)
	}
	if cart.TotalAmount.StringFixed(2) != "50.00" {
		t.Errorf("Expected total 50.00, got %s", cart.TotalAmount)
	}
}

func TestAddToCartChecksMergedStock(t *testing.T) {
	st, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	carts := service.NewCartService(st, nil)

	user := createUser(t, st, "cart_stock")
	product := createProduct(t, st, "CART-002", "Widget", "10.00", 5)

	if _, err := carts.AddToCart(ctx, user.ID, product.ID, 3); err != nil {
		t.Fatalf("First add: %v", err)
	}

	// Existing 3 + requested 3 exceeds the 5 in stock.
	_, err := carts.AddToCart(ctx, user.ID, product.ID, 3)
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("Expected insufficient stock error, got: %v", err)
	}

	var stockErr *store.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("Expected InsufficientStockError, got: %v", err)
	}
	if stockErr.Available != 5 || stockErr.Requested != 6 {
		t.Errorf("Expected available=5 requested=6, got available=%d requested=%d",
			stockErr.Available, stockErr.Requested)
	}

	cart, err := carts.GetCart(ctx, user.ID)
	if err != nil {
		t.Fatalf("Get cart: %v", err)
	}
	if cart.TotalItems != 3 {
		t.Errorf("Cart should be unchanged at 3 items, got %d", cart.TotalItems)
	}
}

func TestAddToCartInactiveProduct(t *testing.T) {
	st, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	carts := service.NewCartService(st, nil)

	user := createUser(t, st, "cart_inactive")
	product := createProduct(t, st, "CART-003", "Widget", "10.00", 5)

	if err := st.DeactivateProduct(ctx, product.ID); err != nil {
		t.Fatalf("Deactivate product: %v", err)
	}

	_, err := carts.AddToCart(ctx, user.ID, product.ID, 1)
	if !errors.Is(err, store.ErrProductNotFound) {
		t.Fatalf("Expected product not found for inactive product, got: %v", err)
	}
}

func TestUpdateLineOverwritesQuantity(t *testing.T) {
	st, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	carts := service.NewCartService(st, nil)

	user := createUser(t, st, "cart_update")
	product := createProduct(t, st, "CART-004", "Widget", "10.00", 10)

	item, err := carts.AddToCart(ctx, user.ID, product.ID, 2)
	if err != nil {
		t.Fatalf("Add to cart: %v", err)
	}

	updated, err := carts.UpdateLine(ctx, user.ID, item.ID, 7)
	if err != nil {
		t.Fatalf("Update line: %v", err)
	}
	if updated.Quantity != 7 {
		t.Errorf("Expected quantity 7, got %d", updated.Quantity)
	}

	// Overwrite, not merge: 11 exceeds stock even though 11-2 would not.
	_, err = carts.UpdateLine(ctx, user.ID, item.ID, 11)
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("Expected insufficient stock error, got: %v", err)
	}
}

func TestRemoveLineScopedToOwner(t *testing.T) {
	st, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	carts := service.NewCartService(st, nil)

	owner := createUser(t, st, "cart_owner")
	other := createUser(t, st, "cart_other")
	product := createProduct(t, st, "CART-005", "Widget", "10.00", 10)

	item, err := carts.AddToCart(ctx, owner.ID, product.ID, 1)
	if err != nil {
		t.Fatalf("Add to cart: %v", err)
	}

	err = carts.RemoveLine(ctx, other.ID, item.ID)
	if !errors.Is(err, store.ErrCartItemNotFound) {
		t.Fatalf("Foreign cart line should read as not found, got: %v", err)
	}

	if err := carts.RemoveLine(ctx, owner.ID, item.ID); err != nil {
		t.Fatalf("Remove own line: %v", err)
	}

	cart, err := carts.GetCart(ctx, owner.ID)
	if err != nil {
		t.Fatalf("Get cart: %v", err)
	}
	if len(cart.Items) != 0 {
		t.Errorf("Expected empty cart, got %d lines", len(cart.Items))
	}
}

func TestClearCartIdempotent(t *testing.T) {
	st, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	carts := service.NewCartService(st, nil)

	user := createUser(t, st, "cart_clear")
	product := createProduct(t, st, "CART-006", "Widget", "10.00", 10)

	if _, err := carts.AddToCart(ctx, user.ID, product.ID, 2); err != nil {
		t.Fatalf("Add to cart: %v", err)
	}

	if err := carts.ClearCart(ctx, user.ID); err != nil {
		t.Fatalf("Clear cart: %v", err)
	}
	if err := carts.ClearCart(ctx, user.ID); err != nil {
		t.Fatalf("Clearing an empty cart should succeed: %v", err)
	}

	cart, err := carts.GetCart(ctx, user.ID)
	if err != nil {
		t.Fatalf("Get cart: %v", err)
	}
	if cart.TotalItems != 0 {
		t.Errorf("Expected empty cart, got %d items", cart.TotalItems)
	}
}
