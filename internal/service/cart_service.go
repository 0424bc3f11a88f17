package service

import (
	"context"
	"errors"
	"fmt"

	"shop-service/internal/models"
	"shop-service/internal/redisclient"
	"shop-service/internal/store"
	"shop-service/internal/util"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CartService owns the per-user cart: merge-on-add, quantity overwrites,
// removals, and the materialized cart view. Stock is only validated here,
// never decremented; the decrement happens at order placement.
type CartService struct {
	store  *store.Store
	cache  *redisclient.Client
	logger *zap.Logger
}

// NewCartService creates a new cart service. cache may be nil.
func NewCartService(st *store.Store, cache *redisclient.Client) *CartService {
	return &CartService{
		store:  st,
		cache:  cache,
		logger: util.GetLogger(),
	}
}

// checkStock validates that a product can cover the existing cart quantity
// plus the requested one.
func checkStock(product *models.Product, existing, requested int) error {
	if product.StockQuantity < existing+requested {
		return &store.InsufficientStockError{
			ProductID:   product.ID,
			ProductName: product.Name,
			Available:   product.StockQuantity,
			Requested:   existing + requested,
		}
	}
	return nil
}

// AddToCart adds quantity of a product to the user's cart, merging into an
// existing line for the same product. The whole merge runs in one
// transaction with the product row locked.
func (s *CartService) AddToCart(ctx context.Context, userID, productID int64, quantity int) (*models.CartItem, error) {
	ctx, span := util.StartSpan(ctx, "CartService.AddToCart")
	defer span.End()

	var item *models.CartItem
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		product, err := s.store.LockProduct(ctx, tx, productID)
		if err != nil {
			return err
		}
		if !product.IsActive {
			return fmt.Errorf("%w: id=%d", store.ErrProductNotFound, productID)
		}

		existing, err := s.store.FindCartItemByProductTx(ctx, tx, userID, productID)
		if err != nil {
			return err
		}

		var existingQty int
		if existing != nil {
			existingQty = existing.Quantity
		}
		if err := checkStock(product, existingQty, quantity); err != nil {
			return err
		}

		if existing != nil {
			existing.Quantity += quantity
			if err := s.store.UpdateCartItemQuantity(ctx, tx, existing.ID, existing.Quantity); err != nil {
				return err
			}
			item = existing
			return nil
		}

		item = &models.CartItem{UserID: userID, ProductID: productID, Quantity: quantity}
		return s.store.InsertCartItem(ctx, tx, item)
	})
	if err != nil {
		if errors.Is(err, store.ErrInsufficientStock) {
			util.StockConflictsTotal.Inc()
		}
		return nil, err
	}

	util.CartOperationsTotal.WithLabelValues("add").Inc()
	s.invalidateCache(ctx, userID)
	return item, nil
}

// UpdateLine overwrites a cart line's quantity after re-validating stock.
// No merge: the requested quantity replaces the old one.
func (s *CartService) UpdateLine(ctx context.Context, userID, itemID int64, quantity int) (*models.CartItem, error) {
	ctx, span := util.StartSpan(ctx, "CartService.UpdateLine")
	defer span.End()

	var item *models.CartItem
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		item, err = s.store.GetCartItemTx(ctx, tx, userID, itemID)
		if err != nil {
			return err
		}

		product, err := s.store.LockProduct(ctx, tx, item.ProductID)
		if err != nil {
			return err
		}
		if err := checkStock(product, 0, quantity); err != nil {
			return err
		}

		item.Quantity = quantity
		return s.store.UpdateCartItemQuantity(ctx, tx, item.ID, quantity)
	})
	if err != nil {
		if errors.Is(err, store.ErrInsufficientStock) {
			util.StockConflictsTotal.Inc()
		}
		return nil, err
	}

	util.CartOperationsTotal.WithLabelValues("update").Inc()
	s.invalidateCache(ctx, userID)
	return item, nil
}

// RemoveLine deletes a single cart line. A line owned by another user is
// reported as not found.
func (s *CartService) RemoveLine(ctx context.Context, userID, itemID int64) error {
	ctx, span := util.StartSpan(ctx, "CartService.RemoveLine")
	defer span.End()

	if err := s.store.DeleteCartItem(ctx, userID, itemID); err != nil {
		return err
	}

	util.CartOperationsTotal.WithLabelValues("remove").Inc()
	s.invalidateCache(ctx, userID)
	return nil
}

// ClearCart empties the user's cart. Idempotent.
func (s *CartService) ClearCart(ctx context.Context, userID int64) error {
	ctx, span := util.StartSpan(ctx, "CartService.ClearCart")
	defer span.End()

	if err := s.store.ClearCart(ctx, userID); err != nil {
		return err
	}

	util.CartOperationsTotal.WithLabelValues("clear").Inc()
	s.invalidateCache(ctx, userID)
	return nil
}

// GetCart returns the cart lines joined with current product snapshots,
// with totals computed at live catalog prices.
func (s *CartService) GetCart(ctx context.Context, userID int64) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.GetCart")
	defer span.End()

	if s.cache != nil {
		cached, err := s.cache.GetCachedCart(ctx, userID)
		if err != nil {
			s.logger.Warn("Cart cache read failed", zap.Int64("user_id", userID), zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	lines, err := s.store.LoadCartWithProducts(ctx, userID)
	if err != nil {
		return nil, err
	}

	cart := buildCartView(lines)

	if s.cache != nil {
		if err := s.cache.SetCachedCart(ctx, userID, cart); err != nil {
			s.logger.Warn("Cart cache write failed", zap.Int64("user_id", userID), zap.Error(err))
		}
	}
	return cart, nil
}

// buildCartView derives total_items and total_amount from the lines.
// Amounts are decimal all the way down.
func buildCartView(lines []models.CartLine) *models.Cart {
	cart := &models.Cart{
		Items:       lines,
		TotalAmount: decimal.Zero,
	}
	for _, line := range lines {
		cart.TotalItems += line.Quantity
		cart.TotalAmount = cart.TotalAmount.Add(
			line.ProductPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return cart
}

func (s *CartService) invalidateCache(ctx context.Context, userID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateCart(ctx, userID); err != nil {
		s.logger.Warn("Cart cache invalidation failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}
