package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"shop-service/internal/auth"
	"shop-service/internal/broker"
	"shop-service/internal/models"
	"shop-service/internal/redisclient"
	"shop-service/internal/store"
	"shop-service/internal/util"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const idempotencyTTL = 24 * time.Hour

// OrderService owns the order placement transaction and the order
// lifecycle state machine.
type OrderService struct {
	store          *store.Store
	cache          *redisclient.Client
	eventPublisher *broker.EventPublisher
	logger         *zap.Logger
}

// NewOrderService creates a new order service. cache and eventPublisher
// may be nil.
func NewOrderService(st *store.Store, cache *redisclient.Client, eventPublisher *broker.EventPublisher) *OrderService {
	return &OrderService{
		store:          st,
		cache:          cache,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
	}
}

// PlaceOrderRequest carries the caller-supplied checkout fields
type PlaceOrderRequest struct {
	ShippingAddress string `json:"shipping_address" binding:"required"`
	BillingAddress  string `json:"billing_address"`
	PaymentMethod   string `json:"payment_method" binding:"required"`
	Notes           string `json:"notes"`
	IdempotencyKey  string `json:"idempotency_key,omitempty"`
}

func generateOrderNumber() string {
	return fmt.Sprintf("ORD-%s", strings.ToUpper(uuid.New().String()[:8]))
}

// computeTotal sums price x quantity over the cart lines at their current
// catalog prices. Exact decimal arithmetic, no floats.
func computeTotal(lines []models.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.ProductPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total
}

// PlaceOrder converts the user's cart into an immutable order snapshot.
// One transaction covers the stock re-check, order and item creation,
// stock decrement, and cart clearing; any failure rolls everything back.
func (s *OrderService) PlaceOrder(ctx context.Context, userID int64, req *PlaceOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.PlaceOrder")
	defer span.End()

	start := time.Now()
	defer func() {
		util.OrderPlacementLatency.Observe(time.Since(start).Seconds())
	}()

	if req.IdempotencyKey != "" && s.cache != nil {
		orderID, err := s.cache.GetIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			s.logger.Warn("Idempotency lookup failed", zap.Error(err))
		} else if orderID != 0 {
			s.logger.Info("Duplicate order request detected",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.Int64("order_id", orderID))
			return s.store.GetOrderByID(ctx, orderID, userID)
		}
	}

	order := &models.Order{
		OrderNumber:     generateOrderNumber(),
		UserID:          userID,
		Status:          models.OrderStatusPending,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   models.PaymentStatusPending,
		Notes:           req.Notes,
	}

	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		lines, err := s.store.LoadCartForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return store.ErrEmptyCart
		}

		for _, line := range lines {
			if line.StockOnHand < line.Quantity {
				return &store.InsufficientStockError{
					ProductID:   line.ProductID,
					ProductName: line.ProductName,
					Available:   line.StockOnHand,
					Requested:   line.Quantity,
				}
			}
		}

		order.TotalAmount = computeTotal(lines)

		if err := s.store.InsertOrder(ctx, tx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		for _, line := range lines {
			item := models.OrderItem{
				OrderID:   order.ID,
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				Price:     line.ProductPrice,
			}
			if err := s.store.InsertOrderItem(ctx, tx, &item); err != nil {
				return fmt.Errorf("failed to create order item: %w", err)
			}
			order.Items = append(order.Items, item)

			if err := s.store.DecrementStock(ctx, tx, line.ProductID, line.Quantity); err != nil {
				return err
			}
		}

		return s.store.ClearCartTx(ctx, tx, userID)
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrEmptyCart):
			util.OrdersFailedTotal.WithLabelValues("empty_cart").Inc()
		case errors.Is(err, store.ErrInsufficientStock):
			util.StockConflictsTotal.Inc()
			util.OrdersFailedTotal.WithLabelValues("insufficient_stock").Inc()
		default:
			util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		}
		return nil, err
	}

	util.OrdersPlacedTotal.Inc()
	s.logger.Info("Order placed",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int64("user_id", userID),
		zap.String("total", order.TotalAmount.String()))

	if s.cache != nil {
		if err := s.cache.InvalidateCart(ctx, userID); err != nil {
			s.logger.Warn("Cart cache invalidation failed", zap.Error(err))
		}
		if req.IdempotencyKey != "" {
			if err := s.cache.SetIdempotencyKey(ctx, req.IdempotencyKey, order.ID, idempotencyTTL); err != nil {
				s.logger.Warn("Idempotency store failed", zap.Error(err))
			}
		}
	}

	s.publishOrderPlaced(ctx, order)
	return order, nil
}

// Cancel cancels a pending or confirmed order, crediting each item's
// quantity back onto its product. Shipped and delivered orders cannot be
// cancelled. The stock credits and the status change commit together.
func (s *OrderService) Cancel(ctx context.Context, orderID int64, actor auth.Identity, reason string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Cancel")
	defer span.End()

	var order *models.Order
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		order, err = s.store.LockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !actor.IsAdmin && order.UserID != actor.UserID {
			return fmt.Errorf("%w: id=%d", store.ErrOrderNotFound, orderID)
		}

		if !order.Status.Cancellable() {
			return fmt.Errorf("%w: cannot cancel %s order", store.ErrInvalidTransition, order.Status)
		}

		items, err := s.store.GetOrderItemsTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		for _, item := range items {
			if err := s.store.CreditStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		order.Items = items

		order.Status = models.OrderStatusCancelled
		return s.store.UpdateOrderStatusTx(ctx, tx, orderID, models.OrderStatusCancelled)
	})
	if err != nil {
		return nil, err
	}

	util.OrdersCancelledTotal.Inc()
	s.logger.Info("Order cancelled",
		zap.Int64("order_id", orderID),
		zap.String("reason", reason))

	if s.eventPublisher != nil {
		event := &models.OrderCancelledEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderCancelled,
				Timestamp: time.Now(),
			},
			OrderID: orderID,
			UserID:  order.UserID,
			Reason:  reason,
		}
		if err := s.eventPublisher.PublishOrderCancelled(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrderCancelled event", zap.Error(err))
		}
	}
	return order, nil
}

// Confirm transitions a pending order to confirmed with payment_status
// paid. Stock was already decremented at placement, so there is no stock
// effect here. Driven by payment confirmation, not by the customer.
func (s *OrderService) Confirm(ctx context.Context, orderID int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Confirm")
	defer span.End()

	var order *models.Order
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		order, err = s.store.LockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if !order.Status.CanTransitionTo(models.OrderStatusConfirmed) {
			return fmt.Errorf("%w: cannot confirm %s order", store.ErrInvalidTransition, order.Status)
		}

		order.Status = models.OrderStatusConfirmed
		order.PaymentStatus = models.PaymentStatusPaid
		return s.store.ConfirmOrderTx(ctx, tx, orderID)
	})
	if err != nil {
		return nil, err
	}

	util.OrdersConfirmedTotal.Inc()
	s.logger.Info("Order confirmed", zap.Int64("order_id", orderID))

	if s.eventPublisher != nil {
		event := &models.OrderConfirmedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderConfirmed,
				Timestamp: time.Now(),
			},
			OrderID: orderID,
			UserID:  order.UserID,
		}
		if err := s.eventPublisher.PublishOrderConfirmed(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrderConfirmed event", zap.Error(err))
		}
	}
	return order, nil
}

// AdminUpdateOrder overwrites status, payment status, tracking number or
// notes without consulting the transition table. Administrative correction
// path; the only guard is that an unknown status string is rejected.
func (s *OrderService) AdminUpdateOrder(ctx context.Context, orderID int64, upd store.AdminOrderUpdate) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.AdminUpdateOrder")
	defer span.End()

	if upd.Status != nil && !upd.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", store.ErrInvalidTransition, *upd.Status)
	}

	if err := s.store.AdminUpdateOrder(ctx, orderID, upd); err != nil {
		return nil, err
	}

	s.logger.Info("Order updated by admin", zap.Int64("order_id", orderID))
	return s.store.GetOrderByID(ctx, orderID, 0)
}

// GetOrder retrieves an order with its items. Non-admin callers only see
// their own orders; a foreign order reads as not found.
func (s *OrderService) GetOrder(ctx context.Context, orderID int64, actor auth.Identity) (*models.Order, error) {
	scope := actor.UserID
	if actor.IsAdmin {
		scope = 0
	}
	return s.store.GetOrderByID(ctx, orderID, scope)
}

// ListOrders returns the actor's order history, or every order for admins.
func (s *OrderService) ListOrders(ctx context.Context, actor auth.Identity, limit, offset int) ([]models.Order, error) {
	scope := actor.UserID
	if actor.IsAdmin {
		scope = 0
	}
	return s.store.ListOrders(ctx, scope, limit, offset)
}

func (s *OrderService) publishOrderPlaced(ctx context.Context, order *models.Order) {
	if s.eventPublisher == nil {
		return
	}

	items := make([]models.OrderItemData, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, models.OrderItemData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}

	event := &models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPlaced,
			Timestamp: time.Now(),
		},
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		Items:       items,
	}

	if err := s.eventPublisher.PublishOrderPlaced(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderPlaced event", zap.Error(err))
	}
}
