package service

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"shop-service/internal/broker"
	"shop-service/internal/models"
	"shop-service/internal/store"
	"shop-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentGateway is the external payment collaborator. The core never
// contains payment logic; it only records the gateway's verdict.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, orderID int64, amount decimal.Decimal) (string, error)
	ConfirmIntent(ctx context.Context, ref string) (bool, error)
}

// MockGateway simulates a payment provider with a configurable success
// rate. Used in development and load testing.
type MockGateway struct {
	SuccessRate float64
}

func (g *MockGateway) CreateIntent(_ context.Context, orderID int64, _ decimal.Decimal) (string, error) {
	return fmt.Sprintf("PI-%d-%s", orderID, uuid.New().String()[:8]), nil
}

func (g *MockGateway) ConfirmIntent(_ context.Context, _ string) (bool, error) {
	time.Sleep(time.Duration(100+rand.Intn(400)) * time.Millisecond)
	return rand.Float64() < g.SuccessRate, nil
}

// PaymentService drives the gateway for placed orders and publishes the
// outcome for the order worker to act on.
type PaymentService struct {
	store          *store.Store
	gateway        PaymentGateway
	eventPublisher *broker.EventPublisher
	logger         *zap.Logger
}

func NewPaymentService(st *store.Store, gateway PaymentGateway, eventPublisher *broker.EventPublisher) *PaymentService {
	return &PaymentService{
		store:          st,
		gateway:        gateway,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
	}
}

// ProcessPayment creates a payment intent for an order and reports the
// gateway's verdict as a domain event.
func (ps *PaymentService) ProcessPayment(ctx context.Context, orderID int64, amount decimal.Decimal) error {
	ctx, span := util.StartSpan(ctx, "PaymentService.ProcessPayment")
	defer span.End()

	util.PaymentAttemptsTotal.Inc()

	ps.logger.Info("Processing payment",
		zap.Int64("order_id", orderID),
		zap.String("amount", amount.String()))

	payment := &models.Payment{
		OrderID: orderID,
		Amount:  amount,
		Status:  models.PaymentStatusPending,
	}
	if err := ps.store.CreatePayment(ctx, payment); err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}

	ref, err := ps.gateway.CreateIntent(ctx, orderID, amount)
	if err != nil {
		return fmt.Errorf("failed to create payment intent: %w", err)
	}

	success, err := ps.gateway.ConfirmIntent(ctx, ref)
	if err != nil {
		return fmt.Errorf("failed to confirm payment intent: %w", err)
	}

	if success {
		ps.logger.Info("Payment succeeded",
			zap.Int64("order_id", orderID),
			zap.String("provider_ref", ref))

		if err := ps.store.UpdatePaymentStatus(ctx, payment.ID, models.PaymentStatusPaid, ref); err != nil {
			return fmt.Errorf("failed to update payment status: %w", err)
		}
		util.PaymentSuccessTotal.Inc()

		if ps.eventPublisher != nil {
			event := &models.PaymentSucceededEvent{
				BaseEvent: models.BaseEvent{
					EventID:   uuid.New().String(),
					EventType: models.EventTypePaymentSucceeded,
					Timestamp: time.Now(),
				},
				OrderID:     orderID,
				PaymentID:   payment.ID,
				Amount:      amount,
				ProviderRef: ref,
			}
			if err := ps.eventPublisher.PublishPaymentSucceeded(ctx, event); err != nil {
				ps.logger.Error("Failed to publish PaymentSucceeded event", zap.Error(err))
			}
		}
		return nil
	}

	ps.logger.Warn("Payment declined", zap.Int64("order_id", orderID))

	if err := ps.store.UpdatePaymentStatus(ctx, payment.ID, models.PaymentStatusFailed, ref); err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	util.PaymentFailedTotal.Inc()

	if ps.eventPublisher != nil {
		event := &models.PaymentFailedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypePaymentFailed,
				Timestamp: time.Now(),
			},
			OrderID:   orderID,
			PaymentID: payment.ID,
			Reason:    "payment_declined",
		}
		if err := ps.eventPublisher.PublishPaymentFailed(ctx, event); err != nil {
			ps.logger.Error("Failed to publish PaymentFailed event", zap.Error(err))
		}
	}
	return nil
}

// GetPayment retrieves the latest payment for an order
func (ps *PaymentService) GetPayment(ctx context.Context, orderID int64) (*models.Payment, error) {
	return ps.store.GetPaymentByOrderID(ctx, orderID)
}
