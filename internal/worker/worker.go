package worker

import (
	"context"
	"encoding/json"
	"errors"

	"shop-service/internal/auth"
	"shop-service/internal/broker"
	"shop-service/internal/models"
	"shop-service/internal/service"
	"shop-service/internal/store"
	"shop-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// systemActor is the identity used for lifecycle transitions driven by
// payment outcomes rather than by a customer.
var systemActor = auth.Identity{IsAdmin: true}

// OrderWorker applies payment outcomes to the order lifecycle: a
// succeeded payment confirms the order, a failed one cancels it and
// restores stock. Events are deduplicated through the processed_events
// table so redeliveries are harmless.
type OrderWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        *store.Store
	orderService *service.OrderService
	logger       *zap.Logger
}

// NewOrderWorker creates a new order worker
func NewOrderWorker(consumer *broker.Consumer, st *store.Store, orderService *service.OrderService) *OrderWorker {
	w := &OrderWorker{
		consumer:     consumer,
		store:        st,
		orderService: orderService,
		logger:       util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnPaymentSucceeded(w.handlePaymentSucceeded)
	eventHandler.OnPaymentFailed(w.handlePaymentFailed)
	w.eventHandler = eventHandler

	return w
}

func (w *OrderWorker) handlePaymentSucceeded(ctx context.Context, event *models.PaymentSucceededEvent) error {
	processed, err := w.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return err
	}
	if processed {
		return nil
	}

	if _, err := w.orderService.Confirm(ctx, event.OrderID); err != nil {
		// A redelivered event can race its own dedup record; an already
		// confirmed or cancelled order is not a worker failure.
		if !errors.Is(err, store.ErrInvalidTransition) {
			return err
		}
		w.logger.Info("Skipping confirm", zap.Int64("order_id", event.OrderID), zap.Error(err))
	}

	return w.store.MarkEventProcessed(ctx, event.EventID, event.EventType)
}

func (w *OrderWorker) handlePaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error {
	processed, err := w.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return err
	}
	if processed {
		return nil
	}

	if _, err := w.orderService.Cancel(ctx, event.OrderID, systemActor, event.Reason); err != nil {
		if !errors.Is(err, store.ErrInvalidTransition) {
			return err
		}
		w.logger.Info("Skipping cancel", zap.Int64("order_id", event.OrderID), zap.Error(err))
	}

	return w.store.MarkEventProcessed(ctx, event.EventID, event.EventType)
}

// Start starts the worker
func (w *OrderWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting order worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *OrderWorker) Stop() error {
	w.logger.Info("Stopping order worker")
	return w.consumer.Close()
}

// PaymentWorker drives the payment gateway for newly placed orders
type PaymentWorker struct {
	consumer       *broker.Consumer
	paymentService *service.PaymentService
	logger         *zap.Logger
}

// NewPaymentWorker creates a new payment worker
func NewPaymentWorker(consumer *broker.Consumer, paymentService *service.PaymentService) *PaymentWorker {
	return &PaymentWorker{
		consumer:       consumer,
		paymentService: paymentService,
		logger:         util.GetLogger(),
	}
}

// Start starts the payment worker
func (pw *PaymentWorker) Start(ctx context.Context) error {
	pw.logger.Info("Starting payment worker")

	return pw.consumer.StartConsuming(ctx, func(ctx context.Context, msg kafka.Message) error {
		var baseEvent models.BaseEvent
		if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
			pw.logger.Error("Failed to unmarshal event", zap.Error(err))
			return err
		}

		if baseEvent.EventType == models.EventTypeOrderPlaced {
			var event models.OrderPlacedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				pw.logger.Error("Failed to unmarshal OrderPlaced event", zap.Error(err))
				return err
			}

			pw.logger.Info("Processing payment", zap.Int64("order_id", event.OrderID))
			return pw.paymentService.ProcessPayment(ctx, event.OrderID, event.TotalAmount)
		}

		return nil
	})
}

// Stop stops the payment worker
func (pw *PaymentWorker) Stop() error {
	pw.logger.Info("Stopping payment worker")
	return pw.consumer.Close()
}
