package services

import (
	"context"
	"errors"
	"time"

	"github.com/Xebarter/Tina-s-Bakery-sub000/database"
	"github.com/Xebarter/Tina-s-Bakery-sub000/models"
	aws_pkg "github.com/Xebarter/Tina-s-Bakery-sub000/pkg/aws"
	"github.com/Xebarter/Tina-s-Bakery-sub000/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// orderConfirmer finalizes a checkout the gateway reports as COMPLETED. Both
// the callback and Retry reach it, possibly at the same time for one session,
// so only the caller whose write flips the order to paid counts the sale.
type orderConfirmer struct {
	customers repository.CustomerRepository
	orders    repository.OrderRepository
	carts     CartService
	pending   database.PendingPaymentRepository
	events    *EventPublisher
	metrics   MetricsRecorder
	logger    *zap.Logger
	now       func() time.Time
}

// confirm marks the order paid, then clears the cart and the bridge record.
// alreadyConfirmed is true when another run got there first; totals, events
// and metrics are then left alone.
func (c *orderConfirmer) confirm(ctx context.Context, log *zap.Logger, sessionID string, pending *models.PendingPayment, status models.TransactionStatus) (order *models.Order, alreadyConfirmed bool, err error) {
	order, alreadyConfirmed, err = c.confirmOrder(ctx, log, pending, status)
	if err != nil {
		return nil, false, err
	}

	if !alreadyConfirmed {
		if err := c.customers.IncrementTotals(ctx, pending.CustomerID, order.Total); err != nil {
			log.Warn("Failed to update customer totals", zap.String("customer_id", pending.CustomerID.String()), zap.Error(err))
		}
	}
	if err := c.carts.Clear(ctx, sessionID); err != nil {
		log.Warn("Failed to clear cart after payment", zap.Error(err))
	}
	if err := c.pending.Delete(ctx, sessionID); err != nil {
		log.Warn("Failed to delete pending payment", zap.Error(err))
	}

	log.Info("Payment confirmed",
		zap.String("order_id", order.ID.String()),
		zap.String("confirmation_code", status.ConfirmationCode),
		zap.Bool("already_confirmed", alreadyConfirmed),
	)

	if !alreadyConfirmed {
		c.events.Publish(ctx, models.OrderConfirmedEvent{
			EventType:         "order_confirmed",
			OrderID:           order.ID.String(),
			CustomerID:        order.CustomerID.String(),
			MerchantReference: order.MerchantReference,
			PaymentReference:  order.PaymentReference,
			PaymentMethod:     order.PaymentMethod,
			Total:             order.Total,
			Currency:          order.Currency,
			ItemCount:         len(order.Items),
			Timestamp:         c.now(),
		})
		recordCount(ctx, c.metrics, c.logger, aws_pkg.MetricPaymentSucceeded, map[string]string{"Currency": order.Currency})
	}
	return order, alreadyConfirmed, nil
}

// confirmOrder finalizes the pending order created at checkout, or creates a
// confirmed one from the bridge record when that row is gone.
func (c *orderConfirmer) confirmOrder(ctx context.Context, log *zap.Logger, pending *models.PendingPayment, status models.TransactionStatus) (*models.Order, bool, error) {
	order, err := c.orders.FindByMerchantReference(ctx, pending.MerchantReference)
	switch {
	case err == nil:
		if order.PaymentStatus == models.PaymentStatusCompleted {
			return order, true, nil
		}
		applyPayment(order, status)
		order.OrderTrackingID = pending.OrderTrackingID
		changed, err := c.orders.ConfirmPayment(ctx, order)
		if err != nil {
			return nil, false, err
		}
		return order, !changed, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		order = &models.Order{
			CustomerID:        pending.CustomerID,
			MerchantReference: pending.MerchantReference,
			OrderTrackingID:   pending.OrderTrackingID,
			Subtotal:          pending.Totals.Subtotal,
			Tax:               pending.Totals.Tax,
			Total:             pending.Amount,
			Currency:          pending.Currency,
			PaymentMethod:     models.PaymentMethodPesapal,
			OrderDate:         c.now(),
			Items:             orderItems(pending.CartItems),
		}
		applyPayment(order, status)
		if err := c.orders.Create(ctx, order); err != nil {
			if !errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, false, err
			}
			// A concurrent run created it between our lookup and insert.
			existing, findErr := c.orders.FindByMerchantReference(ctx, pending.MerchantReference)
			if findErr != nil {
				return nil, false, findErr
			}
			return existing, true, nil
		}
		log.Warn("Pending order was missing, created confirmed order from bridge record",
			zap.String("order_id", order.ID.String()),
			zap.String("merchant_reference", order.MerchantReference),
		)
		return order, false, nil
	default:
		return nil, false, err
	}
}

func applyPayment(order *models.Order, status models.TransactionStatus) {
	order.Status = models.OrderStatusConfirmed
	order.PaymentStatus = models.PaymentStatusCompleted
	order.PaymentReference = status.ConfirmationCode
	if status.PaymentMethod != "" {
		order.PaymentMethod = status.PaymentMethod
	}
}
