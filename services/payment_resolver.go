package services

import (
	"context"
	"errors"
	"time"

	"github.com/Xebarter/Tina-s-Bakery-sub000/database"
	"github.com/Xebarter/Tina-s-Bakery-sub000/models"
	aws_pkg "github.com/Xebarter/Tina-s-Bakery-sub000/pkg/aws"
	"github.com/Xebarter/Tina-s-Bakery-sub000/providers"
	"github.com/Xebarter/Tina-s-Bakery-sub000/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Gateway status vocabulary.
const (
	GatewayStatusCompleted = "COMPLETED"
	GatewayStatusFailed    = "FAILED"
	GatewayStatusInvalid   = "INVALID"
	GatewayStatusReversed  = "REVERSED"
)

// KindProcessing marks a payment whose status never settled within the polling budget.
const KindProcessing ErrorKind = "processing"

const (
	defaultPollInterval    = 3 * time.Second
	defaultMaxPollAttempts = 5
)

// ResolverConfig bounds callback polling.
type ResolverConfig struct {
	PollInterval    time.Duration
	MaxPollAttempts int
	// OnTransition, when set, is told about every state the resolution passes through.
	OnTransition func(sessionID string, r models.Resolution)
}

// PaymentResolver turns a gateway callback into a final order outcome.
type PaymentResolver interface {
	Resolve(ctx context.Context, sessionID string, params models.CallbackParams) *models.Resolution
}

type paymentResolverImpl struct {
	orders    repository.OrderRepository
	pending   database.PendingPaymentRepository
	gateway   providers.PaymentGateway
	events    *EventPublisher
	metrics   MetricsRecorder
	cfg       ResolverConfig
	logger    *zap.Logger
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
	confirmer *orderConfirmer
}

// NewPaymentResolver creates a new PaymentResolver.
func NewPaymentResolver(
	customers repository.CustomerRepository,
	orders repository.OrderRepository,
	carts CartService,
	pending database.PendingPaymentRepository,
	gateway providers.PaymentGateway,
	events *EventPublisher,
	metrics MetricsRecorder,
	cfg ResolverConfig,
	logger *zap.Logger,
) PaymentResolver {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.MaxPollAttempts <= 0 {
		cfg.MaxPollAttempts = defaultMaxPollAttempts
	}
	return &paymentResolverImpl{
		orders:  orders,
		pending: pending,
		gateway: gateway,
		events:  events,
		metrics: metrics,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		sleep:   sleepContext,
		confirmer: &orderConfirmer{
			customers: customers,
			orders:    orders,
			carts:     carts,
			pending:   pending,
			events:    events,
			metrics:   metrics,
			logger:    logger,
			now:       time.Now,
		},
	}
}

// Resolve is safe to run more than once for the same callback. The bridge
// record is only deleted after the order is confirmed, so a second run after
// success finds nothing to finalize. Overlapping runs both reach the
// confirmation, where the conditional write lets only one of them count it.
func (r *paymentResolverImpl) Resolve(ctx context.Context, sessionID string, params models.CallbackParams) *models.Resolution {
	log := r.logger.With(
		zap.String("session_id", sessionID),
		zap.String("order_tracking_id", params.OrderTrackingID),
		zap.String("merchant_reference", params.OrderMerchantReference),
	)

	if params.OrderTrackingID == "" {
		log.Warn("Callback without tracking id")
		return r.finish(sessionID, errorResolution(KindValidation, "Invalid payment callback", models.ActionGoHome))
	}

	pending, err := r.pending.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, database.ErrCorruptRecord) {
			log.Error("Pending payment record is corrupt", zap.Error(err))
			return r.finish(sessionID, stateResolution("We couldn't read your pending payment"))
		}
		log.Error("Failed to load pending payment", zap.Error(err))
		return r.finish(sessionID, errorResolution(KindPersistence, "We couldn't check your payment, please try again", models.ActionRetry))
	}
	if pending == nil {
		log.Warn("No pending payment for callback")
		return r.finish(sessionID, stateResolution("No pending payment found"))
	}
	if pending.OrderTrackingID != params.OrderTrackingID ||
		(params.OrderMerchantReference != "" && pending.MerchantReference != params.OrderMerchantReference) {
		log.Warn("Callback does not match pending payment",
			zap.String("pending_tracking_id", pending.OrderTrackingID),
			zap.String("pending_reference", pending.MerchantReference),
		)
		return r.finish(sessionID, stateResolution("This payment does not match your checkout"))
	}

	for attempt := 1; attempt <= r.cfg.MaxPollAttempts; attempt++ {
		r.notify(sessionID, models.Resolution{
			State:             models.PaymentStateLoading,
			Message:           "Checking your payment",
			Attempts:          attempt,
			OrderTrackingID:   pending.OrderTrackingID,
			MerchantReference: pending.MerchantReference,
		})

		status, err := r.gateway.GetTransactionStatus(ctx, pending.OrderTrackingID)
		if err != nil {
			log.Error("Transaction status request failed", zap.Int("attempt", attempt), zap.Error(err))
			se := fromGatewayFailure(err)
			res := errorResolution(se.Kind, se.Message, models.ActionRetry, models.ActionContactSupport)
			res.Attempts = attempt
			return r.finish(sessionID, withRefs(res, pending))
		}

		log.Info("Transaction status received",
			zap.Int("attempt", attempt),
			zap.String("status", status.Status),
			zap.Int("status_code", status.StatusCode),
		)

		switch status.Status {
		case GatewayStatusCompleted:
			res := r.succeed(ctx, log, sessionID, pending, status)
			res.Attempts = attempt
			return r.finish(sessionID, res)
		case GatewayStatusFailed, GatewayStatusInvalid, GatewayStatusReversed:
			res := r.fail(ctx, log, pending, status)
			res.Attempts = attempt
			return r.finish(sessionID, res)
		}

		if attempt == r.cfg.MaxPollAttempts {
			break
		}
		if err := r.sleep(ctx, r.cfg.PollInterval); err != nil {
			log.Warn("Polling cancelled", zap.Int("attempt", attempt), zap.Error(err))
			res := errorResolution(KindProcessing, "Your payment is still processing, please contact support", models.ActionContactSupport)
			res.Attempts = attempt
			return r.finish(sessionID, withRefs(res, pending))
		}
	}

	log.Warn("Payment still pending after polling budget", zap.Int("attempts", r.cfg.MaxPollAttempts))
	recordCount(ctx, r.metrics, r.logger, aws_pkg.MetricPaymentUnresolved, nil)
	res := errorResolution(KindProcessing, "Your payment is still processing, please contact support", models.ActionContactSupport)
	res.Attempts = r.cfg.MaxPollAttempts
	return r.finish(sessionID, withRefs(res, pending))
}

func (r *paymentResolverImpl) succeed(ctx context.Context, log *zap.Logger, sessionID string, pending *models.PendingPayment, status models.TransactionStatus) *models.Resolution {
	order, _, err := r.confirmer.confirm(ctx, log, sessionID, pending, status)
	if err != nil {
		log.Error("Failed to confirm order", zap.Error(err))
		res := errorResolution(KindPersistence, "Your payment went through but we couldn't save your order, please try again", models.ActionRetry, models.ActionContactSupport)
		res.GatewayStatus = status.Status
		return withRefs(res, pending)
	}

	return &models.Resolution{
		State:             models.PaymentStateSuccess,
		Message:           "Payment successful, your order is confirmed",
		Actions:           []string{models.ActionViewOrder, models.ActionGoHome},
		OrderTrackingID:   pending.OrderTrackingID,
		MerchantReference: pending.MerchantReference,
		GatewayStatus:     status.Status,
		Order:             order,
	}
}

func (r *paymentResolverImpl) fail(ctx context.Context, log *zap.Logger, pending *models.PendingPayment, status models.TransactionStatus) *models.Resolution {
	order, err := r.orders.FindByMerchantReference(ctx, pending.MerchantReference)
	if err == nil && order.PaymentStatus != models.PaymentStatusCompleted {
		order.PaymentStatus = models.PaymentStatusFailed
		if err := r.orders.Update(ctx, order); err != nil {
			log.Warn("Failed to mark order payment failed", zap.String("order_id", order.ID.String()), zap.Error(err))
		}
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Warn("Failed to load order for failed payment", zap.Error(err))
	}

	log.Info("Payment failed", zap.String("status", status.Status), zap.String("gateway_message", status.Message))

	r.events.Publish(ctx, models.PaymentFailedEvent{
		EventType:         "payment_failed",
		OrderID:           pending.OrderID.String(),
		MerchantReference: pending.MerchantReference,
		OrderTrackingID:   pending.OrderTrackingID,
		GatewayStatus:     status.Status,
		Timestamp:         r.now(),
	})
	recordCount(ctx, r.metrics, r.logger, aws_pkg.MetricPaymentFailed, map[string]string{"Status": status.Status})

	msg := "Your payment was not completed"
	if status.Message != "" {
		msg = msg + ": " + status.Message
	}
	return &models.Resolution{
		State:             models.PaymentStateFailed,
		Message:           msg,
		Actions:           []string{models.ActionRetry, models.ActionEditBilling},
		OrderTrackingID:   pending.OrderTrackingID,
		MerchantReference: pending.MerchantReference,
		GatewayStatus:     status.Status,
	}
}

func (r *paymentResolverImpl) finish(sessionID string, res *models.Resolution) *models.Resolution {
	if res.Actions == nil {
		res.Actions = []string{}
	}
	r.notify(sessionID, *res)
	return res
}

func (r *paymentResolverImpl) notify(sessionID string, res models.Resolution) {
	if r.cfg.OnTransition != nil {
		r.cfg.OnTransition(sessionID, res)
	}
}

func errorResolution(kind ErrorKind, message string, actions ...string) *models.Resolution {
	return &models.Resolution{
		State:   models.PaymentStateError,
		Kind:    string(kind),
		Message: message,
		Actions: actions,
	}
}

func stateResolution(message string) *models.Resolution {
	return errorResolution(KindState, message, models.ActionGoHome, models.ActionContactSupport)
}

func withRefs(res *models.Resolution, pending *models.PendingPayment) *models.Resolution {
	res.OrderTrackingID = pending.OrderTrackingID
	res.MerchantReference = pending.MerchantReference
	return res
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
