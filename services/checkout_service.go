package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/Xebarter/Tina-s-Bakery-sub000/database"
	"github.com/Xebarter/Tina-s-Bakery-sub000/models"
	aws_pkg "github.com/Xebarter/Tina-s-Bakery-sub000/pkg/aws"
	"github.com/Xebarter/Tina-s-Bakery-sub000/providers"
	"github.com/Xebarter/Tina-s-Bakery-sub000/repository"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CheckoutConfig holds the merchant settings used when submitting payments.
type CheckoutConfig struct {
	Currency           string
	CallbackURL        string
	NotificationID     string
	DefaultCountryCode string // calling code without "+", e.g. "256"
	CountryISO         string // billing country, e.g. "UG"
	StoreName          string
}

// CheckoutService turns a billing form and the session cart into a gateway
// payment the customer is redirected to.
type CheckoutService interface {
	Submit(ctx context.Context, sessionID string, identity models.Identity, billing models.BillingInfo) (*models.CheckoutResult, error)
	// Retry resubmits the session's pending payment under a new merchant reference.
	Retry(ctx context.Context, sessionID string) (*models.CheckoutResult, error)
}

type checkoutServiceImpl struct {
	customers repository.CustomerRepository
	orders    repository.OrderRepository
	carts     CartService
	pending   database.PendingPaymentRepository
	gateway   providers.PaymentGateway
	events    *EventPublisher
	metrics   MetricsRecorder
	validate  *validator.Validate
	cfg       CheckoutConfig
	logger    *zap.Logger
	now       func() time.Time
	confirmer *orderConfirmer
}

// NewCheckoutService creates a new CheckoutService.
func NewCheckoutService(
	customers repository.CustomerRepository,
	orders repository.OrderRepository,
	carts CartService,
	pending database.PendingPaymentRepository,
	gateway providers.PaymentGateway,
	events *EventPublisher,
	metrics MetricsRecorder,
	cfg CheckoutConfig,
	logger *zap.Logger,
) CheckoutService {
	return &checkoutServiceImpl{
		customers: customers,
		orders:    orders,
		carts:     carts,
		pending:   pending,
		gateway:   gateway,
		events:    events,
		metrics:   metrics,
		validate:  newValidator(),
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
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

// Submit runs the checkout steps in order. Nothing is sent to the gateway
// until the customer and the pending order exist, and no redirect URL is
// returned unless the bridge record was saved.
func (s *checkoutServiceImpl) Submit(ctx context.Context, sessionID string, identity models.Identity, billing models.BillingInfo) (*models.CheckoutResult, error) {
	billing = trimBilling(billing)
	if err := s.validateBilling(billing); err != nil {
		return nil, err
	}

	phone, err := NormalizePhone(billing.Phone, s.cfg.DefaultCountryCode)
	if err != nil {
		return nil, NewValidationError("Phone number is not valid", FieldError{Field: "phone", Reason: "unrecognised format"})
	}
	billing.Phone = phone

	customer, err := s.resolveCustomer(ctx, identity, billing)
	if err != nil {
		return nil, err
	}

	store, err := s.carts.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	lines := resolvedLines(store.Lines())
	totals := store.Totals()
	if len(lines) == 0 || !totals.Total.IsPositive() {
		return nil, NewValidationError("Your cart is empty", FieldError{Field: "cart", Reason: "empty"})
	}

	now := s.now()
	merchantRef := newMerchantReference(now)
	order := &models.Order{
		CustomerID:        customer.ID,
		MerchantReference: merchantRef,
		Subtotal:          totals.Subtotal,
		Tax:               totals.Tax,
		Total:             totals.Total,
		Currency:          s.cfg.Currency,
		Status:            models.OrderStatusPending,
		PaymentMethod:     models.PaymentMethodPesapal,
		PaymentStatus:     models.PaymentStatusPending,
		OrderDate:         now,
		Items:             orderItems(lines),
	}
	if err := s.orders.Create(ctx, order); err != nil {
		s.logger.Error("Failed to create pending order", zap.String("merchant_reference", merchantRef), zap.Error(err))
		return nil, NewPersistenceError("Failed to save your order, please try again", err)
	}

	resp, err := s.gateway.SubmitOrder(ctx, s.paymentRequest(merchantRef, order.Total, billing))
	if err != nil {
		s.logger.Error("Payment submission failed",
			zap.String("merchant_reference", merchantRef),
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		recordCount(ctx, s.metrics, s.logger, aws_pkg.MetricCheckoutFailed, map[string]string{"Stage": "gateway"})
		return nil, fromGatewayFailure(err)
	}

	order.OrderTrackingID = resp.OrderTrackingID
	if err := s.orders.Update(ctx, order); err != nil {
		s.logger.Warn("Failed to store tracking id on order", zap.String("order_id", order.ID.String()), zap.Error(err))
	}

	pending := &models.PendingPayment{
		SessionID:         sessionID,
		MerchantReference: merchantRef,
		OrderTrackingID:   resp.OrderTrackingID,
		Amount:            order.Total,
		Currency:          order.Currency,
		CustomerInfo:      billing,
		CartItems:         lines,
		Totals:            totals,
		CustomerID:        customer.ID,
		OrderID:           order.ID,
		Attempts:          1,
		CreatedAt:         now,
	}
	if err := s.pending.Save(ctx, pending); err != nil {
		s.logger.Error("Failed to save pending payment, refusing to redirect",
			zap.String("merchant_reference", merchantRef),
			zap.String("order_tracking_id", resp.OrderTrackingID),
			zap.Error(err),
		)
		recordCount(ctx, s.metrics, s.logger, aws_pkg.MetricCheckoutFailed, map[string]string{"Stage": "bridge"})
		return nil, NewPersistenceError("We could not start your payment safely, please try again", err)
	}

	s.logger.Info("Checkout submitted",
		zap.String("session_id", sessionID),
		zap.String("order_id", order.ID.String()),
		zap.String("merchant_reference", merchantRef),
		zap.String("order_tracking_id", resp.OrderTrackingID),
		zap.String("total", order.Total.String()),
	)
	s.afterSubmit(ctx, pending)

	return &models.CheckoutResult{
		RedirectURL:       resp.RedirectURL,
		OrderTrackingID:   resp.OrderTrackingID,
		MerchantReference: merchantRef,
		OrderID:           order.ID,
	}, nil
}

// Retry mints a new merchant reference because the gateway does not accept the
// same reference twice. It only resubmits once the gateway reports the current
// attempt as failed, so one checkout never has two live payment orders.
func (s *checkoutServiceImpl) Retry(ctx context.Context, sessionID string) (*models.CheckoutResult, error) {
	pending, err := s.pending.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, database.ErrCorruptRecord) {
			return nil, NewStateError("We couldn't read your pending payment, please check out again")
		}
		s.logger.Error("Failed to load pending payment", zap.String("session_id", sessionID), zap.Error(err))
		return nil, NewPersistenceError("Failed to load your payment, please try again", err)
	}
	if pending == nil {
		return nil, NewStateError("We couldn't find a payment to retry, please check out again")
	}

	if err := s.ensureAttemptFailed(ctx, sessionID, pending); err != nil {
		return nil, err
	}

	merchantRef := newMerchantReference(s.now())
	resp, err := s.gateway.SubmitOrder(ctx, s.paymentRequest(merchantRef, pending.Amount, pending.CustomerInfo))
	if err != nil {
		s.logger.Error("Payment resubmission failed",
			zap.String("previous_reference", pending.MerchantReference),
			zap.String("merchant_reference", merchantRef),
			zap.Error(err),
		)
		return nil, fromGatewayFailure(err)
	}

	order, err := s.orders.FindByID(ctx, pending.OrderID)
	switch {
	case err == nil:
		order.MerchantReference = merchantRef
		order.OrderTrackingID = resp.OrderTrackingID
		order.PaymentStatus = models.PaymentStatusPending
		if err := s.orders.Update(ctx, order); err != nil {
			s.logger.Warn("Failed to move order to new merchant reference", zap.String("order_id", order.ID.String()), zap.Error(err))
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		s.logger.Warn("Pending order missing on retry, it will be created on confirmation", zap.String("order_id", pending.OrderID.String()))
	default:
		s.logger.Warn("Failed to load pending order on retry", zap.String("order_id", pending.OrderID.String()), zap.Error(err))
	}

	pending.MerchantReference = merchantRef
	pending.OrderTrackingID = resp.OrderTrackingID
	pending.Attempts++
	if err := s.pending.Save(ctx, pending); err != nil {
		s.logger.Error("Failed to save pending payment on retry", zap.String("merchant_reference", merchantRef), zap.Error(err))
		return nil, NewPersistenceError("We could not restart your payment safely, please try again", err)
	}

	s.logger.Info("Checkout retried",
		zap.String("session_id", sessionID),
		zap.String("merchant_reference", merchantRef),
		zap.Int("attempt", pending.Attempts),
	)
	s.afterSubmit(ctx, pending)

	return &models.CheckoutResult{
		RedirectURL:       resp.RedirectURL,
		OrderTrackingID:   resp.OrderTrackingID,
		MerchantReference: merchantRef,
		OrderID:           pending.OrderID,
	}, nil
}

// ensureAttemptFailed asks the gateway about the attempt the bridge record
// points at. A payment that completed without a callback is confirmed here.
func (s *checkoutServiceImpl) ensureAttemptFailed(ctx context.Context, sessionID string, pending *models.PendingPayment) error {
	log := s.logger.With(
		zap.String("session_id", sessionID),
		zap.String("merchant_reference", pending.MerchantReference),
		zap.String("order_tracking_id", pending.OrderTrackingID),
	)

	status, err := s.gateway.GetTransactionStatus(ctx, pending.OrderTrackingID)
	if err != nil {
		log.Error("Transaction status request failed before retry", zap.Error(err))
		return fromGatewayFailure(err)
	}

	switch status.Status {
	case GatewayStatusFailed, GatewayStatusInvalid, GatewayStatusReversed:
		return nil
	case GatewayStatusCompleted:
		order, _, err := s.confirmer.confirm(ctx, log, sessionID, pending, status)
		if err != nil {
			log.Error("Failed to confirm order found paid on retry", zap.Error(err))
			return NewPersistenceError("Your payment went through but we couldn't save your order, please try again", err)
		}
		log.Info("Retry found the payment already completed", zap.String("order_id", order.ID.String()))
		se := NewStateError("Your payment already went through, your order is confirmed")
		se.Actions = []string{models.ActionViewOrder, models.ActionGoHome}
		return se
	default:
		log.Info("Retry refused while payment is still open", zap.String("status", status.Status))
		return NewStateError("Your previous payment is still processing, please wait before trying again")
	}
}

// resolveCustomer reuses the signed-in customer, then looks up by phone, and
// inserts only when both miss.
func (s *checkoutServiceImpl) resolveCustomer(ctx context.Context, identity models.Identity, billing models.BillingInfo) (*models.Customer, error) {
	accountType := models.AccountTypeBillingOnly
	var knownID uuid.UUID

	switch id := identity.(type) {
	case models.RegisteredIdentity:
		accountType = models.AccountTypeRegistered
		knownID = id.CustomerID
	case models.BillingOnlyIdentity:
		knownID = id.CustomerID
	}

	if knownID != uuid.Nil {
		c, err := s.customers.FindByID(ctx, knownID)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Error("Customer lookup by id failed", zap.String("customer_id", knownID.String()), zap.Error(err))
			return nil, NewPersistenceError("Failed to load your customer record, please try again", err)
		}
	}

	c, err := s.customers.FindByPhone(ctx, billing.Phone)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("Customer lookup by phone failed", zap.Error(err))
		return nil, NewPersistenceError("Failed to load your customer record, please try again", err)
	}

	c = &models.Customer{
		FullName:    billing.FullName,
		Phone:       billing.Phone,
		Email:       billing.Email,
		Address:     billing.Address,
		City:        billing.City,
		AccountType: accountType,
	}
	if err := s.customers.Create(ctx, c); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Another checkout inserted the same phone first.
			if existing, findErr := s.customers.FindByPhone(ctx, billing.Phone); findErr == nil {
				return existing, nil
			}
		}
		s.logger.Error("Failed to create customer", zap.Error(err))
		return nil, NewPersistenceError("Failed to save your details, please try again", err)
	}
	s.logger.Info("Customer created", zap.String("customer_id", c.ID.String()), zap.String("account_type", accountType))
	return c, nil
}

func (s *checkoutServiceImpl) validateBilling(billing models.BillingInfo) error {
	err := s.validate.Struct(billing)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewValidationError("Invalid billing details")
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		reason := fe.Tag()
		if reason == "required" {
			reason = "missing"
		}
		fields = append(fields, FieldError{Field: fe.Field(), Reason: reason})
	}
	return NewValidationError("Please correct the highlighted fields", fields...)
}

func (s *checkoutServiceImpl) paymentRequest(merchantRef string, amount decimal.Decimal, billing models.BillingInfo) models.PaymentOrderRequest {
	first, middle, last := splitName(billing.FullName)
	return models.PaymentOrderRequest{
		MerchantReference: merchantRef,
		Currency:          s.cfg.Currency,
		Amount:            amount,
		Description:       fmt.Sprintf("%s order %s", s.cfg.StoreName, merchantRef),
		CallbackURL:       s.cfg.CallbackURL,
		NotificationID:    s.cfg.NotificationID,
		Billing: models.BillingAddress{
			EmailAddress: billing.Email,
			PhoneNumber:  billing.Phone,
			CountryCode:  s.cfg.CountryISO,
			FirstName:    first,
			MiddleName:   middle,
			LastName:     last,
			Line1:        billing.Address,
			City:         billing.City,
		},
	}
}

func (s *checkoutServiceImpl) afterSubmit(ctx context.Context, p *models.PendingPayment) {
	s.events.Publish(ctx, models.CheckoutSubmittedEvent{
		EventType:         "checkout_submitted",
		OrderID:           p.OrderID.String(),
		CustomerID:        p.CustomerID.String(),
		MerchantReference: p.MerchantReference,
		OrderTrackingID:   p.OrderTrackingID,
		Amount:            p.Amount,
		Currency:          p.Currency,
		Attempt:           p.Attempts,
		Timestamp:         s.now(),
	})
	recordCount(ctx, s.metrics, s.logger, aws_pkg.MetricCheckoutSubmitted, map[string]string{"Currency": p.Currency})
}

// newMerchantReference is time-ordered with a random suffix.
func newMerchantReference(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("BK-%d-%s", now.UnixMilli(), strings.ToUpper(suffix))
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

func trimBilling(b models.BillingInfo) models.BillingInfo {
	b.FullName = strings.Join(strings.Fields(b.FullName), " ")
	b.Phone = strings.TrimSpace(b.Phone)
	b.Email = strings.TrimSpace(b.Email)
	b.Address = strings.TrimSpace(b.Address)
	b.City = strings.TrimSpace(b.City)
	return b
}

func splitName(full string) (first, middle, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", "", ""
	case 1:
		return parts[0], "", ""
	case 2:
		return parts[0], "", parts[1]
	default:
		return parts[0], strings.Join(parts[1:len(parts)-1], " "), parts[len(parts)-1]
	}
}

func resolvedLines(lines []models.CartLine) []models.CartLine {
	out := make([]models.CartLine, 0, len(lines))
	for _, l := range lines {
		if l.Product != nil {
			out = append(out, l)
		}
	}
	return out
}

func orderItems(lines []models.CartLine) []models.OrderItem {
	items := make([]models.OrderItem, 0, len(lines))
	for _, l := range lines {
		if l.Product == nil {
			continue
		}
		items = append(items, models.OrderItem{
			ProductID: l.ID,
			Name:      l.Product.Name,
			UnitPrice: l.Product.UnitPrice,
			Quantity:  l.Quantity,
			ImageRef:  l.Product.ImageRef,
			Category:  l.Product.Category,
		})
	}
	return items
}
