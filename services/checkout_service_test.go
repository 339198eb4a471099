package services_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/Xebarter/Tina-s-Bakery-sub000/models"
	aws_pkg "github.com/Xebarter/Tina-s-Bakery-sub000/pkg/aws"
	"github.com/Xebarter/Tina-s-Bakery-sub000/providers"
	"github.com/Xebarter/Tina-s-Bakery-sub000/services"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmit_Success(t *testing.T) {
	h := newHarness(t)
	h.seedCart(testSession)

	res, err := h.checkout.Submit(context.Background(), testSession, models.AnonymousIdentity{}, validBilling())

	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, strings.HasPrefix(res.MerchantReference, "BK-"))
	assert.Equal(t, "track-"+res.MerchantReference, res.OrderTrackingID)
	assert.Contains(t, res.RedirectURL, res.MerchantReference)

	req := h.gateway.lastRequest
	assert.True(t, decimal.NewFromInt(68440).Equal(req.Amount), req.Amount.String())
	assert.Equal(t, "UGX", req.Currency)
	assert.Equal(t, "https://bakery.example.test/payments/callback", req.CallbackURL)
	assert.Equal(t, "ipn-123", req.NotificationID)
	assert.Equal(t, "+256772123456", req.Billing.PhoneNumber)
	assert.Equal(t, "Tina", req.Billing.FirstName)
	assert.Equal(t, "Nakato", req.Billing.MiddleName)
	assert.Equal(t, "Mukasa", req.Billing.LastName)
	assert.Equal(t, "UG", req.Billing.CountryCode)

	order := h.orders.only()
	require.NotNil(t, order)
	assert.Equal(t, res.OrderID, order.ID)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, res.OrderTrackingID, order.OrderTrackingID)
	assert.Len(t, order.Items, 2)

	pending := h.pending.records[testSession]
	require.NotNil(t, pending)
	assert.Equal(t, res.MerchantReference, pending.MerchantReference)
	assert.Equal(t, res.OrderTrackingID, pending.OrderTrackingID)
	assert.Equal(t, order.ID, pending.OrderID)
	assert.Equal(t, 1, pending.Attempts)
	assert.Equal(t, "+256772123456", pending.CustomerInfo.Phone)
	assert.Len(t, pending.CartItems, 2)

	// the cart is only cleared once the payment succeeds
	assert.Len(t, h.cartRepo.carts[testSession].Lines, 2)
	assert.Len(t, h.sns.messages, 1)
	assert.Equal(t, 1, h.metrics.counts[aws_pkg.MetricCheckoutSubmitted])
}

func TestSubmit_ValidationErrorMakesNoRemoteCall(t *testing.T) {
	h := newHarness(t)
	h.seedCart(testSession)

	billing := validBilling()
	billing.FullName = "  "
	billing.Email = "not-an-email"
	_, err := h.checkout.Submit(context.Background(), testSession, models.AnonymousIdentity{}, billing)

	se := serviceError(t, err)
	assert.Equal(t, services.KindValidation, se.Kind)
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.Contains(t, se.Fields, services.FieldError{Field: "full_name", Reason: "missing"})
	assert.Contains(t, se.Fields, services.FieldError{Field: "email", Reason: "email"})
	assert.Equal(t, 0, h.gateway.submitCalls)
	assert.Equal(t, 0, h.customers.createCalls)
	assert.Equal(t, 0, h.orders.createCalls)
}

func TestSubmit_InvalidPhone(t *testing.T) {
	h := newHarness(t)
	h.seedCart(testSession)

	billing := validBilling()
	billing.Phone = "12ab"
	_, err := h.checkout.Submit(context.Background(), testSession, models.AnonymousIdentity{}, billing)

	se := serviceError(t, err)
	assert.Equal(t, services.KindValidation, se.Kind)
	require.Len(t, se.Fields, 1)
	assert.Equal(t, "phone", se.Fields[0].Field)
	assert.Equal(t, 0, h.gateway.submitCalls)
}

func TestSubmit_EmptyCart(t *testing.T) {
	h := newHarness(t)

	_, err := h.checkout.Submit(context.Background(), testSession, models.AnonymousIdentity{}, validBilling())

	se := serviceError(t, err)
	assert.Equal(t, services.KindValidation, se.Kind)
	assert.Equal(t, "cart", se.Fields[0].Field)
	assert.Equal(t, 0, h.gateway.submitCalls)
	assert.Equal(t, 0, h.orders.createCalls)
}

func TestSubmit_SecondCheckoutReusesCustomerByPhone(t *testing.T) {
	h := newHarness(t)
	h.seedCart(testSession)
	h.seedCart("session-2")

	_, err := h.checkout.Submit(context.Background(), testSession, models.AnonymousIdentity{}, validBilling())
	require.NoError(t, err)

	billing := validBilling()
	billing.Phone = "+256 772-123-456"
	_, err = h.checkout.Submit(context.Background(), "session-2", models.AnonymousIdentity{}, billing)
	require.NoError(t, err)

	assert.Equal(t, 1, h.customers.createCalls)
	assert.Len(t, h.customers.byID, 1)
	assert.Equal(t, h.pending.records[testSession].CustomerID, h.pending.records["session-2"].CustomerID)
}

func TestSubmit_ConcurrentFirstCheckoutReusesWinner(t *testing.T) {
	h := newHarness(t)
	h.seedCart(testSession)
	winner := &models.Customer{ID: uuid.New(), FullName: "Tina Nakato", Phone: "+256772123456", AccountType: models.AccountTypeBillingOnly}
	h.customers.raceWinner = winner

	_, err := h.checkout.Submit(context.Background(), testSession, models.AnonymousIdentity{}, validBilling())

	require.NoError(t, err)
	assert.Equal(t, 1, h.customers.createCalls)
	assert.Len(t, h.customers.byID, 1)
	assert.Equal(t, winner.ID, h.pending.records[testSession].CustomerID)
}

func TestSubmit_RegisteredIdentityReusesAccount(t *testing.T) {
	h := newHarness(t)
	h.seedCart(testSession)
	existing := &models.Customer{FullName: "Tina", Phone: "+256700000001", AccountType: models.AccountTypeRegistered}
	require.NoError(t, h.customers.Create(context.Background(), existing))
	h.customers.createCalls = 0

	identity := models.RegisteredIdentity{CustomerID: existing.ID, Email: "tina@example.com"}
	_, err := h.checkout.Submit(context.Background(), testSession, identity, validBilling())

	require.NoError(t, err)
	assert.Equal(t, 0, h.customers.createCalls)
	assert.Equal(t, existing.ID, h.pending.records[testSession].CustomerID)
}

func TestSubmit_AccountTypeFollowsIdentity(t *testing.T) {
	h := newHarness(t)
	h.seedCart(testSession)

	identity := models.RegisteredIdentity{CustomerID: uuid.New()}
	_, err := h.checkout.Submit(context.Background(), testSession, identity, validBilling())
	require.NoError(t, err)

	c, err := h.customers.FindByPhone(context.Background(), "+256772123456")
	require.NoError(t, err)
	assert.Equal(t, models.AccountTypeRegistered, c.AccountType)

	h2 := newHarness(t)
	h2.seedCart(testSession)
	_, err = h2.checkout.Submit(context.Background(), testSession, models.AnonymousIdentity{}, validBilling())
	require.NoError(t, err)

	c, err = h2.customers.FindByPhone(context.Background(), "+256772123456")
	require.NoError(t, err)
	assert.Equal(t, models.AccountTypeBillingOnly, c.AccountType)
}

func TestSubmit_CustomerLookupFailure(t *testing.T) {
	h := newHarness(t)
	h.seedCart(testSession)
	h.customers.findErr = errors.New("connection refused")

	_, err := h.checkout.Submit(context.Background(), testSession, models.AnonymousIdentity{}, validBilling())

	se := serviceError(t, err)
	assert.Equal(t, services.KindPersistence, se.Kind)
	assert.Equal(t, 0, h.gateway.submitCalls)
}

func TestSubmit_GatewayRejection(t *testing.T) {
	h := newHarness(t)
	h.seedCart(testSession)
	h.gateway.submitErr = &providers.GatewayError{HTTPStatus: 400, Code: "invalid_amount", Message: "Amount is invalid"}

	res, err := h.checkout.Submit(context.Background(), testSession, models.AnonymousIdentity{}, validBilling())

	assert.Nil(t, res)
	se := serviceError(t, err)
	assert.Equal(t, services.KindGateway, se.Kind)
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
	assert.Equal(t, "Amount is invalid", se.Message)
	assert.Equal(t, 0, h.pending.saveCalls)
	assert.Equal(t, 1, h.metrics.counts[aws_pkg.MetricCheckoutFailed])
}

func TestSubmit_GatewayUnreachable(t *testing.T) {
	h := newHarness(t)
	h.seedCart(testSession)
	h.gateway.submitErr = &providers.NetworkError{Op: "submit order", Err: errors.New("dial tcp: timeout")}

	_, err := h.checkout.Submit(context.Background(), testSession, models.AnonymousIdentity{}, validBilling())

	se := serviceError(t, err)
	assert.Equal(t, services.KindNetwork, se.Kind)
	assert.Equal(t, []string{models.ActionRetry}, se.Actions)
}

func TestSubmit_BridgeSaveFailureReturnsNoRedirect(t *testing.T) {
	h := newHarness(t)
	h.seedCart(testSession)
	h.pending.saveErr = errors.New("redis: connection pool timeout")

	res, err := h.checkout.Submit(context.Background(), testSession, models.AnonymousIdentity{}, validBilling())

	assert.Nil(t, res)
	se := serviceError(t, err)
	assert.Equal(t, services.KindPersistence, se.Kind)
	assert.Equal(t, 1, h.gateway.submitCalls)
	assert.Empty(t, h.sns.messages)
}

func TestSubmit_SNSFailureIsNonFatal(t *testing.T) {
	h := newHarness(t)
	h.seedCart(testSession)
	h.sns.publishErr = errors.New("sns down")

	res, err := h.checkout.Submit(context.Background(), testSession, models.AnonymousIdentity{}, validBilling())

	assert.NoError(t, err)
	assert.NotNil(t, res)
}

func TestRetry_MintsNewMerchantReference(t *testing.T) {
	h := newHarness(t)
	h.seedCart(testSession)

	first, err := h.checkout.Submit(context.Background(), testSession, models.AnonymousIdentity{}, validBilling())
	require.NoError(t, err)
	h.gateway.statuses = []models.TransactionStatus{{Status: services.GatewayStatusFailed}}

	second, err := h.checkout.Retry(context.Background(), testSession)
	require.NoError(t, err)

	assert.NotEqual(t, first.MerchantReference, second.MerchantReference)
	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Equal(t, 2, h.gateway.submitCalls)
	assert.True(t, decimal.NewFromInt(68440).Equal(h.gateway.lastRequest.Amount))

	pending := h.pending.records[testSession]
	assert.Equal(t, second.MerchantReference, pending.MerchantReference)
	assert.Equal(t, second.OrderTrackingID, pending.OrderTrackingID)
	assert.Equal(t, 2, pending.Attempts)

	order := h.orders.only()
	assert.Equal(t, second.MerchantReference, order.MerchantReference)
	assert.Equal(t, 1, h.orders.createCalls)
	assert.Equal(t, 1, h.gateway.statusCalls)
}

func TestRetry_FirstAttemptAlreadyPaid(t *testing.T) {
	h := newHarness(t)
	h.seedCart(testSession)
	first, err := h.checkout.Submit(context.Background(), testSession, models.AnonymousIdentity{}, validBilling())
	require.NoError(t, err)
	h.gateway.statuses = []models.TransactionStatus{{
		Status:           services.GatewayStatusCompleted,
		ConfirmationCode: "MTN-1",
		PaymentMethod:    "MTN Mobile Money",
	}}

	res, err := h.checkout.Retry(context.Background(), testSession)

	assert.Nil(t, res)
	se := serviceError(t, err)
	assert.Equal(t, services.KindState, se.Kind)
	assert.Equal(t, []string{models.ActionViewOrder, models.ActionGoHome}, se.Actions)
	assert.Equal(t, 1, h.gateway.submitCalls)

	order := h.orders.only()
	assert.Equal(t, first.MerchantReference, order.MerchantReference)
	assert.Equal(t, models.OrderStatusConfirmed, order.Status)
	assert.Equal(t, models.PaymentStatusCompleted, order.PaymentStatus)
	assert.Equal(t, 1, h.customers.incrementCalls)
	assert.Nil(t, h.pending.records[testSession])
	assert.Nil(t, h.cartRepo.carts[testSession])
}

func TestRetry_FirstAttemptStillOpen(t *testing.T) {
	h := newHarness(t)
	h.seedCart(testSession)
	first, err := h.checkout.Submit(context.Background(), testSession, models.AnonymousIdentity{}, validBilling())
	require.NoError(t, err)
	h.gateway.statuses = []models.TransactionStatus{{Status: "PENDING"}}

	_, err = h.checkout.Retry(context.Background(), testSession)

	se := serviceError(t, err)
	assert.Equal(t, services.KindState, se.Kind)
	assert.Equal(t, 1, h.gateway.submitCalls)
	pending := h.pending.records[testSession]
	assert.Equal(t, first.MerchantReference, pending.MerchantReference)
	assert.Equal(t, 1, pending.Attempts)
}

func TestRetry_StatusCheckUnreachable(t *testing.T) {
	h := newHarness(t)
	h.seedCart(testSession)
	_, err := h.checkout.Submit(context.Background(), testSession, models.AnonymousIdentity{}, validBilling())
	require.NoError(t, err)
	h.gateway.statusErr = &providers.NetworkError{Op: "transaction status", Err: errors.New("dial tcp: timeout")}

	_, err = h.checkout.Retry(context.Background(), testSession)

	se := serviceError(t, err)
	assert.Equal(t, services.KindNetwork, se.Kind)
	assert.Equal(t, 1, h.gateway.submitCalls)
}

func TestRetry_WithoutPendingPayment(t *testing.T) {
	h := newHarness(t)

	_, err := h.checkout.Retry(context.Background(), testSession)

	se := serviceError(t, err)
	assert.Equal(t, services.KindState, se.Kind)
	assert.Equal(t, http.StatusConflict, se.StatusCode)
	assert.Equal(t, 0, h.gateway.submitCalls)
}
