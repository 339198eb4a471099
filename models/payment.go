package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BillingInfo is the checkout form as submitted by the storefront.
type BillingInfo struct {
	FullName string `json:"full_name" validate:"required"`
	Phone    string `json:"phone" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email"`
	Address  string `json:"address"`
	City     string `json:"city"`
	Notes    string `json:"notes"`
}

// PendingPayment bridges one checkout attempt across the gateway redirect.
type PendingPayment struct {
	SessionID         string          `json:"session_id"`
	MerchantReference string          `json:"merchant_reference"`
	OrderTrackingID   string          `json:"order_tracking_id"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	CustomerInfo      BillingInfo     `json:"customer_info"`
	CartItems         []CartLine      `json:"cart_items"`
	Totals            CartTotals      `json:"totals"`
	CustomerID        uuid.UUID       `json:"customer_id"`
	OrderID           uuid.UUID       `json:"order_id"`
	Attempts          int             `json:"attempts"`
	CreatedAt         time.Time       `json:"created_at"`
}

// CheckoutResult tells the storefront where to send the browser.
type CheckoutResult struct {
	RedirectURL       string    `json:"redirect_url"`
	OrderTrackingID   string    `json:"order_tracking_id"`
	MerchantReference string    `json:"merchant_reference"`
	OrderID           uuid.UUID `json:"order_id"`
}

// BillingAddress is the billing block sent with a payment order.
type BillingAddress struct {
	EmailAddress string
	PhoneNumber  string
	CountryCode  string
	FirstName    string
	MiddleName   string
	LastName     string
	Line1        string
	City         string
}

// PaymentOrderRequest is a gateway order submission.
type PaymentOrderRequest struct {
	MerchantReference string
	Currency          string
	Amount            decimal.Decimal
	Description       string
	CallbackURL       string
	NotificationID    string
	Billing           BillingAddress
}

// PaymentOrderResponse is returned by a successful gateway submission.
type PaymentOrderResponse struct {
	OrderTrackingID   string `json:"order_tracking_id"`
	MerchantReference string `json:"merchant_reference"`
	RedirectURL       string `json:"redirect_url"`
}

// TransactionStatus is the gateway's view of a payment. Status uses the gateway's own vocabulary.
type TransactionStatus struct {
	Status            string          `json:"status"`
	StatusCode        int             `json:"status_code"`
	ConfirmationCode  string          `json:"confirmation_code"`
	PaymentMethod     string          `json:"payment_method"`
	PaymentAccount    string          `json:"payment_account"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	MerchantReference string          `json:"merchant_reference"`
	Description       string          `json:"description"`
	Message           string          `json:"message"`
	CreatedDate       string          `json:"created_date"`
}

// CallbackParams are the query parameters the gateway appends to the callback URL.
type CallbackParams struct {
	OrderTrackingID        string `form:"OrderTrackingId"`
	OrderMerchantReference string `form:"OrderMerchantReference"`
	OrderNotificationType  string `form:"OrderNotificationType"`
}

// PaymentState is a state of the callback resolution.
type PaymentState string

const (
	PaymentStateLoading PaymentState = "loading"
	PaymentStateSuccess PaymentState = "success"
	PaymentStateFailed  PaymentState = "failed"
	PaymentStateError   PaymentState = "error"
)

// Next steps offered to the customer.
const (
	ActionRetry          = "retry"
	ActionEditBilling    = "edit_billing"
	ActionContactSupport = "contact_support"
	ActionGoHome         = "go_home"
	ActionViewOrder      = "view_order"
)

// Resolution is the outcome of a callback.
type Resolution struct {
	State             PaymentState `json:"state"`
	Kind              string       `json:"kind,omitempty"`
	Message           string       `json:"message"`
	Actions           []string     `json:"actions"`
	Attempts          int          `json:"attempts"`
	OrderTrackingID   string       `json:"order_tracking_id,omitempty"`
	MerchantReference string       `json:"merchant_reference,omitempty"`
	GatewayStatus     string       `json:"gateway_status,omitempty"`
	Order             *Order       `json:"order,omitempty"`
}

// IPNAcknowledgement is the body PesaPal expects back from an IPN endpoint.
type IPNAcknowledgement struct {
	OrderNotificationType  string `json:"orderNotificationType"`
	OrderTrackingID        string `json:"orderTrackingId"`
	OrderMerchantReference string `json:"orderMerchantReference"`
	Status                 int    `json:"status"`
}
