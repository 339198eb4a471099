package providers

import (
	"context"

	"github.com/Xebarter/Tina-s-Bakery-sub000/models"
)

// PaymentGateway defines the operations checkout needs from a hosted payment gateway.
type PaymentGateway interface {
	// SubmitOrder registers a payment order and returns where to redirect the customer.
	SubmitOrder(ctx context.Context, req models.PaymentOrderRequest) (models.PaymentOrderResponse, error)

	// GetTransactionStatus returns the gateway's current view of a submitted order.
	GetTransactionStatus(ctx context.Context, orderTrackingID string) (models.TransactionStatus, error)
}
