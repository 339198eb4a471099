package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order status constants.
const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

// Payment status constants.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

// PaymentMethodPesapal is recorded until the gateway reports the actual method.
const PaymentMethodPesapal = "pesapal"

// Order is the GORM model persisted in Postgres.
type Order struct {
	ID                uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CustomerID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"customer_id"`
	MerchantReference string          `gorm:"type:varchar(64);uniqueIndex" json:"merchant_reference"`
	OrderTrackingID   string          `gorm:"type:varchar(128);index" json:"order_tracking_id,omitempty"`
	Subtotal          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	Tax               decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"tax"`
	Total             decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`
	Currency          string          `gorm:"type:varchar(8);not null" json:"currency"`
	Status            string          `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	PaymentMethod     string          `gorm:"type:varchar(64)" json:"payment_method"`
	PaymentStatus     string          `gorm:"type:varchar(20);not null;default:'pending'" json:"payment_status"`
	PaymentReference  string          `gorm:"type:varchar(128)" json:"payment_reference,omitempty"`
	OrderDate         time.Time       `gorm:"not null" json:"order_date"`
	Items             []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt         gorm.DeletedAt  `gorm:"index" json:"-"`
}

// OrderItem is a cart line copied onto an order.
type OrderItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductID string          `gorm:"type:varchar(128);not null" json:"product_id"`
	Name      string          `gorm:"type:varchar(255);not null" json:"name"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	ImageRef  string          `gorm:"type:varchar(1024)" json:"image_ref,omitempty"`
	Category  string          `gorm:"type:varchar(128)" json:"category,omitempty"`
}

// CheckoutSubmittedEvent is published to SNS once the customer is handed to the gateway.
type CheckoutSubmittedEvent struct {
	EventType         string          `json:"event_type"`
	OrderID           string          `json:"order_id"`
	CustomerID        string          `json:"customer_id"`
	MerchantReference string          `json:"merchant_reference"`
	OrderTrackingID   string          `json:"order_tracking_id"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Attempt           int             `json:"attempt"`
	Timestamp         time.Time       `json:"timestamp"`
}

// OrderConfirmedEvent is published to SNS after a successful payment.
type OrderConfirmedEvent struct {
	EventType         string          `json:"event_type"`
	OrderID           string          `json:"order_id"`
	CustomerID        string          `json:"customer_id"`
	MerchantReference string          `json:"merchant_reference"`
	PaymentReference  string          `json:"payment_reference"`
	PaymentMethod     string          `json:"payment_method"`
	Total             decimal.Decimal `json:"total"`
	Currency          string          `json:"currency"`
	ItemCount         int             `json:"item_count"`
	Timestamp         time.Time       `json:"timestamp"`
}

// PaymentFailedEvent is published to SNS when the gateway reports a terminal failure.
type PaymentFailedEvent struct {
	EventType         string    `json:"event_type"`
	OrderID           string    `json:"order_id"`
	MerchantReference string    `json:"merchant_reference"`
	OrderTrackingID   string    `json:"order_tracking_id"`
	GatewayStatus     string    `json:"gateway_status"`
	Timestamp         time.Time `json:"timestamp"`
}
