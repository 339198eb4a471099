package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Account types.
const (
	AccountTypeRegistered  = "registered"
	AccountTypeBillingOnly = "billing_only"
)

// Customer is keyed for lookup by its canonical phone number.
type Customer struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	FullName    string          `gorm:"type:varchar(255);not null" json:"full_name"`
	Phone       string          `gorm:"type:varchar(32);not null;uniqueIndex" json:"phone"`
	Email       string          `gorm:"type:varchar(255)" json:"email,omitempty"`
	Address     string          `gorm:"type:text" json:"address,omitempty"`
	City        string          `gorm:"type:varchar(128)" json:"city,omitempty"`
	AccountType string          `gorm:"type:varchar(32);not null;default:'billing_only'" json:"account_type"`
	TotalOrders int             `gorm:"not null;default:0" json:"total_orders"`
	TotalSpent  decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"total_spent"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`
}
