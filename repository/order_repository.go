package repository

import (
	"context"

	"github.com/Xebarter/Tina-s-Bakery-sub000/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderRepository defines data-access operations for orders and their items.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByMerchantReference(ctx context.Context, merchantRef string) (*models.Order, error)
	Update(ctx context.Context, order *models.Order) error
	// ConfirmPayment writes the payment outcome unless the order is already
	// paid, and reports whether this call made the change.
	ConfirmPayment(ctx context.Context, order *models.Order) (bool, error)
}

// GormOrderRepository implements OrderRepository using GORM.
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository.
func NewGormOrderRepository(db *gorm.DB) OrderRepository {
	return &GormOrderRepository{db: db}
}

// Create inserts the order and its items in one transaction.
func (r *GormOrderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var o models.Order
	if err := r.db.WithContext(ctx).
		Preload("Items").
		First(&o, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *GormOrderRepository) FindByMerchantReference(ctx context.Context, merchantRef string) (*models.Order, error) {
	var o models.Order
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("merchant_reference = ?", merchantRef).
		First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// Update saves the order row only. Items are written once, at creation.
func (r *GormOrderRepository) Update(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(order).Error
}

func (r *GormOrderRepository) ConfirmPayment(ctx context.Context, order *models.Order) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_status <> ?", order.ID, models.PaymentStatusCompleted).
		Updates(map[string]interface{}{
			"status":            order.Status,
			"payment_status":    order.PaymentStatus,
			"payment_method":    order.PaymentMethod,
			"payment_reference": order.PaymentReference,
			"order_tracking_id": order.OrderTrackingID,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
