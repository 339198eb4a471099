package repository

import (
	"context"

	"github.com/Xebarter/Tina-s-Bakery-sub000/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CustomerRepository defines data-access operations for customers.
type CustomerRepository interface {
	Create(ctx context.Context, customer *models.Customer) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	FindByPhone(ctx context.Context, phone string) (*models.Customer, error)
	IncrementTotals(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error
}

// GormCustomerRepository implements CustomerRepository using GORM.
type GormCustomerRepository struct {
	db *gorm.DB
}

// NewGormCustomerRepository creates a new GormCustomerRepository.
func NewGormCustomerRepository(db *gorm.DB) CustomerRepository {
	return &GormCustomerRepository{db: db}
}

func (r *GormCustomerRepository) Create(ctx context.Context, customer *models.Customer) error {
	return r.db.WithContext(ctx).Create(customer).Error
}

func (r *GormCustomerRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var c models.Customer
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// FindByPhone expects phone in canonical form.
func (r *GormCustomerRepository) FindByPhone(ctx context.Context, phone string) (*models.Customer, error) {
	var c models.Customer
	if err := r.db.WithContext(ctx).
		Where("phone = ?", phone).
		First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// IncrementTotals adds one order and amount to the customer's running totals.
func (r *GormCustomerRepository) IncrementTotals(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"total_orders": gorm.Expr("total_orders + ?", 1),
			"total_spent":  gorm.Expr("total_spent + ?", amount),
		}).Error
}
