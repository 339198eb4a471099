package services

import (
	"context"
	"errors"

	"github.com/Xebarter/Tina-s-Bakery-sub000/models"
	"github.com/Xebarter/Tina-s-Bakery-sub000/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OrderService serves orders to the confirmation page.
type OrderService interface {
	GetOrder(ctx context.Context, id string) (*models.Order, error)
}

type orderServiceImpl struct {
	orders repository.OrderRepository
	logger *zap.Logger
}

// NewOrderService creates a new OrderService.
func NewOrderService(orders repository.OrderRepository, logger *zap.Logger) OrderService {
	return &orderServiceImpl{orders: orders, logger: logger}
}

// GetOrder only returns orders whose payment has completed.
func (s *orderServiceImpl) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	orderID, err := uuid.Parse(id)
	if err != nil {
		return nil, NewValidationError("Invalid order id", FieldError{Field: "id", Reason: "must be a uuid"})
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewNotFoundError("Order not found")
	}
	if err != nil {
		s.logger.Error("Order lookup failed", zap.String("order_id", id), zap.Error(err))
		return nil, NewPersistenceError("Failed to load order", err)
	}
	if order.PaymentStatus != models.PaymentStatusCompleted {
		return nil, NewNotFoundError("Order not found")
	}
	return order, nil
}
