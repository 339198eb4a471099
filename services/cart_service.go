package services

import (
	"context"
	"errors"
	"strings"

	"github.com/Xebarter/Tina-s-Bakery-sub000/cart"
	"github.com/Xebarter/Tina-s-Bakery-sub000/database"
	"github.com/Xebarter/Tina-s-Bakery-sub000/models"
	"github.com/Xebarter/Tina-s-Bakery-sub000/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CartService applies cart operations to a session's stored cart.
type CartService interface {
	GetCart(ctx context.Context, sessionID string) (*models.CartView, error)
	AddProduct(ctx context.Context, sessionID string, req models.AddCartItemRequest) (*models.CartView, error)
	AddCustomItem(ctx context.Context, sessionID string, req models.AddCustomItemRequest) (*models.CartView, error)
	UpdateQuantity(ctx context.Context, sessionID, lineID string, quantity int) (*models.CartView, error)
	RemoveItem(ctx context.Context, sessionID, lineID string) (*models.CartView, error)
	Clear(ctx context.Context, sessionID string) error
	// Load returns the session's cart as a Store without saving anything.
	Load(ctx context.Context, sessionID string) (*cart.Store, error)
}

type cartServiceImpl struct {
	repo     database.CartRepository
	products repository.ProductRepository
	taxRate  decimal.Decimal
	currency string
	logger   *zap.Logger
}

// NewCartService creates a new CartService.
func NewCartService(
	repo database.CartRepository,
	products repository.ProductRepository,
	taxRate decimal.Decimal,
	currency string,
	logger *zap.Logger,
) CartService {
	return &cartServiceImpl{
		repo:     repo,
		products: products,
		taxRate:  taxRate,
		currency: currency,
		logger:   logger,
	}
}

func (s *cartServiceImpl) GetCart(ctx context.Context, sessionID string) (*models.CartView, error) {
	store, err := s.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.view(store), nil
}

// AddProduct resolves a catalog product and adds it to the cart.
func (s *cartServiceImpl) AddProduct(ctx context.Context, sessionID string, req models.AddCartItemRequest) (*models.CartView, error) {
	id, err := uuid.Parse(req.ProductID)
	if err != nil {
		return nil, NewValidationError("Invalid product id", FieldError{Field: "product_id", Reason: "must be a uuid"})
	}

	product, err := s.products.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewNotFoundError("Product not found")
	}
	if err != nil {
		s.logger.Error("Product lookup failed", zap.String("product_id", req.ProductID), zap.Error(err))
		return nil, NewPersistenceError("Failed to load product, please try again", err)
	}
	if !product.IsAvailable {
		return nil, NewValidationError("Product is not available", FieldError{Field: "product_id", Reason: "unavailable"})
	}

	line := cart.LineFromProduct(product, req.Quantity)
	return s.mutate(ctx, sessionID, func(store *cart.Store) { store.Add(line) })
}

// AddCustomItem adds an item that is not in the catalog, such as a custom cake.
func (s *cartServiceImpl) AddCustomItem(ctx context.Context, sessionID string, req models.AddCustomItemRequest) (*models.CartView, error) {
	var fields []FieldError
	if strings.TrimSpace(req.Name) == "" {
		fields = append(fields, FieldError{Field: "name", Reason: "required"})
	}
	if !req.Price.IsPositive() {
		fields = append(fields, FieldError{Field: "price", Reason: "must be greater than zero"})
	}
	if len(fields) > 0 {
		return nil, NewValidationError("Invalid custom item", fields...)
	}

	line := cart.CustomLine(req)
	return s.mutate(ctx, sessionID, func(store *cart.Store) { store.Add(line) })
}

func (s *cartServiceImpl) UpdateQuantity(ctx context.Context, sessionID, lineID string, quantity int) (*models.CartView, error) {
	return s.mutate(ctx, sessionID, func(store *cart.Store) { store.UpdateQuantity(lineID, quantity) })
}

func (s *cartServiceImpl) RemoveItem(ctx context.Context, sessionID, lineID string) (*models.CartView, error) {
	return s.mutate(ctx, sessionID, func(store *cart.Store) { store.Remove(lineID) })
}

// Clear drops the session's cart.
func (s *cartServiceImpl) Clear(ctx context.Context, sessionID string) error {
	if err := s.repo.DeleteCart(ctx, sessionID); err != nil {
		s.logger.Error("Failed to clear cart", zap.String("session_id", sessionID), zap.Error(err))
		return NewPersistenceError("Failed to clear cart", err)
	}
	return nil
}

func (s *cartServiceImpl) Load(ctx context.Context, sessionID string) (*cart.Store, error) {
	stored, err := s.repo.GetCart(ctx, sessionID)
	if err != nil {
		s.logger.Error("Failed to load cart", zap.String("session_id", sessionID), zap.Error(err))
		return nil, NewPersistenceError("Failed to load cart, please try again", err)
	}
	var lines []models.CartLine
	if stored != nil {
		lines = stored.Lines
	}
	return cart.NewStore(s.taxRate, s.logger, lines...), nil
}

// mutate loads the cart, applies fn and saves the result only if fn changed it.
func (s *cartServiceImpl) mutate(ctx context.Context, sessionID string, fn func(*cart.Store)) (*models.CartView, error) {
	store, err := s.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	changed := false
	unsubscribe := store.Subscribe(func(snap cart.Snapshot) {
		changed = true
		s.logger.Debug("Cart changed",
			zap.String("session_id", sessionID),
			zap.Int("lines", len(snap.Lines)),
			zap.String("total", snap.Totals.Total.String()),
		)
	})
	fn(store)
	unsubscribe()

	if changed {
		if err := s.repo.SaveCart(ctx, &models.Cart{SessionID: sessionID, Lines: store.Lines()}); err != nil {
			s.logger.Error("Failed to save cart", zap.String("session_id", sessionID), zap.Error(err))
			return nil, NewPersistenceError("Failed to save cart, please try again", err)
		}
	}
	return s.view(store), nil
}

func (s *cartServiceImpl) view(store *cart.Store) *models.CartView {
	snap := store.Snapshot()
	lines := snap.Lines
	if lines == nil {
		lines = []models.CartLine{}
	}
	return &models.CartView{Lines: lines, Totals: snap.Totals, Currency: s.currency}
}
