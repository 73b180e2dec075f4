package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// CartService defines the interface for cart business logic. The cart is a
// staging area only: stock checks here are advisory and no inventory is
// reserved until checkout.
type CartService interface {
	View(ctx context.Context, userID uuid.UUID) (*domain.CartView, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*domain.CartView, error)
	UpdateItem(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*domain.CartView, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*domain.CartView, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

type cartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
}

// NewCartService creates a new instance of CartService
func NewCartService(cartRepo repository.CartRepository, productRepo repository.ProductRepository) CartService {
	return &cartService{
		cartRepo:    cartRepo,
		productRepo: productRepo,
	}
}

// View returns the user's cart with line totals computed from current product
// prices
func (s *cartService) View(ctx context.Context, userID uuid.UUID) (*domain.CartView, error) {
	lines, err := s.cartRepo.ListLines(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	return buildCartView(lines), nil
}

// AddItem adds quantity of a product to the cart, merging with an existing
// line for the same product. The prospective total quantity is validated
// against current stock; on failure the cart is left unchanged.
func (s *cartService) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*domain.CartView, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		if err == repository.ErrProductNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load product: %w", err)
	}

	// Prospective quantity includes whatever is already in the cart for this
	// product.
	inCart := 0
	existing, err := s.cartRepo.FindItemByProduct(ctx, userID, productID)
	if err != nil && err != repository.ErrCartItemNotFound {
		return nil, fmt.Errorf("failed to check existing cart line: %w", err)
	}
	if existing != nil {
		inCart = existing.Quantity
	}

	if inCart+quantity > product.Stock {
		return nil, &repository.InsufficientStockError{
			ProductID: productID,
			Requested: inCart + quantity,
			Available: product.Stock,
		}
	}

	now := time.Now()
	item := &domain.CartItem{
		ID:        uuid.New(),
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.cartRepo.Upsert(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to add cart item: %w", err)
	}

	return s.View(ctx, userID)
}

// UpdateItem sets the quantity of an existing cart line after re-validating
// against current stock
func (s *cartService) UpdateItem(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*domain.CartView, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	item, err := s.cartRepo.FindItem(ctx, itemID, userID)
	if err != nil {
		if err == repository.ErrCartItemNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to find cart item: %w", err)
	}

	product, err := s.productRepo.FindByID(ctx, item.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}

	if quantity > product.Stock {
		return nil, &repository.InsufficientStockError{
			ProductID: product.ID,
			Requested: quantity,
			Available: product.Stock,
		}
	}

	if err := s.cartRepo.UpdateQuantity(ctx, itemID, userID, quantity); err != nil {
		return nil, fmt.Errorf("failed to update cart item: %w", err)
	}

	return s.View(ctx, userID)
}

// RemoveItem deletes a cart line
func (s *cartService) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*domain.CartView, error) {
	if err := s.cartRepo.Delete(ctx, itemID, userID); err != nil {
		if err == repository.ErrCartItemNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to remove cart item: %w", err)
	}

	return s.View(ctx, userID)
}

// Clear empties the cart; clearing an empty cart is a no-op
func (s *cartService) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := s.cartRepo.Clear(ctx, userID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

func buildCartView(lines []domain.CartLine) *domain.CartView {
	view := &domain.CartView{Lines: lines}
	for _, line := range lines {
		view.Total += line.LineTotal
	}
	return view
}
