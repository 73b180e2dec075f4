package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvalidOrderState = errors.New("order cannot be cancelled in its current state")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrOrderAccessDenied = errors.New("order belongs to another user")
)

// OrderEventPublisher publishes order lifecycle events. Publishing is
// best-effort: failures are logged and never fail the request.
type OrderEventPublisher interface {
	Publish(ctx context.Context, eventType string, order *domain.Order) error
}

// OrderService defines the interface for checkout and order business logic.
// Caller identity and admin capability arrive as explicit parameters.
type OrderService interface {
	Checkout(ctx context.Context, userID uuid.UUID, shippingAddress string) (*domain.Order, error)
	GetOrder(ctx context.Context, callerID uuid.UUID, isAdmin bool, orderID uuid.UUID) (*domain.Order, error)
	ListOrders(ctx context.Context, callerID uuid.UUID, isAdmin bool, page, pageSize int) ([]*domain.Order, int, error)
	CancelOrder(ctx context.Context, callerID uuid.UUID, isAdmin bool, orderID uuid.UUID) (*domain.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus) (*domain.Order, error)
}

type orderService struct {
	store     repository.CheckoutStore
	orderRepo repository.OrderRepository
	publisher OrderEventPublisher
	logger    *zap.Logger
}

// NewOrderService creates a new instance of OrderService. publisher may be
// nil when order events are disabled.
func NewOrderService(
	store repository.CheckoutStore,
	orderRepo repository.OrderRepository,
	publisher OrderEventPublisher,
	logger *zap.Logger,
) OrderService {
	return &orderService{
		store:     store,
		orderRepo: orderRepo,
		publisher: publisher,
		logger:    logger,
	}
}

// Checkout converts the user's cart into an order as a single all-or-nothing
// transaction: re-validate stock against live inventory, snapshot prices into
// order lines, reserve stock, clear the cart. Any failure rolls everything
// back; the cart-time stock check was advisory only and this is the
// authoritative one.
func (s *orderService) Checkout(ctx context.Context, userID uuid.UUID, shippingAddress string) (*domain.Order, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start checkout: %w", err)
	}
	defer tx.Rollback()

	lines, err := tx.CartLines(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	// Early validation pass against the stock read in this transaction, so a
	// clearly unfillable cart fails before any writes happen.
	for _, line := range lines {
		if line.Quantity > line.Stock {
			return nil, &repository.InsufficientStockError{
				ProductID: line.ProductID,
				Requested: line.Quantity,
				Available: line.Stock,
			}
		}
	}

	now := time.Now()
	order := &domain.Order{
		ID:              uuid.New(),
		UserID:          userID,
		Status:          domain.OrderStatusPending,
		ShippingAddress: shippingAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	for _, line := range lines {
		order.Items = append(order.Items, domain.OrderItem{
			ID:        uuid.New(),
			OrderID:   order.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
		order.Total += line.UnitPrice * float64(line.Quantity)
	}

	if err := tx.InsertOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	// Authoritative reservation. A concurrent checkout may have depleted
	// stock since the read above; the conditional update catches that and the
	// whole transaction rolls back.
	for _, line := range lines {
		if err := tx.ReserveStock(ctx, line.ProductID, line.Quantity); err != nil {
			return nil, err
		}
	}

	if err := tx.ClearCart(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to clear cart: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, "order.created", order)

	return order, nil
}

// GetOrder retrieves a single order. Non-admin callers can only read their
// own orders.
func (s *orderService) GetOrder(ctx context.Context, callerID uuid.UUID, isAdmin bool, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		if err == repository.ErrOrderNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if order.UserID != callerID && !isAdmin {
		return nil, ErrOrderAccessDenied
	}

	return order, nil
}

// ListOrders lists the caller's orders; admins see every order
func (s *orderService) ListOrders(ctx context.Context, callerID uuid.UUID, isAdmin bool, page, pageSize int) ([]*domain.Order, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	if isAdmin {
		return s.orderRepo.ListAll(ctx, page, pageSize)
	}
	return s.orderRepo.ListByUser(ctx, callerID, page, pageSize)
}

// CancelOrder cancels a pending order and returns its reserved stock to
// inventory, all in one transaction. Orders past pending fail with
// ErrInvalidOrderState.
func (s *orderService) CancelOrder(ctx context.Context, callerID uuid.UUID, isAdmin bool, orderID uuid.UUID) (*domain.Order, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start cancellation: %w", err)
	}
	defer tx.Rollback()

	order, err := tx.OrderForUpdate(ctx, orderID)
	if err != nil {
		if err == repository.ErrOrderNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	if order.UserID != callerID && !isAdmin {
		return nil, ErrOrderAccessDenied
	}

	if order.Status != domain.OrderStatusPending {
		return nil, ErrInvalidOrderState
	}

	for _, item := range order.Items {
		if err := tx.ReleaseStock(ctx, item.ProductID, item.Quantity); err != nil {
			return nil, fmt.Errorf("failed to release stock: %w", err)
		}
	}

	if err := tx.UpdateOrderStatus(ctx, orderID, domain.OrderStatusCancelled); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	order.Status = domain.OrderStatusCancelled
	s.publishEvent(ctx, "order.cancelled", order)

	return order, nil
}

// UpdateStatus applies an admin-driven status transition, validated against
// the order status transition table. Cancelling via this path also releases
// reserved stock when the order has not shipped.
func (s *orderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	if !status.Valid() {
		return nil, ErrInvalidTransition
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start status update: %w", err)
	}
	defer tx.Rollback()

	order, err := tx.OrderForUpdate(ctx, orderID)
	if err != nil {
		if err == repository.ErrOrderNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	if !order.Status.CanTransitionTo(status) {
		return nil, ErrInvalidTransition
	}

	if status == domain.OrderStatusCancelled {
		for _, item := range order.Items {
			if err := tx.ReleaseStock(ctx, item.ProductID, item.Quantity); err != nil {
				return nil, fmt.Errorf("failed to release stock: %w", err)
			}
		}
	}

	if err := tx.UpdateOrderStatus(ctx, orderID, status); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	order.Status = status
	if status == domain.OrderStatusCancelled {
		s.publishEvent(ctx, "order.cancelled", order)
	}

	return order, nil
}

func (s *orderService) publishEvent(ctx context.Context, eventType string, order *domain.Order) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, eventType, order); err != nil {
		s.logger.Warn("Failed to publish order event",
			zap.String("event_type", eventType),
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}
}
