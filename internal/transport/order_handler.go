package transport

import (
	"errors"
	"net/http"
	"strconv"

	"storefront/internal/domain"
	"storefront/internal/metrics"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CheckoutRequest represents the checkout request payload
type CheckoutRequest struct {
	ShippingAddress string `json:"shipping_address" validate:"required,min=5"`
}

// UpdateStatusRequest represents the admin status update payload
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// OrderListResponse represents a paginated list of orders
type OrderListResponse struct {
	Orders []*domain.Order `json:"orders"`
	Total  int             `json:"total"`
	Page   int             `json:"page"`
}

// OrderHandler handles HTTP requests for checkout and orders
type OrderHandler struct {
	orderService service.OrderService
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

// NewOrderHandler creates a new OrderHandler. metrics may be nil in tests.
func NewOrderHandler(orderService service.OrderService, metrics *metrics.Metrics, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		metrics:      metrics,
		logger:       logger,
	}
}

// RegisterRoutes registers all order routes; every route requires auth and
// the status update additionally requires the admin role
func (h *OrderHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/", h.Checkout)
		r.Get("/", h.List)
		r.Get("/{orderID}", h.Get)
		r.Delete("/{orderID}", h.Cancel)

		r.Group(func(r chi.Router) {
			r.Use(adminMiddleware)
			r.Put("/{orderID}/status", h.UpdateStatus)
		})
	})
}

// Checkout handles converting the caller's cart into an order
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CheckoutRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.orderService.Checkout(r.Context(), userID, req.ShippingAddress)
	if err != nil {
		h.recordCheckout("failure")

		var stockErr *repository.InsufficientStockError
		switch {
		case errors.Is(err, service.ErrEmptyCart):
			middleware.RespondWithError(w, http.StatusBadRequest, "cart is empty")
		case errors.As(err, &stockErr):
			middleware.RespondWithErrorDetails(w, http.StatusBadRequest, "insufficient stock", map[string]interface{}{
				"product_id": stockErr.ProductID.String(),
				"requested":  stockErr.Requested,
				"available":  stockErr.Available,
			})
		default:
			h.logger.Error("Checkout failed", zap.String("user_id", userID.String()), zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to place order")
		}
		return
	}

	h.recordCheckout("success")
	h.logger.Info("Order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", userID.String()),
		zap.Float64("total", order.Total),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, order)
}

// List handles listing the caller's orders (all orders for admins)
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	orders, total, err := h.orderService.ListOrders(r.Context(), userID, isAdmin(r), page, pageSize)
	if err != nil {
		h.logger.Error("Failed to list orders", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, OrderListResponse{
		Orders: orders,
		Total:  total,
		Page:   page,
	})
}

// Get handles reading one order
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	order, err := h.orderService.GetOrder(r.Context(), userID, isAdmin(r), orderID)
	if err != nil {
		h.respondOrderError(w, err, "failed to get order")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, order)
}

// Cancel handles cancelling a pending order
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	order, err := h.orderService.CancelOrder(r.Context(), userID, isAdmin(r), orderID)
	if err != nil {
		h.respondOrderError(w, err, "failed to cancel order")
		return
	}

	h.logger.Info("Order cancelled",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", userID.String()),
	)
	middleware.RespondWithJSON(w, http.StatusOK, order)
}

// UpdateStatus handles an admin-driven order status transition
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	var req UpdateStatusRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.orderService.UpdateStatus(r.Context(), orderID, domain.OrderStatus(req.Status))
	if err != nil {
		h.respondOrderError(w, err, "failed to update order status")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) respondOrderError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, repository.ErrOrderNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, service.ErrOrderAccessDenied):
		middleware.RespondWithError(w, http.StatusForbidden, "access denied")
	case errors.Is(err, service.ErrInvalidOrderState):
		middleware.RespondWithError(w, http.StatusBadRequest, "only pending orders can be cancelled")
	case errors.Is(err, service.ErrInvalidTransition):
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid status transition")
	default:
		h.logger.Error("Order operation failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, fallback)
	}
}

func (h *OrderHandler) recordCheckout(outcome string) {
	if h.metrics != nil {
		h.metrics.CheckoutOutcomes.WithLabelValues(outcome).Inc()
	}
}

// isAdmin reports whether the authenticated caller has the admin role
func isAdmin(r *http.Request) bool {
	role, ok := middleware.GetUserRole(r.Context())
	return ok && role == "admin"
}
