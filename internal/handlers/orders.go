package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/avc/membership-platform/internal/domain"
	"github.com/avc/membership-platform/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// OrderService определяет операции с заказами
type OrderService interface {
	CreateOrder(ctx context.Context, buyerID, merchantID int64, items []domain.OrderItem) (*domain.Order, error)
	GetOrder(ctx context.Context, number string) (*domain.Order, error)
	OrdersByBuyer(ctx context.Context, buyerID int64) ([]*domain.Order, error)
}

// RefundService определяет операции возврата
type RefundService interface {
	ApplyRefund(ctx context.Context, orderNumber string) error
	ReverseOnRefund(ctx context.Context, orderNumber string) error
}

type OrdersHandler struct {
	orderService  OrderService
	refundService RefundService
	logger        *zap.Logger
}

func NewOrdersHandler(orderService OrderService, refundService RefundService, logger *zap.Logger) *OrdersHandler {
	return &OrdersHandler{
		orderService:  orderService,
		refundService: refundService,
		logger:        logger,
	}
}

type createOrderRequest struct {
	MerchantID int64              `json:"merchant_id"`
	Items      []domain.OrderItem `json:"items"`
}

// CreateOrder создает заказ текущего пользователя
func (h *OrdersHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	order, err := h.orderService.CreateOrder(r.Context(), userID, req.MerchantID, req.Items)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		h.logger.Error("failed to create order", zap.Error(err), zap.Int64("user_id", userID))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(order); err != nil {
		h.logger.Error("failed to encode order response", zap.Error(err))
	}
}

// GetOrders возвращает заказы текущего пользователя
func (h *OrdersHandler) GetOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	orders, err := h.orderService.OrdersByBuyer(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to get orders", zap.Error(err), zap.Int64("user_id", userID))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(orders); err != nil {
		h.logger.Error("failed to encode orders response", zap.Error(err))
	}
}

// GetOrder возвращает один заказ текущего пользователя
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	number := chi.URLParam(r, "number")
	order, err := h.orderService.GetOrder(r.Context(), number)
	if err != nil {
		if errors.Is(err, service.ErrInvalidOrderNumber) {
			http.Error(w, "Unprocessable Entity", http.StatusUnprocessableEntity)
			return
		}
		if errors.Is(err, service.ErrOrderNotFound) {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to get order", zap.Error(err), zap.String("order", number))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	// Чужие заказы не показываем
	if order.BuyerID != userID {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(order); err != nil {
		h.logger.Error("failed to encode order response", zap.Error(err))
	}
}

// ApplyRefund подает заявку на возврат рассчитанного заказа
func (h *OrdersHandler) ApplyRefund(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	number := chi.URLParam(r, "number")
	order, err := h.orderService.GetOrder(r.Context(), number)
	if err != nil {
		if errors.Is(err, service.ErrInvalidOrderNumber) || errors.Is(err, service.ErrOrderNotFound) {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to get order for refund", zap.Error(err), zap.String("order", number))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if order.BuyerID != userID {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	if err := h.refundService.ApplyRefund(r.Context(), number); err != nil {
		if errors.Is(err, service.ErrOrderStateConflict) {
			http.Error(w, "Conflict", http.StatusConflict)
			return
		}
		h.logger.Error("failed to apply refund", zap.Error(err), zap.String("order", number))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
