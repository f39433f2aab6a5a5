package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/avc/membership-platform/internal/domain"
	"github.com/avc/membership-platform/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PointsService определяет методы чтения леджера и вывода средств
type PointsService interface {
	Balances(ctx context.Context, accountID int64) (map[domain.Channel]decimal.Decimal, error)
	History(ctx context.Context, accountID int64, channel domain.Channel, limit, offset int) ([]*domain.LedgerEntry, error)
	Debit(ctx context.Context, accountID int64, channel domain.Channel, amount decimal.Decimal, reason string, orderNumber, dedupKey *string) (decimal.Decimal, error)
}

type PointsHandler struct {
	pointsService PointsService
	logger        *zap.Logger
}

func NewPointsHandler(pointsService PointsService, logger *zap.Logger) *PointsHandler {
	return &PointsHandler{
		pointsService: pointsService,
		logger:        logger,
	}
}

// GetBalances возвращает балансы всех каналов аккаунта
func (h *PointsHandler) GetBalances(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	balances, err := h.pointsService.Balances(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to get balances", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(balances); err != nil {
		h.logger.Error("failed to encode balances response", zap.Error(err))
	}
}

// GetHistory возвращает записи канала от новых к старым
func (h *PointsHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	channel := domain.Channel(chi.URLParam(r, "channel"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	entries, err := h.pointsService.History(r.Context(), userID, channel, limit, offset)
	if err != nil {
		if errors.Is(err, service.ErrInvalidChannel) {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		h.logger.Error("failed to get points history", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if len(entries) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(entries); err != nil {
		h.logger.Error("failed to encode history response", zap.Error(err))
	}
}

type withdrawRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// Withdraw списывает сумму с выводимого денежного баланса
func (h *PointsHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	_, err := h.pointsService.Debit(r.Context(), userID, domain.ChannelBalance, req.Amount, "withdrawal", nil, nil)
	if err != nil {
		if errors.Is(err, service.ErrInvalidAmount) {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		if errors.Is(err, service.ErrInsufficientBalance) {
			http.Error(w, "Payment Required", http.StatusPaymentRequired)
			return
		}
		h.logger.Error("failed to withdraw", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
