package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/avc/membership-platform/internal/domain"
	"go.uber.org/zap"
)

// PromotionService определяет операции повышения партнерского уровня
type PromotionService interface {
	EvaluateUnilevel(ctx context.Context, userID int64, targetTier int) error
	PromoteUnilevel(ctx context.Context, userID int64, targetTier int) error
}

type PromotionHandler struct {
	promotionService PromotionService
	logger           *zap.Logger
}

func NewPromotionHandler(promotionService PromotionService, logger *zap.Logger) *PromotionHandler {
	return &PromotionHandler{
		promotionService: promotionService,
		logger:           logger,
	}
}

type promotionRequest struct {
	Tier int `json:"tier"`
}

type evaluationResponse struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
}

// Evaluate проверяет право текущего пользователя на партнерский уровень
func (h *PromotionHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req promotionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	resp := evaluationResponse{Eligible: true}

	err := h.promotionService.EvaluateUnilevel(r.Context(), userID, req.Tier)
	if err != nil {
		var ineligible *domain.PromotionIneligibleError
		if errors.As(err, &ineligible) {
			resp = evaluationResponse{Eligible: false, Reason: ineligible.Reason}
		} else {
			h.logger.Error("failed to evaluate promotion", zap.Error(err), zap.Int64("user_id", userID))
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode evaluation response", zap.Error(err))
	}
}

// Promote повышает партнерский уровень текущего пользователя
func (h *PromotionHandler) Promote(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req promotionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	err := h.promotionService.PromoteUnilevel(r.Context(), userID, req.Tier)
	if err != nil {
		var ineligible *domain.PromotionIneligibleError
		if errors.As(err, &ineligible) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnprocessableEntity)
			if encErr := json.NewEncoder(w).Encode(evaluationResponse{Eligible: false, Reason: ineligible.Reason}); encErr != nil {
				h.logger.Error("failed to encode promotion response", zap.Error(encErr))
			}
			return
		}
		if errors.Is(err, domain.ErrTierNotAbove) {
			http.Error(w, "Conflict", http.StatusConflict)
			return
		}
		h.logger.Error("failed to promote", zap.Error(err), zap.Int64("user_id", userID))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
