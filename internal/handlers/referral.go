package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/avc/membership-platform/internal/domain"
	"github.com/avc/membership-platform/internal/service"
	"go.uber.org/zap"
)

// ReferralService определяет операции реферального графа
type ReferralService interface {
	Bind(ctx context.Context, userID, referrerID int64) error
	Referrer(ctx context.Context, userID int64) (*domain.ReferralEdge, error)
	Team(ctx context.Context, userID int64, maxLayer int) ([]*domain.TeamMember, error)
	TeamSize(ctx context.Context, userID int64, maxLayer int) (int, error)
}

type ReferralHandler struct {
	referralService ReferralService
	logger          *zap.Logger
}

func NewReferralHandler(referralService ReferralService, logger *zap.Logger) *ReferralHandler {
	return &ReferralHandler{
		referralService: referralService,
		logger:          logger,
	}
}

type bindRequest struct {
	ReferrerID int64 `json:"referrer_id"`
}

// Bind привязывает текущего пользователя к пригласившему
func (h *ReferralHandler) Bind(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req bindRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	err := h.referralService.Bind(r.Context(), userID, req.ReferrerID)
	if err != nil {
		if errors.Is(err, service.ErrAlreadyBound) {
			http.Error(w, "Conflict", http.StatusConflict)
			return
		}
		if errors.Is(err, service.ErrCyclicReferral) {
			http.Error(w, "Unprocessable Entity", http.StatusUnprocessableEntity)
			return
		}
		if errors.Is(err, service.ErrReferrerNotFound) {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		h.logger.Error("failed to bind referrer", zap.Error(err), zap.Int64("user_id", userID))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

type teamResponse struct {
	Size    int                  `json:"size"`
	Members []*domain.TeamMember `json:"members"`
}

// layersParam читает необязательный параметр глубины обхода.
// Ноль означает "до настроенного потолка", сервис сам ограничивает глубину.
func layersParam(r *http.Request) int {
	raw := r.URL.Query().Get("layers")
	if raw == "" {
		return 0
	}
	layers, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return layers
}

// GetTeam возвращает команду пользователя по слоям
func (h *ReferralHandler) GetTeam(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	members, err := h.referralService.Team(r.Context(), userID, layersParam(r))
	if err != nil {
		h.logger.Error("failed to get team", zap.Error(err), zap.Int64("user_id", userID))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	resp := teamResponse{Size: len(members), Members: members}
	if resp.Members == nil {
		resp.Members = []*domain.TeamMember{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode team response", zap.Error(err))
	}
}

type teamSizeResponse struct {
	Size int `json:"size"`
}

// GetTeamSize возвращает размер команды без загрузки ее состава
func (h *ReferralHandler) GetTeamSize(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	size, err := h.referralService.TeamSize(r.Context(), userID, layersParam(r))
	if err != nil {
		h.logger.Error("failed to get team size", zap.Error(err), zap.Int64("user_id", userID))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(teamSizeResponse{Size: size}); err != nil {
		h.logger.Error("failed to encode team size response", zap.Error(err))
	}
}

// GetReferrer возвращает пригласившего текущего пользователя
func (h *ReferralHandler) GetReferrer(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	edge, err := h.referralService.Referrer(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to get referrer", zap.Error(err), zap.Int64("user_id", userID))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if edge == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(edge); err != nil {
		h.logger.Error("failed to encode referrer response", zap.Error(err))
	}
}
