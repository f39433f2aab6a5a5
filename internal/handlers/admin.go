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

// AdminService определяет привилегированные операции над аккаунтами
type AdminService interface {
	SetStarLevel(ctx context.Context, actor domain.Principal, targetID int64, level int, reason string) error
	SetUnilevelTier(ctx context.Context, actor domain.Principal, targetID int64, tier int, reason string) error
	Freeze(ctx context.Context, actor domain.Principal, targetID int64, reason string) error
	Unfreeze(ctx context.Context, actor domain.Principal, targetID int64, reason string) error
	Delete(ctx context.Context, actor domain.Principal, targetID int64, reason string) error
	AuditTrail(ctx context.Context, actor domain.Principal, targetID int64, limit, offset int) ([]*domain.AuditRecord, error)
}

// DirectorService проверяет условия звания почетного директора
type DirectorService interface {
	CheckHonorDirector(ctx context.Context, userID int64) (bool, error)
}

// DistributionService раздает накопленные фонды участникам
type DistributionService interface {
	DistributeSubsidy(ctx context.Context, actor domain.Principal, period string, total decimal.Decimal) (*service.DistributionResult, error)
	DistributeDividend(ctx context.Context, actor domain.Principal, period string, total decimal.Decimal) (*service.DistributionResult, error)
}

type AdminHandler struct {
	adminService        AdminService
	refundService       RefundService
	directorService     DirectorService
	distributionService DistributionService
	logger              *zap.Logger
}

func NewAdminHandler(adminService AdminService, refundService RefundService, directorService DirectorService, distributionService DistributionService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		adminService:        adminService,
		refundService:       refundService,
		directorService:     directorService,
		distributionService: distributionService,
		logger:              logger,
	}
}

type setLevelRequest struct {
	Level  int    `json:"level"`
	Reason string `json:"reason"`
}

type statusRequest struct {
	Reason string `json:"reason"`
}

// SetStarLevel выставляет звездный уровень аккаунта
func (h *AdminHandler) SetStarLevel(w http.ResponseWriter, r *http.Request) {
	actor, targetID, ok := h.adminRequest(w, r)
	if !ok {
		return
	}

	var req setLevelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	err := h.adminService.SetStarLevel(r.Context(), actor, targetID, req.Level, req.Reason)
	h.finish(w, err, "failed to set star level", targetID)
}

// SetUnilevelTier выставляет партнерский уровень аккаунта
func (h *AdminHandler) SetUnilevelTier(w http.ResponseWriter, r *http.Request) {
	actor, targetID, ok := h.adminRequest(w, r)
	if !ok {
		return
	}

	var req setLevelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	err := h.adminService.SetUnilevelTier(r.Context(), actor, targetID, req.Level, req.Reason)
	h.finish(w, err, "failed to set unilevel tier", targetID)
}

// Freeze замораживает аккаунт
func (h *AdminHandler) Freeze(w http.ResponseWriter, r *http.Request) {
	actor, targetID, ok := h.adminRequest(w, r)
	if !ok {
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	err := h.adminService.Freeze(r.Context(), actor, targetID, req.Reason)
	h.finish(w, err, "failed to freeze account", targetID)
}

// Unfreeze размораживает аккаунт
func (h *AdminHandler) Unfreeze(w http.ResponseWriter, r *http.Request) {
	actor, targetID, ok := h.adminRequest(w, r)
	if !ok {
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	err := h.adminService.Unfreeze(r.Context(), actor, targetID, req.Reason)
	h.finish(w, err, "failed to unfreeze account", targetID)
}

// Delete помечает аккаунт удаленным
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, targetID, ok := h.adminRequest(w, r)
	if !ok {
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	err := h.adminService.Delete(r.Context(), actor, targetID, req.Reason)
	h.finish(w, err, "failed to delete account", targetID)
}

// GetAuditTrail возвращает журнал операций по аккаунту
func (h *AdminHandler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	actor, targetID, ok := h.adminRequest(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	records, err := h.adminService.AuditTrail(r.Context(), actor, targetID, limit, offset)
	if err != nil {
		if errors.Is(err, service.ErrForbidden) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		h.logger.Error("failed to get audit trail", zap.Error(err), zap.Int64("target_id", targetID))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if len(records) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(records); err != nil {
		h.logger.Error("failed to encode audit trail response", zap.Error(err))
	}
}

// CompleteRefund проводит обратный расчет по заявке на возврат
func (h *AdminHandler) CompleteRefund(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")

	err := h.refundService.ReverseOnRefund(r.Context(), number)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		if errors.Is(err, service.ErrOrderStateConflict) {
			http.Error(w, "Conflict", http.StatusConflict)
			return
		}
		h.logger.Error("failed to complete refund", zap.Error(err), zap.String("order", number))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

type directorCheckResponse struct {
	Promoted bool `json:"promoted"`
}

// CheckHonorDirector проверяет и присваивает звание почетного директора
func (h *AdminHandler) CheckHonorDirector(w http.ResponseWriter, r *http.Request) {
	_, targetID, ok := h.adminRequest(w, r)
	if !ok {
		return
	}

	promoted, err := h.directorService.CheckHonorDirector(r.Context(), targetID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to check honor director", zap.Error(err), zap.Int64("target_id", targetID))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(directorCheckResponse{Promoted: promoted}); err != nil {
		h.logger.Error("failed to encode director check response", zap.Error(err))
	}
}

type distributionRequest struct {
	Period string          `json:"period"`
	Total  decimal.Decimal `json:"total"`
}

// DistributeSubsidy раздает субсидию периода из фонда subsidy_pool
func (h *AdminHandler) DistributeSubsidy(w http.ResponseWriter, r *http.Request) {
	h.distribute(w, r, h.distributionService.DistributeSubsidy, "failed to distribute subsidy")
}

// DistributeDividend раздает дивиденд периода почетным директорам
func (h *AdminHandler) DistributeDividend(w http.ResponseWriter, r *http.Request) {
	h.distribute(w, r, h.distributionService.DistributeDividend, "failed to distribute dividend")
}

func (h *AdminHandler) distribute(
	w http.ResponseWriter,
	r *http.Request,
	op func(context.Context, domain.Principal, string, decimal.Decimal) (*service.DistributionResult, error),
	logMessage string,
) {
	actor, ok := GetPrincipal(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req distributionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	result, err := op(r.Context(), actor, req.Period, req.Total)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrForbidden):
			http.Error(w, "Forbidden", http.StatusForbidden)
		case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrInvalidAmount):
			http.Error(w, "Bad Request", http.StatusBadRequest)
		case errors.Is(err, service.ErrNoRecipients):
			http.Error(w, "Unprocessable Entity", http.StatusUnprocessableEntity)
		case errors.Is(err, service.ErrInsufficientPool):
			http.Error(w, "Conflict", http.StatusConflict)
		default:
			h.logger.Error(logMessage, zap.Error(err), zap.String("period", req.Period))
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		h.logger.Error("failed to encode distribution response", zap.Error(err))
	}
}

// adminRequest извлекает субъект и ID целевого аккаунта из запроса
func (h *AdminHandler) adminRequest(w http.ResponseWriter, r *http.Request) (domain.Principal, int64, bool) {
	actor, ok := GetPrincipal(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return domain.Principal{}, 0, false
	}

	targetID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return domain.Principal{}, 0, false
	}

	return actor, targetID, true
}

// finish переводит ошибки администрирования в HTTP статусы
func (h *AdminHandler) finish(w http.ResponseWriter, err error, logMessage string, targetID int64) {
	if err == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	if errors.Is(err, service.ErrForbidden) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	if errors.Is(err, domain.ErrAccountNotFound) {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	if errors.Is(err, domain.ErrAccountDeleted) {
		http.Error(w, "Conflict", http.StatusConflict)
		return
	}
	if errors.Is(err, service.ErrInvalidInput) {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	h.logger.Error(logMessage, zap.Error(err), zap.Int64("target_id", targetID))
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}
