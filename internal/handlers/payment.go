package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/avc/membership-platform/internal/domain"
	"go.uber.org/zap"
)

// максимальный размер платежного коллбэка
const maxNotifyBody = 64 << 10

// NotifyService обрабатывает платежные уведомления
type NotifyService interface {
	HandleNotify(ctx context.Context, payload []byte) domain.AckStatus
}

type PaymentHandler struct {
	notifyService NotifyService
	logger        *zap.Logger
}

func NewPaymentHandler(notifyService NotifyService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		notifyService: notifyService,
		logger:        logger,
	}
}

type ackResponse struct {
	Code    domain.AckStatus `json:"code"`
	Message string           `json:"message"`
}

// Notify принимает платежный коллбэк от провайдера.
// Ответ всегда 200 с телом SUCCESS/FAIL: провайдер различает исходы по коду
// в теле, а не по HTTP статусу.
func (h *PaymentHandler) Notify(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxNotifyBody))
	if err != nil {
		h.writeAck(w, domain.AckFail, "failed to read payload")
		return
	}

	ack := h.notifyService.HandleNotify(r.Context(), payload)
	if ack == domain.AckSuccess {
		h.writeAck(w, domain.AckSuccess, "OK")
		return
	}

	h.writeAck(w, domain.AckFail, "notification rejected")
}

func (h *PaymentHandler) writeAck(w http.ResponseWriter, code domain.AckStatus, message string) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ackResponse{Code: code, Message: message}); err != nil {
		h.logger.Error("failed to encode ack response", zap.Error(err))
	}
}
