package ordersapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/BearBump/FabOrders/internal/models"
	"github.com/BearBump/FabOrders/internal/services/barcode"
	"github.com/BearBump/FabOrders/internal/services/notifications"
)

type errorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

// ErrUnknownStatus матчится и как ErrInvalidTransition, поэтому проверяется раньше.
func classify(err error) (status int, code string) {
	switch {
	case errors.Is(err, models.ErrNotFound),
		errors.Is(err, models.ErrUserNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, models.ErrUnknownStatus):
		return http.StatusConflict, "unknown_status"
	case errors.Is(err, models.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, models.ErrStatusConflict):
		return http.StatusConflict, "status_conflict"
	case errors.Is(err, models.ErrEmptySignature):
		return http.StatusBadRequest, "empty_signature"
	case errors.Is(err, models.ErrInvalidDimension):
		return http.StatusBadRequest, "invalid_dimension"
	case errors.Is(err, models.ErrInvalidActor):
		return http.StatusBadRequest, "invalid_actor"
	case errors.Is(err, notifications.ErrUnknownChannel):
		return http.StatusBadRequest, "unknown_channel"
	case errors.Is(err, models.ErrTemplateNotFound):
		return http.StatusUnprocessableEntity, "template_not_found"
	case errors.Is(err, barcode.ErrBarcodeExhausted):
		return http.StatusServiceUnavailable, "barcode_exhausted"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (a *OrdersAPI) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		a.log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		msg = http.StatusText(status)
	}
	writeError(w, r, status, code, msg)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     code,
		Message:   msg,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
