package commons

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	apperrors "storefront/internal/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UserHeader carries the caller identity resolved by the upstream auth proxy.
const UserHeader = "X-User-ID"

type ErrorResponse struct {
	TraceID   string                       `json:"traceId"`
	Status    int                          `json:"status"`
	Code      string                       `json:"code"`
	Message   string                       `json:"message"`
	Details   []apperrors.ValidationDetail `json:"details,omitempty"`
	Timestamp time.Time                    `json:"timestamp"`
}

func NewTraceID() string {
	return uuid.New().String()
}

func UserID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(UserHeader))
}

func WriteJSON(w http.ResponseWriter, status int, data interface{}, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}

// DecodeJSON decodes the request body into dst, writing a 400 response and
// returning false when the body is not valid JSON.
func DecodeJSON(w http.ResponseWriter, r *http.Request, traceID string, dst interface{}, logger *zap.Logger) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		logger.Warn("invalid JSON body", zap.String("traceId", traceID), zap.Error(err))
		WriteError(w, traceID, apperrors.NewValidationError("invalid JSON body", apperrors.ValidationDetail{
			Field:   "body",
			Message: "request body must be valid JSON",
		}), logger)
		return false
	}
	return true
}

// WriteError maps an application error to its HTTP status and writes it.
// Unknown errors are logged and reported with a generic message.
func WriteError(w http.ResponseWriter, traceID string, err error, logger *zap.Logger) {
	resp := ErrorResponse{TraceID: traceID, Message: err.Error(), Timestamp: time.Now().UTC()}

	if ve, ok := apperrors.IsValidationError(err); ok {
		resp.Status, resp.Code, resp.Details = http.StatusBadRequest, "VALIDATION_ERROR", ve.Details
	} else if ce, ok := apperrors.IsCouponError(err); ok {
		resp.Status, resp.Code = http.StatusBadRequest, "COUPON_"+string(ce.Reason)
	} else if _, ok := apperrors.IsInvalidPincodeError(err); ok {
		resp.Status, resp.Code = http.StatusBadRequest, "INVALID_PINCODE"
	} else if _, ok := apperrors.IsNotFoundError(err); ok {
		resp.Status, resp.Code = http.StatusNotFound, "NOT_FOUND"
	} else if _, ok := apperrors.IsConflictError(err); ok {
		resp.Status, resp.Code = http.StatusConflict, "CONFLICT"
	} else if _, ok := apperrors.IsDeadlockError(err); ok {
		resp.Status, resp.Code = http.StatusConflict, "DEADLOCK"
	} else if _, ok := apperrors.IsInvalidTransitionError(err); ok {
		resp.Status, resp.Code = http.StatusUnprocessableEntity, "INVALID_STATUS_TRANSITION"
	} else {
		logger.Error("unexpected error", zap.String("traceId", traceID), zap.Error(err))
		resp.Status, resp.Code, resp.Message = http.StatusInternalServerError, "INTERNAL_ERROR", "an unexpected error occurred"
	}

	WriteJSON(w, resp.Status, resp, logger)
}
