package errors

import (
	stderrors "errors"
	"fmt"
)

type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationError struct {
	Message string
	Details []ValidationDetail
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(message string, details ...ValidationDetail) *ValidationError {
	return &ValidationError{
		Message: message,
		Details: details,
	}
}

func IsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if stderrors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

func NewNotFoundError(message string) *NotFoundError {
	return &NotFoundError{Message: message}
}

func IsNotFoundError(err error) (*NotFoundError, bool) {
	var nf *NotFoundError
	if stderrors.As(err, &nf) {
		return nf, true
	}
	return nil, false
}

// ConflictError signals an optimistic concurrency failure. Callers should
// reload the entity and retry.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

func NewConflictError(message string) *ConflictError {
	return &ConflictError{Message: message}
}

func IsConflictError(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if stderrors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

type InvalidTransitionError struct {
	From    string
	To      string
	Message string
}

func (e *InvalidTransitionError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

func NewInvalidTransitionError(from, to string) *InvalidTransitionError {
	return &InvalidTransitionError{From: from, To: to}
}

// NewNotCancellableError reports a cancellation attempt on an order whose
// status no longer allows it.
func NewNotCancellableError(status string) *InvalidTransitionError {
	return &InvalidTransitionError{
		From:    status,
		To:      "cancelled",
		Message: fmt.Sprintf("Cannot cancel order with status: %s", status),
	}
}

func IsInvalidTransitionError(err error) (*InvalidTransitionError, bool) {
	var ite *InvalidTransitionError
	if stderrors.As(err, &ite) {
		return ite, true
	}
	return nil, false
}

type CouponReason string

const (
	CouponInvalid       CouponReason = "INVALID"
	CouponInactive      CouponReason = "INACTIVE"
	CouponNotYetValid   CouponReason = "NOT_YET_VALID"
	CouponExpired       CouponReason = "EXPIRED"
	CouponMinOrderValue CouponReason = "MIN_ORDER_VALUE"
	CouponUsageLimit    CouponReason = "USAGE_LIMIT"
)

// CouponError carries a user-facing message naming the violated constraint.
type CouponError struct {
	Reason  CouponReason
	Message string
}

func (e *CouponError) Error() string {
	return e.Message
}

func NewCouponError(reason CouponReason, message string) *CouponError {
	return &CouponError{Reason: reason, Message: message}
}

func IsCouponError(err error) (*CouponError, bool) {
	var ce *CouponError
	if stderrors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

type InvalidPincodeError struct {
	Pincode string
}

func (e *InvalidPincodeError) Error() string {
	return fmt.Sprintf("invalid pincode %q: must be exactly 6 digits", e.Pincode)
}

func NewInvalidPincodeError(pincode string) *InvalidPincodeError {
	return &InvalidPincodeError{Pincode: pincode}
}

func IsInvalidPincodeError(err error) (*InvalidPincodeError, bool) {
	var pe *InvalidPincodeError
	if stderrors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

type DeadlockError struct {
	Message string
}

func (e *DeadlockError) Error() string {
	return e.Message
}

func NewDeadlockError(message string) *DeadlockError {
	return &DeadlockError{Message: message}
}

func IsDeadlockError(err error) (*DeadlockError, bool) {
	var de *DeadlockError
	if stderrors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// NotificationDeliveryError is recorded on the notification log and in logs.
// It never reaches the caller of the operation that triggered the notification.
type NotificationDeliveryError struct {
	Recipient string
	Attempts  int
	Cause     error
}

func (e *NotificationDeliveryError) Error() string {
	return fmt.Sprintf("notification to %s failed after %d attempts: %v", e.Recipient, e.Attempts, e.Cause)
}

func (e *NotificationDeliveryError) Unwrap() error {
	return e.Cause
}

func NewNotificationDeliveryError(recipient string, attempts int, cause error) *NotificationDeliveryError {
	return &NotificationDeliveryError{Recipient: recipient, Attempts: attempts, Cause: cause}
}

type InternalError struct {
	Message string
	Cause   error
}

func (e *InternalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *InternalError) Unwrap() error {
	return e.Cause
}

func NewInternalError(message string, cause error) *InternalError {
	return &InternalError{
		Message: message,
		Cause:   cause,
	}
}

func IsInternalError(err error) (*InternalError, bool) {
	var ie *InternalError
	if stderrors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}
