package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeNotFound               = "NOT_FOUND"
	CodeValidation             = "VALIDATION_ERROR"
	CodeConflict               = "CONFLICT"
	CodeInternal               = "INTERNAL_ERROR"
	CodeTimeout                = "TIMEOUT"
	CodeUnavailable            = "SERVICE_UNAVAILABLE"
	CodeInvalidInput           = "INVALID_INPUT"
	CodeCapacityExceeded       = "CAPACITY_EXCEEDED"
	CodeLockExpired            = "LOCK_EXPIRED"
	CodeReservationExpired     = "RESERVATION_EXPIRED"
	CodeInvalidDateRange       = "INVALID_DATE_RANGE"
	CodeRuleConflict           = "RULE_CONFLICT"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodePolicyNotFound         = "POLICY_NOT_FOUND"
	CodeInvalidTransition      = "INVALID_STATE_TRANSITION"
	CodeRateLimited            = "RATE_LIMITED"
)

type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) StatusCode() int {
	return e.HTTPStatus
}

func (e *AppError) ToJSON() []byte {
	response := ErrorResponse{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
	data, _ := json.Marshal(response)
	return data
}

type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func New(code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

func Wrap(err error, code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func NotFoundWithID(resource, id string) *AppError {
	return NotFound(resource).WithDetails(map[string]any{
		"resource": resource,
		"id":       id,
	})
}

func Validation(message string, details map[string]any) *AppError {
	return New(CodeValidation, message, http.StatusUnprocessableEntity).WithDetails(details)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message, http.StatusBadRequest)
}

func Conflict(message string) *AppError {
	return New(CodeConflict, message, http.StatusConflict)
}

func Internal(message string, err error) *AppError {
	return Wrap(err, CodeInternal, message, http.StatusInternalServerError)
}

func Timeout(message string) *AppError {
	return New(CodeTimeout, message, http.StatusGatewayTimeout)
}

func Unavailable(service string) *AppError {
	return New(CodeUnavailable, fmt.Sprintf("%s is temporarily unavailable", service), http.StatusServiceUnavailable)
}

// CapacityExceeded is recoverable: the shopper can retry with other dates or a smaller quantity.
func CapacityExceeded(message string, details map[string]any) *AppError {
	return New(CodeCapacityExceeded, message, http.StatusConflict).WithDetails(details)
}

func LockExpired(lockID string) *AppError {
	return New(CodeLockExpired, "Availability hold has expired", http.StatusGone).WithDetails(map[string]any{
		"lock_id": lockID,
	})
}

func ReservationExpired(reservationID string) *AppError {
	return New(CodeReservationExpired, "Reservation has expired", http.StatusGone).WithDetails(map[string]any{
		"reservation_id": reservationID,
	})
}

func InvalidDateRange(message string) *AppError {
	return New(CodeInvalidDateRange, message, http.StatusBadRequest)
}

func RuleConflict(message string, details map[string]any) *AppError {
	return New(CodeRuleConflict, message, http.StatusConflict).WithDetails(details)
}

func ConcurrentModification(resource, id string) *AppError {
	return New(CodeConcurrentModification, fmt.Sprintf("%s was modified concurrently", resource), http.StatusConflict).WithDetails(map[string]any{
		"resource": resource,
		"id":       id,
	})
}

func PolicyNotFound(accommodationID string) *AppError {
	return New(CodePolicyNotFound, "No active refund policy", http.StatusNotFound).WithDetails(map[string]any{
		"accommodation_id": accommodationID,
	})
}

func InvalidTransition(resource, from, to string) *AppError {
	return New(CodeInvalidTransition, fmt.Sprintf("%s cannot move from %s to %s", resource, from, to), http.StatusConflict).WithDetails(map[string]any{
		"from": from,
		"to":   to,
	})
}

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("An unexpected error occurred", err)
}

// HasCode reports whether err is an AppError carrying code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
