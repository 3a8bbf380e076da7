package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Validation (VAL) ----

func ErrInvalidAmount() *AppError {
	return New("VAL_001", "Payout amount must be positive", http.StatusBadRequest)
}

func ErrUnknownMethod(method string) *AppError {
	return New("VAL_002", fmt.Sprintf("Unknown payout method: %s", method), http.StatusBadRequest)
}

func ErrBelowMethodMinimum(method string, minAmount int64) *AppError {
	return New("VAL_003", fmt.Sprintf("Minimum payout amount for %s is %d cents", method, minAmount), http.StatusBadRequest)
}

// Validation returns a VAL_000-style validation error with a custom message.
func Validation(message string) *AppError {
	return New("VAL_000", message, http.StatusBadRequest)
}

// ---- Balance Accounting (BAL) ----

func ErrInsufficientFunds() *AppError {
	return New("BAL_001", "Insufficient available balance", http.StatusPaymentRequired)
}

func ErrBalanceNotFound() *AppError {
	return New("BAL_002", "No balance record for user", http.StatusNotFound)
}

// ---- Payout Lifecycle (PAY) ----

// ErrPreconditionFailed reports a compare-and-swap miss: the request was
// not in the state the transition expected. No mutation occurred.
func ErrPreconditionFailed(detail string) *AppError {
	return New("PAY_001", fmt.Sprintf("Precondition failed: %s", detail), http.StatusConflict)
}

func ErrNotFound(entity string) *AppError {
	return New("PAY_002", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrRetryNotEligible(detail string) *AppError {
	return New("PAY_003", fmt.Sprintf("Retry not eligible: %s", detail), http.StatusUnprocessableEntity)
}

func ErrBatchActionUnknown(action string) *AppError {
	return New("PAY_004", fmt.Sprintf("Unknown batch action: %s", action), http.StatusBadRequest)
}

// ---- Processing & Dispatch (PROC / DSP) ----

// ErrProcessorFailure wraps a processor-side failure with its retryable
// classification; it is recorded on the request, not returned to users.
func ErrProcessorFailure(message string, retryable bool) *AppError {
	code := "PROC_001"
	if !retryable {
		code = "PROC_002"
	}
	return New(code, message, http.StatusBadGateway)
}

func ErrDispatchUnavailable(err error) *AppError {
	return Wrap("DSP_001", "Task dispatch unavailable", http.StatusServiceUnavailable, err)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrUsernameExists() *AppError {
	return New("AUTH_002", "Username already exists", http.StatusConflict)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrAdminSuspended() *AppError {
	return New("AUTH_004", "Admin account is suspended", http.StatusForbidden)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}
