// Package errors provides custom error types for the Tessera API.
// All service-layer errors should use AppError to ensure consistent,
// secure error responses that never leak internal details to clients.
// Callers branch on the Code field, so every failure mode gets its own
// sentinel rather than a generic failure signal.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authentication & authorization errors.
var (
	ErrUnauthorized = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrForbidden    = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// Asset & ledger errors.
var (
	ErrUnknownAsset        = &AppError{Code: "UNKNOWN_ASSET", Message: "Asset not found", StatusCode: http.StatusNotFound}
	ErrInvalidSupply       = &AppError{Code: "INVALID_SUPPLY", Message: "Total supply must be greater than zero", StatusCode: http.StatusBadRequest}
	ErrAssetInactive       = &AppError{Code: "ASSET_INACTIVE", Message: "Asset is no longer open for primary purchases", StatusCode: http.StatusConflict}
	ErrInsufficientBalance = &AppError{Code: "INSUFFICIENT_BALANCE", Message: "Insufficient token balance", StatusCode: http.StatusBadRequest}
	ErrLedgerBusy          = &AppError{Code: "LEDGER_BUSY", Message: "Asset ledger is busy, retry with backoff", StatusCode: http.StatusServiceUnavailable}

	// ErrLedgerHalted is returned for any mutation attempted on an asset
	// whose ledger has been halted by a prior conservation violation.
	ErrLedgerHalted = &AppError{Code: "LEDGER_HALTED", Message: "Asset ledger halted pending manual audit", StatusCode: http.StatusConflict}

	// ErrInternalConsistency reports a conservation-invariant violation at
	// the moment of detection. The affected asset is halted and the
	// violation surfaces for manual audit; it is never auto-repaired.
	ErrInternalConsistency = &AppError{Code: "INTERNAL_CONSISTENCY", Message: "Ledger conservation invariant violated", StatusCode: http.StatusInternalServerError}
)

// Investor & compliance errors.
var (
	ErrUnknownInvestor   = &AppError{Code: "UNKNOWN_INVESTOR", Message: "Investor not found", StatusCode: http.StatusNotFound}
	ErrDuplicateEmail    = &AppError{Code: "DUPLICATE_EMAIL", Message: "An investor with this email already exists", StatusCode: http.StatusConflict}
	ErrUnknownCheck      = &AppError{Code: "UNKNOWN_CHECK", Message: "Unrecognized compliance check name", StatusCode: http.StatusBadRequest}
	ErrComplianceBlocked = &AppError{Code: "COMPLIANCE_BLOCKED", Message: "Investor is not cleared to trade", StatusCode: http.StatusForbidden}
	ErrNotRejected       = &AppError{Code: "NOT_REJECTED", Message: "Only rejected investors can be reopened", StatusCode: http.StatusConflict}
	ErrNotSuspended      = &AppError{Code: "NOT_SUSPENDED", Message: "Only suspended investors can be reinstated", StatusCode: http.StatusConflict}
)

// Dividend errors.
var (
	ErrScheduleNotFound = &AppError{Code: "SCHEDULE_NOT_FOUND", Message: "No dividend schedule declared for this asset", StatusCode: http.StatusNotFound}
	ErrDuplicatePayout  = &AppError{Code: "DUPLICATE_PAYOUT", Message: "This payout reference has already been fully processed", StatusCode: http.StatusConflict}
)

// Price errors.
var (
	ErrNoPrice = &AppError{Code: "NO_PRICE", Message: "No market price recorded for this asset", StatusCode: http.StatusNotFound}
)
