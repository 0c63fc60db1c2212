package errors

import (
	stderrors "errors"
	"fmt"
)

// Error codes
const (
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeInternal            = "INTERNAL_ERROR"
	ErrCodeBadRequest          = "BAD_REQUEST"
	ErrCodeInvalidState        = "INVALID_STATE"
	ErrCodeInsufficientCredits = "INSUFFICIENT_CREDITS"
	ErrCodeRateLimited         = "RATE_LIMITED"
	ErrCodeNoContent           = "NO_CONTENT_AVAILABLE"
	ErrCodeEvaluationFailed    = "EVALUATION_FAILED"
	ErrCodeGenerationFailed    = "GENERATION_FAILED"
	ErrCodeBusy                = "BUSY"
)

// AppError represents an application error with HTTP status code and error code
type AppError struct {
	Code    string // Error code (e.g., "NOT_FOUND", "INVALID_STATE")
	Message string // Human-readable error message
	Status  int    // HTTP status code
	Err     error  // Wrapped underlying error (optional)
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for error wrapping support
func (e *AppError) Unwrap() error {
	return e.Err
}

// As extracts the first *AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err's chain contains an AppError with the given code.
func HasCode(err error, code string) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// NewNotFoundError creates a new NOT_FOUND error
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found: %v", resource, id),
		Status:  404,
	}
}

// NewValidationError creates a new VALIDATION_ERROR
func NewValidationError(field string, reason string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: fmt.Sprintf("validation failed for %s: %s", field, reason),
		Status:  400,
	}
}

// NewInternalError creates a new INTERNAL_ERROR
func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: "internal server error",
		Status:  500,
		Err:     err,
	}
}

// NewBadRequestError creates a new BAD_REQUEST error
func NewBadRequestError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeBadRequest,
		Message: message,
		Status:  400,
	}
}

// NewInvalidStateError reports an operation against a session or run that is
// not in the status the operation requires.
func NewInvalidStateError(resource string, id interface{}, reason string) *AppError {
	return &AppError{
		Code:    ErrCodeInvalidState,
		Message: fmt.Sprintf("%s %v: %s", resource, id, reason),
		Status:  409,
	}
}

// NewInsufficientCreditsError is returned when a skip is attempted with no credits left.
func NewInsufficientCreditsError(sessionID int64) *AppError {
	return &AppError{
		Code:    ErrCodeInsufficientCredits,
		Message: fmt.Sprintf("session %d has no skip credits remaining", sessionID),
		Status:  402,
	}
}

// NewRateLimitedError is returned when content generation is denied for a user.
func NewRateLimitedError(userID int64) *AppError {
	return &AppError{
		Code:    ErrCodeRateLimited,
		Message: fmt.Sprintf("generation limit reached for user %d", userID),
		Status:  429,
	}
}

// NewNoContentError is fatal: neither the generator nor the static pool produced text.
func NewNoContentError(difficulty int) *AppError {
	return &AppError{
		Code:    ErrCodeNoContent,
		Message: fmt.Sprintf("no paragraph available for difficulty %d", difficulty),
		Status:  503,
	}
}

// NewEvaluationFailedError wraps an evaluator failure.
func NewEvaluationFailedError(err error) *AppError {
	return &AppError{
		Code:    ErrCodeEvaluationFailed,
		Message: "translation evaluation failed",
		Status:  502,
		Err:     err,
	}
}

// NewGenerationFailedError wraps a generator failure.
func NewGenerationFailedError(err error) *AppError {
	return &AppError{
		Code:    ErrCodeGenerationFailed,
		Message: "paragraph generation failed",
		Status:  502,
		Err:     err,
	}
}

// NewBusyError reports that background capacity is exhausted.
func NewBusyError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeBusy,
		Message: message,
		Status:  503,
	}
}
