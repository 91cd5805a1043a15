package errors

import (
	"net/http"

	"backoffice/internal/errors"
)

// AppError defines the interface for application-specific errors
type AppError interface {
	error
	HTTPCode() int     // HTTP status code
	ErrorCode() string // Business error code
	Message() string   // User-friendly error message
	Details() string   // Detailed error information (optional)
}

// BaseError is a basic error structure that implements the AppError interface
type BaseError struct {
	httpCode  int
	errorCode string
	message   string
	details   string
}

// NewBaseError creates a new base error
func NewBaseError(httpCode int, errorCode, message, details string) *BaseError {
	return &BaseError{
		httpCode:  httpCode,
		errorCode: errorCode,
		message:   message,
		details:   details,
	}
}

// Error implements the error interface
func (e *BaseError) Error() string {
	return e.message
}

// WrapMessage wraps the error with additional context message
func (e *BaseError) WrapMessage(message string) error {
	return errors.Wrap(e, message)
}

// Is matches any BaseError with the same business code, so copies made by
// WithDetails still satisfy errors.Is against the predefined value.
func (e *BaseError) Is(target error) bool {
	t, ok := target.(*BaseError)

	return ok && t.errorCode == e.errorCode
}

// HTTPCode returns the HTTP status code
func (e *BaseError) HTTPCode() int {
	return e.httpCode
}

// ErrorCode returns the business error code
func (e *BaseError) ErrorCode() string {
	return e.errorCode
}

// Message returns the user-friendly error message
func (e *BaseError) Message() string {
	return e.message
}

// Details returns detailed error information
func (e *BaseError) Details() string {
	return e.details
}

// WithDetails adds detailed error information
func (e *BaseError) WithDetails(details string) *BaseError {
	return &BaseError{
		httpCode:  e.httpCode,
		errorCode: e.errorCode,
		message:   e.message,
		details:   details,
	}
}

// Authentication failures. Every one of them renders as a generic 401 so the client
// cannot tell which check failed.
var (
	ErrInvalidCredentials = NewBaseError(
		http.StatusUnauthorized,
		"INVALID_CREDENTIALS",
		"Invalid email or password",
		"",
	)

	ErrUnauthorized = NewBaseError(
		http.StatusUnauthorized,
		"UNAUTHORIZED",
		"Authentication required",
		"",
	)

	ErrInvalidSession = NewBaseError(
		http.StatusUnauthorized,
		"INVALID_SESSION",
		"Session is invalid or has expired",
		"",
	)

	ErrInactiveOrMissingUser = NewBaseError(
		http.StatusUnauthorized,
		"INACTIVE_OR_MISSING_USER",
		"Account is unavailable",
		"",
	)
)

// Authorization failures.
var (
	ErrForbidden = NewBaseError(
		http.StatusForbidden,
		"FORBIDDEN",
		"You do not have permission to perform this action",
		"",
	)

	ErrSelfModification = NewBaseError(
		http.StatusForbidden,
		"SELF_MODIFICATION",
		"You cannot deactivate or delete your own account",
		"",
	)

	ErrSystemRoleImmutable = NewBaseError(
		http.StatusForbidden,
		"SYSTEM_ROLE_IMMUTABLE",
		"System roles cannot be modified",
		"",
	)
)

// Two-factor challenge failures. A code mismatch never reveals the remaining attempts.
var (
	ErrChallengeNotFound = NewBaseError(
		http.StatusBadRequest,
		"CHALLENGE_NOT_FOUND",
		"Invalid or expired verification request",
		"",
	)

	ErrChallengeExpired = NewBaseError(
		http.StatusBadRequest,
		"CHALLENGE_EXPIRED",
		"Verification code has expired",
		"",
	)

	ErrChallengeAlreadyUsed = NewBaseError(
		http.StatusBadRequest,
		"CHALLENGE_ALREADY_USED",
		"Verification request is no longer valid",
		"",
	)

	ErrCodeMismatch = NewBaseError(
		http.StatusBadRequest,
		"CODE_MISMATCH",
		"Invalid verification code",
		"",
	)

	ErrTwoFactorDisabled = NewBaseError(
		http.StatusBadRequest,
		"TWO_FACTOR_DISABLED",
		"Two-factor verification is not enabled",
		"",
	)
)

// Conflicts and missing resources.
var (
	ErrUserAlreadyExists = NewBaseError(
		http.StatusConflict,
		"DUPLICATE_EMAIL",
		"This email is already registered",
		"",
	)

	ErrUserNotFound = NewBaseError(
		http.StatusNotFound,
		"USER_NOT_FOUND",
		"User not found",
		"",
	)

	ErrRoleNotFound = NewBaseError(
		http.StatusBadRequest,
		"ROLE_NOT_FOUND",
		"One or more roles do not exist",
		"",
	)

	ErrSessionNotFound = NewBaseError(
		http.StatusNotFound,
		"SESSION_NOT_FOUND",
		"Session not found or already revoked",
		"",
	)

	ErrNoActiveSessions = NewBaseError(
		http.StatusNotFound,
		"NO_ACTIVE_SESSIONS",
		"No active sessions found",
		"",
	)

	ErrConflict = NewBaseError(
		http.StatusConflict,
		"CONFLICT",
		"Resource conflict",
		"",
	)

	ErrNotFound = NewBaseError(
		http.StatusNotFound,
		"NOT_FOUND",
		"Resource not found",
		"",
	)
)

// Request and infrastructure failures.
var (
	ErrValidationFailed = NewBaseError(
		http.StatusBadRequest,
		"VALIDATION_FAILED",
		"Input validation failed",
		"",
	)

	// ErrCurrentPasswordMismatch is a 400 so clients do not take it for an expired session.
	ErrCurrentPasswordMismatch = NewBaseError(
		http.StatusBadRequest,
		"INVALID_CURRENT_PASSWORD",
		"Current password is incorrect",
		"",
	)

	ErrSamePassword = NewBaseError(
		http.StatusBadRequest,
		"SAME_PASSWORD",
		"New password must differ from the current one",
		"",
	)

	ErrRateLimited = NewBaseError(
		http.StatusTooManyRequests,
		"RATE_LIMITED",
		"Too many requests, please try again later",
		"",
	)

	ErrPasswordHashFailed = NewBaseError(
		http.StatusInternalServerError,
		"PASSWORD_HASH_FAILED",
		"Password processing failed",
		"",
	)

	ErrTokenIssueFailed = NewBaseError(
		http.StatusInternalServerError,
		"TOKEN_ISSUE_FAILED",
		"Token issuance failed",
		"",
	)

	ErrTransactionFailed = NewBaseError(
		http.StatusInternalServerError,
		"TRANSACTION_FAILED",
		"Database transaction failed",
		"",
	)

	ErrInternalError = NewBaseError(
		http.StatusInternalServerError,
		"INTERNAL_ERROR",
		"Internal server error",
		"",
	)
)

// DatabaseExecuteError represents a database execution error, implementing the AppError interface
type DatabaseExecuteError struct {
	err     error
	details string
}

// NewDatabaseExecuteError creates a database-related error
func NewDatabaseExecuteError(err error, details string) AppError {
	return &DatabaseExecuteError{
		err:     err,
		details: details,
	}
}

// Error implements the error interface
func (e *DatabaseExecuteError) Error() string {
	return errors.Wrap(e.err, "database execution failed").Error()
}

// HTTPCode returns the HTTP status code
func (e *DatabaseExecuteError) HTTPCode() int {
	return http.StatusInternalServerError
}

// ErrorCode returns the business error code
func (e *DatabaseExecuteError) ErrorCode() string {
	return "DATABASE_EXECUTE_FAILED"
}

// Message returns the user-friendly error message
func (e *DatabaseExecuteError) Message() string {
	return "Database execution failed"
}

// Details returns detailed error information
func (e *DatabaseExecuteError) Details() string {
	return e.details
}

// Unwrap exposes the driver error, so timeouts remain detectable with errors.Is.
func (e *DatabaseExecuteError) Unwrap() error {
	return e.err
}

// IsAuthenticationFailure reports whether err renders as a 401.
func IsAuthenticationFailure(err error) bool {
	var appErr AppError
	if !errors.As(err, &appErr) {
		return false
	}

	return appErr.HTTPCode() == http.StatusUnauthorized
}
