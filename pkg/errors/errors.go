package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents different types of errors in the system
type ErrorType string

const (
	// ErrorTypeNotFound indicates a resource was not found
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeValidation indicates a validation error
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeConflict indicates a conflict with existing data
	ErrorTypeConflict ErrorType = "CONFLICT"

	// ErrorTypeUnauthorized indicates unauthorized access
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"

	// ErrorTypeInternal indicates an internal server error
	ErrorTypeInternal ErrorType = "INTERNAL"

	// ErrorTypeExternal indicates an error from external service
	ErrorTypeExternal ErrorType = "EXTERNAL"

	// ErrorTypeRetrievalEmpty means no candidates survived retrieval, even globally
	ErrorTypeRetrievalEmpty ErrorType = "RETRIEVAL_EMPTY"

	// ErrorTypeHydrationPartial means some candidates could not be live-priced
	ErrorTypeHydrationPartial ErrorType = "HYDRATION_PARTIAL"

	// ErrorTypeProviderUnavailable means every LLM provider failed
	ErrorTypeProviderUnavailable ErrorType = "PROVIDER_UNAVAILABLE"

	// ErrorTypeIndexUnsynced means the embedding index is empty or stale
	ErrorTypeIndexUnsynced ErrorType = "INDEX_UNSYNCED"

	// ErrorTypeSessionIntegrity means session state is unreadable or corrupted.
	// It is the only pipeline error surfaced to callers.
	ErrorTypeSessionIntegrity ErrorType = "SESSION_INTEGRITY"
)

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// NewConflictError creates a new conflict error
func NewConflictError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeConflict,
		Message: message,
	}
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeUnauthorized,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// NewExternalError creates a new external service error
func NewExternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeExternal,
		Message: message,
		Err:     err,
	}
}

// NewProviderUnavailableError wraps the last provider failure once all LLM routes are exhausted
func NewProviderUnavailableError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeProviderUnavailable,
		Message: message,
		Err:     err,
	}
}

// NewRetrievalEmptyError creates a retrieval empty error
func NewRetrievalEmptyError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeRetrievalEmpty,
		Message: message,
	}
}

// NewHydrationPartialError creates a hydration partial error
func NewHydrationPartialError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeHydrationPartial,
		Message: message,
	}
}

// NewIndexUnsyncedError creates an index unsynced error
func NewIndexUnsyncedError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeIndexUnsynced,
		Message: message,
	}
}

// NewSessionIntegrityError creates a session integrity error
func NewSessionIntegrityError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeSessionIntegrity,
		Message: message,
		Err:     err,
	}
}

// IsType reports whether any AppError in err's chain has the given type.
func IsType(err error, t ErrorType) bool {
	var appErr *AppError
	for err != nil {
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Type == t {
			return true
		}
		err = appErr.Err
	}
	return false
}

// IsNotFound reports whether err is a NOT_FOUND AppError.
func IsNotFound(err error) bool {
	return IsType(err, ErrorTypeNotFound)
}

// IsSessionIntegrity reports whether err is a SESSION_INTEGRITY AppError.
func IsSessionIntegrity(err error) bool {
	return IsType(err, ErrorTypeSessionIntegrity)
}
