package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Status  int                    `json:"status"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Generic errors.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid username or password")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrTooManyRequests    = New("RATE_LIMITED", http.StatusTooManyRequests, "too many requests")
)

// Admission rejections. These are expected, user-recoverable outcomes.
var (
	ErrSessionNotFound      = New("SESSION_NOT_FOUND", http.StatusNotFound, "attendance session not found")
	ErrSessionClosed        = New("SESSION_CLOSED", http.StatusForbidden, "attendance session has ended")
	ErrSessionAlreadyActive = New("SESSION_ALREADY_ACTIVE", http.StatusConflict, "another attendance session is still active")
	ErrCredentialInvalid    = New("CREDENTIAL_EXPIRED_OR_INVALID", http.StatusForbidden, "attendance code is invalid or has expired")
	ErrOutOfRange           = New("OUT_OF_RANGE", http.StatusForbidden, "you are not within the lecture venue radius")
	ErrInvalidInput         = New("INVALID_INPUT", http.StatusBadRequest, "invalid input")
	ErrDuplicateIDNumber    = New("DUPLICATE_ID_NUMBER", http.StatusConflict, "id number already recorded for this session")
	ErrDuplicateDevice      = New("DUPLICATE_DEVICE", http.StatusConflict, "this device has already submitted attendance for this session")
	ErrDuplicateName        = New("DUPLICATE_NAME", http.StatusConflict, "name already recorded for this session")
	ErrRecordNotFound       = New("NOT_FOUND", http.StatusNotFound, "attendance record not found")
)

var rejectionCodes = map[string]struct{}{
	ErrSessionNotFound.Code:   {},
	ErrSessionClosed.Code:     {},
	ErrCredentialInvalid.Code: {},
	ErrOutOfRange.Code:        {},
	ErrInvalidInput.Code:      {},
	ErrDuplicateIDNumber.Code: {},
	ErrDuplicateDevice.Code:   {},
	ErrDuplicateName.Code:     {},
	ErrRecordNotFound.Code:    {},
}

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	if err.Details != nil {
		clone.Details = make(map[string]interface{}, len(err.Details))
		for k, v := range err.Details {
			clone.Details[k] = v
		}
	}
	return &clone
}

// WithDetails returns a copy of err carrying the given key/value context.
func WithDetails(err *Error, message string, details map[string]interface{}) *Error {
	clone := Clone(err, message)
	if clone == nil {
		return nil
	}
	if clone.Details == nil {
		clone.Details = make(map[string]interface{}, len(details))
	}
	for k, v := range details {
		clone.Details[k] = v
	}
	return clone
}

// HasCode reports whether err is an *Error with the given code.
func HasCode(err error, code string) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == code
}

// IsRejection reports whether err is an admission rejection rather than an
// infrastructure failure.
func IsRejection(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	_, ok := rejectionCodes[e.Code]
	return ok
}
