package lnurl

import (
	"errors"
	"fmt"
)

// Error represents an LNURL-pay specific error
type Error struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Common error codes
const (
	ErrCodeInvalidEncoding        = "invalid_encoding"
	ErrCodeUnsupportedDestination = "unsupported_destination"
	ErrCodeMissingDestination     = "missing_destination"
	ErrCodeInvalidAddress         = "invalid_lightning_address"
	ErrCodeRemoteError            = "lnurl_error"
	ErrCodeInvalidResponse        = "invalid_response"
	ErrCodeUnreachable            = "endpoint_unreachable"
	ErrCodeInvalidAmount          = "invalid_amount"
)

// NewError creates a new LNURL error
func NewError(code, message string, details map[string]interface{}) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// ErrorCode extracts the error code from err, or "" if err does not carry one.
func ErrorCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsRemoteError reports whether err is a protocol error explicitly signalled
// by the remote endpoint (status="ERROR"). Its message is the remote reason
// verbatim and is safe to show to users.
func IsRemoteError(err error) bool {
	return ErrorCode(err) == ErrCodeRemoteError
}
