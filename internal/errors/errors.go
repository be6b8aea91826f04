package errors

import "fmt"

// ErrorCode represents a timecapsule error code.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrTooLarge       ErrorCode = "TOO_LARGE"       // 413
	ErrInternal       ErrorCode = "INTERNAL"        // 500

	// Mail delivery failure codes. One of these ends up in a capsule's
	// error_message when a send attempt fails.
	ErrMailConfiguration ErrorCode = "CONFIGURATION_ERROR"
	ErrMailConnection    ErrorCode = "CONNECTION_ERROR"
	ErrMailAuth          ErrorCode = "AUTHENTICATION_ERROR"
	ErrMailAttachment    ErrorCode = "ATTACHMENT_ERROR"
	ErrRecipientRejected ErrorCode = "RECIPIENT_REJECTED"
	ErrMailTransport     ErrorCode = "UNKNOWN_TRANSPORT_ERROR"
)

// CapsuleError represents a structured error with code, status, and details.
type CapsuleError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *CapsuleError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *CapsuleError {
	return &CapsuleError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when a capsule cannot be found.
func NewNotFound(identifier string) *CapsuleError {
	return &CapsuleError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("capsule not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewNoAttachment creates a 404 error for a capsule that has no attachment.
func NewNoAttachment(id string) *CapsuleError {
	return &CapsuleError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("capsule %s has no attachment", id),
		Details: map[string]any{"identifier": id},
	}
}

// NewTooLarge creates a 413 error when an attachment exceeds the size limit.
func NewTooLarge(max, actual int64) *CapsuleError {
	return &CapsuleError{
		Code:    ErrTooLarge,
		Status:  413,
		Message: fmt.Sprintf("attachment exceeds maximum size: %d bytes (max %d)", actual, max),
		Details: map[string]any{"max_bytes": max, "actual_bytes": actual},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *CapsuleError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &CapsuleError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// NewMailConfiguration indicates the mail transport is not usable at all.
// The sweep treats this as systemic: it aborts the pass and marks nothing
// failed.
func NewMailConfiguration(msg string) *CapsuleError {
	return &CapsuleError{
		Code:    ErrMailConfiguration,
		Status:  500,
		Message: msg,
	}
}

// NewMailConnection wraps a dial or TLS negotiation failure.
func NewMailConnection(server string, err error) *CapsuleError {
	return &CapsuleError{
		Code:    ErrMailConnection,
		Status:  502,
		Message: fmt.Sprintf("connection to mail server %s failed: %v", server, err),
		Details: map[string]any{"server": server},
	}
}

// NewMailAuth wraps an SMTP authentication failure.
func NewMailAuth(err error) *CapsuleError {
	return &CapsuleError{
		Code:    ErrMailAuth,
		Status:  502,
		Message: fmt.Sprintf("mail server rejected credentials: %v", err),
	}
}

// NewMailAttachment wraps a failure to read or encode an attachment.
func NewMailAttachment(filename string, err error) *CapsuleError {
	return &CapsuleError{
		Code:    ErrMailAttachment,
		Status:  500,
		Message: fmt.Sprintf("attachment %q could not be read: %v", filename, err),
		Details: map[string]any{"filename": filename},
	}
}

// NewRecipientRejected wraps an SMTP RCPT refusal.
func NewRecipientRejected(recipient string, err error) *CapsuleError {
	return &CapsuleError{
		Code:    ErrRecipientRejected,
		Status:  502,
		Message: fmt.Sprintf("recipient %s rejected by mail server: %v", recipient, err),
		Details: map[string]any{"recipient": recipient},
	}
}

// NewMailTransport wraps any other SMTP conversation failure.
func NewMailTransport(err error) *CapsuleError {
	return &CapsuleError{
		Code:    ErrMailTransport,
		Status:  502,
		Message: fmt.Sprintf("mail transport error: %v", err),
	}
}

// Is checks if an error is a CapsuleError with the given code.
func Is(err error, code ErrorCode) bool {
	if cErr, ok := err.(*CapsuleError); ok {
		return cErr.Code == code
	}
	return false
}
