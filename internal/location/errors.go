package location

import (
	"errors"
	"fmt"
)

// ErrorCode classifies why a position could not be produced.
type ErrorCode int

// Error codes follow the numbering used by platform geolocation APIs.
const (
	CodePermissionDenied    ErrorCode = 1
	CodePositionUnavailable ErrorCode = 2
	CodeTimeout             ErrorCode = 3
)

// Sentinel errors matched by PositionError.Is.
var (
	ErrPermissionDenied    = errors.New("location permission denied")
	ErrPositionUnavailable = errors.New("position unavailable")
	ErrTimeout             = errors.New("location request timed out")
)

func (c ErrorCode) String() string {
	switch c {
	case CodePermissionDenied:
		return "permission denied"
	case CodePositionUnavailable:
		return "position unavailable"
	case CodeTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("unknown(%d)", int(c))
	}
}

// PositionError is returned by providers when no fix could be produced.
type PositionError struct {
	Code    ErrorCode // Code classifies the failure.
	Message string    // Message is a short human readable description.
	Err     error     // Err is the underlying cause, if any.
}

func (e *PositionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PositionError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel matching the error code.
func (e *PositionError) Is(target error) bool {
	switch target {
	case ErrPermissionDenied:
		return e.Code == CodePermissionDenied
	case ErrPositionUnavailable:
		return e.Code == CodePositionUnavailable
	case ErrTimeout:
		return e.Code == CodeTimeout
	default:
		return false
	}
}

func unavailable(message string, err error) *PositionError {
	return &PositionError{Code: CodePositionUnavailable, Message: message, Err: err}
}
