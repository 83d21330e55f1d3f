package errors

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// Base error types
var (
	ErrStructuralMismatch = errors.New("structural mismatch")
	ErrTransport          = errors.New("transport failure")
	ErrCapabilityMissing  = errors.New("required capability missing")
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
)

// Kind classifies the outcome of a device or API operation.
type Kind string

const (
	KindSuccess            Kind = "success"
	KindStructuralMismatch Kind = "structural_mismatch"
	KindTransportFailure   Kind = "transport_failure"
)

// DeviceError is a structured error for device-management operations.
type DeviceError struct {
	Kind      Kind
	Op        string // Operation that failed (e.g., "get", "edit-config", "shell")
	Host      string
	Err       error
	Timestamp time.Time
}

func (e *DeviceError) Error() string {
	if e.Host != "" {
		return fmt.Sprintf("%s failed on %s: %v", e.Op, e.Host, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is interface
func (e *DeviceError) Is(target error) bool {
	if target == nil {
		return false
	}

	switch target {
	case ErrStructuralMismatch:
		return e.Kind == KindStructuralMismatch
	case ErrTransport:
		return e.Kind == KindTransportFailure
	}

	return errors.Is(e.Err, target)
}

// NewDeviceError creates a new DeviceError
func NewDeviceError(kind Kind, op, host string, err error) *DeviceError {
	return &DeviceError{
		Kind:      kind,
		Op:        op,
		Host:      host,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// WrapTransportError wraps a connect, auth or capability failure.
func WrapTransportError(op, host string, err error) error {
	return NewDeviceError(KindTransportFailure, op, host, err)
}

// WrapStructuralError wraps a reply that did not have the expected shape.
func WrapStructuralError(op, host string, err error) error {
	return NewDeviceError(KindStructuralMismatch, op, host, err)
}

// Mismatchf returns a structural mismatch with a formatted detail message.
func Mismatchf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrStructuralMismatch, fmt.Sprintf(format, args...))
}

// APIError describes a non-success response from a REST API.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s: HTTP %d", e.Op, e.StatusCode)
}

// Is maps well-known status codes onto the base errors.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == 404
	case ErrUnauthorized:
		return e.StatusCode == 401 || e.StatusCode == 403
	}
	return false
}

// KindOf classifies err. Anything that is not recognisably structural is
// reported as a transport failure.
func KindOf(err error) Kind {
	if err == nil {
		return KindSuccess
	}

	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return devErr.Kind
	}
	if errors.Is(err, ErrStructuralMismatch) {
		return KindStructuralMismatch
	}
	return KindTransportFailure
}

// IsTransportError reports whether err means the device could not be reached,
// authenticated against, or lacked a required capability.
func IsTransportError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransport) || errors.Is(err, ErrCapabilityMissing) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
