package device

import (
	"errors"
	"fmt"
	"time"
)

// NotFoundError represents an error when a BLE resource is not found
type NotFoundError struct {
	Resource string   // "peripheral", "service", "characteristic", "descriptor"
	UUIDs    []string // One or more identifiers, outermost first
}

func (e *NotFoundError) Error() string {
	if len(e.UUIDs) == 0 {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	if len(e.UUIDs) == 1 {
		return fmt.Sprintf("%s %q not found", e.Resource, e.UUIDs[0])
	}
	// For BLE hierarchy: characteristic is in service, descriptor is in characteristic
	parentResource := "service"
	if e.Resource == "descriptor" {
		parentResource = "characteristic"
	}
	return fmt.Sprintf("%s %q not found in %s %q", e.Resource, e.UUIDs[len(e.UUIDs)-1], parentResource, e.UUIDs[len(e.UUIDs)-2])
}

// ErrorKind classifies scanning, connection and decoding failures.
type ErrorKind string

const (
	KindScanAlreadyActive      ErrorKind = "scan already active"
	KindAlreadyConnecting      ErrorKind = "already connecting"
	KindConnectError           ErrorKind = "connect error"
	KindServiceNotFound        ErrorKind = "service not found"
	KindCharacteristicNotFound ErrorKind = "characteristic not found"
	KindDescriptorWriteError   ErrorKind = "descriptor write error"
	KindPermissionDenied       ErrorKind = "permission denied"
	KindDecodeError            ErrorKind = "decode error"
	KindLinkLost               ErrorKind = "link lost"
	KindTimeout                ErrorKind = "timeout"
	KindBluetoothOff           ErrorKind = "bluetooth is turned off"
)

// Error is a classified failure carrying an optional message and cause.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	s := string(e.Kind)
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// Is allows errors.Is to compare Error values by Kind
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Unwrap exposes the cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Predefined sentinel errors, one per kind
var (
	ErrScanAlreadyActive      = &Error{Kind: KindScanAlreadyActive}
	ErrAlreadyConnecting      = &Error{Kind: KindAlreadyConnecting}
	ErrConnectError           = &Error{Kind: KindConnectError}
	ErrServiceNotFound        = &Error{Kind: KindServiceNotFound}
	ErrCharacteristicNotFound = &Error{Kind: KindCharacteristicNotFound}
	ErrDescriptorWriteError   = &Error{Kind: KindDescriptorWriteError}
	ErrPermissionDenied       = &Error{Kind: KindPermissionDenied}
	ErrDecode                 = &Error{Kind: KindDecodeError}
	ErrLinkLost               = &Error{Kind: KindLinkLost}
	ErrTimeout                = &Error{Kind: KindTimeout}
	ErrBluetoothOff           = &Error{Kind: KindBluetoothOff}
)

// NewError wraps cause with the given kind.
func NewError(kind ErrorKind, cause error) *Error {
	return &Error{Kind: kind, Err: cause}
}

// Errorf creates an Error of the given kind with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// TimeoutError creates a Timeout error for the named phase.
func TimeoutError(phase string, after time.Duration) *Error {
	return Errorf(KindTimeout, "%s did not complete within %s", phase, after)
}
