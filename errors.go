package serial

import (
	"errors"
	"fmt"
)

// Predefined error types for robust error handling
var (
	ErrDeviceNotFound   = errors.New("serial device not found")
	ErrPermissionDenied = errors.New("permission denied accessing serial device")
	ErrDeviceInUse      = errors.New("serial device already in use")
	ErrInvalidBaudRate  = errors.New("invalid baud rate")
	ErrInvalidConfig    = errors.New("invalid serial configuration")
	ErrPortClosed       = errors.New("serial port is closed")

	// Exchange errors
	ErrShortWrite  = errors.New("short write to serial device")
	ErrWouldBlock  = errors.New("no data available")
	ErrNoResponse  = errors.New("no terminated response before retry budget was exhausted")
	ErrUnknownPort = errors.New("unknown transport scheme")

	// USB-related errors
	ErrUSBInfoNotAvailable  = errors.New("USB device information not available")
	ErrUSBResetNotAvailable = errors.New("usbreset utility not available")
)

// DirectoryError reports that the device directory itself could not be
// enumerated. An empty directory is not an error.
type DirectoryError struct {
	Root string
	Err  error
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("list serial ports in %s: %v", e.Root, e.Err)
}

func (e *DirectoryError) Unwrap() error { return e.Err }

// OpenError is returned by Open. Err is one of the package sentinels
// (ErrDeviceNotFound, ErrDeviceInUse, ...) and Cause the underlying OS error,
// so both can be matched with errors.Is.
type OpenError struct {
	Device string
	Err    error
	Cause  error
}

func (e *OpenError) Error() string {
	if e.Cause != nil && e.Cause != e.Err {
		return fmt.Sprintf("open %s: %v (%v)", e.Device, e.Err, e.Cause)
	}
	return fmt.Sprintf("open %s: %v", e.Device, e.Err)
}

func (e *OpenError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// WriteError is fatal to an exchange; writes are never retried.
type WriteError struct {
	Device   string
	Written  int
	Expected int
	Err      error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %d of %d bytes: %v", e.Device, e.Written, e.Expected, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ReadError reports that the retry budget ran out after at least one hard
// read error. Err is the last hard error seen.
type ReadError struct {
	Device   string
	Attempts int
	Err      error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: failed after %d attempts: %v", e.Device, e.Attempts, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// NoResponseError reports that the retry budget ran out without a
// terminator and without any hard read error.
type NoResponseError struct {
	Device   string
	Attempts int
}

func (e *NoResponseError) Error() string {
	return fmt.Sprintf("read %s: no response after %d attempts", e.Device, e.Attempts)
}

func (e *NoResponseError) Is(target error) bool { return target == ErrNoResponse }
