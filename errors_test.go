package serial

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/sys/unix"
)

func TestOpenErrorMatching(t *testing.T) {
	err := error(&OpenError{Device: "/dev/ttyUSB0", Err: ErrDeviceInUse, Cause: unix.EWOULDBLOCK})

	if !errors.Is(err, ErrDeviceInUse) {
		t.Error("OpenError should match its sentinel")
	}
	if !errors.Is(err, unix.EWOULDBLOCK) {
		t.Error("OpenError should match its cause")
	}
	if !strings.Contains(err.Error(), "/dev/ttyUSB0") {
		t.Errorf("Error() = %q, expected device name", err.Error())
	}

	plain := &OpenError{Device: "x", Err: ErrUnknownPort}
	if plain.Error() != "open x: unknown transport scheme" {
		t.Errorf("Error() = %q", plain.Error())
	}
}

func TestClassifyOpenError(t *testing.T) {
	tests := []struct {
		err      error
		expected error
	}{
		{unix.ENOENT, ErrDeviceNotFound},
		{unix.ENXIO, ErrDeviceNotFound},
		{unix.EACCES, ErrPermissionDenied},
		{unix.EPERM, ErrPermissionDenied},
		{unix.EBUSY, ErrDeviceInUse},
		{ErrInvalidBaudRate, ErrInvalidBaudRate},
		{unix.ENOTTY, ErrInvalidConfig},
	}

	for _, tt := range tests {
		if got := classifyOpenError(tt.err); got != tt.expected {
			t.Errorf("classifyOpenError(%v) = %v, expected %v", tt.err, got, tt.expected)
		}
	}
}

func TestExchangeErrors(t *testing.T) {
	we := &WriteError{Device: "d", Written: 2, Expected: 5, Err: ErrShortWrite}
	if !errors.Is(we, ErrShortWrite) {
		t.Error("WriteError should unwrap")
	}
	if we.Error() != "write d: 2 of 5 bytes: short write to serial device" {
		t.Errorf("Error() = %q", we.Error())
	}

	nr := &NoResponseError{Device: "d", Attempts: 10}
	if !errors.Is(nr, ErrNoResponse) {
		t.Error("NoResponseError should match ErrNoResponse")
	}
	if errors.Is(nr, ErrPortClosed) {
		t.Error("NoResponseError should only match ErrNoResponse")
	}

	de := &DirectoryError{Root: "/dev", Err: unix.EACCES}
	if !errors.Is(de, unix.EACCES) {
		t.Error("DirectoryError should unwrap")
	}
}
