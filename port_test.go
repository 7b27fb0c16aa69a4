package serial

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

// openPTY returns the master side of a new pseudo-terminal and the path of
// its slave, which stands in for a serial device.
func openPTY(t *testing.T) (int, string) {
	t.Helper()

	master, err := unix.Open("/dev/ptmx", unix.O_RDWR|unix.O_NOCTTY|unix.O_CLOEXEC, 0)
	if err != nil {
		t.Skipf("pseudo-terminals not available: %v", err)
	}
	t.Cleanup(func() { unix.Close(master) })

	if err := unix.IoctlSetPointerInt(master, unix.TIOCSPTLCK, 0); err != nil {
		t.Skipf("unlockpt failed: %v", err)
	}
	n, err := unix.IoctlGetInt(master, unix.TIOCGPTN)
	if err != nil {
		t.Skipf("ptsname failed: %v", err)
	}
	return master, fmt.Sprintf("/dev/pts/%d", n)
}

func TestGetBaudRate(t *testing.T) {
	tests := []struct {
		input    int
		hasError bool
	}{
		{115200, false},
		{9600, false},
		{57600, false},
		{4000000, false},
		{123456, true},
	}

	for _, test := range tests {
		result, err := getBaudRate(test.input)
		if test.hasError {
			if err != ErrInvalidBaudRate {
				t.Errorf("Expected ErrInvalidBaudRate for %d, got %v", test.input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("Unexpected error for baud rate %d: %v", test.input, err)
		}
		if result == 0 {
			t.Errorf("Got zero result for valid baud rate %d", test.input)
		}
	}
}

func TestOpenNonExistentDevice(t *testing.T) {
	_, err := Open("/dev/nonexistent")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Expected ErrDeviceNotFound, got %v", err)
	}

	var openErr *OpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("Expected *OpenError, got %T", err)
	}
	if openErr.Device != "/dev/nonexistent" {
		t.Errorf("OpenError.Device = %s", openErr.Device)
	}
	if !errors.Is(err, unix.ENOENT) {
		t.Errorf("Expected cause ENOENT, got %v", err)
	}
}

func TestOpenPortInvalidSpeed(t *testing.T) {
	_, err := OpenPort("/dev/null", 12345)
	if !errors.Is(err, ErrInvalidBaudRate) {
		t.Errorf("Expected ErrInvalidBaudRate, got %v", err)
	}
}

func TestOpenUnknownScheme(t *testing.T) {
	_, err := Open("nosuch://device")
	if !errors.Is(err, ErrUnknownPort) {
		t.Errorf("Expected ErrUnknownPort, got %v", err)
	}
}

func TestOpenNotATerminal(t *testing.T) {
	_, err := Open("/dev/null")
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig for a non-terminal, got %v", err)
	}
}

func TestOpenPTY(t *testing.T) {
	_, path := openPTY(t)

	p, err := OpenPort(path, 115200)
	if err != nil {
		t.Fatalf("OpenPort failed: %v", err)
	}

	if p.Name() != path {
		t.Errorf("Name() = %s, expected %s", p.Name(), path)
	}
	if p.Config().BaudRate != 115200 {
		t.Errorf("BaudRate = %d, expected 115200", p.Config().BaudRate)
	}
	if _, ok := p.(Pollable); !ok {
		t.Error("terminal port should be Pollable")
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := p.Close(); err != ErrPortClosed {
		t.Errorf("second Close = %v, expected ErrPortClosed", err)
	}
	if _, err := p.Read(make([]byte, 4)); err != ErrPortClosed {
		t.Errorf("Read after Close = %v, expected ErrPortClosed", err)
	}
	if _, err := p.Write([]byte("x")); err != ErrPortClosed {
		t.Errorf("Write after Close = %v, expected ErrPortClosed", err)
	}
}

func TestOpenPTYExclusive(t *testing.T) {
	_, path := openPTY(t)

	p, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer p.Close()

	_, err = Open(path)
	if !errors.Is(err, ErrDeviceInUse) {
		t.Errorf("second Open = %v, expected ErrDeviceInUse", err)
	}

	// The lock goes away with the handle
	p.Close()
	p2, err := Open(path)
	if err != nil {
		t.Fatalf("Open after Close failed: %v", err)
	}
	p2.Close()
}

func TestPTYReadTimeout(t *testing.T) {
	_, path := openPTY(t)

	p, err := Open(path, WithReadTimeout(100*time.Millisecond))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer p.Close()

	start := time.Now()
	n, err := p.Read(make([]byte, 16))
	if n != 0 {
		t.Errorf("Read returned %d bytes from a silent line", n)
	}
	if err != nil {
		t.Errorf("Read error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Read blocked for %v", elapsed)
	}
}

func TestPTYWriteRead(t *testing.T) {
	master, path := openPTY(t)

	p, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer p.Close()

	if _, err := p.Write([]byte("PING\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	buf := make([]byte, 16)
	n, err := unix.Read(master, buf)
	if err != nil || string(buf[:n]) != "PING\n" {
		t.Fatalf("master read %q, %v", buf[:n], err)
	}

	if _, err := unix.Write(master, []byte("PONG\n")); err != nil {
		t.Fatalf("master write failed: %v", err)
	}
	n, err = p.Read(buf)
	if err != nil || string(buf[:n]) != "PONG\n" {
		t.Errorf("port read %q, %v", buf[:n], err)
	}

	if err := p.FlushInput(); err != nil {
		t.Errorf("FlushInput failed: %v", err)
	}
	if err := p.FlushOutput(); err != nil {
		t.Errorf("FlushOutput failed: %v", err)
	}
	if err := p.Drain(); err != nil {
		t.Errorf("Drain failed: %v", err)
	}
}

func TestWriteContextCancelled(t *testing.T) {
	_, path := openPTY(t)

	p, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.WriteContext(ctx, []byte("test")); err != context.Canceled {
		t.Errorf("WriteContext = %v, expected context.Canceled", err)
	}
}
