package serial

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

// Port represents an open transport handle. A Port has exactly one owner
// and is not safe for overlapping exchanges; see Pool for shared use.
type Port interface {
	Name() string
	Config() Config
	Close() error
	Read(buf []byte) (int, error)
	Write(data []byte) (int, error)
	WriteContext(ctx context.Context, data []byte) (int, error)
	Drain() error
	FlushInput() error
	FlushOutput() error
}

// Pollable is implemented by ports backed by a file descriptor that can be
// registered with poll(2).
type Pollable interface {
	Fd() int
}

// port is the concrete terminal-device implementation of the Port interface
type port struct {
	mu     sync.RWMutex
	fd     int
	name   string
	config Config
	closed bool
}

// Ensure port implements Port and Pollable at compile time
var (
	_ Port     = (*port)(nil)
	_ Pollable = (*port)(nil)
)

// Parity represents the parity mode
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
	ParityMark
	ParitySpace
)

func (p Parity) String() string {
	switch p {
	case ParityNone:
		return "N"
	case ParityOdd:
		return "O"
	case ParityEven:
		return "E"
	case ParityMark:
		return "M"
	case ParitySpace:
		return "S"
	default:
		return "?"
	}
}

// ParseParity accepts none/odd/even/mark/space or their first letter.
func ParseParity(s string) (Parity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "n", "none":
		return ParityNone, nil
	case "o", "odd":
		return ParityOdd, nil
	case "e", "even":
		return ParityEven, nil
	case "m", "mark":
		return ParityMark, nil
	case "s", "space":
		return ParitySpace, nil
	default:
		return ParityNone, fmt.Errorf("%w: parity %q", ErrInvalidConfig, s)
	}
}

// getBaudRate converts an integer baud rate to the unix constant
func getBaudRate(rate int) (uint32, error) {
	switch rate {
	case 50:
		return unix.B50, nil
	case 75:
		return unix.B75, nil
	case 110:
		return unix.B110, nil
	case 134:
		return unix.B134, nil
	case 150:
		return unix.B150, nil
	case 200:
		return unix.B200, nil
	case 300:
		return unix.B300, nil
	case 600:
		return unix.B600, nil
	case 1200:
		return unix.B1200, nil
	case 1800:
		return unix.B1800, nil
	case 2400:
		return unix.B2400, nil
	case 4800:
		return unix.B4800, nil
	case 9600:
		return unix.B9600, nil
	case 19200:
		return unix.B19200, nil
	case 38400:
		return unix.B38400, nil
	case 57600:
		return unix.B57600, nil
	case 115200:
		return unix.B115200, nil
	case 230400:
		return unix.B230400, nil
	case 460800:
		return unix.B460800, nil
	case 500000:
		return unix.B500000, nil
	case 576000:
		return unix.B576000, nil
	case 921600:
		return unix.B921600, nil
	case 1000000:
		return unix.B1000000, nil
	case 1152000:
		return unix.B1152000, nil
	case 1500000:
		return unix.B1500000, nil
	case 2000000:
		return unix.B2000000, nil
	case 2500000:
		return unix.B2500000, nil
	case 3000000:
		return unix.B3000000, nil
	case 3500000:
		return unix.B3500000, nil
	case 4000000:
		return unix.B4000000, nil
	default:
		return 0, ErrInvalidBaudRate
	}
}

// Open opens the transport named by device. Identifiers of the form
// scheme://name are served by the driver registered for scheme; anything
// else is treated as a terminal device path.
func Open(device string, opts ...Option) (Port, error) {
	config, err := applyOptions(opts)
	if err != nil {
		return nil, &OpenError{Device: device, Err: err}
	}

	if scheme, name, ok := splitIdentifier(device); ok {
		drv, found := lookupDriver(scheme)
		if !found {
			return nil, &OpenError{Device: device, Err: ErrUnknownPort}
		}
		p, err := drv.Open(name, config)
		if err != nil {
			var oe *OpenError
			if errors.As(err, &oe) {
				return nil, err
			}
			return nil, &OpenError{Device: device, Err: classifyOpenError(err), Cause: err}
		}
		return p, nil
	}

	return openDevice(device, config)
}

// OpenPort opens identifier at the given speed.
func OpenPort(identifier string, speed uint, opts ...Option) (Port, error) {
	opts = append([]Option{WithBaudRate(int(speed))}, opts...)
	return Open(identifier, opts...)
}

// openDevice opens and configures a terminal device
func openDevice(device string, config Config) (Port, error) {
	// O_NONBLOCK keeps open from waiting on carrier detect; it is cleared
	// once the port is configured so reads are bounded by VTIME instead.
	flags := unix.O_RDWR | unix.O_NOCTTY | unix.O_NONBLOCK | unix.O_CLOEXEC
	if config.WriteMode == WriteModeSynced {
		flags |= unix.O_SYNC
	}

	fd, err := unix.Open(device, flags, 0)
	if err != nil {
		return nil, &OpenError{Device: device, Err: classifyOpenError(err), Cause: err}
	}

	if config.Exclusive {
		if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
			unix.Close(fd)
			return nil, &OpenError{Device: device, Err: ErrDeviceInUse, Cause: err}
		}
	}

	if err := configurePort(fd, config); err != nil {
		unix.Close(fd)
		return nil, &OpenError{Device: device, Err: classifyOpenError(err), Cause: err}
	}

	if err := unix.SetNonblock(fd, false); err != nil {
		unix.Close(fd)
		return nil, &OpenError{Device: device, Err: ErrInvalidConfig, Cause: err}
	}

	return &port{
		fd:     fd,
		name:   device,
		config: config,
	}, nil
}

// classifyOpenError maps an OS error to the matching package sentinel
func classifyOpenError(err error) error {
	switch {
	case errors.Is(err, ErrDeviceNotFound), errors.Is(err, unix.ENOENT),
		errors.Is(err, unix.ENODEV), errors.Is(err, unix.ENXIO):
		return ErrDeviceNotFound
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM):
		return ErrPermissionDenied
	case errors.Is(err, ErrDeviceInUse), errors.Is(err, unix.EBUSY), errors.Is(err, unix.EWOULDBLOCK):
		return ErrDeviceInUse
	case errors.Is(err, ErrInvalidBaudRate):
		return ErrInvalidBaudRate
	default:
		return ErrInvalidConfig
	}
}

// configurePort puts the terminal in raw mode with the requested framing
func configurePort(fd int, config Config) error {
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("failed to get termios: %w", err)
	}

	baudRate, err := getBaudRate(config.BaudRate)
	if err != nil {
		return err
	}

	termios.Cflag = unix.CREAD | unix.CLOCAL | baudRate
	termios.Iflag = 0 // No input processing
	termios.Oflag = 0 // No output processing
	termios.Lflag = 0 // No line processing (raw mode)
	termios.Ispeed = baudRate
	termios.Ospeed = baudRate

	// VMIN=0: a read returns as soon as data is there or VTIME expires
	termios.Cc[unix.VMIN] = 0
	termios.Cc[unix.VTIME] = config.readTimeoutTenths()

	switch config.DataBits {
	case 5:
		termios.Cflag |= unix.CS5
	case 6:
		termios.Cflag |= unix.CS6
	case 7:
		termios.Cflag |= unix.CS7
	default:
		termios.Cflag |= unix.CS8
	}

	if config.StopBits == 2 {
		termios.Cflag |= unix.CSTOPB
	}

	switch config.Parity {
	case ParityOdd:
		termios.Cflag |= unix.PARENB | unix.PARODD
	case ParityEven:
		termios.Cflag |= unix.PARENB
	case ParityMark:
		termios.Cflag |= unix.PARENB | unix.CMSPAR | unix.PARODD
	case ParitySpace:
		termios.Cflag |= unix.PARENB | unix.CMSPAR
	}

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		return fmt.Errorf("failed to set termios: %w", err)
	}
	return nil
}

// Name returns the identifier the port was opened with
func (p *port) Name() string {
	return p.name
}

// Config returns the configuration the port was opened with
func (p *port) Config() Config {
	return p.config
}

// Fd returns the underlying file descriptor for readiness polling
func (p *port) Fd() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.fd
}

// Close closes the serial port and releases its lock
func (p *port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPortClosed
	}

	err := unix.Close(p.fd)
	p.closed = true
	return err
}

// Read performs one read, returning at most after the configured read timeout
func (p *port) Read(buf []byte) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return 0, ErrPortClosed
	}

	n, err := unix.Read(p.fd, buf)
	if n < 0 {
		n = 0
	}
	return n, err
}

// Write writes data to the serial port in a single call
func (p *port) Write(data []byte) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return 0, ErrPortClosed
	}

	n, err := unix.Write(p.fd, data)
	if n < 0 {
		n = 0
	}
	return n, err
}

// WriteContext writes data with context timeout support
func (p *port) WriteContext(ctx context.Context, data []byte) (int, error) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return 0, ErrPortClosed
	}
	p.mu.RUnlock()

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	type writeResult struct {
		n   int
		err error
	}
	resultCh := make(chan writeResult, 1)

	go func() {
		n, err := p.Write(data)
		resultCh <- writeResult{n: n, err: err}
	}()

	select {
	case result := <-resultCh:
		return result.n, result.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Drain waits until all output written to the port has been transmitted
func (p *port) Drain() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPortClosed
	}

	return unix.IoctlSetInt(p.fd, unix.TCSBRK, 1)
}

// FlushInput discards any unread input data
func (p *port) FlushInput() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPortClosed
	}

	return unix.IoctlSetInt(p.fd, unix.TCFLSH, unix.TCIFLUSH)
}

// FlushOutput discards any unwritten output data
func (p *port) FlushOutput() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPortClosed
	}

	return unix.IoctlSetInt(p.fd, unix.TCFLSH, unix.TCOFLUSH)
}
