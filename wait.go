package serial

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sys/unix"
)

// Readiness is the result of waiting for a port to become readable.
type Readiness int

const (
	Ready Readiness = iota
	TimedOut
)

func (r Readiness) String() string {
	switch r {
	case Ready:
		return "ready"
	case TimedOut:
		return "timed out"
	default:
		return "unknown"
	}
}

// Waiter waits for read readiness of one port between read attempts.
// Cancellation of ctx is reported as an error, never as TimedOut alone.
type Waiter interface {
	Wait(ctx context.Context, timeout time.Duration) (Readiness, error)
	Close() error
}

// ReadinessNotifier is implemented by ports that report readiness
// themselves instead of through a file descriptor.
type ReadinessNotifier interface {
	WaitReadable(ctx context.Context, timeout time.Duration) (Readiness, error)
}

// WaitStrategy selects how an exchange waits between read attempts.
type WaitStrategy int

const (
	// WaitAuto polls when the port supports it and sleeps otherwise.
	WaitAuto WaitStrategy = iota
	// WaitPoll requires event-driven readiness.
	WaitPoll
	// WaitSleep sleeps a fixed delay before every read, except right after a
	// read that returned data.
	WaitSleep
)

func (s WaitStrategy) String() string {
	switch s {
	case WaitAuto:
		return "auto"
	case WaitPoll:
		return "poll"
	case WaitSleep:
		return "sleep"
	default:
		return "unknown"
	}
}

// ParseWaitStrategy parses auto, poll or sleep.
func ParseWaitStrategy(s string) (WaitStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return WaitAuto, nil
	case "poll", "event":
		return WaitPoll, nil
	case "sleep", "retry":
		return WaitSleep, nil
	default:
		return WaitAuto, fmt.Errorf("%w: wait strategy %q", ErrInvalidConfig, s)
	}
}

// NewWaiter returns the waiter strategy picks for p.
func NewWaiter(p Port, strategy WaitStrategy, clk clock.Clock) (Waiter, error) {
	if clk == nil {
		clk = clock.New()
	}
	if strategy == WaitSleep {
		return &sleepWaiter{clock: clk}, nil
	}
	if pl, ok := p.(Pollable); ok {
		return NewPollWaiter(pl.Fd(), clk)
	}
	if n, ok := p.(ReadinessNotifier); ok {
		return notifierWaiter{n: n}, nil
	}
	if strategy == WaitPoll {
		return nil, fmt.Errorf("%w: %s does not support readiness polling", ErrInvalidConfig, p.Name())
	}
	return &sleepWaiter{clock: clk}, nil
}

// sleepWaiter sleeps the full timeout and then lets the read decide.
type sleepWaiter struct {
	clock clock.Clock
}

func (w *sleepWaiter) Wait(ctx context.Context, timeout time.Duration) (Readiness, error) {
	if err := ctx.Err(); err != nil {
		return TimedOut, err
	}
	if timeout <= 0 {
		return Ready, nil
	}
	t := w.clock.Timer(timeout)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return TimedOut, ctx.Err()
	case <-t.C:
		return Ready, nil
	}
}

func (w *sleepWaiter) Close() error { return nil }

type notifierWaiter struct {
	n ReadinessNotifier
}

func (w notifierWaiter) Wait(ctx context.Context, timeout time.Duration) (Readiness, error) {
	if err := ctx.Err(); err != nil {
		return TimedOut, err
	}
	return w.n.WaitReadable(ctx, timeout)
}

func (w notifierWaiter) Close() error { return nil }

// pollWaiter polls the port descriptor together with a self-pipe so a
// cancelled context interrupts the wait immediately.
type pollWaiter struct {
	fd    int
	wakeR int
	wakeW int
	clock clock.Clock

	// mu orders wake against Close so a late wakeup never writes to a
	// descriptor number that has been reused.
	mu     sync.Mutex
	closed bool
}

// NewPollWaiter registers read interest in fd. Deadlines are measured with
// clk, or the wall clock when nil. The waiter must be closed.
func NewPollWaiter(fd int, clk clock.Clock) (Waiter, error) {
	if clk == nil {
		clk = clock.New()
	}
	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, fmt.Errorf("create wake pipe: %w", err)
	}
	return &pollWaiter{fd: fd, wakeR: p[0], wakeW: p[1], clock: clk}, nil
}

func (w *pollWaiter) Wait(ctx context.Context, timeout time.Duration) (Readiness, error) {
	if err := ctx.Err(); err != nil {
		return TimedOut, err
	}
	stop := context.AfterFunc(ctx, w.wake)
	defer stop()

	deadline := w.clock.Now().Add(timeout)
	for {
		fds := []unix.PollFd{
			{Fd: int32(w.fd), Events: unix.POLLIN},
			{Fd: int32(w.wakeR), Events: unix.POLLIN},
		}
		_, err := unix.Poll(fds, pollMillis(deadline.Sub(w.clock.Now())))
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return TimedOut, fmt.Errorf("poll: %w", err)
		}

		switch {
		case fds[0].Revents&(unix.POLLIN|unix.POLLNVAL) != 0:
			return Ready, nil
		case fds[0].Revents != 0:
			// POLLHUP or POLLERR stay raised, so hold off until the delay
			// is spent; the read then reports the condition.
			if err := w.sleepUntil(ctx, deadline); err != nil {
				return TimedOut, err
			}
			return Ready, nil
		case fds[1].Revents != 0:
			w.drain()
			if err := ctx.Err(); err != nil {
				return TimedOut, err
			}
			continue
		}
		return TimedOut, nil
	}
}

// sleepUntil waits on the wake pipe alone until deadline or cancellation.
func (w *pollWaiter) sleepUntil(ctx context.Context, deadline time.Time) error {
	for {
		remaining := deadline.Sub(w.clock.Now())
		if remaining <= 0 {
			return nil
		}
		fds := []unix.PollFd{{Fd: int32(w.wakeR), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, pollMillis(remaining))
		if err != nil && !errors.Is(err, unix.EINTR) {
			return fmt.Errorf("poll: %w", err)
		}
		if n > 0 {
			w.drain()
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if n == 0 && err == nil {
			return nil
		}
	}
}

func (w *pollWaiter) wake() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	unix.Write(w.wakeW, []byte{1})
}

func (w *pollWaiter) drain() {
	var buf [16]byte
	for {
		n, err := unix.Read(w.wakeR, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func (w *pollWaiter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	errR := unix.Close(w.wakeR)
	errW := unix.Close(w.wakeW)
	return errors.Join(errR, errW)
}

// pollMillis rounds d up to whole milliseconds for poll(2).
func pollMillis(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Millisecond - 1) / time.Millisecond)
}
