package serial

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestParseWaitStrategy(t *testing.T) {
	tests := []struct {
		in       string
		expected WaitStrategy
		wantErr  bool
	}{
		{"", WaitAuto, false},
		{"auto", WaitAuto, false},
		{"POLL", WaitPoll, false},
		{"event", WaitPoll, false},
		{"sleep", WaitSleep, false},
		{"retry", WaitSleep, false},
		{"busy", WaitAuto, true},
	}
	for _, tt := range tests {
		got, err := ParseWaitStrategy(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidConfig, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.expected, got, tt.in)
		assert.Equal(t, got, mustParse(t, got.String()))
	}
}

func mustParse(t *testing.T, s string) WaitStrategy {
	t.Helper()
	ws, err := ParseWaitStrategy(s)
	require.NoError(t, err)
	return ws
}

func TestNewWaiterSelection(t *testing.T) {
	sp := simPort(t, SimDevice{})

	w, err := NewWaiter(sp, WaitAuto, nil)
	require.NoError(t, err)
	assert.IsType(t, notifierWaiter{}, w)

	w, err = NewWaiter(sp, WaitSleep, nil)
	require.NoError(t, err)
	assert.IsType(t, &sleepWaiter{}, w)

	w, err = NewWaiter(plainPort{sp}, WaitAuto, nil)
	require.NoError(t, err)
	assert.IsType(t, &sleepWaiter{}, w)

	_, err = NewWaiter(plainPort{sp}, WaitPoll, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSleepWaiter(t *testing.T) {
	mock := clock.NewMock()
	w := &sleepWaiter{clock: mock}

	done := make(chan Readiness, 1)
	go func() {
		r, _ := w.Wait(context.Background(), time.Second)
		done <- r
	}()

	for {
		select {
		case r := <-done:
			assert.Equal(t, Ready, r)
			return
		default:
			mock.Add(100 * time.Millisecond)
			time.Sleep(time.Millisecond)
		}
	}
}

func TestSleepWaiterCancelled(t *testing.T) {
	w := &sleepWaiter{clock: clock.NewMock()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, err := w.Wait(ctx, time.Hour)
	assert.Equal(t, TimedOut, r)
	assert.ErrorIs(t, err, context.Canceled)
}

func pipeFDs(t *testing.T) (r, w int) {
	t.Helper()
	var p [2]int
	require.NoError(t, unix.Pipe2(p[:], unix.O_CLOEXEC))
	t.Cleanup(func() {
		unix.Close(p[0])
		unix.Close(p[1])
	})
	return p[0], p[1]
}

func TestPollWaiter(t *testing.T) {
	r, wfd := pipeFDs(t)

	w, err := NewPollWaiter(r, nil)
	require.NoError(t, err)
	defer w.Close()

	ready, err := w.Wait(context.Background(), 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, TimedOut, ready)

	_, err = unix.Write(wfd, []byte("x"))
	require.NoError(t, err)

	ready, err = w.Wait(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, Ready, ready)
}

func TestPollWaiterCancel(t *testing.T) {
	r, _ := pipeFDs(t)

	w, err := NewPollWaiter(r, nil)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	ready, err := w.Wait(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, TimedOut, ready)
	assert.Less(t, time.Since(start), 5*time.Second)

	// A stale wakeup does not end a later wait early
	ready, err = w.Wait(context.Background(), 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, TimedOut, ready)
}

func TestPollWaiterHangup(t *testing.T) {
	var p [2]int
	require.NoError(t, unix.Pipe2(p[:], unix.O_CLOEXEC))
	r, wfd := p[0], p[1]
	defer unix.Close(r)

	w, err := NewPollWaiter(r, nil)
	require.NoError(t, err)
	defer w.Close()

	unix.Close(wfd)
	start := time.Now()
	ready, err := w.Wait(context.Background(), 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, Ready, ready)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond, "a hangup does not cut the delay short")
}

func TestPollWaiterHangupCancel(t *testing.T) {
	var p [2]int
	require.NoError(t, unix.Pipe2(p[:], unix.O_CLOEXEC))
	r, wfd := p[0], p[1]
	defer unix.Close(r)
	unix.Close(wfd)

	w, err := NewPollWaiter(r, nil)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	start := time.Now()
	ready, err := w.Wait(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, TimedOut, ready)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestPollWaiterWakeAfterClose(t *testing.T) {
	r, _ := pipeFDs(t)

	w, err := NewPollWaiter(r, nil)
	require.NoError(t, err)
	pw := w.(*pollWaiter)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	// the freed descriptor numbers are likely handed out again
	other, _ := pipeFDs(t)
	require.NoError(t, unix.SetNonblock(other, true))

	pw.wake()

	buf := make([]byte, 1)
	n, err := unix.Read(other, buf)
	assert.ErrorIs(t, err, unix.EAGAIN)
	assert.LessOrEqual(t, n, 0)
}

func TestPollMillis(t *testing.T) {
	assert.Equal(t, 0, pollMillis(-time.Second))
	assert.Equal(t, 0, pollMillis(0))
	assert.Equal(t, 1, pollMillis(time.Microsecond))
	assert.Equal(t, 100, pollMillis(100*time.Millisecond))
}

func TestReadinessString(t *testing.T) {
	assert.Equal(t, "ready", Ready.String())
	assert.Equal(t, "timed out", TimedOut.String())
}
