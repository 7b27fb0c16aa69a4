package serial

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// Outcome is how an exchange ended.
type Outcome int

const (
	OutcomeComplete Outcome = iota
	OutcomeNoResponse
	OutcomeReadError
	OutcomeWriteError
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeComplete:
		return "complete"
	case OutcomeNoResponse:
		return "no_response"
	case OutcomeReadError:
		return "read_error"
	case OutcomeWriteError:
		return "write_error"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Response is the result of one exchange. It is returned on failure too,
// carrying whatever was received before the exchange ended.
type Response struct {
	ID       string
	Device   string
	Raw      []byte
	Text     string
	Outcome  Outcome
	Attempts int
	Reads    int
	Elapsed  time.Duration
}

// Terminated reports whether the response ends with terminator.
func (r *Response) Terminated(terminator byte) bool {
	return len(r.Raw) > 0 && r.Raw[len(r.Raw)-1] == terminator
}

// ExchangeConfig holds the settings of an Exchanger.
type ExchangeConfig struct {
	Retry      RetryBudget
	BufferSize int  // Scratch buffer per read. Default: 1024
	// MaxResponseSize caps an unterminated response. Default: 64 KiB
	MaxResponseSize int
	Terminator byte // Frame terminator. Default: '\n'
	Strategy   WaitStrategy
	Encoding   encoding.Encoding // Response text encoding. Default: UTF-8
	FlushInput bool              // Discard stale input before writing
	Logger     *zap.Logger
	Metrics    *Metrics
	Clock      clock.Clock
}

// ExchangeOption is a functional option for configuring an Exchanger
type ExchangeOption func(*ExchangeConfig) error

// DefaultExchangeConfig returns the default exchange settings.
func DefaultExchangeConfig() ExchangeConfig {
	return ExchangeConfig{
		Retry:      DefaultRetryBudget(),
		BufferSize:      1024,
		MaxResponseSize: 64 << 10,
		Terminator:      '\n',
		Strategy:   WaitAuto,
		Encoding:   unicode.UTF8,
		Logger:     zap.NewNop(),
		Clock:      clock.New(),
	}
}

// WithRetry sets the number of read attempts and the delay between them.
func WithRetry(maxAttempts int, delay time.Duration) ExchangeOption {
	return func(c *ExchangeConfig) error {
		b := RetryBudget{MaxAttempts: maxAttempts, Delay: delay}
		if err := b.Validate(); err != nil {
			return err
		}
		c.Retry = b
		return nil
	}
}

// WithBufferSize sets the scratch buffer size used per read.
func WithBufferSize(size int) ExchangeOption {
	return func(c *ExchangeConfig) error {
		if size < 1 {
			return fmt.Errorf("%w: buffer size must be positive, got %d", ErrInvalidConfig, size)
		}
		c.BufferSize = size
		return nil
	}
}

// WithMaxResponseSize bounds how many bytes an exchange collects before
// giving up on the terminator.
func WithMaxResponseSize(size int) ExchangeOption {
	return func(c *ExchangeConfig) error {
		if size < 1 {
			return fmt.Errorf("%w: max response size must be positive, got %d", ErrInvalidConfig, size)
		}
		c.MaxResponseSize = size
		return nil
	}
}

// WithTerminator sets the byte that ends a response frame.
func WithTerminator(b byte) ExchangeOption {
	return func(c *ExchangeConfig) error {
		c.Terminator = b
		return nil
	}
}

// WithWaitStrategy selects how the exchange waits between reads.
func WithWaitStrategy(s WaitStrategy) ExchangeOption {
	return func(c *ExchangeConfig) error {
		if s < WaitAuto || s > WaitSleep {
			return fmt.Errorf("%w: wait strategy %d", ErrInvalidConfig, s)
		}
		c.Strategy = s
		return nil
	}
}

// WithEncoding sets the encoding responses are decoded from.
func WithEncoding(enc encoding.Encoding) ExchangeOption {
	return func(c *ExchangeConfig) error {
		if enc == nil {
			return fmt.Errorf("%w: nil encoding", ErrInvalidConfig)
		}
		c.Encoding = enc
		return nil
	}
}

// WithFlushInput discards unread input before each request is written.
func WithFlushInput(flush bool) ExchangeOption {
	return func(c *ExchangeConfig) error {
		c.FlushInput = flush
		return nil
	}
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(l *zap.Logger) ExchangeOption {
	return func(c *ExchangeConfig) error {
		if l == nil {
			l = zap.NewNop()
		}
		c.Logger = l
		return nil
	}
}

// WithMetrics records every exchange in m.
func WithMetrics(m *Metrics) ExchangeOption {
	return func(c *ExchangeConfig) error {
		c.Metrics = m
		return nil
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clk clock.Clock) ExchangeOption {
	return func(c *ExchangeConfig) error {
		if clk == nil {
			return fmt.Errorf("%w: nil clock", ErrInvalidConfig)
		}
		c.Clock = clk
		return nil
	}
}

// Exchanger runs framed request/response exchanges. It keeps no state
// between calls and may be shared by goroutines working on different ports.
type Exchanger struct {
	cfg ExchangeConfig
}

// NewExchanger creates an Exchanger from the defaults and opts.
func NewExchanger(opts ...ExchangeOption) (*Exchanger, error) {
	cfg := DefaultExchangeConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	return &Exchanger{cfg: cfg}, nil
}

// Config returns the exchanger's settings.
func (e *Exchanger) Config() ExchangeConfig {
	return e.cfg
}

// Exchange writes payload to p and reads until the terminator arrives or
// the retry budget runs out. The write is never retried. A wait that times
// out, an empty read and a failed read each consume one attempt; reads that
// return data do not. A response still unterminated after
// MaxAttempts*Delay, or longer than MaxResponseSize, ends as no response.
//
// The returned Response is never nil. On failure the error is a
// *WriteError, *ReadError, *NoResponseError, the context's error, or the
// error preparing the readiness wait (Outcome is then OutcomeReadError and
// nothing has been written).
func (e *Exchanger) Exchange(ctx context.Context, p Port, payload []byte) (*Response, error) {
	ex := &exchange{
		cfg:   e.cfg,
		port:  p,
		start: e.cfg.Clock.Now(),
		resp: &Response{
			ID:     uuid.NewString(),
			Device: p.Name(),
		},
	}
	ex.log = e.cfg.Logger.With(
		zap.String("device", ex.resp.Device),
		zap.String("exchange_id", ex.resp.ID),
	)
	ex.log.Debug("exchange started", zap.Int("payload_bytes", len(payload)))

	err := ex.run(ctx, payload)

	ex.resp.Text = decode(e.cfg.Encoding, ex.resp.Raw)
	ex.resp.Elapsed = e.cfg.Clock.Since(ex.start)
	e.cfg.Metrics.observeExchange(ex.resp)

	fields := []zap.Field{
		zap.Stringer("outcome", ex.resp.Outcome),
		zap.Int("attempts", ex.resp.Attempts),
		zap.Int("bytes", len(ex.resp.Raw)),
		zap.Duration("elapsed", ex.resp.Elapsed),
	}
	switch ex.resp.Outcome {
	case OutcomeComplete:
		ex.log.Debug("exchange complete", fields...)
	case OutcomeCancelled:
		ex.log.Debug("exchange cancelled", fields...)
	default:
		ex.log.Warn("exchange failed", append(fields, zap.Error(err))...)
	}
	return ex.resp, err
}

// Send writes payload without waiting for a response.
func (e *Exchanger) Send(ctx context.Context, p Port, payload []byte) error {
	n, err := p.WriteContext(ctx, payload)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &WriteError{Device: p.Name(), Written: n, Expected: len(payload), Err: err}
	}
	if n < len(payload) {
		return &WriteError{Device: p.Name(), Written: n, Expected: len(payload), Err: ErrShortWrite}
	}
	e.cfg.Logger.Debug("payload sent", zap.String("device", p.Name()), zap.Int("bytes", n))
	return nil
}

// exchange is the state of one Exchange call.
type exchange struct {
	cfg   ExchangeConfig
	port  Port
	log   *zap.Logger
	start time.Time
	resp  *Response
}

func (ex *exchange) run(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		ex.resp.Outcome = OutcomeCancelled
		return err
	}

	waiter, err := NewWaiter(ex.port, ex.cfg.Strategy, ex.cfg.Clock)
	if err != nil {
		ex.resp.Outcome = OutcomeReadError
		return fmt.Errorf("%s: prepare readiness wait: %w", ex.resp.Device, err)
	}
	defer waiter.Close()
	_, sleeping := waiter.(*sleepWaiter)

	if ex.cfg.FlushInput {
		if err := ex.port.FlushInput(); err != nil {
			ex.resp.Outcome = OutcomeWriteError
			return &WriteError{Device: ex.resp.Device, Expected: len(payload), Err: err}
		}
	}

	// Writing
	n, err := ex.port.Write(payload)
	if err != nil {
		ex.resp.Outcome = OutcomeWriteError
		return &WriteError{Device: ex.resp.Device, Written: n, Expected: len(payload), Err: err}
	}
	if n < len(payload) {
		ex.resp.Outcome = OutcomeWriteError
		return &WriteError{Device: ex.resp.Device, Written: n, Expected: len(payload), Err: ErrShortWrite}
	}

	counter := newAttemptCounter(ex.cfg.Retry)
	buf := make([]byte, ex.cfg.BufferSize)
	readStart := ex.cfg.Clock.Now()
	window := ex.cfg.Retry.window()
	progressed := false

	for {
		if err := ctx.Err(); err != nil {
			return ex.cancelled(counter, err)
		}

		// AwaitingReadiness. A sleeping waiter reads straight on after a
		// read that brought data.
		if !(sleeping && progressed) {
			readiness, err := waiter.Wait(ctx, ex.cfg.Retry.Delay)
			if err != nil {
				if ctx.Err() != nil {
					return ex.cancelled(counter, ctx.Err())
				}
				if counter.consume(err) {
					return ex.exhausted(counter)
				}
				continue
			}
			if readiness == TimedOut {
				ex.log.Debug("readiness wait timed out", zap.Int("attempt", counter.used+1))
				progressed = false
				if counter.consume(nil) {
					return ex.exhausted(counter)
				}
				continue
			}
		}

		// Reading
		n, err := ex.port.Read(buf)
		ex.resp.Reads++
		if n > 0 {
			ex.resp.Raw = append(ex.resp.Raw, buf[:n]...)
		}

		var hard error
		switch {
		case err == nil, isWouldBlock(err):
		case isFatalReadError(err):
			counter.consume(err)
			ex.resp.Attempts = counter.used
			ex.resp.Outcome = OutcomeReadError
			return &ReadError{Device: ex.resp.Device, Attempts: counter.used, Err: err}
		default:
			hard = err
			ex.log.Debug("read failed", zap.Int("attempt", counter.used+1), zap.Error(err))
		}

		if n > 0 && hard == nil {
			counter.progress()
			progressed = true
			if ex.resp.Terminated(ex.cfg.Terminator) {
				ex.resp.Attempts = counter.used
				ex.resp.Outcome = OutcomeComplete
				return nil
			}
			if len(ex.resp.Raw) >= ex.cfg.MaxResponseSize ||
				(window > 0 && ex.cfg.Clock.Since(readStart) >= window) {
				ex.log.Debug("response not terminated in time",
					zap.Int("bytes", len(ex.resp.Raw)),
					zap.Duration("window", window))
				return ex.exhausted(counter)
			}
			continue
		}

		progressed = false
		exhausted := counter.consume(hard)
		if n > 0 && ex.resp.Terminated(ex.cfg.Terminator) {
			ex.resp.Attempts = counter.used
			ex.resp.Outcome = OutcomeComplete
			return nil
		}
		if exhausted {
			return ex.exhausted(counter)
		}
	}
}

func (ex *exchange) exhausted(counter *attemptCounter) error {
	ex.resp.Attempts = counter.used
	err := counter.failure(ex.resp.Device)
	if _, ok := err.(*ReadError); ok {
		ex.resp.Outcome = OutcomeReadError
	} else {
		ex.resp.Outcome = OutcomeNoResponse
	}
	return err
}

func (ex *exchange) cancelled(counter *attemptCounter, err error) error {
	ex.resp.Attempts = counter.used
	ex.resp.Outcome = OutcomeCancelled
	return err
}

// isWouldBlock reports read errors that only mean no data was available.
func isWouldBlock(err error) bool {
	return errors.Is(err, ErrWouldBlock) || errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR)
}

// isFatalReadError reports errors after which no further read can succeed.
func isFatalReadError(err error) bool {
	return errors.Is(err, ErrPortClosed) || errors.Is(err, unix.EBADF)
}

// decode converts raw response bytes to text. Invalid sequences become
// U+FFFD.
func decode(enc encoding.Encoding, raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), "\uFFFD")
	}
	return string(bytes.ToValidUTF8(out, []byte("\uFFFD")))
}

var defaultExchanger = &Exchanger{cfg: DefaultExchangeConfig()}

// Exchange sends payload over p and returns the terminated response text,
// using the default retry budget and a newline terminator.
func Exchange(ctx context.Context, p Port, payload string) (string, error) {
	resp, err := defaultExchanger.Exchange(ctx, p, []byte(payload))
	return resp.Text, err
}
