package serial

import (
	"fmt"
	"time"
)

// RetryBudget bounds the read side of one exchange.
type RetryBudget struct {
	// MaxAttempts is the number of read attempts before giving up. Default: 10
	MaxAttempts int

	// Delay is the wait between attempts, and the readiness wait budget of
	// each attempt when a notifier is used. Default: 100ms
	Delay time.Duration
}

// DefaultRetryBudget returns a RetryBudget with the default bounds.
func DefaultRetryBudget() RetryBudget {
	return RetryBudget{
		MaxAttempts: 10,
		Delay:       100 * time.Millisecond,
	}
}

// Validate reports whether the budget is usable.
func (b RetryBudget) Validate() error {
	if b.MaxAttempts < 1 {
		return fmt.Errorf("%w: retry attempts must be at least 1, got %d", ErrInvalidConfig, b.MaxAttempts)
	}
	if b.Delay < 0 {
		return fmt.Errorf("%w: retry delay must not be negative, got %v", ErrInvalidConfig, b.Delay)
	}
	return nil
}

// window is the longest a response may keep arriving without its
// terminator. Zero means only the response size bounds it.
func (b RetryBudget) window() time.Duration {
	return time.Duration(b.MaxAttempts) * b.Delay
}

// attemptCounter tracks one exchange's consumption of a RetryBudget. Only
// attempts that bring no data are charged; reads that make progress are
// counted but free.
type attemptCounter struct {
	budget  RetryBudget
	used    int
	charged int
	hardErr error
}

func newAttemptCounter(b RetryBudget) *attemptCounter {
	return &attemptCounter{budget: b}
}

// consume charges one attempt. err is the hard read error of the attempt,
// nil for silence. It reports whether the budget is now exhausted.
func (c *attemptCounter) consume(err error) bool {
	c.used++
	c.charged++
	if err != nil {
		c.hardErr = err
	}
	return c.charged >= c.budget.MaxAttempts
}

// progress records an attempt that returned data.
func (c *attemptCounter) progress() {
	c.used++
}

// failure builds the terminal error for an exhausted budget.
func (c *attemptCounter) failure(device string) error {
	if c.hardErr != nil {
		return &ReadError{Device: device, Attempts: c.used, Err: c.hardErr}
	}
	return &NoResponseError{Device: device, Attempts: c.used}
}
