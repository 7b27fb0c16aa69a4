package script

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	serial "github.com/allbin/go-serial-exchange"
)

// Runner executes scripts through a port pool.
type Runner struct {
	pool *serial.Pool
	log  *zap.Logger
	now  func() time.Time
}

// NewRunner creates a Runner. A nil log discards log output.
func NewRunner(pool *serial.Pool, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{pool: pool, log: log.Named("script"), now: time.Now}
}

// Run executes s against device. Device failures are recorded in the
// report; the error is only set when ctx ends before the script does.
func (r *Runner) Run(ctx context.Context, s *Script, device string) (*Report, error) {
	return r.run(ctx, s, device, uuid.NewString())
}

// RunAll executes s against every device with at most limit devices in
// flight; limit <= 0 means no limit. All reports share one run id and are
// returned in device order.
func (r *Runner) RunAll(ctx context.Context, s *Script, devices []string, limit int) ([]*Report, error) {
	runID := uuid.NewString()
	reports := make([]*Report, len(devices))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, device := range devices {
		g.Go(func() error {
			rep, err := r.run(ctx, s, device, runID)
			reports[i] = rep
			return err
		})
	}
	err := g.Wait()
	return reports, err
}

func (r *Runner) run(ctx context.Context, s *Script, device, runID string) (*Report, error) {
	log := r.log.With(zap.String("run_id", runID), zap.String("device", device))
	rep := &Report{
		RunID:   runID,
		Script:  s.Name,
		Device:  device,
		Started: r.now(),
		Total:   s.Len(),
		Results: make([]CommandResult, 0, s.Len()),
	}
	log.Info("script started", zap.String("script", s.Name), zap.Int("commands", rep.Total))

	var err error
steps:
	for i, step := range s.Steps {
		for _, c := range step.Commands {
			res := r.runCommand(ctx, s, device, i, step, c)
			rep.Results = append(rep.Results, res)

			if ctx.Err() != nil {
				err = ctx.Err()
				break steps
			}
			if !res.Passed {
				log.Warn("command failed",
					zap.Int("step", res.Step),
					zap.String("command", c.Command),
					zap.String("error", res.Error))
				if s.StopOnFailure {
					break steps
				}
			}
		}
	}

	rep.Finished = r.now()
	rep.finish()
	log.Info("script finished",
		zap.Bool("passed", rep.Passed),
		zap.Int("failed", rep.Failed),
		zap.Int("skipped", rep.Skipped),
		zap.Duration("elapsed", rep.Finished.Sub(rep.Started)))
	return rep, err
}

func (r *Runner) runCommand(ctx context.Context, s *Script, device string, stepIdx int, step Step, c Command) CommandResult {
	payload := c.Payload(s.LineEnding)
	res := CommandResult{
		Step:        stepIdx + 1,
		Description: step.Description,
		Command:     c.Command,
		Payload:     string(payload),
		ReadAfter:   c.ReadAfter,
		Expect:      c.Expect,
	}

	if !c.ReadAfter {
		err := r.pool.Send(ctx, device, payload)
		res.Outcome = "sent"
		if err != nil {
			res.Outcome = serial.OutcomeWriteError.String()
			res.Error = err.Error()
			return res
		}
		res.Passed = true
		return res
	}

	resp, err := r.pool.Exchange(ctx, device, payload)
	if resp != nil {
		res.ExchangeID = resp.ID
		res.Response = resp.Text
		res.Outcome = resp.Outcome.String()
		res.Attempts = resp.Attempts
		res.Elapsed = resp.Elapsed
	}
	switch {
	case err != nil:
		if resp == nil {
			res.Outcome = outcomeOpenError
		}
		if errors.Is(err, serial.ErrNoResponse) {
			res.Error = "no response"
		} else {
			res.Error = err.Error()
		}
	case c.Expect != "" && !strings.Contains(resp.Text, c.Expect):
		res.Error = "response does not contain " + quote(c.Expect)
	default:
		res.Passed = true
	}
	return res
}

const outcomeOpenError = "open_error"

func quote(s string) string {
	return `"` + strings.NewReplacer("\r", `\r`, "\n", `\n`).Replace(s) + `"`
}
