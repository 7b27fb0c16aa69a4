/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	serial "github.com/allbin/go-serial-exchange"
	"github.com/allbin/go-serial-exchange/internal/config"
	"github.com/allbin/go-serial-exchange/internal/script"
	"github.com/allbin/go-serial-exchange/internal/tui/components"
	"github.com/allbin/go-serial-exchange/internal/tui/styles"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <script.toml> <port>...",
	Short: "Run a command script against one or more devices",
	Long: `Run a TOML command script against one or more serial devices.

A script is a list of steps, each with one or more commands. Commands with
read_after = true are exchanged and their response is checked against the
optional expect substring; other commands are only written.

  name = "smoke test"
  line_ending = "\r\n"
  stop_on_failure = true

  [[steps]]
  description = "identify"
  [[steps.commands]]
  command = "AT+VER"
  read_after = true
  expect = "VER"

Devices are run concurrently (--concurrency) over a shared port pool
(--pool-size). The exit status is non-zero unless every device passed.

Example usage:
  serialx run smoke.toml /dev/ttyUSB0 /dev/ttyUSB1 --report results.json
  serialx run smoke.toml simulated://a --simulate 'a=VER 1.0\r\n'`,
	Args: cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		s, err := script.LoadFile(args[0])
		if err != nil {
			exitf("%v", err)
		}
		devices := args[1:]

		ex, portOpts, err := newExchanger()
		if err != nil {
			exitf("%v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		reports, err := runScript(ctx, s, devices, ex, portOpts...)
		writeMetrics(cmd)
		if reportPath, _ := cmd.Flags().GetString("report"); reportPath != "" && len(reports) > 0 {
			if serr := script.SaveReports(reportPath, reports); serr != nil {
				err = multierr.Append(err, serr)
			}
		}

		printReports(os.Stdout, reports)
		if err != nil {
			exitf("%v", err)
		}
		for _, rep := range reports {
			if rep == nil || !rep.Passed {
				os.Exit(1)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	d := config.Default()
	runCmd.Flags().Int("pool-size", d.Pool.Size, "Ports kept open at once")
	runCmd.Flags().IntP("concurrency", "c", d.Pool.Concurrency, "Devices run at once (0 means all)")
	runCmd.Flags().StringP("report", "r", "", "Write JSON reports to this file")
}

// runScript runs s against devices through a pool sized from the config.
func runScript(ctx context.Context, s *script.Script, devices []string, ex *serial.Exchanger, opts ...serial.Option) (reports []*script.Report, err error) {
	pool, err := serial.NewPool(cfg.Pool.Size, ex, opts...)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Append(err, pool.Close())
	}()

	runner := script.NewRunner(pool, logger)
	return runner.RunAll(ctx, s, devices, cfg.Pool.Concurrency)
}

func printReports(w io.Writer, reports []*script.Report) {
	for _, rep := range reports {
		if rep == nil {
			continue
		}
		mark := successMark()
		if !rep.Passed {
			mark = errorMark()
		}
		fmt.Fprintf(w, "%s %s  %s\n", mark, styles.InfoStyle.Render(rep.Device),
			styles.MutedStyle.Render(fmt.Sprintf("%d commands, %d failed, %d skipped in %s",
				rep.Total, rep.Failed, rep.Skipped, rep.Finished.Sub(rep.Started).Round(time.Millisecond))))
		for _, res := range rep.Results {
			if res.Passed {
				continue
			}
			fmt.Fprintf(w, "    step %d %-16s %s %s\n", res.Step, res.Command,
				components.OutcomeStyle(res.Outcome).Render(res.Outcome), res.Error)
		}
	}
}
