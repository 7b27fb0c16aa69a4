/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	serial "github.com/allbin/go-serial-exchange"
	"github.com/allbin/go-serial-exchange/internal/config"
	"github.com/allbin/go-serial-exchange/internal/logging"
)

var (
	cfg      *config.Config
	logger   = zap.NewNop()
	registry = prometheus.NewRegistry()
	metrics  *serial.Metrics
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "serialx",
	Short: "Request/response exchanges over serial ports",
	Long: `serialx writes a request to a serial device and reads the framed
response, retrying reads until a terminator byte arrives or the retry budget
runs out.

Settings come from defaults, a config file (./serialx.yaml,
~/.config/serialx/serialx.yaml or --config), SERIALX_* environment
variables and flags, in increasing order of precedence.

Identifiers are device paths such as /dev/ttyUSB0 or driver identifiers
such as simulated://meter. Use --simulate to attach simulated devices for a
dry run:

  serialx exchange simulated://meter PING --simulate 'meter=PONG\n'`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		c, err := config.Load(path, cmd.Flags())
		if err != nil {
			return err
		}
		l, err := logging.Setup(c.Log)
		if err != nil {
			return err
		}
		cfg, logger = c, l
		if cfg.File != "" {
			logger.Debug("config loaded", zap.String("file", cfg.File))
		}

		if metrics == nil {
			m, err := serial.NewMetrics(registry)
			if err != nil {
				return err
			}
			metrics = m
		}

		sims, _ := cmd.Flags().GetStringArray("simulate")
		return attachSimulated(sims)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	d := config.Default()
	pf := rootCmd.PersistentFlags()

	pf.String("config", "", "Config file (default ./serialx.yaml or ~/.config/serialx/serialx.yaml)")

	// Port settings
	pf.IntP("baud", "b", d.Port.Speed, "Baud rate")
	pf.Int("data-bits", d.Port.DataBits, "Data bits: 5, 6, 7 or 8")
	pf.Int("stop-bits", d.Port.StopBits, "Stop bits: 1 or 2")
	pf.String("parity", d.Port.Parity, "Parity: none, odd, even, mark, space")
	pf.Duration("read-timeout", d.Port.ReadTimeout, "Per-read timeout, multiples of 100ms up to 25.5s")
	pf.Bool("exclusive", d.Port.Exclusive, "Open ports exclusively")
	pf.Bool("sync", d.Port.SyncWrite, "Wait for output to drain after every write")

	// Exchange settings
	pf.IntP("attempts", "a", d.Exchange.Attempts, "Read attempts before giving up")
	pf.Duration("delay", d.Exchange.Delay, "Wait per read attempt")
	pf.Int("buffer-size", d.Exchange.BufferSize, "Read buffer size in bytes")
	pf.Int("max-response", d.Exchange.MaxResponseSize, "Give up on a response without terminator after this many bytes")
	pf.String("terminator", d.Exchange.Terminator, `Response terminator byte, e.g. \n, \r or 0x03`)
	pf.String("strategy", d.Exchange.Strategy, "Wait strategy: auto, poll, sleep")
	pf.String("encoding", d.Exchange.Encoding, "Response text encoding, e.g. utf-8, latin1")
	pf.Bool("flush", d.Exchange.FlushInput, "Discard unread input before writing a request")
	pf.String("line-ending", d.Exchange.LineEnding, "Appended to text requests")

	// Logging
	pf.String("log-level", d.Log.Level, "Log level: debug, info, warn, error")
	pf.String("log-format", d.Log.Format, "Log format: console, json")
	pf.StringSlice("log-output", d.Log.Outputs, "Log outputs: stderr, stdout or file paths")

	pf.StringArray("simulate", nil, `Attach a simulated device answering every request, as name=reply (repeatable)`)
	pf.String("metrics-textfile", "", "Write exchange metrics in Prometheus text format to this file")
}

// attachSimulated registers --simulate devices with the simulated driver.
// An empty reply attaches a device that never answers.
func attachSimulated(specs []string) error {
	for _, s := range specs {
		name, reply, _ := strings.Cut(s, "=")
		if name == "" {
			return fmt.Errorf("invalid --simulate %q: want name=reply", s)
		}
		text, err := config.Unescape(reply)
		if err != nil {
			return fmt.Errorf("invalid --simulate %q: %w", s, err)
		}
		if text == "" {
			serial.DefaultSimulator.Attach(name, serial.Silence())
		} else {
			serial.DefaultSimulator.Attach(name, serial.Reply(text))
		}
		logger.Debug("simulated device attached", zap.String("name", name))
	}
	return nil
}

// newExchanger builds the configured exchanger, wired to the logger and metrics.
func newExchanger() (*serial.Exchanger, []serial.Option, error) {
	portOpts, err := cfg.PortOptions()
	if err != nil {
		return nil, nil, err
	}
	ex, err := cfg.NewExchanger(logger, metrics)
	if err != nil {
		return nil, nil, err
	}
	return ex, portOpts, nil
}

// writeMetrics writes the registry to --metrics-textfile when it is set.
func writeMetrics(cmd *cobra.Command) {
	path, _ := cmd.Flags().GetString("metrics-textfile")
	if path == "" {
		return
	}
	if err := prometheus.WriteToTextfile(path, registry); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing metrics: %v\n", err)
	}
}

func exitf(format string, args ...any) {
	_ = logger.Sync()
	fmt.Fprintf(os.Stderr, "%s "+format+"\n", append([]any{errorMark()}, args...)...)
	os.Exit(1)
}
