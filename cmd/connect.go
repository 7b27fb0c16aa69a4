/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	serial "github.com/allbin/go-serial-exchange"
	"github.com/allbin/go-serial-exchange/internal/tui"
)

// connectCmd represents the connect command
var connectCmd = &cobra.Command{
	Use:     "connect <port>",
	Aliases: []string{"console"},
	Short:   "Open an interactive exchange console on a serial port",
	Long: `Open an interactive console for request/response exchanges.

Type a request and press Enter to exchange it, or ctrl+s to only send it.
Every exchange is listed with its outcome, attempts and elapsed time, and
the selected one is shown in full below the list.

Keys:
  i / esc     insert mode / normal mode
  tab         toggle ASCII and hex input
  v, j, k     browse earlier exchanges
  h, a        toggle hex and ASCII display
  ctrl+x      cancel the exchange in flight
  c           clear history
  q, ctrl+c   quit

Log output to stderr or stdout is suppressed while the console runs; use
--log-output with a file path to keep it.

Example usage:
  serialx connect /dev/ttyUSB0
  serialx connect /dev/ttyUSB0 --baud 115200 --terminator '\r'
  serialx console simulated://echo --simulate 'echo=OK\r\n'`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		log := logger
		if slices.Contains(cfg.Log.Outputs, "stderr") || slices.Contains(cfg.Log.Outputs, "stdout") {
			log = zap.NewNop()
		}

		portOpts, err := cfg.PortOptions()
		if err != nil {
			exitf("%v", err)
		}
		ex, err := cfg.NewExchanger(log, metrics)
		if err != nil {
			exitf("%v", err)
		}

		if err := runConsole(args[0], ex, portOpts...); err != nil {
			exitf("%v", err)
		}
		writeMetrics(cmd)
	},
}

func init() {
	rootCmd.AddCommand(connectCmd)
}

func runConsole(portPath string, ex *serial.Exchanger, opts ...serial.Option) error {
	return tui.Run(portPath, ex, cfg.LineEnding(), opts...)
}
