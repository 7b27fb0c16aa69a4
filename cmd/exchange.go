/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	serial "github.com/allbin/go-serial-exchange"
)

// exchangeCmd represents the exchange command
var exchangeCmd = &cobra.Command{
	Use:   "exchange <port> [data]",
	Short: "Send a request and print the framed response",
	Long: `Write one request to a serial port and read the response until the
terminator byte arrives or the retry budget runs out.

Data can be given as arguments, piped on stdin or typed at a prompt. Text
requests get the configured line ending appended (--line-ending).

The response text is printed on stdout and the outcome on stderr. The exit
status is non-zero unless the response was complete.

Example usage:
  serialx exchange /dev/ttyUSB0 AT+VER
  serialx exchange /dev/ttyUSB0 --hex "02 06 00 03" --terminator 0x03
  serialx exchange /dev/ttyACM0 "*IDN?" --attempts 20 --delay 50ms --json
  echo STATUS | serialx exchange /dev/ttyUSB0`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		portPath := args[0]
		hexMode, _ := cmd.Flags().GetBool("hex")
		jsonOut, _ := cmd.Flags().GetBool("json")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		data, err := readData(args[1:], os.Stdin)
		if err != nil {
			exitf("%v", err)
		}
		payload, err := buildPayload(data, hexMode, cfg.LineEnding())
		if err != nil {
			exitf("Invalid data: %v", err)
		}

		ex, portOpts, err := newExchanger()
		if err != nil {
			exitf("%v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		resp, err := exchangeOnce(ctx, ex, portPath, payload, portOpts...)
		writeMetrics(cmd)
		if resp == nil {
			exitf("%v", err)
		}

		if jsonOut {
			_ = printJSON(os.Stdout, newExchangeOutput(payload, resp, err))
		} else {
			fmt.Print(resp.Text)
			if len(resp.Text) > 0 && resp.Text[len(resp.Text)-1] != '\n' {
				fmt.Println()
			}
			fmt.Fprintln(os.Stderr, summary(resp))
		}
		if err != nil {
			if !jsonOut {
				exitf("%v", err)
			}
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(exchangeCmd)

	exchangeCmd.Flags().BoolP("hex", "x", false, "Interpret data as hexadecimal (e.g., '48656c6c6f' for 'Hello')")
	exchangeCmd.Flags().Bool("json", false, "Print the response as JSON")
	exchangeCmd.Flags().DurationP("timeout", "t", 0, "Overall deadline for the exchange (0 means none)")
}

// exchangeOnce opens portPath, runs one exchange and closes the port. The
// response is nil only when the port could not be opened.
func exchangeOnce(ctx context.Context, ex *serial.Exchanger, portPath string, payload []byte, opts ...serial.Option) (*serial.Response, error) {
	port, err := serial.Open(portPath, opts...)
	if err != nil {
		metrics.ObserveOpenFailure(err)
		return nil, err
	}
	defer func() {
		if cerr := port.Close(); cerr != nil {
			logger.Warn("close failed", zap.String("port", portPath), zap.Error(cerr))
		}
	}()
	return ex.Exchange(ctx, port, payload)
}

type exchangeOutput struct {
	ID       string `json:"id"`
	Device   string `json:"device"`
	Sent     string `json:"sent"`
	Raw      []byte `json:"raw"`
	Text     string `json:"text"`
	Outcome  string `json:"outcome"`
	Attempts int    `json:"attempts"`
	Reads    int    `json:"reads"`
	Elapsed  string `json:"elapsed"`
	Error    string `json:"error,omitempty"`
}

func newExchangeOutput(payload []byte, resp *serial.Response, err error) exchangeOutput {
	out := exchangeOutput{
		ID:       resp.ID,
		Device:   resp.Device,
		Sent:     string(payload),
		Raw:      resp.Raw,
		Text:     resp.Text,
		Outcome:  resp.Outcome.String(),
		Attempts: resp.Attempts,
		Reads:    resp.Reads,
		Elapsed:  resp.Elapsed.Round(time.Microsecond).String(),
	}
	if err != nil {
		out.Error = err.Error()
		if errors.Is(err, serial.ErrNoResponse) {
			out.Error = "no response"
		}
	}
	return out
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
