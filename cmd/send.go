/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	serial "github.com/allbin/go-serial-exchange"
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send <port> [data]",
	Short: "Send data to a serial port without waiting for a response",
	Long: `Write data to a serial port and return without reading.

Data can be provided as:
- Command line arguments: serialx send /dev/ttyUSB0 "Hello World"
- From stdin (pipe): echo "test data" | serialx send /dev/ttyUSB0
- Interactive mode: serialx send /dev/ttyUSB0 (prompts for input)

Text gets the configured line ending appended (--line-ending, default \r\n).
Use --hex to send raw bytes.

Example usage:
  serialx send /dev/ttyUSB0 "AT+RST"
  serialx send /dev/ttyUSB0 --hex "02 06 00 03"
  serialx send /dev/ttyUSB0 "RESET" --line-ending '\n' --sync`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		portPath := args[0]
		hexMode, _ := cmd.Flags().GetBool("hex")
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
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if err := sendData(ctx, ex, portPath, payload, portOpts...); err != nil {
			exitf("%v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().BoolP("hex", "x", false, "Interpret data as hexadecimal (e.g., '48656c6c6f' for 'Hello')")
	sendCmd.Flags().DurationP("timeout", "t", 5*time.Second, "Timeout for sending data")
}

func sendData(ctx context.Context, ex *serial.Exchanger, portPath string, payload []byte, opts ...serial.Option) error {
	fmt.Printf("%s Opening %s...\n", infoMark(), portPath)

	port, err := serial.Open(portPath, opts...)
	if err != nil {
		metrics.ObserveOpenFailure(err)
		return err
	}
	defer port.Close()

	fmt.Printf("%s Connected successfully\n", successMark())

	if err := ex.Send(ctx, port, payload); err != nil {
		return fmt.Errorf("failed to send data: %w", err)
	}

	fmt.Printf("%s Sent %d bytes: %s\n", successMark(), len(payload), preview(payload))
	return nil
}
