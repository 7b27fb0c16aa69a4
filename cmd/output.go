/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	serial "github.com/allbin/go-serial-exchange"
	"github.com/allbin/go-serial-exchange/internal/tui/components"
	"github.com/allbin/go-serial-exchange/internal/tui/styles"
)

func errorMark() string   { return styles.ErrorStyle.Render("✗") }
func successMark() string { return styles.SuccessStyle.Render("✓") }
func infoMark() string    { return styles.InfoStyle.Render("⚡") }

// buildPayload turns command line data into request bytes. Text gets the
// line ending appended; hex is sent as is.
func buildPayload(data string, hexMode bool, lineEnding string) ([]byte, error) {
	if hexMode {
		data = strings.NewReplacer("0x", "", "0X", "", ",", " ").Replace(data)
		return components.ParseHex(data)
	}
	if data == "" {
		return nil, fmt.Errorf("no data to send")
	}
	return []byte(data + lineEnding), nil
}

// readData returns data from the arguments, piped stdin, or an interactive
// prompt, in that order.
func readData(args []string, stdin *os.File) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	stat, err := stdin.Stat()
	if err != nil || (stat.Mode()&os.ModeCharDevice) != 0 {
		return promptForData(stdin), nil
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("reading from stdin: %w", err)
	}
	return strings.TrimRight(string(b), "\r\n"), nil
}

func promptForData(in io.Reader) string {
	fmt.Print(styles.InfoStyle.Render("Enter data to send: "))

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return scanner.Text()
	}
	return ""
}

// preview shortens data for display and replaces non-printable bytes.
func preview(data []byte) string {
	if len(data) > 50 {
		return components.PrintableASCII(data[:50]) + "..."
	}
	return components.PrintableASCII(data)
}

// summary is the one-line outcome of an exchange.
func summary(resp *serial.Response) string {
	status := components.OutcomeStyle(resp.Outcome.String()).Render(resp.Outcome.String())
	return fmt.Sprintf("%s  %s", status, styles.MutedStyle.Render(fmt.Sprintf(
		"%d attempt(s), %d read(s), %d bytes in %s",
		resp.Attempts, resp.Reads, len(resp.Raw), resp.Elapsed.Round(time.Millisecond))))
}
