package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	serial "github.com/allbin/go-serial-exchange"
	"github.com/allbin/go-serial-exchange/internal/tui/colors"
)

// Record is one console exchange. Response stays nil for sends and for
// exchanges whose port could not be used.
type Record struct {
	Timestamp time.Time
	Sent      []byte
	WriteOnly bool
	Done      bool
	Response  *serial.Response
	Err       error
}

// Pending reports whether the exchange has not finished yet.
func (r Record) Pending() bool {
	return !r.Done
}

// Status is the short outcome label shown in the history.
func (r Record) Status() string {
	switch {
	case r.Pending():
		return "pending"
	case r.WriteOnly && r.Err == nil:
		return "sent"
	case r.Response != nil:
		return r.Response.Outcome.String()
	case r.WriteOnly:
		return serial.OutcomeWriteError.String()
	default:
		return "error"
	}
}

// Received returns the response bytes, if any.
func (r Record) Received() []byte {
	if r.Response == nil {
		return nil
	}
	return r.Response.Raw
}

type DisplayMode struct {
	ShowHex   bool
	ShowASCII bool
}

type DataFormatter struct {
	mode DisplayMode
}

func NewDataFormatter(showHex, showASCII bool) *DataFormatter {
	return &DataFormatter{
		mode: DisplayMode{
			ShowHex:   showHex,
			ShowASCII: showASCII,
		},
	}
}

func (df *DataFormatter) SetDisplayMode(showHex, showASCII bool) {
	df.mode.ShowHex = showHex
	df.mode.ShowASCII = showASCII
}

func (df *DataFormatter) GetDisplayMode() DisplayMode {
	return df.mode
}

func (df *DataFormatter) ToggleHex() {
	df.mode.ShowHex = !df.mode.ShowHex
}

func (df *DataFormatter) ToggleASCII() {
	df.mode.ShowASCII = !df.mode.ShowASCII
}

// FormatBytes renders data in the enabled display modes.
func (df *DataFormatter) FormatBytes(data []byte) string {
	var parts []string
	if df.mode.ShowHex {
		parts = append(parts, HexString(data))
	}
	if df.mode.ShowASCII {
		parts = append(parts, PrintableASCII(data))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%d bytes", len(data))
	}
	return strings.Join(parts, "  ")
}

// FormatRecord renders a record as a multi-line detail block.
func (df *DataFormatter) FormatRecord(rec Record) string {
	label := lipgloss.NewStyle().Foreground(colors.Subtext0)
	timestamp := label.Render(fmt.Sprintf("[%s]", rec.Timestamp.Format("15:04:05.000")))

	tx := lipgloss.NewStyle().Foreground(colors.Peach).Bold(true).Render("↗ TX")
	lines := []string{
		fmt.Sprintf("%s %s: %s", timestamp, tx, df.FormatBytes(rec.Sent)),
	}

	status := OutcomeStyle(rec.Status()).Render(rec.Status())
	if resp := rec.Response; resp != nil && !rec.WriteOnly {
		rx := lipgloss.NewStyle().Foreground(colors.Sky).Bold(true).Render("↙ RX")
		lines = append(lines,
			fmt.Sprintf("%s %s: %s", timestamp, rx, df.FormatBytes(resp.Raw)),
			label.Render(fmt.Sprintf("%s  attempts %d  reads %d  %s  id %s",
				status, resp.Attempts, resp.Reads, resp.Elapsed.Round(time.Millisecond), resp.ID)),
		)
	} else {
		lines = append(lines, status)
	}
	if rec.Err != nil {
		lines = append(lines, lipgloss.NewStyle().Foreground(colors.Red).Render(rec.Err.Error()))
	}
	return strings.Join(lines, "\n")
}

// OutcomeStyle colours an outcome label.
func OutcomeStyle(status string) lipgloss.Style {
	var c lipgloss.Color
	switch status {
	case "pending":
		c = colors.Yellow
	case "complete", "sent":
		c = colors.Green
	case "no_response":
		c = colors.Peach
	case "cancelled":
		c = colors.Overlay1
	default:
		c = colors.Red
	}
	return lipgloss.NewStyle().Foreground(c).Bold(true)
}

// HexString renders data as space separated upper case hex.
func HexString(data []byte) string {
	return fmt.Sprintf("% X", data)
}

// PrintableASCII replaces bytes outside printable ASCII with dots.
func PrintableASCII(data []byte) string {
	var b strings.Builder
	b.Grow(len(data))
	for _, c := range data {
		if c >= 32 && c <= 126 {
			b.WriteByte(c)
		} else {
			b.WriteByte('.')
		}
	}
	return b.String()
}
