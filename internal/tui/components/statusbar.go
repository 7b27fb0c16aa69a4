package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	serial "github.com/allbin/go-serial-exchange"
	"github.com/allbin/go-serial-exchange/internal/tui/colors"
)

// ConnectionInfo is the line and exchange setup shown in the status bar.
type ConnectionInfo struct {
	Port     serial.Config
	Exchange serial.ExchangeConfig
}

// Summary renders e.g. "9600 8N1 10×100ms auto".
func (ci ConnectionInfo) Summary() string {
	return fmt.Sprintf("%d %d%s%d %d×%s %s",
		ci.Port.BaudRate,
		ci.Port.DataBits,
		ci.Port.Parity,
		ci.Port.StopBits,
		ci.Exchange.Retry.MaxAttempts,
		ci.Exchange.Retry.Delay,
		ci.Exchange.Strategy)
}

type StatusBar struct {
	portPath       string
	status         string
	err            error
	width          int
	connectionInfo *ConnectionInfo
	counts         map[string]int
}

func NewStatusBar(portPath string) *StatusBar {
	return &StatusBar{
		portPath: portPath,
		status:   "Initializing...",
		counts:   make(map[string]int),
	}
}

func (sb *StatusBar) SetWidth(width int) {
	sb.width = width
}

func (sb *StatusBar) SetConnectionInfo(info *ConnectionInfo) {
	sb.connectionInfo = info
}

func (sb *StatusBar) SetConnecting() {
	sb.status = "Connecting..."
	sb.err = nil
}

func (sb *StatusBar) SetConnected() {
	sb.status = "Connected"
	sb.err = nil
}

func (sb *StatusBar) SetDisconnected(err error) {
	if err != nil {
		sb.status = fmt.Sprintf("Connection failed: %v", err)
	} else {
		sb.status = "Disconnected"
	}
	sb.err = err
}

// SetMessage shows a transient message such as an input error.
func (sb *StatusBar) SetMessage(msg string) {
	sb.status = msg
}

func (sb *StatusBar) Status() string {
	return sb.status
}

// Count records a finished exchange outcome.
func (sb *StatusBar) Count(status string) {
	sb.counts[status]++
}

func (sb *StatusBar) ResetCounts() {
	sb.counts = make(map[string]int)
}

// View renders the bottom bar: mode, port, connection state, outcome
// counts, line settings and clock.
func (sb *StatusBar) View(inputMode, sendingMode, viewMode string, connected bool, timestamp string) string {
	width := sb.width
	if width <= 0 {
		width = 80
	}

	modeBg := colors.Blue
	if inputMode == "INSERT" {
		modeBg = colors.Green
	}
	mode := lipgloss.NewStyle().
		Foreground(colors.Base).
		Background(modeBg).
		Bold(true).
		Padding(0, 1).
		Render(inputMode)

	port := lipgloss.NewStyle().
		Foreground(colors.Mauve).
		Bold(true).
		Padding(0, 1).
		Render(sb.portPath)

	indicator, indicatorColor := "○", colors.Red
	switch {
	case sb.err != nil:
		indicator = "✗"
	case connected:
		indicator, indicatorColor = "●", colors.Green
	case sb.status == "Connecting...":
		indicatorColor = colors.Yellow
	}
	conn := lipgloss.NewStyle().Foreground(indicatorColor).Render(indicator)

	divider := lipgloss.NewStyle().
		Foreground(colors.Surface2).
		Padding(0, 1).
		Render("│")

	left := []string{mode, port, conn}
	if inputMode == "INSERT" {
		left = append(left, lipgloss.NewStyle().
			Foreground(colors.Peach).
			Bold(true).
			Padding(0, 1).
			Render(fmt.Sprintf("[%s] Tab to toggle", sendingMode)))
	} else {
		left = append(left, lipgloss.NewStyle().
			Foreground(colors.Overlay1).
			Padding(0, 1).
			Render(viewMode))
	}
	left = append(left, divider, sb.countsView())
	leftSide := lipgloss.JoinHorizontal(lipgloss.Left, left...)

	info := "⚡ serial"
	if sb.connectionInfo != nil {
		info = "⚡ " + sb.connectionInfo.Summary()
	}
	details := lipgloss.NewStyle().Foreground(colors.Subtext0).Padding(0, 1).Render(info)
	clock := lipgloss.NewStyle().Foreground(colors.Subtext1).Padding(0, 1).Render(timestamp)
	rightSide := lipgloss.JoinHorizontal(lipgloss.Left, details, divider, clock)

	spacerWidth := width - lipgloss.Width(leftSide) - lipgloss.Width(rightSide)
	if spacerWidth < 1 {
		spacerWidth = 1
	}
	spacer := lipgloss.NewStyle().Width(spacerWidth).Render("")

	return lipgloss.NewStyle().
		Foreground(colors.Text).
		Background(colors.Surface0).
		Width(width).
		Render(lipgloss.JoinHorizontal(lipgloss.Left, leftSide, spacer, rightSide))
}

func (sb *StatusBar) countsView() string {
	if sb.err != nil || len(sb.counts) == 0 {
		return lipgloss.NewStyle().Foreground(colors.Subtext0).Render(sb.status)
	}
	var parts []string
	for _, status := range []string{"complete", "sent", "no_response", "read_error", "write_error", "cancelled"} {
		if n := sb.counts[status]; n > 0 {
			parts = append(parts, OutcomeStyle(status).Render(fmt.Sprintf("%s %d", status, n)))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Left, joinSpaced(parts)...)
}

func joinSpaced(parts []string) []string {
	out := make([]string, 0, 2*len(parts))
	for i, p := range parts {
		if i > 0 {
			out = append(out, " ")
		}
		out = append(out, p)
	}
	return out
}
