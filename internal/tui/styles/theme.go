package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/allbin/go-serial-exchange/internal/tui/colors"
)

var (
	// Header styles
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Mauve).
			Background(colors.Surface0).
			Padding(0, 1)

	// Content area styles
	ContentBorderStyle = lipgloss.NewStyle().
				BorderTop(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(colors.Surface1)

	// Input styles
	InputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colors.Surface2).
			Padding(0, 1)

	// Command output styles
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Red)

	InfoStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Mauve)

	SuccessStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Green)

	WarnStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Peach)

	LabelStyle = lipgloss.NewStyle().
			Foreground(colors.Sapphire).
			Width(18)

	MutedStyle = lipgloss.NewStyle().
			Foreground(colors.Overlay1)
)
