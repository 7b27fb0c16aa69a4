// Package colors holds the Catppuccin Mocha palette used by the console
// and the command output.
package colors

import "github.com/charmbracelet/lipgloss"

// Backgrounds and surfaces
var (
	Base     = lipgloss.Color("#1e1e2e")
	Surface0 = lipgloss.Color("#313244")
	Surface1 = lipgloss.Color("#45475a")
	Surface2 = lipgloss.Color("#585b70")
	Overlay0 = lipgloss.Color("#6c7086")
	Overlay1 = lipgloss.Color("#7f849c")
)

// Text
var (
	Subtext0 = lipgloss.Color("#a6adc8")
	Subtext1 = lipgloss.Color("#bac2de")
	Text     = lipgloss.Color("#cdd6f4")
)

// Accents. Green, Peach and Red double as the complete, no response and
// failure outcome colours.
var (
	Mauve    = lipgloss.Color("#cba6f7")
	Blue     = lipgloss.Color("#89b4fa")
	Sapphire = lipgloss.Color("#74c7ec")
	Sky      = lipgloss.Color("#89dceb")
	Green    = lipgloss.Color("#a6e3a1")
	Yellow   = lipgloss.Color("#f9e2af")
	Peach    = lipgloss.Color("#fab387")
	Red      = lipgloss.Color("#f38ba8")
)
