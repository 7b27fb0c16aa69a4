package components

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/allbin/go-serial-exchange/internal/tui/colors"
	"github.com/allbin/go-serial-exchange/internal/tui/styles"
)

type SendingMode int

const (
	SendingModeASCII SendingMode = iota
	SendingModeHex
)

func (s SendingMode) String() string {
	switch s {
	case SendingModeASCII:
		return "ASCII"
	case SendingModeHex:
		return "HEX"
	default:
		return "ASCII"
	}
}

type Input struct {
	textInput     textinput.Model
	sendingMode   SendingMode
	history       []string
	historyIndex  int
	currentInput  string // Store current input when navigating history
	terminalWidth int    // Store terminal width for consistent sizing
}

func NewInput(placeholder string) *Input {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 256
	ti.Prompt = "" // We handle prompt styling separately
	ti.Focus()

	return &Input{
		textInput:    ti,
		sendingMode:  SendingModeASCII,
		history:      make([]string, 0),
		historyIndex: -1,
		currentInput: "",
	}
}

func (i *Input) SetWidth(width int) {
	// Store the terminal width for reference
	i.terminalWidth = width
	// Account for: border(2) + padding(2) + prompt(1) + space(1) = 6 characters
	usableWidth := width - 6
	if usableWidth < 20 {
		usableWidth = 20 // Minimum usable width
	}
	i.textInput.Width = usableWidth
}

func (i *Input) Focus() {
	i.textInput.Focus()
}

func (i *Input) Blur() {
	i.textInput.Blur()
}

func (i *Input) Value() string {
	return i.textInput.Value()
}

func (i *Input) SetValue(value string) {
	i.textInput.SetValue(value)
}

func (i *Input) ToggleSendingMode() {
	switch i.sendingMode {
	case SendingModeASCII:
		i.sendingMode = SendingModeHex
		i.textInput.Placeholder = "Enter hex (e.g. 48656C6C6F or 48 65 6C 6C 6F)..."
	case SendingModeHex:
		i.sendingMode = SendingModeASCII
		i.textInput.Placeholder = "Type message and press Enter to send..."
	}
}

func (i *Input) GetSendingMode() SendingMode {
	return i.sendingMode
}

// Payload converts the typed value to wire bytes. Text gets lineEnding
// appended; hex is sent exactly as typed.
func (i *Input) Payload(lineEnding string) ([]byte, error) {
	value := i.textInput.Value()
	if i.sendingMode == SendingModeHex {
		return ParseHex(value)
	}
	if value == "" {
		return nil, errors.New("empty input")
	}
	return []byte(value + lineEnding), nil
}

// ParseHex converts hex strings to bytes. Both "48 65 6C" and "48656C"
// are accepted.
func ParseHex(s string) ([]byte, error) {
	clean := strings.Join(strings.Fields(s), "")
	if clean == "" {
		return nil, errors.New("empty input")
	}
	if len(clean)%2 != 0 {
		return nil, fmt.Errorf("hex string must have even number of digits (got %d)", len(clean))
	}
	data, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex input: %w", err)
	}
	return data, nil
}

func (i *Input) Update(msg tea.Msg) (*Input, tea.Cmd) {
	var cmd tea.Cmd
	i.textInput, cmd = i.textInput.Update(msg)
	return i, cmd
}

// View renders the prompt line. Outside insert mode it shows a hint instead
// of the text field.
func (i *Input) View(insert bool, busy bool) string {
	promptSymbol, promptColor := ">", colors.Green
	if i.sendingMode == SendingModeHex {
		promptSymbol, promptColor = "#", colors.Yellow
	}
	prompt := lipgloss.NewStyle().Foreground(promptColor).Bold(true).Render(promptSymbol)

	var content string
	switch {
	case busy:
		content = lipgloss.NewStyle().Foreground(colors.Yellow).Render("waiting for response...")
	case insert:
		content = i.textInput.View()
	default:
		content = lipgloss.NewStyle().Foreground(colors.Overlay0).Render("Press 'i' to enter insert mode")
	}

	// RoundedBorder and Padding(0, 1) take four columns
	width := i.terminalWidth - 4
	if width < 10 {
		width = 10
	}
	style := styles.InputStyle.
		Width(width).
		AlignHorizontal(lipgloss.Left)
	if insert {
		style = style.BorderForeground(colors.Green)
	}
	return style.Render(lipgloss.JoinHorizontal(lipgloss.Left, prompt, " ", content))
}

// AddToHistory adds a command to the history if it's not empty or a duplicate
func (i *Input) AddToHistory(command string) {
	command = strings.TrimSpace(command)
	if command == "" {
		return
	}

	// Don't add if it's the same as the last command
	if len(i.history) > 0 && i.history[len(i.history)-1] == command {
		return
	}

	i.history = append(i.history, command)

	// Keep only last 100 commands
	if len(i.history) > 100 {
		i.history = i.history[1:]
	}

	// Reset history index
	i.historyIndex = -1
	i.currentInput = ""
}

// NavigateHistoryUp moves up in command history
func (i *Input) NavigateHistoryUp() {
	if len(i.history) == 0 {
		return
	}

	// First time navigating: save current input
	if i.historyIndex == -1 {
		i.currentInput = i.textInput.Value()
		i.historyIndex = len(i.history) - 1
	} else if i.historyIndex > 0 {
		i.historyIndex--
	}

	i.textInput.SetValue(i.history[i.historyIndex])
}

// NavigateHistoryDown moves down in command history
func (i *Input) NavigateHistoryDown() {
	if len(i.history) == 0 || i.historyIndex == -1 {
		return
	}

	if i.historyIndex < len(i.history)-1 {
		i.historyIndex++
		i.textInput.SetValue(i.history[i.historyIndex])
	} else {
		// Back to current input
		i.historyIndex = -1
		i.textInput.SetValue(i.currentInput)
		i.currentInput = ""
	}
}
