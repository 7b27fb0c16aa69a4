package keys

import "github.com/charmbracelet/bubbles/key"

// ConsoleKeys are the bindings of the exchange console. Mode keys switch
// between editing a request and browsing earlier exchanges; view keys pick
// how response bytes are rendered.
type ConsoleKeys struct {
	// modes
	InsertMode key.Binding
	VisualMode key.Binding
	Escape     key.Binding

	// request entry
	Enter          key.Binding
	Send           key.Binding
	ToggleSendMode key.Binding
	Cancel         key.Binding

	// history and view
	Up          key.Binding
	Down        key.Binding
	Clear       key.Binding
	ToggleHex   key.Binding
	ToggleASCII key.Binding

	Help key.Binding
	Quit key.Binding
}

func NewConsoleKeys() ConsoleKeys {
	return ConsoleKeys{
		InsertMode: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "edit request"),
		),
		VisualMode: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "browse history"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "leave mode"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "exchange"),
		),
		Send: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "send without reading"),
		),
		ToggleSendMode: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "text/hex input"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("ctrl+x", "cancel exchange"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "older"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "newer"),
		),
		Clear: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "clear exchanges"),
		),
		ToggleHex: key.NewBinding(
			key.WithKeys("h"),
			key.WithHelp("h", "hex view"),
		),
		ToggleASCII: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "ascii view"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q/ctrl+c", "exit"),
		),
	}
}

func (k ConsoleKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.InsertMode, k.VisualMode, k.Enter, k.Quit}
}

func (k ConsoleKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.InsertMode, k.VisualMode, k.Escape, k.Clear},
		{k.Enter, k.Send, k.ToggleSendMode, k.Cancel},
		{k.ToggleHex, k.ToggleASCII, k.Up, k.Down},
		{k.Help, k.Quit},
	}
}
