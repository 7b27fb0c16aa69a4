// Package tui is the interactive exchange console: type a request, see the
// framed response, browse earlier exchanges.
package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	serial "github.com/allbin/go-serial-exchange"
	"github.com/allbin/go-serial-exchange/internal/tui/components"
	"github.com/allbin/go-serial-exchange/internal/tui/keys"
	"github.com/allbin/go-serial-exchange/internal/tui/models"
	"github.com/allbin/go-serial-exchange/internal/tui/styles"
)

const (
	inputHeight     = 3
	statusBarHeight = 1
	detailHeight    = 4
)

// Console is the Bubble Tea model of the console command.
type Console struct {
	*models.SerialModel
	history    *components.History
	detail     *components.Detail
	statusBar  *components.StatusBar
	input      *components.Input
	help       help.Model
	keys       keys.ConsoleKeys
	lineEnding string
	width      int
	now        func() time.Time
}

// NewConsole creates the console for portPath. Text requests get
// lineEnding appended.
func NewConsole(portPath string, ex *serial.Exchanger, lineEnding string, opts ...serial.Option) *Console {
	c := &Console{
		SerialModel: models.NewSerialModel(portPath, ex, opts...),
		history:     components.NewHistory(0, 0),
		detail:      components.NewDetail(0, detailHeight),
		statusBar:   components.NewStatusBar(portPath),
		input:       components.NewInput("Type a request and press Enter..."),
		help:        help.New(),
		keys:        keys.NewConsoleKeys(),
		lineEnding:  lineEnding,
		now:         time.Now,
	}

	portCfg := serial.DefaultConfig()
	for _, opt := range opts {
		opt(&portCfg)
	}
	c.statusBar.SetConnectionInfo(&components.ConnectionInfo{Port: portCfg, Exchange: ex.Config()})
	c.statusBar.SetConnecting()
	c.input.Blur()
	return c
}

// Run starts the console on the alternate screen and blocks until it quits.
func Run(portPath string, ex *serial.Exchanger, lineEnding string, opts ...serial.Option) error {
	c := NewConsole(portPath, ex, lineEnding, opts...)
	defer c.Cleanup()
	_, err := tea.NewProgram(c, tea.WithAltScreen()).Run()
	return err
}

func (c *Console) Init() tea.Cmd {
	return c.Connect()
}

func (c *Console) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		c.resize(msg.Width, msg.Height)
		c.SetReady(true)

	case models.ConnectionStatusMsg:
		c.HandleConnection(msg)
		if msg.Error != nil {
			c.statusBar.SetDisconnected(msg.Error)
		} else {
			c.statusBar.SetConnected()
			c.SetInputMode(models.InputModeInsert)
			c.input.Focus()
		}

	case models.ExchangeDoneMsg:
		c.finishRecord(msg)

	case tea.KeyMsg:
		if cmd, handled := c.handleKey(msg); handled {
			return c, cmd
		}
	}

	if c.IsInInsertMode() {
		var cmd tea.Cmd
		c.input, cmd = c.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	cmds = append(cmds, c.detail.Update(msg))
	return c, tea.Batch(cmds...)
}

func (c *Console) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	if msg.Type == tea.KeyCtrlC {
		c.Cleanup()
		return tea.Quit, true
	}

	if c.IsInInsertMode() {
		switch {
		case key.Matches(msg, c.keys.Escape):
			c.SetInputMode(models.InputModeNormal)
			c.input.Blur()
			return nil, true
		case key.Matches(msg, c.keys.Enter):
			return c.submit(false), true
		case key.Matches(msg, c.keys.Send):
			return c.submit(true), true
		case key.Matches(msg, c.keys.Cancel):
			c.CancelExchange()
			return nil, true
		case msg.Type == tea.KeyUp:
			c.input.NavigateHistoryUp()
			return nil, true
		case msg.Type == tea.KeyDown:
			c.input.NavigateHistoryDown()
			return nil, true
		case key.Matches(msg, c.keys.ToggleSendMode):
			c.input.ToggleSendingMode()
			return nil, true
		}
		return nil, false
	}

	switch {
	case key.Matches(msg, c.keys.Quit):
		c.Cleanup()
		return tea.Quit, true
	case key.Matches(msg, c.keys.InsertMode):
		c.SetInputMode(models.InputModeInsert)
		c.history.SetViewMode(components.ViewModeFollow)
		c.input.Focus()
	case key.Matches(msg, c.keys.VisualMode):
		if c.history.GetViewMode() == components.ViewModeVisual {
			c.history.SetViewMode(components.ViewModeFollow)
		} else {
			c.history.SetViewMode(components.ViewModeVisual)
		}
	case key.Matches(msg, c.keys.Escape):
		c.history.SetViewMode(components.ViewModeFollow)
	case key.Matches(msg, c.keys.Cancel):
		c.CancelExchange()
	case key.Matches(msg, c.keys.Clear):
		if !c.IsBusy() {
			c.history.Clear()
			c.statusBar.ResetCounts()
		}
	case key.Matches(msg, c.keys.Help):
		c.help.ShowAll = !c.help.ShowAll
	case key.Matches(msg, c.keys.ToggleHex):
		c.history.ToggleHex()
	case key.Matches(msg, c.keys.ToggleASCII):
		c.history.ToggleASCII()
	case key.Matches(msg, c.keys.ToggleSendMode):
		c.input.ToggleSendingMode()
	default:
		cmd := c.history.Update(msg)
		c.showSelected()
		return cmd, true
	}
	c.showSelected()
	return nil, true
}

// submit turns the input into a history row and starts the exchange.
func (c *Console) submit(writeOnly bool) tea.Cmd {
	if !c.IsConnected() {
		c.statusBar.SetMessage("not connected")
		return nil
	}
	if c.IsBusy() {
		c.statusBar.SetMessage("exchange in progress")
		return nil
	}
	payload, err := c.input.Payload(c.lineEnding)
	if err != nil {
		c.statusBar.SetMessage(err.Error())
		return nil
	}

	idx := c.history.Add(components.Record{
		Timestamp: c.now(),
		Sent:      payload,
		WriteOnly: writeOnly,
	})
	c.input.AddToHistory(c.input.Value())
	c.input.SetValue("")
	c.showSelected()
	return c.Exchange(idx, payload, writeOnly)
}

func (c *Console) finishRecord(msg models.ExchangeDoneMsg) {
	recs := c.history.Records()
	if msg.Index < 0 || msg.Index >= len(recs) {
		return
	}
	rec := recs[msg.Index]
	rec.Done = true
	rec.Response = msg.Response
	rec.Err = msg.Error
	c.history.Set(msg.Index, rec)
	c.statusBar.Count(rec.Status())
	c.showSelected()
}

func (c *Console) showSelected() {
	rec, ok := c.history.Selected()
	c.detail.Show(c.history.Formatter(), rec, ok)
}

func (c *Console) resize(width, height int) {
	c.width = width
	historyHeight := height - inputHeight - statusBarHeight - detailHeight - 2
	c.history.SetSize(width, historyHeight)
	c.detail.SetSize(width, detailHeight)
	c.input.SetWidth(width)
	c.statusBar.SetWidth(width)
	c.help.Width = width
}

func (c *Console) View() string {
	if !c.IsReady() {
		return "Initializing..."
	}

	viewMode := c.history.GetViewMode().String()
	statusBar := c.statusBar.View(
		c.GetInputMode().String(),
		c.input.GetSendingMode().String(),
		viewMode,
		c.IsConnected(),
		c.now().Format("15:04:05"),
	)

	sections := []string{
		c.history.View(),
		styles.ContentBorderStyle.Width(c.width).Render(c.detail.View()),
		c.input.View(c.IsInInsertMode(), c.IsBusy()),
		statusBar,
	}
	if c.help.ShowAll {
		sections = append(sections, c.help.View(c.keys))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
