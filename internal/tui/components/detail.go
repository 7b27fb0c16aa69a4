package components

import (
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/allbin/go-serial-exchange/internal/tui/colors"
)

// Detail shows the full TX/RX of one record in a scrollable viewport.
type Detail struct {
	viewport viewport.Model
}

func NewDetail(width, height int) *Detail {
	return &Detail{viewport: viewport.New(width, height)}
}

func (d *Detail) SetSize(width, height int) {
	d.viewport.Width = width
	d.viewport.Height = height
}

func (d *Detail) Height() int {
	return d.viewport.Height
}

// Show renders rec with df, or a placeholder when ok is false.
func (d *Detail) Show(df *DataFormatter, rec Record, ok bool) {
	if !ok {
		d.viewport.SetContent(lipgloss.NewStyle().Foreground(colors.Overlay0).Render("Nothing selected"))
		return
	}
	d.viewport.SetContent(df.FormatRecord(rec))
	d.viewport.GotoTop()
}

func (d *Detail) Update(msg tea.Msg) tea.Cmd {
	// Only window size changes; keys belong to the console.
	if _, ok := msg.(tea.WindowSizeMsg); !ok {
		return nil
	}
	var cmd tea.Cmd
	d.viewport, cmd = d.viewport.Update(msg)
	return cmd
}

func (d *Detail) View() string {
	return d.viewport.View()
}
