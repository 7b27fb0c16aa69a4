package components

import (
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/evertras/bubble-table/table"

	"github.com/allbin/go-serial-exchange/internal/tui/colors"
)

type ViewMode int

const (
	ViewModeFollow ViewMode = iota
	ViewModeVisual
)

func (v ViewMode) String() string {
	if v == ViewModeVisual {
		return "VISUAL"
	}
	return "FOLLOW"
}

const (
	colIndex    = "index"
	colTime     = "time"
	colStatus   = "status"
	colSent     = "sent"
	colReceived = "received"
	colAttempts = "attempts"
	colElapsed  = "elapsed"
)

// History is a table of console exchanges, newest last.
type History struct {
	table     table.Model
	formatter *DataFormatter
	viewMode  ViewMode
	records   []Record
	width     int
	height    int
}

func NewHistory(width, height int) *History {
	h := &History{
		formatter: NewDataFormatter(false, true),
		viewMode:  ViewModeFollow,
	}
	h.table = table.New(h.columns()).
		HeaderStyle(lipgloss.NewStyle().Bold(true).Foreground(colors.Text)).
		HighlightStyle(lipgloss.NewStyle().Foreground(colors.Text).Background(colors.Surface1)).
		WithBaseStyle(lipgloss.NewStyle().Foreground(colors.Subtext1).BorderForeground(colors.Surface2).Align(lipgloss.Left)).
		WithFooterVisibility(false).
		Focused(false)
	h.SetSize(width, height)
	return h
}

func (h *History) columns() []table.Column {
	return []table.Column{
		table.NewColumn(colIndex, "#", 4),
		table.NewColumn(colTime, "Time", 12),
		table.NewColumn(colStatus, "Outcome", 12),
		table.NewFlexColumn(colSent, h.dataTitle("TX"), 1),
		table.NewFlexColumn(colReceived, h.dataTitle("RX"), 2),
		table.NewColumn(colAttempts, "Att", 4),
		table.NewColumn(colElapsed, "Elapsed", 9),
	}
}

func (h *History) dataTitle(dir string) string {
	mode := h.formatter.GetDisplayMode()
	switch {
	case mode.ShowHex && mode.ShowASCII:
		return dir + " hex/ascii"
	case mode.ShowHex:
		return dir + " hex"
	case mode.ShowASCII:
		return dir
	default:
		return dir + " bytes"
	}
}

// SetSize fits the table to width and height lines, including the header.
func (h *History) SetSize(width, height int) {
	if width < 60 {
		width = 60
	}
	// header takes three lines with its borders, the bottom border one more
	pageSize := height - 4
	if pageSize < 1 {
		pageSize = 1
	}
	h.width, h.height = width, height
	h.table = h.table.WithTargetWidth(width).WithPageSize(pageSize)
	h.refresh()
}

// Add appends rec and returns its index.
func (h *History) Add(rec Record) int {
	h.records = append(h.records, rec)
	h.refresh()
	return len(h.records) - 1
}

// Set replaces the record at index i.
func (h *History) Set(i int, rec Record) {
	if i < 0 || i >= len(h.records) {
		return
	}
	h.records[i] = rec
	h.refresh()
}

// Records returns the recorded exchanges.
func (h *History) Records() []Record {
	return h.records
}

// Selected returns the highlighted record in visual mode, otherwise the
// newest one.
func (h *History) Selected() (Record, bool) {
	if len(h.records) == 0 {
		return Record{}, false
	}
	if h.viewMode == ViewModeFollow {
		return h.records[len(h.records)-1], true
	}
	idx, ok := h.table.HighlightedRow().Data[colIndex].(int)
	if !ok || idx < 0 || idx >= len(h.records) {
		return Record{}, false
	}
	return h.records[idx], true
}

func (h *History) Clear() {
	h.records = nil
	h.refresh()
}

func (h *History) Formatter() *DataFormatter {
	return h.formatter
}

func (h *History) ToggleHex() {
	h.formatter.ToggleHex()
	h.refresh()
}

func (h *History) ToggleASCII() {
	h.formatter.ToggleASCII()
	h.refresh()
}

func (h *History) GetViewMode() ViewMode {
	return h.viewMode
}

func (h *History) SetViewMode(mode ViewMode) {
	h.viewMode = mode
	h.table = h.table.Focused(mode == ViewModeVisual)
	h.refresh()
}

func (h *History) refresh() {
	rows := make([]table.Row, len(h.records))
	for i, rec := range h.records {
		rows[i] = h.row(i, rec)
	}
	h.table = h.table.WithColumns(h.columns()).WithRows(rows)
	if h.viewMode == ViewModeFollow && len(rows) > 0 {
		h.table = h.table.WithHighlightedRow(len(rows) - 1).PageLast()
	}
}

func (h *History) row(i int, rec Record) table.Row {
	attempts, elapsed := "", ""
	received := ""
	if resp := rec.Response; resp != nil && !rec.WriteOnly {
		attempts = strconv.Itoa(resp.Attempts)
		elapsed = resp.Elapsed.Round(time.Millisecond).String()
		received = h.formatter.FormatBytes(resp.Raw)
	}
	return table.NewRow(table.RowData{
		colIndex:    i,
		colTime:     rec.Timestamp.Format("15:04:05.000"),
		colStatus:   table.NewStyledCell(rec.Status(), OutcomeStyle(rec.Status())),
		colSent:     h.formatter.FormatBytes(rec.Sent),
		colReceived: received,
		colAttempts: attempts,
		colElapsed:  elapsed,
	})
}

// Update forwards navigation keys to the table in visual mode.
func (h *History) Update(msg tea.Msg) tea.Cmd {
	if h.viewMode != ViewModeVisual {
		return nil
	}
	var cmd tea.Cmd
	h.table, cmd = h.table.Update(msg)
	return cmd
}

func (h *History) View() string {
	if len(h.records) == 0 {
		return lipgloss.NewStyle().
			Foreground(colors.Overlay0).
			Width(h.width).
			Height(h.height).
			Render("No exchanges yet. Press 'i' and type a request.")
	}
	return h.table.View()
}
