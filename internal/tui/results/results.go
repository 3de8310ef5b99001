// Package results is the pane that shows rows as they stream in.
package results

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/aiodb/internal/driver"
	"github.com/joacominatel/aiodb/internal/tui/theme"
)

const maxColWidth = 40

// Model is the streaming results component.
type Model struct {
	query   string
	columns []string
	rows    [][]string
	widths  []int
	err     error
	started time.Time
	elapsed time.Duration

	opening bool // waiting for the paginator to open
	more    bool // the paginator may still yield rows
	pulling bool // a batch has been requested

	cursorY, cursorX int
	width, height    int
	focused          bool
	status           string
}

// New creates a new results model.
func New() Model {
	return Model{}
}

// SetSize updates the component dimensions.
func (m *Model) SetSize(w, h int) {
	m.width, m.height = w, h
}

// SetFocused sets the focus state.
func (m *Model) SetFocused(f bool) {
	m.focused = f
}

// Begin clears the pane for a new query.
func (m *Model) Begin(query string) {
	*m = Model{width: m.width, height: m.height, focused: m.focused}
	m.query = query
	m.opening = true
	m.started = time.Now()
}

// Opened records that the paginator is open and the first batch is on its way.
func (m *Model) Opened() {
	m.opening = false
	m.more = true
	m.pulling = true
}

// Append adds a pulled batch. done reports that the paginator is exhausted.
func (m *Model) Append(columns []string, rows []driver.Row, done bool) {
	if m.columns == nil && columns != nil {
		m.columns = columns
		m.widths = make([]int, len(columns))
		for i, c := range columns {
			m.widths[i] = lipgloss.Width(c)
		}
	}
	for _, r := range rows {
		cells := r.Strings()
		m.rows = append(m.rows, cells)
		for i, c := range cells {
			if i < len(m.widths) {
				m.widths[i] = min(maxColWidth, max(m.widths[i], lipgloss.Width(c)))
			}
		}
	}
	m.pulling = false
	if done {
		m.more = false
		m.elapsed = time.Since(m.started)
	}
}

// Fail shows err in place of further rows. Rows already shown stay.
func (m *Model) Fail(err error) {
	m.err = err
	m.opening, m.more, m.pulling = false, false, false
	m.elapsed = time.Since(m.started)
}

// RowCount returns the number of rows loaded so far.
func (m Model) RowCount() int {
	return len(m.rows)
}

// Streaming reports whether more rows may arrive.
func (m Model) Streaming() bool {
	return m.more
}

// NeedMore reports whether the cursor is close enough to the last loaded
// row that another batch should be pulled.
func (m Model) NeedMore() bool {
	return m.more && !m.pulling && m.cursorY >= len(m.rows)-m.visibleRows()
}

// RequestMore marks a batch as requested when NeedMore holds.
func (m *Model) RequestMore() bool {
	if !m.NeedMore() {
		return false
	}
	m.pulling = true
	return true
}

func (m Model) visibleRows() int {
	return max(1, m.height-4)
}

// Update handles messages for the results pane.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok || !m.focused {
		return m, nil
	}
	m.status = ""

	last := len(m.rows) - 1
	switch key.String() {
	case "up", "k":
		m.cursorY = max(0, m.cursorY-1)
	case "down", "j":
		m.cursorY = max(0, min(last, m.cursorY+1))
	case "pgup":
		m.cursorY = max(0, m.cursorY-m.visibleRows())
	case "pgdown":
		m.cursorY = max(0, min(last, m.cursorY+m.visibleRows()))
	case "home", "g":
		m.cursorY = 0
	case "end", "G":
		m.cursorY = max(0, last)
	case "left", "h":
		m.cursorX = max(0, m.cursorX-1)
	case "right", "l":
		m.cursorX = max(0, min(len(m.columns)-1, m.cursorX+1))
	case "c":
		m.copyCell()
	case "y":
		m.copyRowJSON()
	case "Y":
		m.copyRowCSV()
	case "f":
		return m, m.filterByValue()
	case "e":
		return m, m.exportCSVCmd()
	case "E":
		return m, m.exportJSONCmd()
	}

	if m.RequestMore() {
		return m, func() tea.Msg { return NeedRowsMsg{} }
	}
	return m, nil
}

// View renders the results pane.
func (m Model) View() string {
	title := theme.StyleTitle.Padding(0, 1).Render("Results")

	switch {
	case m.opening:
		return title + "\n" + theme.StyleMuted.Render("  Opening...")
	case m.err != nil && len(m.rows) == 0:
		return title + "\n" + theme.StyleError.Render("  Error: "+m.err.Error())
	case m.query == "":
		return title + "\n" + theme.StyleMuted.Render("  Run a statement to stream its rows")
	}

	header := title + "  " + theme.StyleMuted.Render(m.summary())
	if len(m.columns) == 0 {
		if m.more {
			return header + "\n" + theme.StyleMuted.Render("  Waiting for rows...")
		}
		return header + "\n" + theme.StyleSuccess.Render("  Statement executed")
	}

	visible := m.visibleRows()
	offset := 0
	if m.cursorY >= visible {
		offset = m.cursorY - visible + 1
	}

	lines := []string{header, m.renderRow(m.columns, -1), m.separator()}
	for i := offset; i < len(m.rows) && i < offset+visible; i++ {
		lines = append(lines, m.renderRow(m.rows[i], i))
	}
	if m.err != nil {
		lines = append(lines, theme.StyleError.Render("  Error: "+m.err.Error()))
	}
	if m.status != "" {
		lines = append(lines, theme.StyleMuted.Render("  "+m.status))
	}
	return strings.Join(lines, "\n")
}

func (m Model) summary() string {
	switch {
	case m.more:
		return fmt.Sprintf("%d row(s) loaded, streaming", len(m.rows))
	case m.err != nil:
		return fmt.Sprintf("%d row(s) before error | %s", len(m.rows), m.elapsed.Round(time.Millisecond))
	default:
		return fmt.Sprintf("%d row(s) | %s", len(m.rows), m.elapsed.Round(time.Millisecond))
	}
}

func (m Model) renderRow(cells []string, idx int) string {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		w := 10
		if i < len(m.widths) {
			w = max(1, m.widths[i])
		}
		text := fit(cell, w)

		switch {
		case idx < 0:
			parts[i] = lipgloss.NewStyle().Bold(true).Foreground(theme.ColorPrimary).Render(text)
		case idx == m.cursorY && i == m.cursorX && m.focused:
			parts[i] = lipgloss.NewStyle().Reverse(true).Render(text)
		case idx == m.cursorY:
			parts[i] = theme.StyleSelected.Render(text)
		default:
			parts[i] = text
		}
	}
	return "  " + strings.Join(parts, " │ ")
}

func (m Model) separator() string {
	parts := make([]string, len(m.widths))
	for i, w := range m.widths {
		parts[i] = strings.Repeat("─", max(1, w))
	}
	return "  " + lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(strings.Join(parts, "─┼─"))
}

// fit truncates or pads s to exactly w display cells.
func fit(s string, w int) string {
	if lipgloss.Width(s) > w {
		r := []rune(s)
		for len(r) > 0 && lipgloss.Width(string(r)) >= w {
			r = r[:len(r)-1]
		}
		s = string(r) + "…"
	}
	if pad := w - lipgloss.Width(s); pad > 0 {
		s += strings.Repeat(" ", pad)
	}
	return s
}
