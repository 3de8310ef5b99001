// Package editor is the statement editor pane.
package editor

import (
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/aiodb/internal/tui/theme"
)

// ExecuteQueryMsg is sent when the user runs the statement.
type ExecuteQueryMsg struct {
	Query string
}

// Model is the statement editor.
type Model struct {
	area    textarea.Model
	focused bool

	tables     []string
	candidates []string // non-nil while cycling completions
	pick       int
}

// New creates an editor. placeholder hints at the connected dialect.
func New(placeholder string) Model {
	ta := textarea.New()
	ta.Placeholder = placeholder
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.Prompt = "│ "
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Base = lipgloss.NewStyle()
	ta.BlurredStyle.Base = lipgloss.NewStyle()
	ta.FocusedStyle.Placeholder = theme.StyleMuted
	ta.BlurredStyle.Placeholder = theme.StyleMuted
	ta.FocusedStyle.Prompt = lipgloss.NewStyle().Foreground(theme.ColorPrimary)
	ta.BlurredStyle.Prompt = lipgloss.NewStyle().Foreground(theme.ColorBorder)
	return Model{area: ta}
}

// SetSize updates the component dimensions.
func (m *Model) SetSize(w, h int) {
	m.area.SetWidth(w - 2)
	m.area.SetHeight(h - 2)
}

// SetFocused sets the focus state.
func (m *Model) SetFocused(f bool) {
	m.focused = f
	if f {
		m.area.Focus()
	} else {
		m.area.Blur()
	}
}

// Value returns the current editor content.
func (m Model) Value() string {
	return m.area.Value()
}

// SetQuery replaces the editor content.
func (m *Model) SetQuery(query string) {
	m.area.SetValue(query)
	m.candidates = nil
}

// SetTableNames sets the names offered by Tab completion.
func (m *Model) SetTableNames(names []string) {
	m.tables = names
}

// Completing reports whether Tab is cycling through completions.
func (m Model) Completing() bool {
	return m.candidates != nil
}

// Update handles messages for the editor.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.focused {
		return m, nil
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+e", "f5":
			q := strings.TrimSpace(m.area.Value())
			m.candidates = nil
			if q == "" {
				return m, nil
			}
			return m, func() tea.Msg { return ExecuteQueryMsg{Query: q} }
		case "ctrl+k":
			m.area.Reset()
			m.candidates = nil
			return m, nil
		case "ctrl+l":
			m.area.SetValue(FormatKeywords(m.area.Value()))
			return m, nil
		case "tab":
			if m.complete() {
				return m, nil
			}
		case "esc":
			m.candidates = nil
			return m, nil
		default:
			m.candidates = nil
		}
	}

	var cmd tea.Cmd
	m.area, cmd = m.area.Update(msg)
	return m, cmd
}

// complete replaces the trailing identifier with the next matching table.
func (m *Model) complete() bool {
	val := m.area.Value()
	if m.candidates == nil {
		if !expectsTable(val) {
			return false
		}
		prefix := lastIdent(val)
		if prefix == "" {
			return false
		}
		matches := matchTables(prefix, m.tables)
		if len(matches) == 0 {
			return false
		}
		m.candidates, m.pick = matches, 0
	} else {
		m.pick = (m.pick + 1) % len(m.candidates)
	}

	m.area.SetValue(strings.TrimSuffix(val, lastIdent(val)) + m.candidates[m.pick])
	return true
}

// View renders the editor.
func (m Model) View() string {
	title := theme.StyleTitle.Padding(0, 1).Render("Statement")
	view := title + "\n" + m.area.View()

	if len(m.candidates) > 1 {
		parts := make([]string, len(m.candidates))
		for i, c := range m.candidates {
			if i == m.pick {
				parts[i] = theme.StyleSelected.Render(c)
			} else {
				parts[i] = theme.StyleMuted.Render(c)
			}
		}
		view += "\n " + theme.StyleMuted.Render("Tab: ") + strings.Join(parts, " │ ")
	}
	return view
}
