// Package statusbar renders the bottom line: connection, stream progress
// and transient messages.
package statusbar

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/aiodb/internal/app"
	"github.com/joacominatel/aiodb/internal/tui/theme"
)

const hints = "Ctrl+E: Run │ Tab: Pane │ ?: Help │ q: Quit"

// Model is the status bar component.
type Model struct {
	width      int
	driver     string
	target     string
	activePane string
	message    string
	stream     *app.Stats
}

// New creates a new status bar model.
func New() Model {
	return Model{activePane: "explorer"}
}

// SetWidth updates the component width.
func (m *Model) SetWidth(w int) {
	m.width = w
}

// SetConnected shows the driver and target, or "disconnected" for an
// empty driver.
func (m *Model) SetConnected(driver, target string) {
	m.driver, m.target = driver, target
}

// SetActivePane updates the displayed active pane name.
func (m *Model) SetActivePane(pane string) {
	m.activePane = pane
}

// SetMessage sets a temporary status message.
func (m *Model) SetMessage(msg string) {
	m.message = msg
}

// SetStream shows paginator progress. nil hides it.
func (m *Model) SetStream(st *app.Stats) {
	m.stream = st
}

// View renders the status bar.
func (m Model) View() string {
	dot := lipgloss.NewStyle().Foreground(theme.ColorError).Render("●")
	left := dot + " disconnected"
	if m.driver != "" {
		dot = lipgloss.NewStyle().Foreground(theme.ColorSuccess).Render("●")
		left = fmt.Sprintf("%s %s %s", dot, m.driver, m.target)
	}
	left += theme.StyleMuted.Render(" [" + m.activePane + "]")

	right := hints
	switch {
	case m.message != "":
		right = m.message
	case m.stream != nil:
		right = streamText(*m.stream)
	}

	pad := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if pad < 1 {
		pad = 1
	}
	return theme.StyleStatusBar.Width(m.width).Render(left + strings.Repeat(" ", pad) + right)
}

func streamText(st app.Stats) string {
	s := fmt.Sprintf("%s │ %d rows in %d pages", st.State, st.Rows, st.Pages)
	if st.Inflight > 0 {
		s += " │ fetching"
	}
	return s
}
