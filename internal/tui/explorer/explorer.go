// Package explorer is the schema tree pane.
package explorer

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/aiodb/internal/app"
	"github.com/joacominatel/aiodb/internal/driver"
	"github.com/joacominatel/aiodb/internal/tui/theme"
)

// NodeKind identifies the type of a tree node.
type NodeKind int

const (
	NodeDatabase NodeKind = iota
	NodeSchema
	NodeTable
	NodeColumn
)

// Node is one entry of the schema tree.
type Node struct {
	Kind     NodeKind
	Name     string
	Schema   string // owning schema, for tables and columns
	Table    string // owning table, for columns
	DataType string
	Primary  bool
	Children []*Node
	Expanded bool
	Loaded   bool
}

type line struct {
	node  *Node
	depth int
}

// LoadColumnsMsg asks the app to load the columns of a table.
type LoadColumnsMsg struct {
	Schema, Table string
}

// QueryTableMsg asks the app to stream every row of a table.
type QueryTableMsg struct {
	Query string
}

// Model is the explorer (schema tree) component.
type Model struct {
	root    *Node
	lines   []line
	cursor  int
	width   int
	height  int
	focused bool
	loading bool
}

// New creates a new explorer model.
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

// SetLoading sets the loading state.
func (m *Model) SetLoading(l bool) {
	m.loading = l
}

// SetTree replaces the tree with the loaded schema.
func (m *Model) SetTree(tree *app.SchemaTree) {
	root := &Node{Kind: NodeDatabase, Name: tree.Database, Expanded: true, Loaded: true}
	for _, s := range tree.Schemas {
		sn := &Node{Kind: NodeSchema, Name: s.Name, Loaded: true}
		for _, t := range s.Tables {
			sn.Children = append(sn.Children, &Node{Kind: NodeTable, Name: t, Schema: s.Name})
		}
		root.Children = append(root.Children, sn)
	}
	m.root = root
	m.loading = false
	m.rebuild()
}

// SetColumns fills the children of a table node.
func (m *Model) SetColumns(schema, table string, cols []driver.Column) {
	t := m.find(schema, table)
	if t == nil {
		return
	}
	t.Children = t.Children[:0]
	for _, c := range cols {
		t.Children = append(t.Children, &Node{
			Kind:     NodeColumn,
			Name:     c.Name,
			Schema:   schema,
			Table:    table,
			DataType: c.DataType,
			Primary:  c.IsPrimary,
		})
	}
	t.Loaded = true
	m.rebuild()
}

// Selected returns the node under the cursor.
func (m Model) Selected() *Node {
	if m.cursor < 0 || m.cursor >= len(m.lines) {
		return nil
	}
	return m.lines[m.cursor].node
}

func (m *Model) find(schema, table string) *Node {
	if m.root == nil {
		return nil
	}
	for _, s := range m.root.Children {
		if s.Name != schema {
			continue
		}
		for _, t := range s.Children {
			if t.Name == table {
				return t
			}
		}
	}
	return nil
}

func (m *Model) rebuild() {
	m.lines = nil
	var walk func(n *Node, depth int)
	walk = func(n *Node, depth int) {
		m.lines = append(m.lines, line{node: n, depth: depth})
		if n.Expanded {
			for _, c := range n.Children {
				walk(c, depth+1)
			}
		}
	}
	if m.root != nil {
		walk(m.root, 0)
	}
	if m.cursor >= len(m.lines) {
		m.cursor = max(0, len(m.lines)-1)
	}
}

// Update handles messages for the explorer.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok || !m.focused {
		return m, nil
	}

	switch key.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.lines)-1 {
			m.cursor++
		}
	case "enter", "right", "l":
		return m, m.expand()
	case "left", "h":
		if n := m.Selected(); n != nil && n.Expanded {
			n.Expanded = false
			m.rebuild()
		}
	case "s":
		if n := m.Selected(); n != nil && (n.Kind == NodeTable || n.Kind == NodeColumn) {
			table := n.Name
			if n.Kind == NodeColumn {
				table = n.Table
			}
			q := fmt.Sprintf("SELECT * FROM %s.%s", n.Schema, table)
			return m, func() tea.Msg { return QueryTableMsg{Query: q} }
		}
	}
	return m, nil
}

func (m *Model) expand() tea.Cmd {
	n := m.Selected()
	if n == nil || n.Kind == NodeColumn {
		return nil
	}
	n.Expanded = !n.Expanded
	m.rebuild()

	if n.Expanded && n.Kind == NodeTable && !n.Loaded {
		schema, table := n.Schema, n.Name
		return func() tea.Msg { return LoadColumnsMsg{Schema: schema, Table: table} }
	}
	return nil
}

// View renders the explorer.
func (m Model) View() string {
	title := theme.StyleTitle.Padding(0, 1).Render("Schema")
	switch {
	case m.loading:
		return title + "\n" + theme.StyleMuted.Render("  Loading...")
	case m.root == nil:
		return title + "\n" + theme.StyleMuted.Render("  No schema")
	}

	visible := max(1, m.height-2)
	offset := 0
	if m.cursor >= visible {
		offset = m.cursor - visible + 1
	}

	rows := []string{title}
	for i := offset; i < len(m.lines) && i < offset+visible; i++ {
		rows = append(rows, m.render(m.lines[i], i == m.cursor))
	}
	return strings.Join(rows, "\n")
}

func (m Model) render(l line, selected bool) string {
	n := l.node
	icon := "▶ "
	switch {
	case n.Kind == NodeColumn && n.Primary:
		icon = "⚷ "
	case n.Kind == NodeColumn:
		icon = "  "
	case n.Expanded:
		icon = "▼ "
	}

	text := strings.Repeat("  ", l.depth) + icon + n.Name
	if n.Kind == NodeColumn && n.DataType != "" {
		text += " " + theme.StyleMuted.Render(n.DataType)
	}
	if m.width > 4 && lipgloss.Width(text) > m.width-2 {
		text = truncate(text, m.width-4) + ".."
	}
	if selected {
		return theme.StyleSelected.Render(text)
	}
	return text
}

func truncate(s string, w int) string {
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r)) > w {
		r = r[:len(r)-1]
	}
	return string(r)
}
