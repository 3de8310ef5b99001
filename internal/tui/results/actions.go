package results

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
)

const null = "NULL"

func (m Model) currentRow() ([]string, bool) {
	if m.cursorY < 0 || m.cursorY >= len(m.rows) {
		return nil, false
	}
	return m.rows[m.cursorY], true
}

func (m Model) currentCell() (column, value string, ok bool) {
	row, ok := m.currentRow()
	if !ok || m.cursorX < 0 || m.cursorX >= len(row) || m.cursorX >= len(m.columns) {
		return "", "", false
	}
	return m.columns[m.cursorX], row[m.cursorX], true
}

func (m *Model) toClipboard(text, done string) {
	if err := clipboard.WriteAll(text); err != nil {
		m.status = "Copy failed: " + err.Error()
		return
	}
	m.status = done
}

func (m *Model) copyCell() {
	_, val, ok := m.currentCell()
	if !ok {
		m.status = "Nothing to copy"
		return
	}
	m.toClipboard(val, "Copied: "+clip(val, 40))
}

func (m *Model) copyRowJSON() {
	row, ok := m.currentRow()
	if !ok {
		m.status = "No row to copy"
		return
	}
	m.toClipboard(rowJSON(m.columns, row), "Copied row as JSON")
}

func (m *Model) copyRowCSV() {
	row, ok := m.currentRow()
	if !ok {
		m.status = "No row to copy"
		return
	}
	var b strings.Builder
	w := csv.NewWriter(&b)
	_ = w.Write(m.columns)
	_ = w.Write(row)
	w.Flush()
	m.toClipboard(b.String(), "Copied row as CSV")
}

// filterByValue proposes a query restricted to the selected cell's value.
func (m *Model) filterByValue() tea.Cmd {
	col, val, ok := m.currentCell()
	table := tableOf(m.query)
	if !ok || table == "" {
		m.status = "Cannot filter: no cell selected"
		return nil
	}

	cond := col + " IS NULL"
	if val != null {
		cond = fmt.Sprintf("%s = '%s'", col, strings.ReplaceAll(val, "'", "''"))
	}
	q := fmt.Sprintf("SELECT * FROM %s WHERE %s", table, cond)
	return func() tea.Msg { return SetEditorQueryMsg{Query: q} }
}

// exportCSVCmd writes the rows loaded so far. Rows still streaming are not
// waited for.
func (m Model) exportCSVCmd() tea.Cmd {
	cols, rows := m.columns, m.rows
	if cols == nil {
		return nil
	}
	return func() tea.Msg {
		name := exportName("csv")
		f, err := os.Create(name)
		if err != nil {
			return StatusNotifyMsg{Message: "Export failed: " + err.Error()}
		}
		defer f.Close()

		w := csv.NewWriter(f)
		_ = w.Write(cols)
		_ = w.WriteAll(rows)
		if err := w.Error(); err != nil {
			return StatusNotifyMsg{Message: "Export failed: " + err.Error()}
		}
		return StatusNotifyMsg{Message: fmt.Sprintf("Exported %d rows to %s", len(rows), name)}
	}
}

func (m Model) exportJSONCmd() tea.Cmd {
	cols, rows := m.columns, m.rows
	if cols == nil {
		return nil
	}
	return func() tea.Msg {
		var b strings.Builder
		b.WriteString("[\n")
		for i, row := range rows {
			if i > 0 {
				b.WriteString(",\n")
			}
			b.WriteString("  " + rowJSON(cols, row))
		}
		b.WriteString("\n]\n")

		name := exportName("json")
		if err := os.WriteFile(name, []byte(b.String()), 0o644); err != nil {
			return StatusNotifyMsg{Message: "Export failed: " + err.Error()}
		}
		return StatusNotifyMsg{Message: fmt.Sprintf("Exported %d rows to %s", len(rows), name)}
	}
}

func exportName(ext string) string {
	return fmt.Sprintf("aiodb_export_%s.%s", time.Now().Format("20060102_150405"), ext)
}

// tableOf returns the table named after FROM, INTO or UPDATE in query.
func tableOf(query string) string {
	tokens := strings.Fields(query)
	for i, tok := range tokens {
		switch strings.ToUpper(tok) {
		case "FROM", "INTO", "UPDATE":
			if i+1 < len(tokens) {
				if name := strings.TrimRight(tokens[i+1], ";,()"); name != "" {
					return name
				}
			}
		}
	}
	return ""
}

// rowJSON keeps column order, which marshaling a map would not.
func rowJSON(columns, row []string) string {
	var b strings.Builder
	b.WriteString("{")
	for i, col := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		k, _ := json.Marshal(col)
		b.Write(k)
		b.WriteString(": ")
		if i >= len(row) || row[i] == null {
			b.WriteString("null")
			continue
		}
		v, _ := json.Marshal(row[i])
		b.Write(v)
	}
	b.WriteString("}")
	return b.String()
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
