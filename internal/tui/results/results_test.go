package results

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joacominatel/aiodb/internal/driver"
)

func rows(from, n int) []driver.Row {
	vals := make([][]any, n)
	for i := range vals {
		vals[i] = []any{from + i, nil}
	}
	return driver.NewRows([]string{"id", "note"}, vals)
}

func TestStreamingRequestsMoreNearTheEnd(t *testing.T) {
	m := New()
	m.SetSize(80, 14) // 10 visible rows
	m.SetFocused(true)
	m.Begin("SELECT id, note FROM t")
	m.Opened()
	m.Append([]string{"id", "note"}, rows(1, 30), false)

	if m.NeedMore() {
		t.Fatal("cursor at the top should not request rows")
	}

	var cmd tea.Cmd
	for range 19 {
		m, cmd = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	}
	if cmd != nil {
		t.Fatal("requested rows too early")
	}
	m, cmd = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if cmd == nil {
		t.Fatal("no request once the cursor neared the last row")
	}
	if _, ok := cmd().(NeedRowsMsg); !ok {
		t.Fatalf("msg = %#v", cmd())
	}
	if m.NeedMore() {
		t.Error("second request while one is pending")
	}

	m.Append(nil, rows(31, 5), true)
	if m.RowCount() != 35 || m.Streaming() {
		t.Errorf("rows=%d streaming=%v", m.RowCount(), m.Streaming())
	}
	if _, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("G")}); cmd != nil {
		t.Error("exhausted stream still requests rows")
	}
}

func TestFailKeepsLoadedRows(t *testing.T) {
	m := New()
	m.Begin("SELECT id FROM t")
	m.Opened()
	m.Append([]string{"id", "note"}, rows(1, 3), false)
	m.Fail(errTest("timeout"))

	if m.RowCount() != 3 || m.Streaming() || m.NeedMore() {
		t.Errorf("rows=%d streaming=%v", m.RowCount(), m.Streaming())
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }

func TestRowJSONKeepsOrderAndNulls(t *testing.T) {
	got := rowJSON([]string{"b", "a", "c"}, []string{"1", null, `x"y`})
	want := `{"b": "1", "a": null, "c": "x\"y"}`
	if got != want {
		t.Errorf("rowJSON = %s, want %s", got, want)
	}
}

func TestTableOf(t *testing.T) {
	cases := map[string]string{
		"SELECT * FROM ks.events WHERE id = 1": "ks.events",
		"update users set a = 1":               "users",
		"SELECT now()":                         "",
	}
	for q, want := range cases {
		if got := tableOf(q); got != want {
			t.Errorf("tableOf(%q) = %q, want %q", q, got, want)
		}
	}
}

func TestFit(t *testing.T) {
	if got := fit("abc", 5); got != "abc  " {
		t.Errorf("fit pad = %q", got)
	}
	if got := fit("abcdefgh", 5); got != "abcd…" {
		t.Errorf("fit truncate = %q", got)
	}
}
