package editor

import (
	"strings"
	"unicode"
)

// keywords covers SQL and CQL.
var keywords = map[string]bool{
	"select": true, "from": true, "where": true, "and": true, "or": true,
	"insert": true, "into": true, "update": true, "delete": true,
	"create": true, "drop": true, "alter": true, "table": true,
	"index": true, "join": true, "inner": true, "outer": true,
	"left": true, "right": true, "on": true, "not": true, "in": true,
	"is": true, "null": true, "like": true, "order": true, "by": true,
	"group": true, "having": true, "limit": true, "offset": true,
	"as": true, "distinct": true, "count": true, "between": true,
	"exists": true, "case": true, "when": true, "then": true,
	"else": true, "end": true, "values": true, "set": true,
	"union": true, "all": true, "asc": true, "desc": true,
	"primary": true, "key": true, "returning": true, "ilike": true,
	"keyspace": true, "allow": true, "filtering": true, "using": true,
	"ttl": true, "timestamp": true, "writetime": true, "token": true,
	"if": true, "contains": true, "per": true, "partition": true,
	"batch": true, "apply": true, "begin": true, "truncate": true,
}

// FormatKeywords uppercases keywords outside string literals.
func FormatKeywords(src string) string {
	var (
		out   strings.Builder
		word  strings.Builder
		quote rune
	)
	flush := func() {
		w := word.String()
		if keywords[strings.ToLower(w)] {
			w = strings.ToUpper(w)
		}
		out.WriteString(w)
		word.Reset()
	}

	for _, ch := range src {
		switch {
		case quote != 0:
			out.WriteRune(ch)
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"':
			flush()
			quote = ch
			out.WriteRune(ch)
		case unicode.IsLetter(ch) || ch == '_':
			word.WriteRune(ch)
		default:
			flush()
			out.WriteRune(ch)
		}
	}
	flush()
	return out.String()
}

// lastIdent returns the trailing identifier of s, dots included.
func lastIdent(s string) string {
	i := len(s)
	for i > 0 {
		c := s[i-1]
		if c != '_' && c != '.' && !('a' <= c && c <= 'z') && !('A' <= c && c <= 'Z') && !('0' <= c && c <= '9') {
			break
		}
		i--
	}
	return s[i:]
}

// expectsTable reports whether the text before the trailing identifier
// ends with a keyword that takes a table name.
func expectsTable(s string) bool {
	fields := strings.Fields(strings.TrimSuffix(s, lastIdent(s)))
	if len(fields) == 0 {
		return false
	}
	switch strings.ToUpper(fields[len(fields)-1]) {
	case "FROM", "JOIN", "INTO", "UPDATE", "TABLE", "TRUNCATE":
		return true
	}
	return false
}

// matchTables returns the names that start with prefix, or whose unqualified
// part does, ignoring case.
func matchTables(prefix string, names []string) []string {
	p := strings.ToLower(prefix)
	var out []string
	for _, n := range names {
		ln := strings.ToLower(n)
		_, bare, _ := strings.Cut(ln, ".")
		if strings.HasPrefix(ln, p) || (bare != "" && strings.HasPrefix(bare, p)) {
			out = append(out, n)
		}
	}
	return out
}
