package proto

import "strings"

const (
	// FieldSep separates the action and its arguments.
	FieldSep = ":"
	// ListSep separates entries of list replies (FRIENDS, SERVERS, ...).
	ListSep = ","
	// HistorySep separates HISTORY entries.
	HistorySep = "|"
	// HistoryFieldSep separates the fields of one HISTORY entry.
	HistoryFieldSep = "~"
)

// Clean strips the line terminator left by line-oriented readers.
func Clean(line string) string {
	return strings.TrimRight(line, "\r\n")
}

// Action returns the leading action of a command line.
func Action(line string) string {
	action, _, _ := strings.Cut(line, FieldSep)
	return action
}

// Split cuts a command line into at most n fields. The last field keeps
// any remaining separators, so free text may contain colons.
func Split(line string, n int) []string {
	return strings.SplitN(line, FieldSep, n)
}

// Line builds an outbound line from a tag and its fields.
func Line(tag string, fields ...string) string {
	if len(fields) == 0 {
		return tag
	}
	var b strings.Builder
	b.WriteString(tag)
	for _, f := range fields {
		b.WriteString(FieldSep)
		b.WriteString(f)
	}
	return b.String()
}

// Error builds an ERROR line.
func Error(code string, details ...string) string {
	return Line(TagError, append([]string{code}, details...)...)
}

// Pair renders an id:name list entry.
func Pair(id, name string) string {
	return id + FieldSep + name
}

// List joins list entries.
func List(entries []string) string {
	return strings.Join(entries, ListSep)
}

// HistoryEntry renders one ts~name~body entry.
func HistoryEntry(ts, name, body string) string {
	return ts + HistoryFieldSep + name + HistoryFieldSep + body
}

// History joins history entries.
func History(entries []string) string {
	return strings.Join(entries, HistorySep)
}
