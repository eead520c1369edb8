package fragment

import (
	"errors"
	"strings"
)

// ErrNoTerminalSelect reports a fragment whose terminal select does not name
// a table. Normalize never returns it; callers that want strict fragments
// check Normalized.HasExposedName and return it themselves.
var ErrNoTerminalSelect = errors.New("fragment has no terminal select from a named table")

// Normalized is a fragment with its WITH keyword and terminal select removed.
type Normalized struct {
	// Body is the CTE list, ready to be joined into another WITH clause.
	Body string
	// ExposedName is the lower-cased table named by the terminal select.
	// Empty when no terminal select (or no FROM on that line) was found.
	ExposedName string
}

// HasExposedName reports whether the terminal select named a table.
func (n Normalized) HasExposedName() bool {
	return n.ExposedName != ""
}

// Normalize converts fragment text into a Normalized fragment.
//
// Rules:
//  1. A leading "with" keyword on the first line is removed; the rest of
//     that line and every later line are kept verbatim.
//  2. The last line starting with the "select" keyword is the terminal
//     select. Its exposed name is the first token after "from" on that
//     same line.
//  3. The terminal select line and everything after it are dropped.
//
// Without a terminal select the whole text (minus the WITH keyword) becomes
// the body and ExposedName is empty.
func Normalize(text string) Normalized {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(strings.TrimSpace(text), "\n")

	first := strings.TrimSpace(lines[0])
	if startsWithKeyword(first, "with") {
		lines[0] = strings.TrimSpace(first[len("with"):])
	}

	terminal := -1
	for i, line := range lines {
		if startsWithKeyword(strings.TrimSpace(line), "select") {
			terminal = i
		}
	}

	var exposed string
	if terminal >= 0 {
		exposed = tableAfterFrom(lines[terminal])
		lines = lines[:terminal]
	}

	return Normalized{
		Body:        strings.TrimSpace(strings.Join(lines, "\n")),
		ExposedName: exposed,
	}
}

// startsWithKeyword reports whether s begins with keyword (case-insensitive)
// followed by the end of the string or a non-identifier character.
// "select_count" does not start with the "select" keyword.
func startsWithKeyword(s, keyword string) bool {
	if len(s) < len(keyword) || !strings.EqualFold(s[:len(keyword)], keyword) {
		return false
	}
	if len(s) == len(keyword) {
		return true
	}
	return !isIdentByte(s[len(keyword)])
}

func isIdentByte(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

// tableAfterFrom returns the lower-cased token following the first "from"
// keyword on the line, or "" if there is none. The keyword may touch
// punctuation ("select *from t", "from(t)"); the token ends at whitespace,
// ")", "," or ";", so "select * from orders;" exposes "orders".
func tableAfterFrom(line string) string {
	lower := strings.ToLower(line)
	for i := 0; i < len(lower); {
		j := strings.Index(lower[i:], "from")
		if j < 0 {
			return ""
		}
		start, end := i+j, i+j+len("from")
		if (start > 0 && isIdentByte(lower[start-1])) || (end < len(lower) && isIdentByte(lower[end])) {
			i = end
			continue
		}
		rest := strings.TrimLeft(lower[end:], " \t(")
		if k := strings.IndexAny(rest, " \t),;"); k >= 0 {
			rest = rest[:k]
		}
		return rest
	}
	return ""
}
