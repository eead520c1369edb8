package sqlcheck

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnbalanced is wrapped by every BalanceError.
var ErrUnbalanced = errors.New("unbalanced sql")

// BalanceError locates the first lexical problem in the text.
type BalanceError struct {
	Offset  int // byte offset into the text
	Line    int // 1-based
	Column  int // 1-based, in bytes
	Message string
}

func (e *BalanceError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
}

func (e *BalanceError) Unwrap() error {
	return ErrUnbalanced
}

func newBalanceError(sql string, offset int, format string, args ...any) *BalanceError {
	before := sql[:offset]
	line := strings.Count(before, "\n") + 1
	col := offset - strings.LastIndexByte(before, '\n')
	return &BalanceError{
		Offset:  offset,
		Line:    line,
		Column:  col,
		Message: fmt.Sprintf(format, args...),
	}
}

// Check returns nil when every parenthesis is matched, every quote and
// block comment is terminated, and a leading WITH clause consists of
// complete "<name> as (...)" definitions followed by a final statement.
// Otherwise it returns a *BalanceError.
func Check(sql string) error {
	toks, err := lex(sql)
	if err != nil {
		return err
	}

	var open []token
	for _, t := range toks {
		switch {
		case t.isPunct("("):
			open = append(open, t)
		case t.isPunct(")"):
			if len(open) == 0 {
				return newBalanceError(sql, t.offset, "unmatched )")
			}
			open = open[:len(open)-1]
		}
	}
	if len(open) > 0 {
		return newBalanceError(sql, open[len(open)-1].offset, "unclosed (")
	}

	if len(toks) == 0 || !toks[0].isWord("with") {
		return nil
	}
	_, rest, perr := parseCTEs(toks)
	if perr != nil {
		return newBalanceError(sql, perr.offset, "%s", perr.msg)
	}
	if rest >= len(toks) {
		return newBalanceError(sql, len(sql), "WITH clause has no final statement")
	}
	return nil
}

// CTENames returns the names defined by a top-level WITH clause, in order.
// Lexing or parsing stops at the first problem; names found before it are
// returned.
func CTENames(sql string) []string {
	toks, err := lex(sql)
	if err != nil || len(toks) == 0 || !toks[0].isWord("with") {
		return nil
	}
	names, _, _ := parseCTEs(toks)
	return names
}

type parseError struct {
	offset int
	msg    string
}

// parseCTEs walks "with [recursive] name [(cols)] as [[not] materialized] (...) [, ...]"
// and returns the names plus the index of the first token after the list.
func parseCTEs(toks []token) ([]string, int, *parseError) {
	i := 1
	if i < len(toks) && toks[i].isWord("recursive") {
		i++
	}

	var names []string
	for {
		if i >= len(toks) || (toks[i].kind != tokWord && toks[i].kind != tokQuotedIdent) {
			return names, i, errAt(toks, i, "expected CTE name")
		}
		name := toks[i].val
		i++

		if i < len(toks) && toks[i].isPunct("(") {
			end, ok := matchParen(toks, i)
			if !ok {
				return names, i, errAt(toks, i, "unclosed column list")
			}
			i = end + 1
		}

		if i >= len(toks) || !toks[i].isWord("as") {
			return names, i, errAt(toks, i, fmt.Sprintf("expected AS after CTE %s", name))
		}
		i++
		if i < len(toks) && toks[i].isWord("not") {
			i++
		}
		if i < len(toks) && toks[i].isWord("materialized") {
			i++
		}

		if i >= len(toks) || !toks[i].isPunct("(") {
			return names, i, errAt(toks, i, fmt.Sprintf("expected ( to open CTE %s", name))
		}
		end, ok := matchParen(toks, i)
		if !ok {
			return names, i, errAt(toks, i, fmt.Sprintf("unclosed body of CTE %s", name))
		}
		names = append(names, name)
		i = end + 1

		if i < len(toks) && toks[i].isPunct(",") {
			i++
			continue
		}
		return names, i, nil
	}
}

// matchParen returns the index of the ")" closing the "(" at open.
func matchParen(toks []token, open int) (int, bool) {
	depth := 0
	for j := open; j < len(toks); j++ {
		switch {
		case toks[j].isPunct("("):
			depth++
		case toks[j].isPunct(")"):
			depth--
			if depth == 0 {
				return j, true
			}
		}
	}
	return 0, false
}

func errAt(toks []token, i int, msg string) *parseError {
	if i < len(toks) {
		return &parseError{offset: toks[i].offset, msg: msg}
	}
	if len(toks) == 0 {
		return &parseError{msg: msg}
	}
	last := toks[len(toks)-1]
	return &parseError{offset: last.offset + len(last.val), msg: msg}
}
