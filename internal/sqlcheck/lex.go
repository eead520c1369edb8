// Package sqlcheck performs a lexical sanity check of SQL text: balanced
// parentheses, terminated quotes and comments, and a well-formed top-level
// CTE list. It does not parse SQL grammar.
package sqlcheck

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokWord tokenKind = iota
	tokString
	tokQuotedIdent
	tokPunct
)

type token struct {
	kind   tokenKind
	val    string
	offset int
}

func (t token) String() string {
	return fmt.Sprintf("[%d %q @%d]", t.kind, t.val, t.offset)
}

// isWord reports whether the token is the given keyword, case-insensitively.
func (t token) isWord(kw string) bool {
	return t.kind == tokWord && strings.EqualFold(t.val, kw)
}

func (t token) isPunct(p string) bool {
	return t.kind == tokPunct && t.val == p
}

// lex splits SQL into words, quoted strings, quoted identifiers and single
// character punctuation. Whitespace and comments are dropped.
func lex(sql string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(sql) {
		c := sql[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f':
			i++
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			end := strings.IndexByte(sql[i:], '\n')
			if end < 0 {
				i = len(sql)
			} else {
				i += end + 1
			}
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				return nil, newBalanceError(sql, i, "unterminated block comment")
			}
			i += 2 + end + 2
		case c == '\'' || c == '"' || c == '`':
			end, err := quoteEnd(sql, i)
			if err != nil {
				return nil, err
			}
			kind := tokString
			if c != '\'' {
				kind = tokQuotedIdent
			}
			toks = append(toks, token{kind: kind, val: sql[i:end], offset: i})
			i = end
		case isWordByte(c):
			start := i
			for i < len(sql) && isWordByte(sql[i]) {
				i++
			}
			toks = append(toks, token{kind: tokWord, val: sql[start:i], offset: start})
		default:
			toks = append(toks, token{kind: tokPunct, val: string(c), offset: i})
			i++
		}
	}
	return toks, nil
}

// quoteEnd returns the offset just past the quote starting at start.
// A doubled quote character inside the quote is an escaped quote.
func quoteEnd(sql string, start int) (int, error) {
	q := sql[start]
	i := start + 1
	for i < len(sql) {
		if sql[i] == q {
			if i+1 < len(sql) && sql[i+1] == q {
				i += 2
				continue
			}
			return i + 1, nil
		}
		i++
	}
	return 0, newBalanceError(sql, start, "unterminated quote %c", q)
}

// isWordByte accepts identifier bytes, digits, '.', '$' and any non-ASCII
// byte so qualified names and unicode identifiers lex as one word.
func isWordByte(c byte) bool {
	return c == '_' || c == '.' || c == '$' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c >= 0x80
}
