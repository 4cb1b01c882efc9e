package gdl

import "strings"

// tokenKind discriminates the small token vocabulary the validator needs.
// This is deliberately not a full GDL lexer: it only distinguishes words,
// numbers, quoted strings, and single-character punctuation.
type tokenKind int

const (
	tokWord tokenKind = iota
	tokNumber
	tokString
	tokPunct
)

type token struct {
	kind tokenKind
	text string // uppercased for words; quote-stripped for strings
}

// statement is one logical GDL statement with its 1-based source line.
// Statements are split on the ':' separator and joined across lines when
// a line ends with a trailing comma (GDL continuation). colonTerminated
// records whether the statement ended at a ':' separator, which is what
// distinguishes a label definition from a lone expression statement.
type statement struct {
	line            int
	tokens          []token
	colonTerminated bool
}

// scan splits source text into logical statements. Comments ('!' to end of
// line) are dropped, string literals are kept as single tokens so quoting
// survives into the call-target check.
func scan(src string) []statement {
	var stmts []statement
	var cur *statement

	flush := func() {
		if cur != nil {
			stmts = append(stmts, *cur)
			cur = nil
		}
	}

	for i, line := range strings.Split(src, "\n") {
		lineNo := i + 1
		toks := tokenizeLine(line)

		start := 0
		for idx := 0; idx <= len(toks); idx++ {
			atSep := idx < len(toks) && toks[idx].kind == tokPunct && toks[idx].text == ":"
			if idx < len(toks) && !atSep {
				continue
			}
			seg := toks[start:idx]
			start = idx + 1
			if len(seg) == 0 {
				continue
			}
			if cur == nil {
				cur = &statement{line: lineNo}
			}
			cur.tokens = append(cur.tokens, seg...)

			// A trailing comma at end of line continues the statement
			// on the next line; anywhere else the statement is complete.
			last := cur.tokens[len(cur.tokens)-1]
			if atSep || !(last.kind == tokPunct && last.text == ",") {
				cur.colonTerminated = atSep
				flush()
			}
		}
	}
	flush()
	return stmts
}

func tokenizeLine(line string) []token {
	var toks []token
	i := 0
	for i < len(line) {
		c := line[i]
		switch {
		case c == '!':
			return toks // comment runs to end of line
		case c == '"' || c == '\'' || c == '`':
			quote := c
			j := i + 1
			for j < len(line) && line[j] != quote {
				j++
			}
			toks = append(toks, token{tokString, line[i+1:j]})
			if j < len(line) {
				j++ // consume closing quote
			}
			i = j
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c >= '0' && c <= '9':
			j := i
			for j < len(line) && (line[j] >= '0' && line[j] <= '9' || line[j] == '.') {
				j++
			}
			toks = append(toks, token{tokNumber, line[i:j]})
			i = j
		case isWordStart(c):
			j := i
			for j < len(line) && isWordChar(line[j]) {
				j++
			}
			toks = append(toks, token{tokWord, strings.ToUpper(line[i:j])})
			i = j
		default:
			toks = append(toks, token{tokPunct, string(c)})
			i++
		}
	}
	return toks
}

func isWordStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isWordChar(c byte) bool {
	return isWordStart(c) || (c >= '0' && c <= '9')
}

// labelName reports whether a statement is a subroutine label definition:
// a quoted string (or bare number, the legacy form) that stood alone before
// a ':' separator. A lone string or number without the colon is just an
// expression statement and must not satisfy a GOSUB.
func labelName(s statement) (string, bool) {
	if len(s.tokens) != 1 || !s.colonTerminated {
		return "", false
	}
	t := s.tokens[0]
	if t.kind == tokString || t.kind == tokNumber {
		return t.text, true
	}
	return "", false
}
