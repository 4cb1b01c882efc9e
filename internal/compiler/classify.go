package compiler

import (
	"regexp"
	"strconv"
	"strings"
)

// The converter's diagnostic text is free-form. These patterns map the
// common shapes onto the validator's defect vocabulary so compile-time
// failures the validator missed read the same way in feedback.
var (
	lineRe      = regexp.MustCompile(`(?i)line[\s:]+(\d+)`)
	columnRe    = regexp.MustCompile(`(?i)col(?:umn)?[\s:]+(\d+)`)
	constructRe = regexp.MustCompile(`"([A-Za-z_][A-Za-z0-9_]*)"`)

	blockRe    = regexp.MustCompile(`(?i)(endif|next|unclosed|unexpected end|mismatch|without matching)`)
	argRe      = regexp.MustCompile(`(?i)(missing|too few|not enough|expected more)[^\n]*(argument|parameter|value)|(argument|parameter)[^\n]*missing`)
	resolveRe  = regexp.MustCompile(`(?i)(unknown|unresolved|undefined|not found|cannot resolve)[^\n]*(macro|label|call|variable|identifier|symbol)?`)
	syntaxRe   = regexp.MustCompile(`(?i)(syntax|parse) error`)
)

// classify turns raw converter output into a failure Result with a kind,
// a concise diagnostic, and the source location when one is present.
func classify(raw string) Result {
	res := Result{
		Status: StatusFailure,
		Kind:   FailUnknown,
		Raw:    raw,
	}

	if m := lineRe.FindStringSubmatch(raw); m != nil {
		res.Line, _ = strconv.Atoi(m[1])
	}
	if m := columnRe.FindStringSubmatch(raw); m != nil {
		res.Column, _ = strconv.Atoi(m[1])
	}
	if m := constructRe.FindStringSubmatch(raw); m != nil {
		res.Construct = m[1]
	}

	switch {
	case argRe.MatchString(raw):
		res.Kind = FailMissingArgument
	case blockRe.MatchString(raw):
		res.Kind = FailMismatchedBlock
	case resolveRe.MatchString(raw):
		res.Kind = FailUnresolvedReference
	case syntaxRe.MatchString(raw):
		res.Kind = FailSyntax
	}

	res.Diagnostic = firstLines(raw, 5)
	return res
}

func firstLines(s string, n int) string {
	var lines []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
		if len(lines) == n {
			break
		}
	}
	return strings.Join(lines, "\n")
}
