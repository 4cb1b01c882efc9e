// Package gdl checks GDL script bodies for structural well-formedness
// without parsing the full grammar. It tracks nested block constructs
// (IF/ENDIF, FOR/NEXT, the ADD/DEL transform stack), subroutine labels,
// primitive arity, and the mandatory END terminator, and reports every
// defect it finds in a single scan.
//
// Validation is purely syntactic: an empty defect list means the script is
// structurally sound, not that it is geometrically correct. Semantic errors
// are left to the compiler.
package gdl

import (
	"fmt"
	"strconv"
	"strings"
)

// Validate checks a 3D script body. The END terminator is mandatory.
func Validate(src string) []Defect {
	return validate(src, true)
}

// ValidateBody checks a script body for which END is optional (master,
// plan-view, and parameter scripts).
func ValidateBody(src string) []Defect {
	return validate(src, false)
}

type loopFrame struct {
	variable string
	line     int
}

type labelDef struct {
	line      int
	index     int // statement index, for the RETURN scan
	hasReturn bool
}

type invocation struct {
	name string
	line int
}

type checker struct {
	defects []Defect

	ifStack   []int // lines of open multi-line IFs
	loopStack []loopFrame
	depth     int // transform stack depth

	labels      map[string]*labelDef
	invocations []invocation

	prevSingleIf int // line of the immediately preceding single-line IF, 0 otherwise
}

func (c *checker) report(d Defect) {
	c.defects = append(c.defects, d)
}

func validate(src string, requireEnd bool) []Defect {
	stmts := scan(src)
	c := &checker{labels: make(map[string]*labelDef)}

	// Pass 1: collect label definitions and whether each body reaches a
	// RETURN before the next label. Invocations may precede definitions in
	// source order, so this must happen before the main scan.
	for i, s := range stmts {
		name, ok := labelName(s)
		if !ok {
			continue
		}
		def := &labelDef{line: s.line, index: i}
		for j := i + 1; j < len(stmts); j++ {
			if _, isLabel := labelName(stmts[j]); isLabel {
				break
			}
			if head(stmts[j]) == "RETURN" {
				def.hasReturn = true
				break
			}
		}
		c.labels[strings.ToUpper(name)] = def
	}

	// Pass 2: main left-to-right scan.
	for _, s := range stmts {
		c.check(s)
	}

	// Invocation resolution against the symbol table.
	reportedMissing := make(map[string]bool)
	for _, inv := range c.invocations {
		def, ok := c.labels[strings.ToUpper(inv.name)]
		if !ok {
			c.report(Defect{
				Kind:   DefectUnresolvedLabel,
				Line:   inv.line,
				Detail: fmt.Sprintf("GOSUB %q has no matching label definition", inv.name),
			})
			continue
		}
		if !def.hasReturn && !reportedMissing[strings.ToUpper(inv.name)] {
			reportedMissing[strings.ToUpper(inv.name)] = true
			c.report(Defect{
				Kind:   DefectMissingReturn,
				Line:   def.line,
				Detail: fmt.Sprintf("subroutine %q is not terminated by RETURN", inv.name),
			})
		}
	}

	// End-of-script balance checks.
	for i, line := range c.ifStack {
		c.report(Defect{
			Kind:   DefectBlockBalance,
			Line:   line,
			Depth:  i + 1,
			Detail: "IF block is never closed with ENDIF",
		})
	}
	for i, f := range c.loopStack {
		c.report(Defect{
			Kind:   DefectLoopBalance,
			Line:   f.line,
			Depth:  i + 1,
			Detail: fmt.Sprintf("FOR %s is never closed with NEXT %s", f.variable, f.variable),
		})
	}
	if c.depth > 0 {
		c.report(Defect{
			Kind:   DefectStackBalance,
			Depth:  c.depth,
			Detail: fmt.Sprintf("%d transform(s) left on the stack at end of script; add DEL %d", c.depth, c.depth),
		})
	}
	if requireEnd && !endsProperly(stmts) {
		c.report(Defect{
			Kind:   DefectMissingEnd,
			Detail: "script body must terminate with END",
		})
	}

	return c.defects
}

// endsProperly reports whether the script terminates with END. Subroutine
// sections conventionally follow the END of the main body, so when labels
// are present it is enough that an END exists; otherwise the final statement
// must be the terminator itself.
func endsProperly(stmts []statement) bool {
	sawEnd, sawLabel := false, false
	last := ""
	for _, s := range stmts {
		if _, isLabel := labelName(s); isLabel {
			sawLabel = true
			continue
		}
		last = head(s)
		if last == "END" {
			sawEnd = true
		}
	}
	if sawLabel {
		return sawEnd
	}
	return last == "END"
}

func head(s statement) string {
	if len(s.tokens) == 0 || s.tokens[0].kind != tokWord {
		return ""
	}
	return s.tokens[0].text
}

var pushKeywords = map[string]bool{
	"ADD": true, "ADDX": true, "ADDY": true, "ADDZ": true,
	"ROT": true, "ROTX": true, "ROTY": true, "ROTZ": true,
	"MUL": true, "MULX": true, "MULY": true, "MULZ": true,
	"XFORM": true,
}

func (c *checker) check(s statement) {
	if _, isLabel := labelName(s); isLabel {
		c.prevSingleIf = 0
		return
	}
	kw := head(s)
	if kw == "" {
		return
	}

	singleIf := 0
	switch {
	case kw == "IF":
		singleIf = c.checkIf(s)
	case kw == "ENDIF":
		c.checkEndif(s)
	case kw == "FOR":
		c.loopStack = append(c.loopStack, loopFrame{variable: forVariable(s), line: s.line})
	case kw == "NEXT":
		c.checkNext(s)
	case pushKeywords[kw]:
		c.depth++
	case kw == "DEL":
		c.checkDel(s)
	case kw == "GOSUB":
		c.checkTarget(s, true)
	case kw == "CALL":
		c.checkTarget(s, false)
	default:
		if spec, ok := arityTable[kw]; ok {
			c.checkArity(s, spec)
		}
	}
	c.prevSingleIf = singleIf
}

// checkIf distinguishes the single-line form (a complete statement follows
// THEN on the same line, no ENDIF allowed) from the multi-line form (bare
// THEN at end of line, ENDIF mandatory). Returns the line number when the
// statement is a single-line IF, 0 otherwise.
func (c *checker) checkIf(s statement) int {
	thenIdx := -1
	for i, t := range s.tokens {
		if t.kind == tokWord && t.text == "THEN" {
			thenIdx = i
			break
		}
	}
	if thenIdx >= 0 && thenIdx < len(s.tokens)-1 {
		// Check the consequence itself (a GOSUB or transform after THEN
		// still counts), stopping at an ELSE branch's own consequence.
		body := s.tokens[thenIdx+1:]
		for i, t := range body {
			if t.kind == tokWord && t.text == "ELSE" {
				body = body[:i]
				break
			}
		}
		if len(body) > 0 {
			c.check(statement{line: s.line, tokens: body})
		}
		return s.line
	}
	if thenIdx == -1 {
		// The jump forms (IF cond GOTO n, IF cond GOSUB "x") are
		// single-line without THEN.
		for _, t := range s.tokens {
			if t.kind == tokWord && (t.text == "GOTO" || t.text == "GOSUB") {
				return s.line
			}
		}
	}
	c.ifStack = append(c.ifStack, s.line)
	return 0
}

func (c *checker) checkEndif(s statement) {
	// An ENDIF right after a single-line IF belongs to that IF in the
	// author's mind, so it is the single-line defect even while outer
	// multi-line frames are still open; popping a frame here would pin
	// the miscount on the wrong construct.
	if c.prevSingleIf > 0 {
		c.report(Defect{
			Kind:   DefectCloserNotAllowed,
			Line:   s.line,
			Detail: fmt.Sprintf("ENDIF is not allowed after the single-line IF on line %d", c.prevSingleIf),
		})
		return
	}
	if len(c.ifStack) > 0 {
		c.ifStack = c.ifStack[:len(c.ifStack)-1]
		return
	}
	c.report(Defect{
		Kind:   DefectBlockBalance,
		Line:   s.line,
		Detail: "ENDIF without matching IF",
	})
}

func forVariable(s statement) string {
	if len(s.tokens) > 1 && s.tokens[1].kind == tokWord {
		return s.tokens[1].text
	}
	return ""
}

func (c *checker) checkNext(s statement) {
	if len(c.loopStack) == 0 {
		c.report(Defect{
			Kind:   DefectLoopBalance,
			Line:   s.line,
			Detail: "NEXT without matching FOR",
		})
		return
	}
	frame := c.loopStack[len(c.loopStack)-1]
	c.loopStack = c.loopStack[:len(c.loopStack)-1]

	variable := ""
	if len(s.tokens) > 1 && s.tokens[1].kind == tokWord {
		variable = s.tokens[1].text
	}
	if variable != frame.variable {
		c.report(Defect{
			Kind:  DefectLoopBalance,
			Line:  s.line,
			Depth: len(c.loopStack) + 1,
			Detail: fmt.Sprintf("NEXT %s does not match FOR %s opened on line %d",
				variable, frame.variable, frame.line),
		})
	}
}

func (c *checker) checkDel(s statement) {
	n := 1
	if len(s.tokens) > 1 {
		switch t := s.tokens[1]; {
		case t.kind == tokWord && t.text == "TOP":
			c.depth = 0
			return
		case t.kind == tokNumber:
			if v, err := strconv.Atoi(t.text); err == nil {
				n = v
			}
		}
		// Non-literal pop counts are assumed to pop a single entry.
	}
	if n > c.depth {
		c.report(Defect{
			Kind:   DefectStackBalance,
			Line:   s.line,
			Depth:  c.depth,
			Detail: fmt.Sprintf("DEL %d pops more transforms than the %d on the stack", n, c.depth),
		})
		c.depth = 0
		return
	}
	c.depth -= n
}

func (c *checker) checkTarget(s statement, local bool) {
	verb := "CALL"
	if local {
		verb = "GOSUB"
	}
	if len(s.tokens) < 2 {
		c.report(Defect{
			Kind:   DefectCallTarget,
			Line:   s.line,
			Detail: verb + " is missing its target",
		})
		return
	}
	target := s.tokens[1]
	if target.kind != tokString {
		c.report(Defect{
			Kind:   DefectCallTarget,
			Line:   s.line,
			Detail: fmt.Sprintf("%s target must be a quoted string literal, got %s", verb, target.text),
		})
		return
	}
	if local {
		c.invocations = append(c.invocations, invocation{name: target.text, line: s.line})
	}
}
