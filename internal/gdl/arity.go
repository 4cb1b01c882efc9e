package gdl

import (
	"fmt"
	"strconv"
	"strings"
)

// aritySpec describes the minimum argument count for a built-in primitive.
// Fixed-arity primitives set min. Vertex-list primitives set base (the fixed
// leading arguments, including the vertex count itself), perVertex (arguments
// consumed per vertex), and heightSlot (1-based position of the height/offset
// argument, 0 when the primitive has none).
type aritySpec struct {
	min        int
	base       int
	perVertex  int
	heightSlot int
}

var arityTable = map[string]aritySpec{
	"BLOCK":  {min: 3},
	"BRICK":  {min: 3},
	"CYLIND": {min: 2},
	"SPHERE": {min: 1},
	"ELLIPS": {min: 2},
	"CONE":   {min: 5},

	// n, height, then per-vertex coordinates.
	"PRISM":  {base: 2, perVertex: 2, heightSlot: 2},
	"PRISM_": {base: 2, perVertex: 3, heightSlot: 2},
	"SLAB":   {base: 2, perVertex: 3, heightSlot: 2},

	// n, then per-vertex coordinates (planar, no height).
	"POLY":  {base: 1, perVertex: 2},
	"POLY_": {base: 1, perVertex: 3},
}

func (c *checker) checkArity(s statement, spec aritySpec) {
	name := s.tokens[0].text
	argc := countArgs(s.tokens[1:])

	if spec.perVertex == 0 {
		if argc < spec.min {
			c.report(Defect{
				Kind:   DefectArity,
				Line:   s.line,
				Detail: fmt.Sprintf("%s requires at least %d arguments, got %d", name, spec.min, argc),
			})
		}
		return
	}

	// Vertex-list primitive: the required count depends on the leading
	// vertex count, which we can only check when it is a literal integer.
	n, ok := leadingInt(s.tokens[1:])
	if !ok {
		return
	}
	required := spec.base + spec.perVertex*n
	if argc >= required {
		return
	}
	if spec.heightSlot > 0 && argc == required-1 {
		c.report(Defect{
			Kind: DefectArity,
			Line: s.line,
			Detail: fmt.Sprintf(
				"%s with %d vertices requires %d arguments, got %d; the height argument (position %d) is missing before the vertex list",
				name, n, required, argc, spec.heightSlot),
		})
		return
	}
	c.report(Defect{
		Kind: DefectArity,
		Line: s.line,
		Detail: fmt.Sprintf("%s with %d vertices requires %d arguments, got %d",
			name, n, required, argc),
	})
}

// countArgs counts comma-separated arguments, ignoring commas nested inside
// parentheses (function calls like SQR(a, b) count as one argument).
func countArgs(toks []token) int {
	if len(toks) == 0 {
		return 0
	}
	args := 1
	depth := 0
	for _, t := range toks {
		if t.kind != tokPunct {
			continue
		}
		switch t.text {
		case "(":
			depth++
		case ")":
			if depth > 0 {
				depth--
			}
		case ",":
			if depth == 0 {
				args++
			}
		}
	}
	// A trailing comma (unfinished continuation) would overcount by one.
	last := toks[len(toks)-1]
	if last.kind == tokPunct && last.text == "," {
		args--
	}
	return args
}

// leadingInt returns the first argument as an integer when it is a plain
// integer literal.
func leadingInt(toks []token) (int, bool) {
	if len(toks) == 0 || toks[0].kind != tokNumber || strings.Contains(toks[0].text, ".") {
		return 0, false
	}
	n, err := strconv.Atoi(toks[0].text)
	if err != nil {
		return 0, false
	}
	return n, true
}
