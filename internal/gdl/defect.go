package gdl

import "fmt"

// DefectKind classifies a structural well-formedness violation.
type DefectKind string

const (
	DefectBlockBalance     DefectKind = "block-balance"     // IF without ENDIF, or ENDIF without IF
	DefectCloserNotAllowed DefectKind = "closer-not-allowed" // ENDIF after a single-line IF
	DefectLoopBalance      DefectKind = "loop-balance"       // FOR/NEXT mismatch
	DefectStackBalance     DefectKind = "stack-balance"      // transform push/pop mismatch
	DefectCallTarget       DefectKind = "call-target"        // CALL/GOSUB target not a quoted string
	DefectUnresolvedLabel  DefectKind = "unresolved-label"   // GOSUB to a label with no definition
	DefectMissingReturn    DefectKind = "missing-return"     // subroutine body without RETURN
	DefectMissingEnd       DefectKind = "missing-end"        // script body does not end with END
	DefectArity            DefectKind = "arity"              // primitive called with too few arguments
)

// Defect is a single structural problem found in a script body.
// Line is 1-based; 0 means the defect concerns the end of the script.
// Depth is the construct nesting depth at the point of detection and is
// only meaningful for the block, loop, and stack kinds.
type Defect struct {
	Kind   DefectKind
	Line   int
	Depth  int
	Detail string
}

func (d Defect) String() string {
	if d.Line > 0 {
		return fmt.Sprintf("line %d: %s: %s", d.Line, d.Kind, d.Detail)
	}
	return fmt.Sprintf("end of script: %s: %s", d.Kind, d.Detail)
}
