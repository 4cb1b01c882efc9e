// Package batch runs many library-part sessions as a dependency-ordered
// set: parts that CALL other parts as macros compile after their callees.
package batch

// PartStatus represents the current state of a part in the batch.
type PartStatus int

const (
	PartPending   PartStatus = iota // Waiting for dependencies
	PartRunning                     // Session currently executing
	PartCompleted                   // Session succeeded
	PartFailed                      // Session failed or aborted
	PartSkipped                     // Intentionally not run
)

// FailureMode determines how a part's failure affects dependents.
type FailureMode int

const (
	FailHard FailureMode = iota // Block ALL dependents
	FailSoft                    // Dependents CAN still run
	FailSkip                    // Treat as success for dependency purposes
)

// Part is one library part in the batch.
type Part struct {
	Name        string   // Unique name; doubles as the output artifact base name
	Instruction string   // Modeling instruction for the session
	Source      string   // Existing document to modify, may be empty
	DependsOn   []string // Names of parts that must build first
	Status      PartStatus
	FailureMode FailureMode
	Artifact    string // Promoted artifact path (populated after completion)
	Error       error  // Error if failed
}

func clonePart(p *Part) *Part {
	if p == nil {
		return nil
	}

	cp := *p
	if p.DependsOn != nil {
		cp.DependsOn = append([]string(nil), p.DependsOn...)
	}
	return &cp
}
