package agent

import (
	"time"

	"github.com/byewind1/gdl-agent/internal/compiler"
	"github.com/byewind1/gdl-agent/internal/gdl"
)

// Outcome is the terminal state of a session.
type Outcome string

const (
	// OutcomeSucceeded means an attempt compiled and the artifact was promoted.
	OutcomeSucceeded Outcome = "succeeded"
	// OutcomeExhausted means the attempt budget ran out without a success.
	OutcomeExhausted Outcome = "exhausted"
	// OutcomeStagnated means the model repeated a previously rejected candidate.
	OutcomeStagnated Outcome = "stagnated"
	// OutcomeAborted means an unrecoverable condition stopped the session early.
	OutcomeAborted Outcome = "aborted"
	// OutcomeBlocked means pre-flight analysis found hard blockers and the
	// session ended before any model call.
	OutcomeBlocked Outcome = "blocked"
)

// Stage identifies where in the pipeline an attempt stopped.
type Stage string

const (
	StageGenerate Stage = "generate"
	StageExtract  Stage = "extract"
	StageDiff     Stage = "diff"
	StageValidate Stage = "validate"
	StageCompile  Stage = "compile"
	StagePromote  Stage = "promote"
)

// Task describes one modeling request.
type Task struct {
	ID          string // optional; a UUID is assigned if empty
	Instruction string // what to model or change
	SourcePath  string // existing library-part XML to modify (may be empty for fresh parts)
	OutputDir   string // where the compiled artifact is promoted
	OutputName  string // artifact base name, e.g. "Bookshelf"
	Model       string // model override passed through to the generator
	MaxAttempts int    // attempt budget (defaults to 5)
}

// Attempt records a single trip through the generate-validate-compile pipeline.
// Attempts are append-only: a session's history is never rewritten.
type Attempt struct {
	Index     int    // 1-based
	Stage     Stage  // the stage this attempt reached
	Candidate string // extracted candidate document, empty if extraction failed
	Defects   []gdl.Defect
	Compile   *compiler.Result
	Err       string // generator or pipeline error, if any
	Feedback  string // feedback synthesized for the next attempt
	Tokens    int
	Duration  time.Duration
}

// Failed reports whether this attempt ended in any non-success state.
func (a Attempt) Failed() bool {
	return a.Compile == nil || a.Compile.Status != compiler.StatusSuccess
}

// Session is the complete record of one task run.
type Session struct {
	ID           string
	Task         Task
	Attempts     []Attempt
	Outcome      Outcome
	Reason       string // human-readable detail for non-success outcomes
	ArtifactPath string // promoted artifact, set only on success
	TotalTokens  int
	StartedAt    time.Time
	Duration     time.Duration
}

// LastAttempt returns the most recent attempt, or nil if none ran.
func (s *Session) LastAttempt() *Attempt {
	if len(s.Attempts) == 0 {
		return nil
	}
	return &s.Attempts[len(s.Attempts)-1]
}
