// Package compiler adapts the external LP_XMLConverter tool behind a
// capability interface. Every process-level failure is folded into a
// classified verdict: callers never see a raw exec error.
package compiler

import (
	"context"
	"strings"
	"time"
)

// Status is the verdict kind of one compiler invocation.
type Status int

const (
	StatusSuccess Status = iota
	StatusFailure
	StatusTimeout
	StatusToolNotFound
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	case StatusTimeout:
		return "timeout"
	case StatusToolNotFound:
		return "tool-not-found"
	}
	return "unknown"
}

// FailureKind classifies a failed compile so feedback can speak the same
// vocabulary as the structural validator.
type FailureKind string

const (
	FailMismatchedBlock     FailureKind = "mismatched-block"
	FailMissingArgument     FailureKind = "missing-argument"
	FailUnresolvedReference FailureKind = "unresolved-reference"
	FailSyntax              FailureKind = "syntax"
	FailUnknown             FailureKind = "unknown"
)

// Result is the classified outcome of an invocation.
type Result struct {
	Status       Status
	ArtifactPath string // set on success
	Duration     time.Duration
	ExitCode     int

	// Failure details.
	Kind       FailureKind
	Diagnostic string // concise summary extracted from the tool output
	Raw        string // full captured stdout+stderr
	Line       int    // 1-based source location when present in the diagnostic
	Column     int
	Construct  string // construct name when the diagnostic names one
}

// Summary returns the first few non-empty diagnostic lines, the shape the
// feedback builder embeds in the next generation request.
func (r Result) Summary() string {
	if r.Diagnostic != "" {
		return r.Diagnostic
	}
	var lines []string
	for _, l := range strings.Split(r.Raw, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
		if len(lines) == 5 {
			break
		}
	}
	return strings.Join(lines, "\n")
}

// Compiler is the capability interface the orchestrator depends on.
type Compiler interface {
	// Available reports whether the tool can be invoked at all. The
	// orchestrator checks this before spending any generation budget.
	Available() bool

	// Compile builds a library part from an XML source file.
	Compile(ctx context.Context, source, output string) Result

	// Decompile extracts XML source from a built library part.
	Decompile(ctx context.Context, artifact, outputDir string) Result
}
