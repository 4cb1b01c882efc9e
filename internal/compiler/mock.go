package compiler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/byewind1/gdl-agent/internal/libpart"
)

// Mock is a stand-in compiler for tests and dry runs without ArchiCAD. It
// parses the document, simulates a handful of common converter errors, and
// writes a marker artifact on success. A Script hook can override the
// verdict entirely, which is how orchestrator tests drive specific paths.
type Mock struct {
	// FailPattern fails the compile whenever the source contains it.
	FailPattern string

	// Script, when set, decides the verdict for each invocation in order.
	// Once the slice is exhausted the normal mock behavior resumes.
	Script []Result

	// Unavailable makes Available report false.
	Unavailable bool

	mu    sync.Mutex
	calls int
}

func (m *Mock) Available() bool { return !m.Unavailable }

// Calls reports how many times Compile ran.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *Mock) Compile(ctx context.Context, source, output string) Result {
	m.mu.Lock()
	n := m.calls
	m.calls++
	m.mu.Unlock()

	if n < len(m.Script) {
		return m.Script[n]
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return Result{
			Status:     StatusFailure,
			Kind:       FailUnknown,
			Diagnostic: fmt.Sprintf("file not found: %s", source),
		}
	}
	content := string(data)

	if _, err := libpart.Parse(data); err != nil {
		return classify("XML parse error: " + err.Error())
	}

	if m.FailPattern != "" && strings.Contains(content, m.FailPattern) {
		return classify(fmt.Sprintf("GDL error: pattern check failed for %q", m.FailPattern))
	}

	// A crude IF/ENDIF count mirrors the converter's most common complaint.
	ifs := strings.Count(strings.ToUpper(content), "IF ")
	endifs := strings.Count(strings.ToUpper(content), "ENDIF")
	if endifs > ifs {
		return classify(fmt.Sprintf("GDL error: ENDIF without matching IF (IF: %d, ENDIF: %d)", ifs, endifs))
	}

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return Result{Status: StatusFailure, Kind: FailUnknown, Diagnostic: err.Error()}
	}
	if err := os.WriteFile(output, []byte("[mock-gsm] from "+source), 0o644); err != nil {
		return Result{Status: StatusFailure, Kind: FailUnknown, Diagnostic: err.Error()}
	}
	return Result{Status: StatusSuccess, ArtifactPath: output}
}

func (m *Mock) Decompile(ctx context.Context, artifact, outputDir string) Result {
	return Result{
		Status:     StatusFailure,
		Kind:       FailUnknown,
		Diagnostic: "mock compiler does not support decompilation",
	}
}
