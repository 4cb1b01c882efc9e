package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/byewind1/gdl-agent/internal/libpart"
)

// analysis is the pre-flight verdict for a task: whether a session can
// plausibly succeed, plus anything the prompt should warn the model about.
type analysis struct {
	Feasible         bool
	Blockers         []string
	UnresolvedMacros []string
}

// analyzeTask inspects a task before the first model call. Hard blockers are
// conditions no amount of retrying can fix, so the session ends as blocked
// without spending any of the attempt budget.
func analyzeTask(task Task, sourceXML string) analysis {
	a := analysis{Feasible: true}

	if sourceXML != "" {
		sym, err := libpart.Parse([]byte(sourceXML))
		if err != nil {
			a.block(fmt.Sprintf("source document %s is not a well-formed library part: %v",
				filepath.Base(task.SourcePath), err))
		} else {
			a.UnresolvedMacros = unresolvedMacros(sym, filepath.Dir(task.SourcePath))
		}
	}

	if task.OutputDir != "" {
		if fi, err := os.Stat(task.OutputDir); err == nil && !fi.IsDir() {
			a.block(fmt.Sprintf("output path %s exists and is not a directory", task.OutputDir))
		}
	}

	return a
}

func (a *analysis) block(reason string) {
	a.Feasible = false
	a.Blockers = append(a.Blockers, reason)
}

// unresolvedMacros lists the CALLed macros with no XML document next to the
// source part. Their parameter signatures are invisible to the model, so CALL
// mistakes against them survive validation and only surface at compile time.
func unresolvedMacros(sym *libpart.Symbol, dir string) []string {
	macros := sym.Macros()
	if len(macros) == 0 {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return macros
	}
	local := make(map[string]bool, len(entries))
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if !strings.EqualFold(ext, ".xml") {
			continue
		}
		local[strings.ToUpper(strings.TrimSuffix(e.Name(), ext))] = true
	}
	var missing []string
	for _, name := range macros {
		if !local[strings.ToUpper(name)] {
			missing = append(missing, name)
		}
	}
	return missing
}
