package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

// Sandbox isolates compile attempts in a temp area. Candidate documents are
// written here, never over the golden source; failed attempts are archived
// for inspection and removed with the sandbox on cleanup.
type Sandbox struct {
	root    string
	archive string
}

// AttemptPaths are the per-attempt file locations inside the sandbox.
type AttemptPaths struct {
	Dir    string
	Source string // candidate XML written here before compiling
	Output string // compiler writes the artifact here
}

// NewSandbox creates a sandbox root. baseDir may be empty to use the system
// temp directory.
func NewSandbox(baseDir string) (*Sandbox, error) {
	root, err := os.MkdirTemp(baseDir, "gdl-agent-")
	if err != nil {
		return nil, fmt.Errorf("creating sandbox: %w", err)
	}
	return &Sandbox{root: root, archive: filepath.Join(root, "archive")}, nil
}

// Prepare lays out the directories for one attempt.
func (s *Sandbox) Prepare(name string, attempt int) (AttemptPaths, error) {
	dir := filepath.Join(s.root, fmt.Sprintf("attempt-%d", attempt))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return AttemptPaths{}, fmt.Errorf("preparing attempt dir: %w", err)
	}
	return AttemptPaths{
		Dir:    dir,
		Source: filepath.Join(dir, name+".xml"),
		Output: filepath.Join(dir, name+".gsm"),
	}, nil
}

// WriteSource stores the candidate document for this attempt.
func (s *Sandbox) WriteSource(p AttemptPaths, content []byte) error {
	if err := os.WriteFile(p.Source, content, 0o644); err != nil {
		return fmt.Errorf("writing sandbox source: %w", err)
	}
	return nil
}

// Archive moves a failed attempt's directory under archive/ so its candidate
// and diagnostics survive until Cleanup.
func (s *Sandbox) Archive(p AttemptPaths) error {
	if err := os.MkdirAll(s.archive, 0o755); err != nil {
		return err
	}
	dest := filepath.Join(s.archive, filepath.Base(p.Dir))
	return os.Rename(p.Dir, dest)
}

// Cleanup removes the sandbox and everything in it.
func (s *Sandbox) Cleanup() error {
	return os.RemoveAll(s.root)
}

// Root returns the sandbox root directory.
func (s *Sandbox) Root() string {
	return s.root
}
