package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/byewind1/gdl-agent/internal/libpart"
)

// ManifestPart is one part entry in the YAML manifest.
type ManifestPart struct {
	Name        string   `yaml:"name"`
	Instruction string   `yaml:"instruction"`
	Source      string   `yaml:"source,omitempty"`
	DependsOn   []string `yaml:"depends_on,omitempty"`
	OnFailure   string   `yaml:"on_failure,omitempty"` // "hard" (default), "soft", "skip"
}

// Manifest describes a batch of parts to build.
type Manifest struct {
	Concurrency int            `yaml:"concurrency,omitempty"`
	OutputDir   string         `yaml:"output_dir,omitempty"`
	MaxAttempts int            `yaml:"max_attempts,omitempty"`
	Parts       []ManifestPart `yaml:"parts"`
}

// LoadManifest reads and validates a YAML manifest. Source paths are
// resolved relative to the manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}

	base := filepath.Dir(path)
	for i := range m.Parts {
		if m.Parts[i].Source != "" && !filepath.IsAbs(m.Parts[i].Source) {
			m.Parts[i].Source = filepath.Join(base, m.Parts[i].Source)
		}
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks names, references, and failure modes.
func (m *Manifest) Validate() error {
	if len(m.Parts) == 0 {
		return fmt.Errorf("manifest has no parts")
	}

	seen := make(map[string]bool, len(m.Parts))
	for _, p := range m.Parts {
		if p.Name == "" {
			return fmt.Errorf("manifest part with empty name")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate part name %q", p.Name)
		}
		seen[p.Name] = true

		if p.Instruction == "" {
			return fmt.Errorf("part %q has no instruction", p.Name)
		}
		switch p.OnFailure {
		case "", "hard", "soft", "skip":
		default:
			return fmt.Errorf("part %q has unknown on_failure %q", p.Name, p.OnFailure)
		}
	}

	for _, p := range m.Parts {
		for _, dep := range p.DependsOn {
			if !seen[dep] {
				return fmt.Errorf("part %q depends on unknown part %q", p.Name, dep)
			}
		}
	}

	return nil
}

// BuildDAG converts the manifest into a DAG, folding in implicit macro
// dependencies: if a part's source document CALLs another part in the
// manifest by name, the callee becomes a dependency even when depends_on
// doesn't list it.
func (m *Manifest) BuildDAG() (*DAG, error) {
	names := make(map[string]bool, len(m.Parts))
	for _, p := range m.Parts {
		names[p.Name] = true
	}

	dag := NewDAG()
	for _, mp := range m.Parts {
		deps := append([]string(nil), mp.DependsOn...)
		deps = append(deps, m.macroDeps(mp, names)...)

		part := &Part{
			Name:        mp.Name,
			Instruction: mp.Instruction,
			Source:      mp.Source,
			DependsOn:   dedupe(deps, mp.Name),
			FailureMode: parseFailureMode(mp.OnFailure),
		}
		if err := dag.AddPart(part); err != nil {
			return nil, err
		}
	}

	if _, err := dag.Validate(); err != nil {
		return nil, err
	}
	return dag, nil
}

// macroDeps extracts CALL targets from the part's source document that name
// other manifest parts. Unreadable or absent sources contribute nothing; the
// session itself will surface real problems.
func (m *Manifest) macroDeps(mp ManifestPart, names map[string]bool) []string {
	if mp.Source == "" {
		return nil
	}
	data, err := os.ReadFile(mp.Source)
	if err != nil {
		return nil
	}
	sym, err := libpart.Parse(data)
	if err != nil {
		return nil
	}

	var deps []string
	for _, macro := range sym.Macros() {
		for name := range names {
			if strings.EqualFold(macro, name) {
				deps = append(deps, name)
			}
		}
	}
	return deps
}

func parseFailureMode(s string) FailureMode {
	switch s {
	case "soft":
		return FailSoft
	case "skip":
		return FailSkip
	default:
		return FailHard
	}
}

func dedupe(deps []string, self string) []string {
	seen := make(map[string]bool, len(deps))
	var out []string
	for _, d := range deps {
		if d == self || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}
