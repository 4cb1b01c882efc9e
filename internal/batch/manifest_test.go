package batch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeManifest(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "batch.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `
concurrency: 2
output_dir: out
max_attempts: 4
parts:
  - name: Bracket
    instruction: model a shelf bracket
  - name: Shelf
    instruction: model a shelf using the bracket
    source: Shelf.xml
    depends_on: [Bracket]
    on_failure: soft
`)
	// The referenced source need not exist at load time
	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}

	if m.Concurrency != 2 || m.OutputDir != "out" || m.MaxAttempts != 4 {
		t.Errorf("header fields = %+v", m)
	}
	if len(m.Parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(m.Parts))
	}

	shelf := m.Parts[1]
	if shelf.Name != "Shelf" || shelf.OnFailure != "soft" {
		t.Errorf("shelf = %+v", shelf)
	}
	// Relative sources resolve against the manifest directory
	if shelf.Source != filepath.Join(dir, "Shelf.xml") {
		t.Errorf("source = %q", shelf.Source)
	}
	if len(shelf.DependsOn) != 1 || shelf.DependsOn[0] != "Bracket" {
		t.Errorf("depends_on = %v", shelf.DependsOn)
	}
}

func TestLoadManifest_Invalid(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		errContains string
	}{
		{
			name:        "no parts",
			body:        "concurrency: 2\n",
			errContains: "no parts",
		},
		{
			name: "duplicate name",
			body: `
parts:
  - {name: Shelf, instruction: a}
  - {name: Shelf, instruction: b}
`,
			errContains: "duplicate",
		},
		{
			name: "missing instruction",
			body: `
parts:
  - {name: Shelf}
`,
			errContains: "no instruction",
		},
		{
			name: "unknown dependency",
			body: `
parts:
  - {name: Shelf, instruction: a, depends_on: [Ghost]}
`,
			errContains: "unknown part",
		},
		{
			name: "bad on_failure",
			body: `
parts:
  - {name: Shelf, instruction: a, on_failure: explode}
`,
			errContains: "on_failure",
		},
		{
			name:        "malformed yaml",
			body:        "parts: [unclosed",
			errContains: "parsing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeManifest(t, t.TempDir(), tt.body)
			_, err := LoadManifest(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("error %q should contain %q", err.Error(), tt.errContains)
			}
		})
	}
}

func TestBuildDAG_MacroDependencies(t *testing.T) {
	dir := t.TempDir()

	// Bookcase's 3D script CALLs Bracket, which is also in the manifest:
	// that becomes an implicit dependency.
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<Symbol Name="Bookcase">
  <Script_3D><![CDATA[FOR i = 1 TO 4
CALL "Bracket"
NEXT i
END]]></Script_3D>
</Symbol>`
	if err := os.WriteFile(filepath.Join(dir, "Bookcase.xml"), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	path := writeManifest(t, dir, `
parts:
  - name: Bracket
    instruction: model a bracket
  - name: Bookcase
    instruction: widen the bookcase
    source: Bookcase.xml
`)

	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}

	dag, err := m.BuildDAG()
	if err != nil {
		t.Fatalf("BuildDAG: %v", err)
	}

	bookcase, ok := dag.Get("Bookcase")
	if !ok {
		t.Fatal("Bookcase not in DAG")
	}
	if len(bookcase.DependsOn) != 1 || bookcase.DependsOn[0] != "Bracket" {
		t.Errorf("implicit macro dependency missing: %v", bookcase.DependsOn)
	}

	// Only Bracket is eligible until it completes
	eligible := dag.Eligible()
	if len(eligible) != 1 || eligible[0].Name != "Bracket" {
		t.Errorf("eligible = %v", names(eligible))
	}
}

func TestBuildDAG_ExplicitAndMacroDepsDeduped(t *testing.T) {
	dir := t.TempDir()

	doc := `<?xml version="1.0" encoding="UTF-8"?>
<Symbol Name="Shelf">
  <Script_3D><![CDATA[CALL "Bracket"
END]]></Script_3D>
</Symbol>`
	if err := os.WriteFile(filepath.Join(dir, "Shelf.xml"), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	path := writeManifest(t, dir, `
parts:
  - name: Bracket
    instruction: model a bracket
  - name: Shelf
    instruction: adjust the shelf
    source: Shelf.xml
    depends_on: [Bracket]
`)

	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	dag, err := m.BuildDAG()
	if err != nil {
		t.Fatalf("BuildDAG: %v", err)
	}

	shelf, _ := dag.Get("Shelf")
	if len(shelf.DependsOn) != 1 {
		t.Errorf("dependency listed twice: %v", shelf.DependsOn)
	}
}
