package agent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAnalyzeTask_CleanTaskIsFeasible(t *testing.T) {
	a := analyzeTask(Task{Instruction: "model a shelf", OutputDir: t.TempDir()}, "")
	if !a.Feasible {
		t.Fatalf("expected feasible, got blockers %v", a.Blockers)
	}
	if len(a.UnresolvedMacros) != 0 {
		t.Errorf("no source, no macros expected, got %v", a.UnresolvedMacros)
	}
}

func TestAnalyzeTask_MalformedSourceBlocks(t *testing.T) {
	a := analyzeTask(Task{SourcePath: "Broken.xml"}, "<Symbol Name=\"x\"><Script_3D>")
	if a.Feasible {
		t.Fatal("expected malformed source to block")
	}
	if len(a.Blockers) != 1 || !strings.Contains(a.Blockers[0], "Broken.xml") {
		t.Errorf("blocker should name the source file, got %v", a.Blockers)
	}
}

func TestAnalyzeTask_OutputPathIsAFileBlocks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	a := analyzeTask(Task{OutputDir: path}, "")
	if a.Feasible {
		t.Fatal("expected file at output path to block")
	}
	if !strings.Contains(a.Blockers[0], "not a directory") {
		t.Errorf("unexpected blocker: %v", a.Blockers)
	}
}

func TestAnalyzeTask_UnresolvedMacros(t *testing.T) {
	dir := t.TempDir()
	doc := symbolDoc("Desk", "CALL \"drawer\"\nCALL \"leg\"\nEND")
	srcPath := filepath.Join(dir, "Desk.xml")
	if err := os.WriteFile(srcPath, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	// Only one of the two CALLed macros has a document next to the part.
	if err := os.WriteFile(filepath.Join(dir, "Drawer.xml"), []byte(symbolDoc("Drawer", "END")), 0o644); err != nil {
		t.Fatal(err)
	}

	a := analyzeTask(Task{SourcePath: srcPath}, doc)
	if !a.Feasible {
		t.Fatalf("macros never block, got %v", a.Blockers)
	}
	if len(a.UnresolvedMacros) != 1 || a.UnresolvedMacros[0] != "leg" {
		t.Errorf("expected only %q unresolved, got %v", "leg", a.UnresolvedMacros)
	}
}
