package compiler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		kind FailureKind
		line int
	}{
		{
			name: "mismatched block with location",
			raw:  "Error in Script_3D at line 14: ENDIF without matching IF",
			kind: FailMismatchedBlock,
			line: 14,
		},
		{
			name: "missing argument",
			raw:  "GDL error: too few arguments for \"PRISM\"",
			kind: FailMissingArgument,
		},
		{
			name: "unresolved macro",
			raw:  "Error: unknown macro \"shelf_leg\" referenced from CALL",
			kind: FailUnresolvedReference,
		},
		{
			name: "syntax error",
			raw:  "syntax error in line 3, column 7",
			kind: FailSyntax,
			line: 3,
		},
		{
			name: "unclassified",
			raw:  "internal converter fault 0x20",
			kind: FailUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := classify(tt.raw)
			if res.Status != StatusFailure {
				t.Fatalf("expected failure status, got %v", res.Status)
			}
			if res.Kind != tt.kind {
				t.Errorf("kind = %s, want %s", res.Kind, tt.kind)
			}
			if res.Line != tt.line {
				t.Errorf("line = %d, want %d", res.Line, tt.line)
			}
		})
	}
}

func TestClassify_ExtractsConstruct(t *testing.T) {
	res := classify(`Error: unknown macro "shelf_leg"`)
	if res.Construct != "shelf_leg" {
		t.Errorf("construct = %q, want shelf_leg", res.Construct)
	}
}

func TestConverter_NotFound(t *testing.T) {
	c := NewConverter("/nonexistent/LP_XMLConverter", time.Second, nil)
	if c.Available() {
		t.Fatal("expected converter to be unavailable")
	}

	res := c.Compile(context.Background(), "in.xml", "out.gsm")
	if res.Status != StatusToolNotFound {
		t.Fatalf("expected tool-not-found, got %v", res.Status)
	}
	if !strings.Contains(res.Diagnostic, "LP_XMLConverter") {
		t.Errorf("expected actionable diagnostic, got %q", res.Diagnostic)
	}
}

func TestConverter_EmptyPathUnavailable(t *testing.T) {
	c := NewConverter("", time.Second, nil)
	if c.Available() {
		t.Fatal("unconfigured converter must report unavailable")
	}
}

const mockDoc = `<?xml version="1.0" encoding="UTF-8"?>
<Symbol Name="T">
  <Script_3D><![CDATA[BLOCK 1, 1, 1
END]]></Script_3D>
</Symbol>
`

func writeDoc(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "part.xml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMock_SuccessWritesArtifact(t *testing.T) {
	dir := t.TempDir()
	src := writeDoc(t, dir, mockDoc)
	out := filepath.Join(dir, "part.gsm")

	m := &Mock{}
	res := m.Compile(context.Background(), src, out)
	if res.Status != StatusSuccess {
		t.Fatalf("expected success, got %v (%s)", res.Status, res.Diagnostic)
	}
	if res.ArtifactPath != out {
		t.Errorf("artifact = %q, want %q", res.ArtifactPath, out)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("expected artifact on disk: %v", err)
	}
	if m.Calls() != 1 {
		t.Errorf("calls = %d, want 1", m.Calls())
	}
}

func TestMock_FailPattern(t *testing.T) {
	dir := t.TempDir()
	src := writeDoc(t, dir, mockDoc)

	m := &Mock{FailPattern: "BLOCK"}
	res := m.Compile(context.Background(), src, filepath.Join(dir, "part.gsm"))
	if res.Status != StatusFailure {
		t.Fatalf("expected failure, got %v", res.Status)
	}
}

func TestMock_MalformedXML(t *testing.T) {
	dir := t.TempDir()
	src := writeDoc(t, dir, "<Symbol><Script_3D>unterminated")

	m := &Mock{}
	res := m.Compile(context.Background(), src, filepath.Join(dir, "part.gsm"))
	if res.Status != StatusFailure {
		t.Fatalf("expected failure for malformed XML, got %v", res.Status)
	}
}

func TestMock_ScriptedVerdicts(t *testing.T) {
	m := &Mock{Script: []Result{
		{Status: StatusFailure, Kind: FailSyntax, Diagnostic: "scripted failure"},
		{Status: StatusSuccess, ArtifactPath: "x.gsm"},
	}}

	first := m.Compile(context.Background(), "ignored", "ignored")
	if first.Status != StatusFailure || first.Diagnostic != "scripted failure" {
		t.Fatalf("unexpected first verdict: %+v", first)
	}
	second := m.Compile(context.Background(), "ignored", "ignored")
	if second.Status != StatusSuccess {
		t.Fatalf("unexpected second verdict: %+v", second)
	}
}

func TestResult_SummaryTruncates(t *testing.T) {
	r := Result{Raw: "a\n\nb\nc\nd\ne\nf\ng"}
	got := r.Summary()
	if strings.Count(got, "\n") != 4 {
		t.Errorf("expected 5 lines, got %q", got)
	}
}
