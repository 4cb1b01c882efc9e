package agent

import (
	"strings"
	"testing"
	"time"

	"github.com/byewind1/gdl-agent/internal/compiler"
	"github.com/byewind1/gdl-agent/internal/gdl"
	"github.com/byewind1/gdl-agent/internal/knowledge"
)

func TestSystemPromptWithoutKnowledge(t *testing.T) {
	got := systemPrompt(nil, "model a shelf")
	if got != baseSystemPrompt {
		t.Error("nil knowledge base should yield the base prompt unchanged")
	}
	if !strings.Contains(got, "complete library-part XML document") {
		t.Error("base prompt should demand a complete document")
	}
}

func TestSystemPromptInjectsReference(t *testing.T) {
	dir := t.TempDir()
	if err := knowledge.WriteDefaults(dir); err != nil {
		t.Fatal(err)
	}
	kb := knowledge.New(dir)
	if err := kb.Load(); err != nil {
		t.Fatal(err)
	}

	got := systemPrompt(kb, "fix the compile error in the prism")
	if !strings.Contains(got, "# Reference material") {
		t.Error("prompt should carry a reference section")
	}
	if len(got) <= len(baseSystemPrompt) {
		t.Error("prompt should grow when reference material is injected")
	}
}

func TestInitialMessage(t *testing.T) {
	task := Task{Instruction: "add a second shelf board"}

	fresh := initialMessage(task, "")
	if !strings.Contains(fresh, "Create a new library part") {
		t.Errorf("fresh-part message wrong: %q", fresh)
	}

	existing := initialMessage(task, "<Symbol/>")
	if !strings.Contains(existing, "Current library part document") {
		t.Error("modify message should introduce the current document")
	}
	if !strings.Contains(existing, "<Symbol/>") {
		t.Error("modify message should embed the document")
	}
}

func TestFeedbackForValidationBatchesAllDefects(t *testing.T) {
	att := Attempt{
		Stage: StageValidate,
		Defects: []gdl.Defect{
			{Kind: gdl.DefectBlockBalance, Line: 3, Detail: "IF opened at line 3 is never closed"},
			{Kind: gdl.DefectLoopBalance, Line: 7, Detail: "NEXT J does not match FOR I"},
		},
	}

	fb := feedbackFor(att)
	if !strings.Contains(fb, "IF opened at line 3") {
		t.Error("first defect missing from feedback")
	}
	if !strings.Contains(fb, "NEXT J does not match FOR I") {
		t.Error("second defect missing from feedback")
	}
	if !strings.Contains(fb, "complete corrected document") {
		t.Error("feedback should demand the full document back")
	}
}

func TestFeedbackForCompileFailure(t *testing.T) {
	att := Attempt{
		Stage: StageCompile,
		Compile: &compiler.Result{
			Status:     compiler.StatusFailure,
			Kind:       compiler.FailMismatchedBlock,
			Diagnostic: "GDL error in line 12: ENDIF without IF",
			Raw:        "GDL error in line 12: ENDIF without IF\nin construct ENDIF",
			Line:       12,
			Construct:  "ENDIF",
			Duration:   time.Second,
		},
	}

	fb := feedbackFor(att)
	for _, want := range []string{"line 12", "ENDIF", "mismatched-block", "Compiler output"} {
		if !strings.Contains(fb, want) {
			t.Errorf("compile feedback missing %q:\n%s", want, fb)
		}
	}
}

func TestFeedbackForTimeout(t *testing.T) {
	att := Attempt{
		Stage:   StageCompile,
		Compile: &compiler.Result{Status: compiler.StatusTimeout},
	}
	if !strings.Contains(feedbackFor(att), "timed out") {
		t.Error("timeout feedback should say so")
	}
}

func TestBuildMessagesAlternatesRoles(t *testing.T) {
	task := Task{Instruction: "model a shelf"}
	attempts := []Attempt{
		{Index: 1, Candidate: "<Symbol Name=\"A\"/>", Feedback: "fix the loop"},
		{Index: 2, Candidate: "", Feedback: "reply with a document"},
	}

	msgs := buildMessages(task, "", attempts)
	if len(msgs) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(msgs))
	}
	wantRoles := []string{"user", "assistant", "user", "assistant", "user"}
	for i, want := range wantRoles {
		if msgs[i].Role != want {
			t.Errorf("message %d role = %q, want %q", i, msgs[i].Role, want)
		}
	}
	if !strings.Contains(msgs[1].Content, "<Symbol Name=\"A\"/>") {
		t.Error("first assistant turn should replay the candidate")
	}
	if !strings.Contains(msgs[3].Content, "no usable document") {
		t.Error("missing-candidate turn should carry a placeholder")
	}
	if msgs[4].Content != "reply with a document" {
		t.Errorf("final feedback message wrong: %q", msgs[4].Content)
	}
}
