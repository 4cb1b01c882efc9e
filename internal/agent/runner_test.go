package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/byewind1/gdl-agent/internal/compiler"
	"github.com/byewind1/gdl-agent/internal/events"
	"github.com/byewind1/gdl-agent/internal/generator"
)

// scriptedGenerator replays canned replies. Each entry is either a string
// (reply content), a generator.Response, or an error. Once the entries run
// out the last one repeats.
type scriptedGenerator struct {
	mu      sync.Mutex
	replies []any
	reqs    []generator.Request
}

func (g *scriptedGenerator) Generate(ctx context.Context, req generator.Request) (generator.Response, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.reqs = append(g.reqs, req)

	if len(g.replies) == 0 {
		return generator.Response{}, fmt.Errorf("no replies configured")
	}
	idx := len(g.reqs) - 1
	if idx >= len(g.replies) {
		idx = len(g.replies) - 1
	}

	switch v := g.replies[idx].(type) {
	case string:
		return generator.Response{Content: v, Usage: generator.Usage{InputTokens: 100, OutputTokens: 200}}, nil
	case generator.Response:
		return v, nil
	case error:
		return generator.Response{}, v
	default:
		return generator.Response{}, fmt.Errorf("invalid reply type: %T", v)
	}
}

func (g *scriptedGenerator) Requests() []generator.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]generator.Request(nil), g.reqs...)
}

func symbolDoc(name, script3D string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Symbol Name=%q>
  <Script_1D></Script_1D>
  <Script_2D></Script_2D>
  <Script_3D><![CDATA[%s]]></Script_3D>
  <Script_VL></Script_VL>
  <Script_UI></Script_UI>
  <Script_PR></Script_PR>
</Symbol>`, name, script3D)
}

func fenced(doc string) string {
	return "Here is the updated part:\n\n```xml\n" + doc + "\n```\n"
}

// testRetry keeps provider-level retries near-instant so runner tests stay fast.
var testRetry = RetryConfig{
	InitialInterval:     time.Millisecond,
	MaxInterval:         2 * time.Millisecond,
	MaxElapsedTime:      20 * time.Millisecond,
	Multiplier:          1.5,
	RandomizationFactor: 0,
}

func newTestRunner(gen generator.Generator, comp compiler.Compiler) *Runner {
	return &Runner{
		Generator: gen,
		Compiler:  comp,
		Retry:     testRetry,
	}
}

func TestRun_SucceedsFirstAttempt(t *testing.T) {
	doc := symbolDoc("Shelf", "ADD 0, 0, 0.1\nBLOCK 0.8, 0.3, 1.2\nDEL 1\nEND")
	gen := &scriptedGenerator{replies: []any{fenced(doc)}}
	mock := &compiler.Mock{}
	runner := newTestRunner(gen, mock)

	outDir := t.TempDir()
	sess, err := runner.Run(context.Background(), Task{
		Instruction: "model a small shelf",
		OutputDir:   outDir,
		OutputName:  "Shelf",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sess.Outcome != OutcomeSucceeded {
		t.Fatalf("expected outcome %s, got %s (%s)", OutcomeSucceeded, sess.Outcome, sess.Reason)
	}
	if len(sess.Attempts) != 1 {
		t.Fatalf("expected 1 attempt, got %d", len(sess.Attempts))
	}
	if mock.Calls() != 1 {
		t.Errorf("expected 1 compile, got %d", mock.Calls())
	}

	wantArtifact := filepath.Join(outDir, "Shelf_v1.gsm")
	if sess.ArtifactPath != wantArtifact {
		t.Errorf("artifact path = %q, want %q", sess.ArtifactPath, wantArtifact)
	}
	if _, err := os.Stat(wantArtifact); err != nil {
		t.Errorf("promoted artifact missing: %v", err)
	}

	// The accepted document lands next to the artifact for fresh parts.
	accepted, err := os.ReadFile(filepath.Join(outDir, "Shelf.xml"))
	if err != nil {
		t.Fatalf("accepted document missing: %v", err)
	}
	if string(accepted) != doc {
		t.Error("accepted document does not match the candidate")
	}

	if sess.TotalTokens != 300 {
		t.Errorf("total tokens = %d, want 300", sess.TotalTokens)
	}
}

func TestRun_ValidationDefectSkipsCompile(t *testing.T) {
	bad := symbolDoc("Shelf", "IF h > 1 THEN\nBLOCK 1, 1, h\nEND")
	good := symbolDoc("Shelf", "BLOCK 1, 1, 2\nEND")
	gen := &scriptedGenerator{replies: []any{fenced(bad), fenced(good)}}
	mock := &compiler.Mock{}
	runner := newTestRunner(gen, mock)

	sess, err := runner.Run(context.Background(), Task{
		Instruction: "model a shelf",
		OutputDir:   t.TempDir(),
		OutputName:  "Shelf",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sess.Outcome != OutcomeSucceeded {
		t.Fatalf("expected success, got %s (%s)", sess.Outcome, sess.Reason)
	}
	if len(sess.Attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(sess.Attempts))
	}

	first := sess.Attempts[0]
	if first.Stage != StageValidate {
		t.Errorf("attempt 1 stage = %s, want %s", first.Stage, StageValidate)
	}
	if len(first.Defects) == 0 {
		t.Error("attempt 1 should carry validation defects")
	}
	if !strings.Contains(first.Feedback, "Structural problems") {
		t.Errorf("feedback should describe structural problems, got %q", first.Feedback)
	}

	// The defective candidate must never reach the compiler.
	if mock.Calls() != 1 {
		t.Errorf("expected exactly 1 compile (second attempt only), got %d", mock.Calls())
	}

	// The retry conversation carries the rejected candidate and the feedback.
	reqs := gen.Requests()
	if len(reqs) != 2 {
		t.Fatalf("expected 2 generator calls, got %d", len(reqs))
	}
	msgs := reqs[1].Messages
	if len(msgs) != 3 {
		t.Fatalf("retry request should have 3 messages, got %d", len(msgs))
	}
	if msgs[1].Role != "assistant" || !strings.Contains(msgs[1].Content, "IF h > 1") {
		t.Error("retry request should replay the rejected candidate")
	}
	if msgs[2].Role != "user" || !strings.Contains(msgs[2].Content, "Structural problems") {
		t.Error("retry request should carry the validation feedback")
	}
}

func TestRun_BudgetExhausted(t *testing.T) {
	// Every candidate trips the compiler's fail pattern but differs from the
	// previous one, so the loop runs the full budget.
	var replies []any
	for i := 1; i <= 3; i++ {
		replies = append(replies, fenced(symbolDoc("Shelf", fmt.Sprintf("BLOCK 1, 1, 1 ! legacy rev %d\nEND", i))))
	}
	gen := &scriptedGenerator{replies: replies}
	mock := &compiler.Mock{FailPattern: "legacy"}
	runner := newTestRunner(gen, mock)

	sess, err := runner.Run(context.Background(), Task{
		Instruction: "model a shelf",
		OutputDir:   t.TempDir(),
		OutputName:  "Shelf",
		MaxAttempts: 3,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sess.Outcome != OutcomeExhausted {
		t.Fatalf("expected %s, got %s (%s)", OutcomeExhausted, sess.Outcome, sess.Reason)
	}
	if len(sess.Attempts) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(sess.Attempts))
	}
	if mock.Calls() != 3 {
		t.Errorf("expected 3 compiles, got %d", mock.Calls())
	}
	for i, a := range sess.Attempts {
		if a.Stage != StageCompile {
			t.Errorf("attempt %d stage = %s, want %s", i+1, a.Stage, StageCompile)
		}
		if a.Feedback == "" {
			t.Errorf("attempt %d has no feedback", i+1)
		}
	}
}

func TestRun_StagnationStopsBeforeCompile(t *testing.T) {
	doc := symbolDoc("Shelf", "BLOCK 1, 1, 1 ! legacy\nEND")
	gen := &scriptedGenerator{replies: []any{fenced(doc), fenced(doc)}}
	mock := &compiler.Mock{FailPattern: "legacy"}
	runner := newTestRunner(gen, mock)

	sess, err := runner.Run(context.Background(), Task{
		Instruction: "model a shelf",
		OutputDir:   t.TempDir(),
		OutputName:  "Shelf",
		MaxAttempts: 5,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sess.Outcome != OutcomeStagnated {
		t.Fatalf("expected %s, got %s (%s)", OutcomeStagnated, sess.Outcome, sess.Reason)
	}
	if len(sess.Attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(sess.Attempts))
	}
	if sess.Attempts[1].Stage != StageDiff {
		t.Errorf("attempt 2 stage = %s, want %s", sess.Attempts[1].Stage, StageDiff)
	}

	// The repeated candidate must not be compiled again.
	if mock.Calls() != 1 {
		t.Errorf("expected 1 compile, got %d", mock.Calls())
	}
}

func TestRun_ToolNotAvailableAbortsBeforeGenerating(t *testing.T) {
	gen := &scriptedGenerator{replies: []any{fenced(symbolDoc("Shelf", "END"))}}
	mock := &compiler.Mock{Unavailable: true}
	runner := newTestRunner(gen, mock)

	sess, err := runner.Run(context.Background(), Task{
		Instruction: "model a shelf",
		OutputDir:   t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sess.Outcome != OutcomeAborted {
		t.Fatalf("expected %s, got %s", OutcomeAborted, sess.Outcome)
	}
	if len(sess.Attempts) != 0 {
		t.Errorf("expected 0 attempts, got %d", len(sess.Attempts))
	}
	if len(gen.Requests()) != 0 {
		t.Errorf("generator should never be called, got %d calls", len(gen.Requests()))
	}
}

func TestRun_ToolVanishingMidSessionAborts(t *testing.T) {
	doc := symbolDoc("Shelf", "BLOCK 1, 1, 1\nEND")
	gen := &scriptedGenerator{replies: []any{fenced(doc)}}
	mock := &compiler.Mock{Script: []compiler.Result{
		{Status: compiler.StatusToolNotFound, Diagnostic: "LP_XMLConverter not found"},
	}}
	runner := newTestRunner(gen, mock)

	sess, err := runner.Run(context.Background(), Task{
		Instruction: "model a shelf",
		OutputDir:   t.TempDir(),
		MaxAttempts: 5,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sess.Outcome != OutcomeAborted {
		t.Fatalf("expected %s, got %s (%s)", OutcomeAborted, sess.Outcome, sess.Reason)
	}
	// No retries after the tool disappears.
	if len(sess.Attempts) != 1 {
		t.Errorf("expected 1 attempt, got %d", len(sess.Attempts))
	}
	if len(gen.Requests()) != 1 {
		t.Errorf("expected 1 generator call, got %d", len(gen.Requests()))
	}
}

func TestRun_TimeoutIsRetryable(t *testing.T) {
	docA := symbolDoc("Shelf", "BLOCK 1, 1, 1\nEND")
	docB := symbolDoc("Shelf", "BLOCK 1, 1, 2\nEND")
	gen := &scriptedGenerator{replies: []any{fenced(docA), fenced(docB)}}
	mock := &compiler.Mock{Script: []compiler.Result{
		{Status: compiler.StatusTimeout},
	}}
	runner := newTestRunner(gen, mock)

	sess, err := runner.Run(context.Background(), Task{
		Instruction: "model a shelf",
		OutputDir:   t.TempDir(),
		OutputName:  "Shelf",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sess.Outcome != OutcomeSucceeded {
		t.Fatalf("expected success after timeout retry, got %s (%s)", sess.Outcome, sess.Reason)
	}
	if len(sess.Attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(sess.Attempts))
	}
	first := sess.Attempts[0]
	if first.Compile == nil || first.Compile.Status != compiler.StatusTimeout {
		t.Fatal("attempt 1 should record the timeout verdict")
	}
	if !strings.Contains(first.Feedback, "timed out") {
		t.Errorf("timeout feedback missing, got %q", first.Feedback)
	}
}

func TestRun_UnparseableReplyRetried(t *testing.T) {
	good := symbolDoc("Shelf", "BLOCK 1, 1, 2\nEND")
	gen := &scriptedGenerator{replies: []any{
		"Sure! I'd be happy to help you model a shelf.",
		fenced(good),
	}}
	mock := &compiler.Mock{}
	runner := newTestRunner(gen, mock)

	sess, err := runner.Run(context.Background(), Task{
		Instruction: "model a shelf",
		OutputDir:   t.TempDir(),
		OutputName:  "Shelf",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sess.Outcome != OutcomeSucceeded {
		t.Fatalf("expected success, got %s (%s)", sess.Outcome, sess.Reason)
	}
	if sess.Attempts[0].Stage != StageExtract {
		t.Errorf("attempt 1 stage = %s, want %s", sess.Attempts[0].Stage, StageExtract)
	}
	if mock.Calls() != 1 {
		t.Errorf("expected 1 compile, got %d", mock.Calls())
	}
}

func TestRun_ChronicGeneratorFailureAborts(t *testing.T) {
	gen := &scriptedGenerator{replies: []any{fmt.Errorf("connection refused")}}
	mock := &compiler.Mock{}
	runner := newTestRunner(gen, mock)

	sess, err := runner.Run(context.Background(), Task{
		Instruction: "model a shelf",
		OutputDir:   t.TempDir(),
		MaxAttempts: 10,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sess.Outcome != OutcomeAborted {
		t.Fatalf("expected %s, got %s (%s)", OutcomeAborted, sess.Outcome, sess.Reason)
	}
	if !strings.Contains(sess.Reason, "text generation") {
		t.Errorf("reason should name the generator, got %q", sess.Reason)
	}
	if len(sess.Attempts) == 0 || len(sess.Attempts) > maxConsecutiveGenerateFailures {
		t.Errorf("expected 1..%d attempts before aborting, got %d",
			maxConsecutiveGenerateFailures, len(sess.Attempts))
	}
	if mock.Calls() != 0 {
		t.Errorf("compiler should never run, got %d calls", mock.Calls())
	}
}

func TestRun_CancelledContextAborts(t *testing.T) {
	gen := &scriptedGenerator{replies: []any{fenced(symbolDoc("Shelf", "END"))}}
	mock := &compiler.Mock{}
	runner := newTestRunner(gen, mock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sess, err := runner.Run(ctx, Task{
		Instruction: "model a shelf",
		OutputDir:   t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sess.Outcome != OutcomeAborted {
		t.Fatalf("expected %s, got %s", OutcomeAborted, sess.Outcome)
	}
	if len(sess.Attempts) != 0 {
		t.Errorf("expected 0 attempts, got %d", len(sess.Attempts))
	}
}

func TestRun_ModifiesExistingSource(t *testing.T) {
	original := symbolDoc("Table", "BLOCK 1, 1, 0.7\nEND")
	updated := symbolDoc("Table", "BLOCK 1.2, 1, 0.7\nEND")

	srcPath := filepath.Join(t.TempDir(), "Table.xml")
	if err := os.WriteFile(srcPath, []byte(original), 0o644); err != nil {
		t.Fatal(err)
	}

	gen := &scriptedGenerator{replies: []any{fenced(updated)}}
	mock := &compiler.Mock{}
	runner := newTestRunner(gen, mock)

	sess, err := runner.Run(context.Background(), Task{
		Instruction: "make the table 20cm wider",
		SourcePath:  srcPath,
		OutputDir:   t.TempDir(),
		OutputName:  "Table",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sess.Outcome != OutcomeSucceeded {
		t.Fatalf("expected success, got %s (%s)", sess.Outcome, sess.Reason)
	}

	// The first request must show the model the current document.
	reqs := gen.Requests()
	if !strings.Contains(reqs[0].Messages[0].Content, "Current library part document") {
		t.Error("initial message should include the existing document")
	}
	if !strings.Contains(reqs[0].Messages[0].Content, "BLOCK 1, 1, 0.7") {
		t.Error("initial message should embed the source scripts")
	}

	// On success the accepted candidate replaces the source.
	data, err := os.ReadFile(srcPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != updated {
		t.Error("source document was not updated with the accepted candidate")
	}
}

func TestRun_SelfReviewCorrectsFirstCandidate(t *testing.T) {
	first := symbolDoc("Shelf", "BLOCK 1, 1, 2\nEND")
	corrected := symbolDoc("Shelf", "BLOCK 1, 1, 1.8\nEND")
	gen := &scriptedGenerator{replies: []any{fenced(first), fenced(corrected)}}
	mock := &compiler.Mock{}
	runner := newTestRunner(gen, mock)
	runner.SelfReview = true

	outDir := t.TempDir()
	sess, err := runner.Run(context.Background(), Task{
		Instruction: "model a shelf",
		OutputDir:   outDir,
		OutputName:  "Shelf",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sess.Outcome != OutcomeSucceeded {
		t.Fatalf("expected success, got %s (%s)", sess.Outcome, sess.Reason)
	}
	if len(sess.Attempts) != 1 {
		t.Fatalf("review happens inside the attempt, expected 1 attempt, got %d", len(sess.Attempts))
	}

	// The second generator call is the review, framed around the candidate.
	reqs := gen.Requests()
	if len(reqs) != 2 {
		t.Fatalf("expected 2 generator calls, got %d", len(reqs))
	}
	review := reqs[1].Messages
	if len(review) != 1 || review[0].Role != "user" {
		t.Fatalf("review request should be a single user message, got %v", review)
	}
	if !strings.Contains(review[0].Content, "LGTM") || !strings.Contains(review[0].Content, "BLOCK 1, 1, 2") {
		t.Error("review message should carry the verdict protocol and the candidate")
	}

	// The corrected document is the one validated, compiled and accepted.
	accepted, err := os.ReadFile(filepath.Join(outDir, "Shelf.xml"))
	if err != nil {
		t.Fatal(err)
	}
	if string(accepted) != corrected {
		t.Error("accepted document should be the review's correction")
	}

	// Review tokens count against the attempt and the session.
	if sess.TotalTokens != 600 {
		t.Errorf("total tokens = %d, want 600", sess.TotalTokens)
	}
	if sess.Attempts[0].Tokens != 600 {
		t.Errorf("attempt tokens = %d, want 600", sess.Attempts[0].Tokens)
	}
}

func TestRun_SelfReviewApprovalKeepsCandidate(t *testing.T) {
	doc := symbolDoc("Shelf", "BLOCK 1, 1, 2\nEND")
	gen := &scriptedGenerator{replies: []any{fenced(doc), "LGTM, the scripts are sound."}}
	mock := &compiler.Mock{}
	runner := newTestRunner(gen, mock)
	runner.SelfReview = true

	outDir := t.TempDir()
	sess, err := runner.Run(context.Background(), Task{
		Instruction: "model a shelf",
		OutputDir:   outDir,
		OutputName:  "Shelf",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sess.Outcome != OutcomeSucceeded {
		t.Fatalf("expected success, got %s (%s)", sess.Outcome, sess.Reason)
	}
	accepted, err := os.ReadFile(filepath.Join(outDir, "Shelf.xml"))
	if err != nil {
		t.Fatal(err)
	}
	if string(accepted) != doc {
		t.Error("approved candidate should survive the review unchanged")
	}
}

func TestRun_SelfReviewRunsOnlyOnFirstAttempt(t *testing.T) {
	bad := symbolDoc("Shelf", "IF h > 1 THEN\nBLOCK 1, 1, h\nEND")
	good := symbolDoc("Shelf", "BLOCK 1, 1, 2\nEND")
	gen := &scriptedGenerator{replies: []any{fenced(bad), "LGTM", fenced(good)}}
	mock := &compiler.Mock{}
	runner := newTestRunner(gen, mock)
	runner.SelfReview = true

	sess, err := runner.Run(context.Background(), Task{
		Instruction: "model a shelf",
		OutputDir:   t.TempDir(),
		OutputName:  "Shelf",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sess.Outcome != OutcomeSucceeded {
		t.Fatalf("expected success, got %s (%s)", sess.Outcome, sess.Reason)
	}
	if len(sess.Attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(sess.Attempts))
	}
	// generate, review, generate: attempt 2 gets no review call.
	if reqs := gen.Requests(); len(reqs) != 3 {
		t.Errorf("expected 3 generator calls, got %d", len(reqs))
	}
}

func TestRun_SelfReviewErrorIsSkipped(t *testing.T) {
	doc := symbolDoc("Shelf", "BLOCK 1, 1, 2\nEND")
	gen := &scriptedGenerator{replies: []any{fenced(doc), fmt.Errorf("provider hiccup")}}
	mock := &compiler.Mock{}
	runner := newTestRunner(gen, mock)
	runner.SelfReview = true

	sess, err := runner.Run(context.Background(), Task{
		Instruction: "model a shelf",
		OutputDir:   t.TempDir(),
		OutputName:  "Shelf",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// A failing review call never costs the attempt.
	if sess.Outcome != OutcomeSucceeded {
		t.Fatalf("expected success, got %s (%s)", sess.Outcome, sess.Reason)
	}
	if sess.TotalTokens != 300 {
		t.Errorf("total tokens = %d, want 300 (no review tokens)", sess.TotalTokens)
	}
}

func TestRun_PreflightBlocksMalformedSource(t *testing.T) {
	srcPath := filepath.Join(t.TempDir(), "Broken.xml")
	if err := os.WriteFile(srcPath, []byte("<Symbol Name=\"x\"><Script_3D>"), 0o644); err != nil {
		t.Fatal(err)
	}

	gen := &scriptedGenerator{replies: []any{fenced(symbolDoc("Shelf", "END"))}}
	mock := &compiler.Mock{}
	runner := newTestRunner(gen, mock)

	sess, err := runner.Run(context.Background(), Task{
		Instruction: "widen the shelf",
		SourcePath:  srcPath,
		OutputDir:   t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sess.Outcome != OutcomeBlocked {
		t.Fatalf("expected %s, got %s (%s)", OutcomeBlocked, sess.Outcome, sess.Reason)
	}
	if !strings.Contains(sess.Reason, "pre-flight blocked") {
		t.Errorf("reason should carry the pre-flight verdict, got %q", sess.Reason)
	}
	if len(sess.Attempts) != 0 {
		t.Errorf("expected 0 attempts, got %d", len(sess.Attempts))
	}
	if len(gen.Requests()) != 0 {
		t.Errorf("generator should never be called, got %d calls", len(gen.Requests()))
	}
}

func TestRun_UnresolvedMacroWarningReachesPrompt(t *testing.T) {
	dir := t.TempDir()
	doc := symbolDoc("Desk", "CALL \"drawer\"\nEND")
	srcPath := filepath.Join(dir, "Desk.xml")
	if err := os.WriteFile(srcPath, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	updated := symbolDoc("Desk", "CALL \"drawer\"\nBLOCK 1, 0.6, 0.75\nEND")
	gen := &scriptedGenerator{replies: []any{fenced(updated)}}
	mock := &compiler.Mock{}
	runner := newTestRunner(gen, mock)

	sess, err := runner.Run(context.Background(), Task{
		Instruction: "add a desktop slab",
		SourcePath:  srcPath,
		OutputDir:   t.TempDir(),
		OutputName:  "Desk",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sess.Outcome != OutcomeSucceeded {
		t.Fatalf("expected success, got %s (%s)", sess.Outcome, sess.Reason)
	}

	system := gen.Requests()[0].System
	if !strings.Contains(system, "Unresolved macros") || !strings.Contains(system, "drawer") {
		t.Error("system prompt should warn about the macro with no local document")
	}
}

func TestRun_PublishesLifecycleEvents(t *testing.T) {
	doc := symbolDoc("Shelf", "BLOCK 1, 1, 2\nEND")
	gen := &scriptedGenerator{replies: []any{fenced(doc)}}
	mock := &compiler.Mock{}

	bus := events.NewEventBus()
	defer bus.Close()
	ch := bus.SubscribeAll(64)

	runner := newTestRunner(gen, mock)
	runner.Bus = bus

	sess, err := runner.Run(context.Background(), Task{
		Instruction: "model a shelf",
		OutputDir:   t.TempDir(),
		OutputName:  "Shelf",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sess.Outcome != OutcomeSucceeded {
		t.Fatalf("expected success, got %s", sess.Outcome)
	}

	seen := make(map[string]bool)
drain:
	for {
		select {
		case ev := <-ch:
			seen[ev.EventType()] = true
		case <-time.After(50 * time.Millisecond):
			break drain
		}
	}

	for _, want := range []string{
		events.EventTypeSessionStarted,
		events.EventTypeAttemptStarted,
		events.EventTypeGenerated,
		events.EventTypeCompileStarted,
		events.EventTypeCompileFinished,
		events.EventTypeSessionFinished,
	} {
		if !seen[want] {
			t.Errorf("event %s was not published", want)
		}
	}
}
