// Package agent runs the generate-validate-compile-retry loop that turns a
// natural-language instruction into a compiled ArchiCAD library part.
package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/byewind1/gdl-agent/internal/compiler"
	"github.com/byewind1/gdl-agent/internal/events"
	"github.com/byewind1/gdl-agent/internal/generator"
	"github.com/byewind1/gdl-agent/internal/knowledge"
	"github.com/byewind1/gdl-agent/internal/libpart"
	"github.com/byewind1/gdl-agent/internal/workspace"
)

const (
	defaultMaxAttempts = 5

	// After this many generator failures in a row the provider is treated
	// as down and the session aborts instead of burning the budget.
	maxConsecutiveGenerateFailures = 3
)

// Runner wires a generator, a compiler and a knowledge base into the retry
// loop. Zero-value optional fields (Knowledge, Bus, Breaker, Retry) are fine.
type Runner struct {
	Generator  generator.Generator
	Compiler   compiler.Compiler
	Knowledge  *knowledge.Base
	Bus        *events.EventBus
	Breaker    *gobreaker.CircuitBreaker
	Retry      RetryConfig
	MaxTokens  int
	SelfReview bool   // re-review the first candidate before validating it
	SandboxIn  string // base dir for sandboxes; empty means the system temp dir
}

// Run executes one task to a terminal outcome. The returned Session always
// carries the full attempt history; a non-nil error means the environment
// broke mid-run (unreadable source, sandbox or promotion I/O), not that the
// task merely failed.
func (r *Runner) Run(ctx context.Context, task Task) (*Session, error) {
	if r.Generator == nil {
		return nil, errors.New("agent: no generator configured")
	}
	if r.Compiler == nil {
		return nil, errors.New("agent: no compiler configured")
	}
	if task.Instruction == "" {
		return nil, errors.New("agent: task has no instruction")
	}
	if task.MaxAttempts <= 0 {
		task.MaxAttempts = defaultMaxAttempts
	}
	if task.OutputName == "" {
		task.OutputName = "Part"
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}

	sess := &Session{ID: task.ID, Task: task, StartedAt: time.Now()}
	defer func() { sess.Duration = time.Since(sess.StartedAt) }()

	r.publish(events.TopicSession, events.SessionStartedEvent{
		ID:          sess.ID,
		Instruction: task.Instruction,
		MaxAttempts: task.MaxAttempts,
		Timestamp:   time.Now(),
	})

	// Probe the tool up front so a missing converter costs zero model calls.
	if !r.Compiler.Available() {
		return r.finish(sess, OutcomeAborted, "compiler tool not available"), nil
	}

	var sourceXML string
	if task.SourcePath != "" {
		data, err := os.ReadFile(task.SourcePath)
		if err != nil {
			return nil, fmt.Errorf("reading source document: %w", err)
		}
		sourceXML = string(data)
	}

	// Pre-flight: hard blockers end the session before any model call.
	pre := analyzeTask(task, sourceXML)
	if !pre.Feasible {
		return r.finish(sess, OutcomeBlocked,
			"pre-flight blocked: "+strings.Join(pre.Blockers, "; ")), nil
	}

	sandbox, err := workspace.NewSandbox(r.SandboxIn)
	if err != nil {
		return nil, err
	}
	defer sandbox.Cleanup()

	system := systemPrompt(r.Knowledge, task.Instruction)
	if len(pre.UnresolvedMacros) > 0 {
		system += macroCaution(pre.UnresolvedMacros)
	}

	cb := r.Breaker
	if cb == nil {
		cb = NewCircuitBreakerRegistry().Get("generator")
	}
	retryCfg := r.Retry
	if retryCfg.InitialInterval == 0 {
		retryCfg = DefaultRetryConfig()
	}

	var prev string // last candidate that was extracted and rejected
	genFailures := 0

	for i := 1; i <= task.MaxAttempts; i++ {
		if ctx.Err() != nil {
			return r.finish(sess, OutcomeAborted, "session cancelled"), nil
		}

		r.publish(events.TopicAttempt, events.AttemptStartedEvent{
			ID: sess.ID, Attempt: i, Timestamp: time.Now(),
		})

		started := time.Now()
		att := Attempt{Index: i}

		req := generator.Request{
			System:    system,
			Messages:  buildMessages(task, sourceXML, sess.Attempts),
			Model:     task.Model,
			MaxTokens: r.MaxTokens,
		}

		resp, err := generateWithRetry(ctx, r.Generator, req, cb, retryCfg)
		if err != nil {
			if ctx.Err() != nil {
				att.Stage = StageGenerate
				att.Err = err.Error()
				r.record(sess, att, started)
				return r.finish(sess, OutcomeAborted, "session cancelled"), nil
			}
			genFailures++
			att.Stage = StageGenerate
			att.Err = err.Error()
			att.Feedback = feedbackFor(att)
			r.record(sess, att, started)
			if errors.Is(err, gobreaker.ErrOpenState) || genFailures >= maxConsecutiveGenerateFailures {
				return r.finish(sess, OutcomeAborted,
					fmt.Sprintf("text generation failing persistently: %v", err)), nil
			}
			continue
		}
		genFailures = 0
		att.Tokens = resp.Usage.Total()
		sess.TotalTokens += att.Tokens

		candidate, ok := libpart.ExtractXML(resp.Content)
		r.publish(events.TopicAttempt, events.GeneratedEvent{
			ID: sess.ID, Attempt: i, Bytes: len(candidate), Tokens: att.Tokens, Timestamp: time.Now(),
		})
		if !ok {
			att.Stage = StageExtract
			att.Err = "no XML document in reply"
			att.Feedback = feedbackFor(att)
			r.record(sess, att, started)
			continue
		}
		att.Candidate = candidate

		// Repeating a rejected candidate byte-for-byte means the feedback
		// loop has stopped converging; continuing would only replay the
		// same compile failure.
		if prev != "" && libpart.Identical(candidate, prev) {
			att.Stage = StageDiff
			att.Err = fmt.Sprintf("candidate identical to attempt %d", i-1)
			r.record(sess, att, started)
			return r.finish(sess, OutcomeStagnated,
				fmt.Sprintf("attempt %d repeated the previous candidate unchanged", i)), nil
		}
		prev = candidate

		// One review pass over the very first candidate: cheaper than a
		// full validate-compile-retry round trip when the model can spot
		// its own mistake.
		if r.SelfReview && i == 1 {
			reviewed, tokens, corrected := r.selfReview(ctx, system, task, candidate)
			att.Tokens += tokens
			sess.TotalTokens += tokens
			r.publish(events.TopicAttempt, events.SelfReviewEvent{
				ID: sess.ID, Attempt: i, Corrected: corrected, Tokens: tokens, Timestamp: time.Now(),
			})
			if corrected {
				candidate = reviewed
				att.Candidate = candidate
				prev = candidate
			}
		}

		sym, perr := libpart.Parse([]byte(candidate))
		if perr != nil {
			att.Stage = StageValidate
			att.Err = perr.Error()
			att.Feedback = fmt.Sprintf("The document is not well-formed XML (%v). Return ONE complete, well-formed <Symbol> document.", perr)
			r.record(sess, att, started)
			continue
		}

		if defects := sym.ValidateScripts(); len(defects) > 0 {
			att.Stage = StageValidate
			att.Defects = defects
			att.Feedback = feedbackFor(att)
			strs := make([]string, len(defects))
			for j, d := range defects {
				strs[j] = d.String()
			}
			r.publish(events.TopicAttempt, events.ValidationFailedEvent{
				ID: sess.ID, Attempt: i, Defects: strs, Timestamp: time.Now(),
			})
			// The compiler is never invoked for a structurally broken document.
			r.record(sess, att, started)
			continue
		}

		paths, err := sandbox.Prepare(task.OutputName, i)
		if err != nil {
			return sess, err
		}
		if err := sandbox.WriteSource(paths, []byte(candidate)); err != nil {
			return sess, err
		}

		r.publish(events.TopicAttempt, events.CompileStartedEvent{
			ID: sess.ID, Attempt: i, Timestamp: time.Now(),
		})
		res := r.Compiler.Compile(ctx, paths.Source, paths.Output)
		att.Stage = StageCompile
		att.Compile = &res
		r.publish(events.TopicAttempt, events.CompileFinishedEvent{
			ID: sess.ID, Attempt: i, Status: res.Status.String(),
			Diagnostic: res.Summary(), Duration: res.Duration, Timestamp: time.Now(),
		})

		switch res.Status {
		case compiler.StatusSuccess:
			att.Stage = StagePromote
			promoted, err := workspace.Promote(res.ArtifactPath, task.OutputDir, task.OutputName, ".gsm")
			if err != nil {
				att.Err = err.Error()
				r.record(sess, att, started)
				return sess, fmt.Errorf("promoting artifact: %w", err)
			}
			if err := r.writeBack(task, candidate); err != nil {
				att.Err = err.Error()
				r.record(sess, att, started)
				return sess, err
			}
			r.record(sess, att, started)
			sess.ArtifactPath = promoted
			return r.finish(sess, OutcomeSucceeded, ""), nil

		case compiler.StatusToolNotFound:
			att.Err = res.Diagnostic
			r.record(sess, att, started)
			return r.finish(sess, OutcomeAborted, "compiler tool not available"), nil

		default: // failure or timeout: feed the diagnostics back and retry
			if ctx.Err() != nil {
				r.record(sess, att, started)
				return r.finish(sess, OutcomeAborted, "session cancelled"), nil
			}
			att.Feedback = feedbackFor(att)
			sandbox.Archive(paths)
			r.record(sess, att, started)
		}
	}

	return r.finish(sess, OutcomeExhausted,
		fmt.Sprintf("attempt budget of %d exhausted", task.MaxAttempts)), nil
}

// writeBack persists the accepted candidate document: over the original
// source when the task modified one, next to the artifact otherwise.
func (r *Runner) writeBack(task Task, candidate string) error {
	path := task.SourcePath
	if path == "" {
		path = filepath.Join(task.OutputDir, task.OutputName+".xml")
	}
	if err := os.WriteFile(path, []byte(candidate), 0o644); err != nil {
		return fmt.Errorf("writing accepted document: %w", err)
	}
	return nil
}

func (r *Runner) record(sess *Session, att Attempt, started time.Time) {
	att.Duration = time.Since(started)
	sess.Attempts = append(sess.Attempts, att)
}

func (r *Runner) finish(sess *Session, outcome Outcome, reason string) *Session {
	sess.Outcome = outcome
	sess.Reason = reason
	sess.Duration = time.Since(sess.StartedAt)
	r.publish(events.TopicSession, events.SessionFinishedEvent{
		ID:           sess.ID,
		Outcome:      string(outcome),
		Reason:       reason,
		Attempts:     len(sess.Attempts),
		ArtifactPath: sess.ArtifactPath,
		Duration:     sess.Duration,
		Timestamp:    time.Now(),
	})
	return sess
}

func (r *Runner) publish(topic string, ev events.Event) {
	if r.Bus != nil {
		r.Bus.Publish(topic, ev)
	}
}
