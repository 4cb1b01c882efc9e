package batch

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/byewind1/gdl-agent/internal/agent"
	"github.com/byewind1/gdl-agent/internal/events"
	"github.com/byewind1/gdl-agent/internal/persistence"
)

// SessionRunner runs one part session to a terminal outcome.
// *agent.Runner satisfies this; tests substitute their own.
type SessionRunner interface {
	Run(ctx context.Context, task agent.Task) (*agent.Session, error)
}

// Result is the outcome of one part in the batch.
type Result struct {
	Name         string
	Outcome      agent.Outcome
	ArtifactPath string
	Attempts     int
	Error        error
}

// RunnerConfig configures the batch runner.
type RunnerConfig struct {
	ConcurrencyLimit int               // Max concurrent sessions (default 4)
	OutputDir        string            // Where artifacts are promoted
	MaxAttempts      int               // Per-session attempt budget (0 uses the agent default)
	Sessions         SessionRunner     // Runs individual sessions
	Store            persistence.Store // Optional audit trail
	Bus              *events.EventBus  // Optional progress events
}

// Runner executes the parts of a DAG concurrently, waves of dependency-free
// parts at a time, with bounded concurrency and per-path locking.
type Runner struct {
	config  RunnerConfig
	dag     *DAG
	lockMgr *ResourceLockManager
	mu      sync.Mutex
	results []Result
}

// NewRunner creates a batch runner.
func NewRunner(cfg RunnerConfig, dag *DAG, lockMgr *ResourceLockManager) *Runner {
	if cfg.ConcurrencyLimit <= 0 {
		cfg.ConcurrencyLimit = 4
	}

	return &Runner{
		config:  cfg,
		dag:     dag,
		lockMgr: lockMgr,
		results: []Result{},
	}
}

// Run executes all eligible parts concurrently with bounded concurrency.
func (r *Runner) Run(ctx context.Context) ([]Result, error) {
	for {
		if err := ctx.Err(); err != nil {
			return r.results, err
		}

		eligible := r.dag.Eligible()

		// Waves run to completion before the next Eligible call, so nothing
		// is running here: no eligible parts means we're done (any still
		// pending are blocked behind hard failures).
		if len(eligible) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.config.ConcurrencyLimit)

		for _, part := range eligible {
			p := part
			g.Go(func() error {
				return r.executePart(gctx, p)
			})
		}

		if err := g.Wait(); err != nil {
			if ctx.Err() != nil {
				return r.results, ctx.Err()
			}
			// Part errors are tracked in the DAG, not returned here
		}
	}

	return r.results, nil
}

// executePart runs one part's session and records the outcome.
func (r *Runner) executePart(ctx context.Context, part *Part) error {
	if err := ctx.Err(); err != nil {
		_ = r.dag.MarkFailed(part.Name, fmt.Errorf("cancelled before execution: %w", err))
		return nil // Return nil to not abort the errgroup
	}

	if err := r.dag.MarkRunning(part.Name); err != nil {
		log.Printf("ERROR: failed to mark part %q as running: %v", part.Name, err)
		return nil
	}
	r.publishProgress()

	// Serialize on the documents this part touches
	paths := []string{filepath.Join(r.config.OutputDir, part.Name)}
	if part.Source != "" {
		paths = append(paths, part.Source)
	}
	r.lockMgr.LockAll(paths)
	defer r.lockMgr.UnlockAll(paths)

	sess, err := r.config.Sessions.Run(ctx, agent.Task{
		Instruction: part.Instruction,
		SourcePath:  part.Source,
		OutputDir:   r.config.OutputDir,
		OutputName:  part.Name,
		MaxAttempts: r.config.MaxAttempts,
	})

	if sess != nil && r.config.Store != nil {
		if serr := r.config.Store.SaveSession(ctx, sess); serr != nil {
			log.Printf("WARNING: failed to persist session %s: %v", sess.ID, serr)
		}
	}

	switch {
	case err != nil:
		_ = r.dag.MarkFailed(part.Name, err)
		r.recordResult(Result{Name: part.Name, Outcome: agent.OutcomeAborted, Error: err})

	case sess.Outcome != agent.OutcomeSucceeded:
		ferr := fmt.Errorf("session %s: %s", sess.Outcome, sess.Reason)
		_ = r.dag.MarkFailed(part.Name, ferr)
		r.recordResult(Result{
			Name:     part.Name,
			Outcome:  sess.Outcome,
			Attempts: len(sess.Attempts),
			Error:    ferr,
		})

	default:
		_ = r.dag.MarkCompleted(part.Name, sess.ArtifactPath)
		r.recordResult(Result{
			Name:         part.Name,
			Outcome:      agent.OutcomeSucceeded,
			ArtifactPath: sess.ArtifactPath,
			Attempts:     len(sess.Attempts),
		})
	}

	r.publishProgress()
	return nil
}

func (r *Runner) recordResult(res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *Runner) publishProgress() {
	if r.config.Bus == nil {
		return
	}

	var completed, running, failed, pending int
	parts := r.dag.Parts()
	for _, p := range parts {
		switch p.Status {
		case PartCompleted:
			completed++
		case PartRunning:
			running++
		case PartFailed:
			failed++
		default:
			pending++
		}
	}

	r.config.Bus.Publish(events.TopicBatch, events.BatchProgressEvent{
		Total:     len(parts),
		Completed: completed,
		Running:   running,
		Failed:    failed,
		Pending:   pending,
		Timestamp: time.Now(),
	})
}
