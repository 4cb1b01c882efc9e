package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/byewind1/gdl-agent/internal/agent"
	"github.com/byewind1/gdl-agent/internal/config"
	"github.com/byewind1/gdl-agent/internal/events"
	"github.com/byewind1/gdl-agent/internal/knowledge"
	"github.com/byewind1/gdl-agent/internal/subproc"
	"github.com/byewind1/gdl-agent/internal/tui"
)

const defaultDBPath = ".gdl-agent/sessions.db"

func newRunCommand(pm *subproc.ProcessManager) *cobra.Command {
	var (
		source    string
		outputDir string
		name      string
		model     string
		attempts  int
		mock      bool
		useTUI    bool
		dbPath    string
		noSave    bool
		noReview  bool
	)
	cmd := &cobra.Command{
		Use:   "run <instruction>",
		Short: "Run one generate-compile session",
		Example: `  gdl-agent run "a three-shelf bookcase, 1.8m tall, parametric width"
  gdl-agent run --source=Shelf.xml "add an adjustable shelf count parameter"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			instruction := strings.Join(args, " ")

			cfg, err := config.LoadDefault()
			if err != nil {
				return err
			}
			if outputDir == "" {
				outputDir = cfg.Workspace.OutputDir
			}
			if attempts == 0 {
				attempts = cfg.Agent.MaxAttempts
			}

			gen, providerType, err := buildGenerator(cfg, pm)
			if err != nil {
				return err
			}
			comp := buildCompiler(cfg, pm, mock)

			kb := knowledge.New(cfg.Workspace.KnowledgeDir)
			if err := kb.Load(); err != nil {
				log.Printf("Warning: %v", err)
			}

			bus := events.NewEventBus()
			defer bus.Close()

			runner := &agent.Runner{
				Generator:  gen,
				Compiler:   comp,
				Knowledge:  kb,
				Bus:        bus,
				Breaker:    agent.NewCircuitBreakerRegistry().Get(providerType),
				Retry:      agent.DefaultRetryConfig(),
				MaxTokens:  cfg.Agent.MaxTokens,
				SelfReview: cfg.Agent.SelfReview && !noReview,
				SandboxIn:  cfg.Workspace.SandboxDir,
			}

			task := agent.Task{
				Instruction: instruction,
				SourcePath:  source,
				OutputDir:   outputDir,
				OutputName:  name,
				Model:       model,
				MaxAttempts: attempts,
			}

			var sess *agent.Session
			if useTUI {
				sess, err = runWithTUI(ctx, bus, cfg, func(ctx context.Context) (*agent.Session, error) {
					return runner.Run(ctx, task)
				})
			} else {
				done := printEvents(bus)
				sess, err = runner.Run(ctx, task)
				bus.Close()
				<-done
			}
			if err != nil {
				return err
			}

			if !noSave {
				saveSession(ctx, dbPath, sess)
			}

			printSummary(sess)
			if sess.Outcome != agent.OutcomeSucceeded {
				return fmt.Errorf("session %s: %s", sess.Outcome, sess.Reason)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&source, "source", "f", "", "Existing library-part XML to modify")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory for the compiled artifact")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Artifact base name")
	cmd.Flags().StringVarP(&model, "model", "m", "", "Model override for this session")
	cmd.Flags().IntVarP(&attempts, "attempts", "a", 0, "Attempt budget (0 uses the configured default)")
	cmd.Flags().BoolVar(&mock, "mock", false, "Simulate compiles without LP_XMLConverter")
	cmd.Flags().BoolVar(&useTUI, "tui", false, "Show interactive progress")
	cmd.Flags().StringVar(&dbPath, "db", defaultDBPath, "Session database path")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "Skip recording the session")
	cmd.Flags().BoolVar(&noReview, "no-review", false, "Skip the self-review pass on the first candidate")
	return cmd
}

// runWithTUI drives fn under a Bubble Tea program fed by the event bus. The
// TUI stays open after the session finishes so the transcript can be read;
// quitting the TUI cancels a still-running session.
func runWithTUI(ctx context.Context, bus *events.EventBus, cfg *config.Config, fn func(context.Context) (*agent.Session, error)) (*agent.Session, error) {
	model := tui.New(bus, cfg, config.GlobalPath(), config.ProjectPath())
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		sess *agent.Session
		err  error
	}
	resChan := make(chan result, 1)
	go func() {
		sess, err := fn(runCtx)
		resChan <- result{sess, err}
	}()

	_, teaErr := p.Run()
	cancel()
	res := <-resChan
	if res.err != nil {
		return nil, res.err
	}
	if teaErr != nil && ctx.Err() == nil {
		return nil, teaErr
	}
	return res.sess, nil
}

// printEvents streams session events to stdout until the bus closes.
func printEvents(bus *events.EventBus) <-chan struct{} {
	sub := bus.SubscribeAll(256)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range sub {
			switch e := ev.(type) {
			case events.SessionStartedEvent:
				fmt.Printf("session %s started (budget %d attempts)\n", shortID(e.ID), e.MaxAttempts)
			case events.AttemptStartedEvent:
				fmt.Printf("  attempt %d\n", e.Attempt)
			case events.GeneratedEvent:
				fmt.Printf("    candidate: %d bytes, %d tokens\n", e.Bytes, e.Tokens)
			case events.SelfReviewEvent:
				if e.Corrected {
					fmt.Printf("    self-review corrected the candidate (%d tokens)\n", e.Tokens)
				} else {
					fmt.Printf("    self-review passed (%d tokens)\n", e.Tokens)
				}
			case events.ValidationFailedEvent:
				for _, d := range e.Defects {
					fmt.Printf("    defect: %s\n", d)
				}
			case events.CompileFinishedEvent:
				line := fmt.Sprintf("    compile %s in %v", e.Status, e.Duration.Round(time.Millisecond))
				if e.Diagnostic != "" {
					line += ": " + e.Diagnostic
				}
				fmt.Println(line)
			case events.SessionFinishedEvent:
				fmt.Printf("session %s %s after %d attempts\n", shortID(e.ID), e.Outcome, e.Attempts)
			case events.BatchProgressEvent:
				fmt.Printf("batch: %d/%d done, %d running, %d failed\n", e.Completed, e.Total, e.Running, e.Failed)
			}
		}
	}()
	return done
}

func printSummary(sess *agent.Session) {
	fmt.Printf("\nOutcome:  %s\n", sess.Outcome)
	fmt.Printf("Attempts: %d\n", len(sess.Attempts))
	fmt.Printf("Tokens:   %d\n", sess.TotalTokens)
	fmt.Printf("Duration: %v\n", sess.Duration.Round(time.Millisecond))
	if sess.ArtifactPath != "" {
		fmt.Printf("Artifact: %s\n", sess.ArtifactPath)
	}
	if sess.Reason != "" {
		fmt.Printf("Reason:   %s\n", sess.Reason)
	}
}

// saveSession records the session, logging instead of failing: a full audit
// trail is not worth losing a compiled artifact over.
func saveSession(ctx context.Context, dbPath string, sess *agent.Session) {
	store, err := openStore(ctx, dbPath)
	if err != nil {
		log.Printf("Warning: could not open session database: %v", err)
		return
	}
	defer store.Close()
	if err := store.SaveSession(ctx, sess); err != nil {
		log.Printf("Warning: could not record session: %v", err)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
