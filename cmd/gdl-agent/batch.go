package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/byewind1/gdl-agent/internal/agent"
	"github.com/byewind1/gdl-agent/internal/batch"
	"github.com/byewind1/gdl-agent/internal/config"
	"github.com/byewind1/gdl-agent/internal/events"
	"github.com/byewind1/gdl-agent/internal/knowledge"
	"github.com/byewind1/gdl-agent/internal/persistence"
	"github.com/byewind1/gdl-agent/internal/subproc"
)

func newBatchCommand(pm *subproc.ProcessManager) *cobra.Command {
	var (
		concurrency int
		mock        bool
		useTUI      bool
		dbPath      string
		noSave      bool
	)
	cmd := &cobra.Command{
		Use:   "batch <manifest.yaml>",
		Short: "Build a set of dependent parts from a manifest",
		Long: `Batch builds every part in a YAML manifest, in dependency order.
Explicit depends_on entries and CALL references between parts both
order the build; independent parts run concurrently.`,
		Example: `  gdl-agent batch parts.yaml
  gdl-agent batch --concurrency=2 --mock parts.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			man, err := batch.LoadManifest(args[0])
			if err != nil {
				return err
			}
			dag, err := man.BuildDAG()
			if err != nil {
				return err
			}

			cfg, err := config.LoadDefault()
			if err != nil {
				return err
			}
			outputDir := man.OutputDir
			if outputDir == "" {
				outputDir = cfg.Workspace.OutputDir
			}
			if concurrency == 0 {
				concurrency = man.Concurrency
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

			var store persistence.Store
			if !noSave {
				store, err = openStore(ctx, dbPath)
				if err != nil {
					log.Printf("Warning: could not open session database: %v", err)
				} else {
					defer store.Close()
				}
			}

			sessions := &agent.Runner{
				Generator:  gen,
				Compiler:   comp,
				Knowledge:  kb,
				Bus:        bus,
				Breaker:    agent.NewCircuitBreakerRegistry().Get(providerType),
				Retry:      agent.DefaultRetryConfig(),
				MaxTokens:  cfg.Agent.MaxTokens,
				SelfReview: cfg.Agent.SelfReview,
				SandboxIn:  cfg.Workspace.SandboxDir,
			}

			runner := batch.NewRunner(batch.RunnerConfig{
				ConcurrencyLimit: concurrency,
				OutputDir:        outputDir,
				MaxAttempts:      man.MaxAttempts,
				Sessions:         sessions,
				Store:            store,
				Bus:              bus,
			}, dag, batch.NewResourceLockManager())

			var results []batch.Result
			if useTUI {
				_, err = runWithTUI(ctx, bus, cfg, func(ctx context.Context) (*agent.Session, error) {
					results, err = runner.Run(ctx)
					return nil, err
				})
			} else {
				done := printEvents(bus)
				results, err = runner.Run(ctx)
				bus.Close()
				<-done
			}
			if err != nil {
				return err
			}

			return printBatchResults(results)
		},
	}
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "Max concurrent sessions (0 uses the manifest value)")
	cmd.Flags().BoolVar(&mock, "mock", false, "Simulate compiles without LP_XMLConverter")
	cmd.Flags().BoolVar(&useTUI, "tui", false, "Show interactive progress")
	cmd.Flags().StringVar(&dbPath, "db", defaultDBPath, "Session database path")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "Skip recording sessions")
	return cmd
}

func printBatchResults(results []batch.Result) error {
	fmt.Println()
	failed := 0
	for _, res := range results {
		switch {
		case res.Error != nil:
			failed++
			fmt.Printf("✗ %-20s %s\n", res.Name, res.Error)
		default:
			fmt.Printf("✓ %-20s %s (%d attempts)\n", res.Name, res.ArtifactPath, res.Attempts)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d parts failed", failed, len(results))
	}
	fmt.Printf("%d parts built\n", len(results))
	return nil
}
