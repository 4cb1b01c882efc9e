package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/byewind1/gdl-agent/internal/compiler"
	"github.com/byewind1/gdl-agent/internal/config"
	"github.com/byewind1/gdl-agent/internal/generator"
	"github.com/byewind1/gdl-agent/internal/persistence"
	"github.com/byewind1/gdl-agent/internal/subproc"
)

const version = "0.3.0"

func main() {
	// Signal-aware context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ProcessManager tracks compiler and CLI-provider subprocesses so a
	// SIGTERM never leaves an LP_XMLConverter behind.
	pm := subproc.NewProcessManager()
	go func() {
		<-ctx.Done()
		// Restore default signal handling: double Ctrl+C force-exits
		stop()
		if err := pm.KillAll(); err != nil {
			log.Printf("Error killing subprocesses: %v", err)
		}
	}()

	rootCmd := &cobra.Command{
		Use:   "gdl-agent",
		Short: "LLM-driven generator for ArchiCAD GDL library parts",
		Long: `gdl-agent turns natural-language instructions into compiled ArchiCAD
library parts. Candidates are generated by a language model, validated
structurally, compiled with LP_XMLConverter and retried with compiler
feedback until they build or the attempt budget runs out.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(newRunCommand(pm))
	rootCmd.AddCommand(newBatchCommand(pm))
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(newDecompileCommand(pm))
	rootCmd.AddCommand(newSessionsCommand())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// buildGenerator constructs the text-generation backend named by the config.
// It returns the provider type alongside the generator so callers can key
// circuit breakers per backend.
func buildGenerator(cfg *config.Config, pm *subproc.ProcessManager) (generator.Generator, string, error) {
	pc, ok := cfg.Providers[cfg.Agent.Provider]
	if !ok {
		return nil, "", fmt.Errorf("provider %q is not configured", cfg.Agent.Provider)
	}

	gen, err := generator.New(generator.Config{
		Type:    pc.Type,
		APIKey:  pc.APIKey,
		BaseURL: pc.BaseURL,
		Model:   pc.Model,
		Command: pc.Command,
	}, pm)
	if err != nil {
		return nil, "", err
	}
	return gen, pc.Type, nil
}

// buildCompiler returns the mock when asked for, otherwise a real converter.
func buildCompiler(cfg *config.Config, pm *subproc.ProcessManager, forceMock bool) compiler.Compiler {
	if forceMock || cfg.Compiler.UseMock {
		return &compiler.Mock{}
	}
	path := cfg.Compiler.ConverterPath
	if path == "" {
		path = "LP_XMLConverter" // PATH lookup
	}
	timeout := time.Duration(cfg.Compiler.TimeoutSeconds) * time.Second
	return compiler.NewConverter(path, timeout, pm)
}

// openStore opens the session audit database, creating its directory first.
func openStore(ctx context.Context, dbPath string) (persistence.Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	return persistence.NewSQLiteStore(ctx, dbPath)
}
