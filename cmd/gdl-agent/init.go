package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/byewind1/gdl-agent/internal/config"
	"github.com/byewind1/gdl-agent/internal/knowledge"
)

func newInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactive first-run setup",
		Long: `Init walks through provider, compiler and workspace settings, writes a
config file and seeds the knowledge directory with the built-in GDL
reference documents.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()

			provider := cfg.Agent.Provider
			model := cfg.Providers[provider].Model
			apiKey := ""
			maxAttempts := strconv.Itoa(cfg.Agent.MaxAttempts)
			selfReview := cfg.Agent.SelfReview
			converterPath := cfg.Compiler.ConverterPath
			outputDir := cfg.Workspace.OutputDir
			saveTarget := "project"

			form := huh.NewForm(
				huh.NewGroup(
					huh.NewSelect[string]().
						Title("Provider").
						Options(
							huh.NewOption("Anthropic API", "anthropic"),
							huh.NewOption("LM Studio (OpenAI-compatible)", "lmstudio"),
							huh.NewOption("Claude CLI", "claude-cli"),
						).
						Value(&provider),

					huh.NewInput().
						Title("Model").
						Description("Leave empty for the provider default").
						Value(&model),

					huh.NewInput().
						Title("API key").
						Description("Usually left empty; environment variables supply it").
						EchoMode(huh.EchoModePassword).
						Value(&apiKey),

					huh.NewInput().
						Title("Attempt budget").
						Value(&maxAttempts),

					huh.NewConfirm().
						Title("Self-review first candidate").
						Description("One extra model call that often saves a full retry").
						Value(&selfReview),
				).Title("Generation"),

				huh.NewGroup(
					huh.NewInput().
						Title("LP_XMLConverter path").
						Description("Leave empty to find it on PATH").
						Value(&converterPath),

					huh.NewInput().
						Title("Output directory").
						Value(&outputDir),
				).Title("Compiler & Workspace"),

				huh.NewGroup(
					huh.NewSelect[string]().
						Title("Save to").
						Options(
							huh.NewOption("Project (.gdl-agent/config.json)", "project"),
							huh.NewOption("Global (XDG config dir)", "global"),
						).
						Value(&saveTarget),
				).Title("Save"),
			)

			if err := form.Run(); err != nil {
				return err
			}

			cfg.Agent.Provider = provider
			if n, err := strconv.Atoi(maxAttempts); err == nil && n > 0 {
				cfg.Agent.MaxAttempts = n
			}
			cfg.Agent.SelfReview = selfReview
			pc := cfg.Providers[provider]
			pc.Model = model
			pc.APIKey = apiKey
			cfg.Providers[provider] = pc
			cfg.Compiler.ConverterPath = converterPath
			cfg.Workspace.OutputDir = outputDir

			path := config.ProjectPath()
			if saveTarget == "global" {
				path = config.GlobalPath()
			}
			if err := config.Save(cfg, path); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)

			if err := knowledge.WriteDefaults(cfg.Workspace.KnowledgeDir); err != nil {
				return fmt.Errorf("seeding knowledge directory: %w", err)
			}
			fmt.Printf("Seeded %s with the GDL reference documents\n", cfg.Workspace.KnowledgeDir)
			return nil
		},
	}
	return cmd
}
