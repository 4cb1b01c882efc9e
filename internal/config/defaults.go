package config

// DefaultConfig returns the default configuration with built-in providers
// and conservative loop settings.
func DefaultConfig() *Config {
	return &Config{
		Providers: map[string]ProviderConfig{
			"anthropic": {
				Type:  "anthropic",
				Model: "claude-sonnet-4-20250514",
			},
			"lmstudio": {
				Type:    "openai",
				BaseURL: "http://localhost:1234/v1",
			},
			"claude-cli": {
				Type:    "claude-cli",
				Command: "claude",
			},
		},
		Agent: AgentSettings{
			Provider:    "anthropic",
			MaxAttempts: 5,
			SelfReview:  true,
		},
		Compiler: CompilerSettings{
			TimeoutSeconds: 120,
		},
		Workspace: WorkspaceSettings{
			OutputDir:    "output",
			KnowledgeDir: "knowledge",
		},
	}
}
