package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): project config, global config, defaults.
// Missing files are not errors; malformed JSON returns an error.
func Load(globalPath, projectPath string) (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	// Merge global config if exists
	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	// Merge project config if exists (highest precedence)
	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	return cfg, nil
}

// GlobalPath returns the conventional global config location,
// $XDG_CONFIG_HOME/gdl-agent/config.json.
func GlobalPath() string {
	return filepath.Join(xdg.ConfigHome, "gdl-agent", "config.json")
}

// ProjectPath returns the conventional project config location relative to cwd.
func ProjectPath() string {
	return filepath.Join(".gdl-agent", "config.json")
}

// LoadDefault loads configuration from the conventional paths.
func LoadDefault() (*Config, error) {
	return Load(GlobalPath(), ProjectPath())
}

// mergeConfigFile reads a JSON config file and merges it into the base config.
// Missing files are silently skipped. Malformed JSON returns an error.
func mergeConfigFile(base *Config, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Missing file is not an error
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	// Sections are pointers so a file that omits one leaves the base alone.
	var loaded struct {
		Providers map[string]ProviderConfig `json:"providers"`
		Agent     *AgentSettings            `json:"agent"`
		Compiler  *CompilerSettings         `json:"compiler"`
		Workspace *WorkspaceSettings        `json:"workspace"`
	}
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	// Merge providers key by key
	for key, provider := range loaded.Providers {
		base.Providers[key] = provider
	}

	if loaded.Agent != nil {
		mergeAgent(&base.Agent, loaded.Agent)
	}
	if loaded.Compiler != nil {
		mergeCompiler(&base.Compiler, loaded.Compiler)
	}
	if loaded.Workspace != nil {
		mergeWorkspace(&base.Workspace, loaded.Workspace)
	}

	return nil
}

// Scalar sections merge field-wise: only fields the file actually set
// (non-zero) override the base, so a project file can bump max_attempts
// without restating the provider.

func mergeAgent(base, loaded *AgentSettings) {
	if loaded.Provider != "" {
		base.Provider = loaded.Provider
	}
	if loaded.MaxAttempts != 0 {
		base.MaxAttempts = loaded.MaxAttempts
	}
	if loaded.MaxTokens != 0 {
		base.MaxTokens = loaded.MaxTokens
	}
}

func mergeCompiler(base, loaded *CompilerSettings) {
	if loaded.ConverterPath != "" {
		base.ConverterPath = loaded.ConverterPath
	}
	if loaded.TimeoutSeconds != 0 {
		base.TimeoutSeconds = loaded.TimeoutSeconds
	}
	if loaded.UseMock {
		base.UseMock = true
	}
}

func mergeWorkspace(base, loaded *WorkspaceSettings) {
	if loaded.OutputDir != "" {
		base.OutputDir = loaded.OutputDir
	}
	if loaded.KnowledgeDir != "" {
		base.KnowledgeDir = loaded.KnowledgeDir
	}
	if loaded.SandboxDir != "" {
		base.SandboxDir = loaded.SandboxDir
	}
}
