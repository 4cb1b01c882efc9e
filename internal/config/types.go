package config

// ProviderConfig defines a text-generation backend. Providers are separate
// from agent settings -- several tasks can share one provider.
type ProviderConfig struct {
	Type    string `json:"type"`               // Backend type matching generator.Config.Type: "anthropic", "openai", "claude-cli"
	APIKey  string `json:"api_key,omitempty"`  // API key; environment variables usually supply this instead
	BaseURL string `json:"base_url,omitempty"` // Endpoint override for OpenAI-compatible servers
	Model   string `json:"model,omitempty"`    // Model override (e.g., "claude-sonnet-4-20250514")
	Command string `json:"command,omitempty"`  // CLI binary for the claude-cli type
}

// AgentSettings controls the retry loop.
type AgentSettings struct {
	Provider    string `json:"provider"`             // Key into Providers map
	MaxAttempts int    `json:"max_attempts"`         // Attempt budget per session
	MaxTokens   int    `json:"max_tokens,omitempty"` // Generation token cap, 0 for provider default
	SelfReview  bool   `json:"self_review"`          // Review the first candidate before validating it
}

// CompilerSettings locates and bounds the LP_XMLConverter tool.
type CompilerSettings struct {
	ConverterPath  string `json:"converter_path,omitempty"` // Explicit tool path; empty means PATH lookup
	TimeoutSeconds int    `json:"timeout_seconds"`          // Per-compile wall clock limit
	UseMock        bool   `json:"use_mock,omitempty"`       // Simulate compiles without ArchiCAD
}

// WorkspaceSettings lays out the on-disk directories.
type WorkspaceSettings struct {
	OutputDir    string `json:"output_dir"`              // Where promoted artifacts land
	KnowledgeDir string `json:"knowledge_dir,omitempty"` // GDL reference docs for prompt injection
	SandboxDir   string `json:"sandbox_dir,omitempty"`   // Base dir for attempt sandboxes; empty uses the system temp dir
}

// Config is the top-level configuration.
type Config struct {
	Providers map[string]ProviderConfig `json:"providers"`
	Agent     AgentSettings             `json:"agent"`
	Compiler  CompilerSettings          `json:"compiler"`
	Workspace WorkspaceSettings         `json:"workspace"`
}
