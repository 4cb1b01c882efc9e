// Package generator abstracts the text-generation backends that produce
// candidate library-part documents. The orchestrator depends only on the
// Generator interface; concrete adapters are selected by configuration.
package generator

import (
	"context"
	"fmt"

	"github.com/byewind1/gdl-agent/internal/subproc"
)

// Message is one turn of the request conversation.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// Request carries everything a backend needs to produce a candidate.
type Request struct {
	System    string
	Messages  []Message
	Model     string // overrides the adapter default when non-empty
	MaxTokens int
}

// Usage reports token accounting when the backend provides it.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

func (u Usage) Total() int { return u.InputTokens + u.OutputTokens }

// Response is the backend's reply.
type Response struct {
	Content string
	Usage   Usage
}

// Generator is the capability interface for a text-generation backend.
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// Config selects and parameterizes a backend.
type Config struct {
	Type    string // "anthropic", "openai", or "claude-cli"
	APIKey  string
	BaseURL string // endpoint override; adapters have sensible defaults
	Model   string
	Command string // CLI binary for the claude-cli type
	WorkDir string
}

// New builds the adapter named by cfg.Type.
func New(cfg Config, pm *subproc.ProcessManager) (Generator, error) {
	switch cfg.Type {
	case "anthropic":
		return NewAnthropic(cfg), nil
	case "openai":
		return NewOpenAI(cfg), nil
	case "claude-cli":
		return NewClaudeCLI(cfg, pm)
	default:
		return nil, fmt.Errorf("unknown generator type: %q", cfg.Type)
	}
}
