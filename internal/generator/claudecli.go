package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/byewind1/gdl-agent/internal/subproc"
)

// ClaudeCLI drives the claude command-line tool as a subprocess. The first
// call establishes a session, subsequent calls resume it so the CLI keeps
// the conversation context on its side.
type ClaudeCLI struct {
	command   string
	sessionID string
	workDir   string
	model     string
	started   bool
	procs     *subproc.ProcessManager
}

// cliResponse mirrors the CLI's --output-format json shape.
type cliResponse struct {
	SessionID string `json:"session_id"`
	Result    struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"result"`
}

func NewClaudeCLI(cfg Config, pm *subproc.ProcessManager) (*ClaudeCLI, error) {
	command := cfg.Command
	if command == "" {
		command = "claude"
	}
	workDir := cfg.WorkDir
	if workDir == "" {
		var err error
		workDir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
	}
	return &ClaudeCLI{
		command:   command,
		sessionID: uuid.NewString(),
		workDir:   workDir,
		model:     cfg.Model,
		procs:     pm,
	}, nil
}

// SessionID returns the CLI conversation identifier.
func (c *ClaudeCLI) SessionID() string {
	return c.sessionID
}

func (c *ClaudeCLI) Generate(ctx context.Context, req Request) (Response, error) {
	cmd := subproc.Command(ctx, c.command, c.buildArgs(req)...)
	cmd.Dir = c.workDir

	stdout, stderr, err := subproc.Execute(ctx, cmd, c.procs)
	if err != nil {
		return Response{}, fmt.Errorf("claude command failed: %w (stderr: %s)", err, strings.TrimSpace(string(stderr)))
	}

	var parsed cliResponse
	if err := json.Unmarshal(stdout, &parsed); err != nil {
		return Response{}, fmt.Errorf("parsing claude output: %w", err)
	}

	var content string
	for _, block := range parsed.Result.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}
	if content == "" {
		return Response{}, fmt.Errorf("empty response from claude CLI")
	}

	c.started = true
	if parsed.SessionID != "" {
		c.sessionID = parsed.SessionID
	}
	return Response{Content: content}, nil
}

// buildArgs assembles the invocation. The whole conversation travels in the
// prompt because the resumed CLI session only remembers its own turns.
func (c *ClaudeCLI) buildArgs(req Request) []string {
	var prompt strings.Builder
	for _, m := range req.Messages {
		prompt.WriteString(m.Content)
		prompt.WriteString("\n")
	}

	args := []string{"-p", prompt.String(), "--output-format", "json"}
	if c.started {
		args = append(args, "--resume", c.sessionID)
	} else {
		args = append(args, "--session-id", c.sessionID)
	}
	if model := firstNonEmpty(req.Model, c.model); model != "" {
		args = append(args, "--model", model)
	}
	if req.System != "" {
		args = append(args, "--system-prompt", req.System)
	}
	return args
}
