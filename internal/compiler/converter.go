package compiler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/byewind1/gdl-agent/internal/subproc"
)

// DefaultTimeout bounds one converter invocation when the config does not
// say otherwise.
const DefaultTimeout = 120 * time.Second

// Converter invokes LP_XMLConverter (the ArchiCAD library-part tool) as a
// subprocess.
type Converter struct {
	Path    string // absolute path to the LP_XMLConverter binary
	Timeout time.Duration
	Procs   *subproc.ProcessManager // optional, for shutdown cleanup
}

// NewConverter builds a Converter. An empty path means "not configured",
// which Available reports as the tool being absent.
func NewConverter(path string, timeout time.Duration, pm *subproc.ProcessManager) *Converter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Converter{Path: path, Timeout: timeout, Procs: pm}
}

// Available reports whether the converter binary exists at the configured
// path or on PATH.
func (c *Converter) Available() bool {
	if c.Path == "" {
		return false
	}
	if info, err := os.Stat(c.Path); err == nil && !info.IsDir() {
		return true
	}
	_, err := exec.LookPath(c.Path)
	return err == nil
}

// Compile runs `LP_XMLConverter xml2libpart <source> <output>`.
func (c *Converter) Compile(ctx context.Context, source, output string) Result {
	return c.run(ctx, "xml2libpart", source, output, output)
}

// Decompile runs `LP_XMLConverter libpart2xml <artifact> <outputDir>`.
func (c *Converter) Decompile(ctx context.Context, artifact, outputDir string) Result {
	return c.run(ctx, "libpart2xml", artifact, outputDir, outputDir)
}

func (c *Converter) run(ctx context.Context, verb, in, out, artifact string) Result {
	if !c.Available() {
		return Result{
			Status: StatusToolNotFound,
			Diagnostic: fmt.Sprintf(
				"LP_XMLConverter not found at %q; install ArchiCAD or point compiler.path at the binary", c.Path),
		}
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return Result{
			Status:     StatusFailure,
			Kind:       FailUnknown,
			Diagnostic: fmt.Sprintf("creating output directory: %v", err),
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	cmd := subproc.Command(runCtx, c.Path, verb, in, out)
	cmd.Dir = filepath.Dir(in)

	start := time.Now()
	stdout, stderr, err := subproc.Execute(runCtx, cmd, c.Procs)
	elapsed := time.Since(start)
	raw := string(stdout) + string(stderr)

	switch {
	case err == nil:
		return Result{
			Status:       StatusSuccess,
			ArtifactPath: artifact,
			Duration:     elapsed,
			Raw:          raw,
		}
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		return Result{
			Status:     StatusTimeout,
			Duration:   elapsed,
			Diagnostic: fmt.Sprintf("compilation timed out after %s", c.Timeout),
			Raw:        raw,
		}
	case errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist):
		return Result{
			Status:     StatusToolNotFound,
			Diagnostic: fmt.Sprintf("LP_XMLConverter could not be executed: %v", err),
		}
	default:
		res := classify(raw)
		res.Duration = elapsed
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = -1
			if res.Diagnostic == "" {
				res.Diagnostic = err.Error()
			}
		}
		return res
	}
}
