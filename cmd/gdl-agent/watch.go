package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/byewind1/gdl-agent/internal/compiler"
	"github.com/byewind1/gdl-agent/internal/config"
	"github.com/byewind1/gdl-agent/internal/subproc"
)

func newWatchCommand() *cobra.Command {
	var doCompile bool
	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Re-validate a document whenever it changes",
		Long: `Watch validates the file immediately and again on every save.
With --compile it also runs LP_XMLConverter after a clean validation.
Useful alongside an editor while hand-tuning a generated part.`,
		Example: `  gdl-agent watch Shelf.xml
  gdl-agent watch --compile Shelf.xml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			target, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			var comp compiler.Compiler
			var outputDir string
			if doCompile {
				cfg, err := config.LoadDefault()
				if err != nil {
					return err
				}
				comp = buildCompiler(cfg, subproc.NewProcessManager(), false)
				outputDir = cfg.Workspace.OutputDir
				if !comp.Available() {
					return fmt.Errorf("LP_XMLConverter is not available; set compiler.converter_path or drop --compile")
				}
			}

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("create fsnotify watcher: %w", err)
			}
			defer watcher.Close()

			// Watch the directory, not the file: editors that save via
			// rename would otherwise drop the watch.
			if err := watcher.Add(filepath.Dir(target)); err != nil {
				return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
			}

			report(ctx, target, comp, outputDir)

			// Debounce: editors fire several events per save
			var pending <-chan time.Time
			for {
				select {
				case <-ctx.Done():
					return nil
				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if event.Name != target {
						continue
					}
					if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
						pending = time.After(200 * time.Millisecond)
					}
				case <-pending:
					pending = nil
					report(ctx, target, comp, outputDir)
				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					fmt.Printf("watch error: %v\n", err)
				}
			}
		},
	}
	cmd.Flags().BoolVar(&doCompile, "compile", false, "Also compile after a clean validation")
	return cmd
}

func report(ctx context.Context, path string, comp compiler.Compiler, outputDir string) {
	stamp := time.Now().Format("15:04:05")
	defects, err := validateFile(path)
	switch {
	case err != nil:
		fmt.Printf("[%s] %s %v\n", stamp, styleDefect.Render("✗"), err)
		return
	case len(defects) > 0:
		fmt.Printf("[%s] %s %s\n", stamp, styleDefect.Render("✗"), path)
		for _, d := range defects {
			fmt.Printf("  %s\n", styleDefect.Render(d.String()))
		}
		return
	default:
		fmt.Printf("[%s] %s %s\n", stamp, styleOK.Render("✓"), path)
	}

	if comp == nil {
		return
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	output := filepath.Join(outputDir, base+".gsm")
	res := comp.Compile(ctx, path, output)
	if res.Status == compiler.StatusSuccess {
		fmt.Printf("  %s compiled to %s in %v\n", styleOK.Render("✓"), res.ArtifactPath, res.Duration.Round(time.Millisecond))
	} else {
		fmt.Printf("  %s compile %s: %s\n", styleDefect.Render("✗"), res.Status, res.Summary())
	}
}
