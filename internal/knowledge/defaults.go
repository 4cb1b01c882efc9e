package knowledge

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

//go:embed docs/*.md
var defaultDocs embed.FS

// WriteDefaults scaffolds the built-in reference documents into dir.
// Existing files are left untouched so local edits survive re-init.
func WriteDefaults(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating knowledge directory: %w", err)
	}
	entries, err := fs.ReadDir(defaultDocs, "docs")
	if err != nil {
		return err
	}
	for _, e := range entries {
		dest := filepath.Join(dir, e.Name())
		if _, err := os.Stat(dest); err == nil {
			continue
		}
		data, err := defaultDocs.ReadFile("docs/" + e.Name())
		if err != nil {
			return err
		}
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", dest, err)
		}
	}
	return nil
}
