// Package workspace owns the on-disk layout around a session: versioned
// output artifacts and the per-attempt sandbox that keeps failed candidates
// away from the golden source.
package workspace

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// VersionedPath returns the first non-colliding "<name>_v<N><ext>" path in
// dir, scanning the directory state at call time. Concurrent sessions can
// race past this check, so the actual persist goes through Promote, which
// fails closed on collision.
func VersionedPath(dir, name, ext string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	for v := 1; ; v++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_v%d%s", name, v, ext))
		if _, err := os.Stat(candidate); errors.Is(err, fs.ErrNotExist) {
			return candidate, nil
		} else if err != nil {
			return "", fmt.Errorf("probing %s: %w", candidate, err)
		}
	}
}

// Promote copies a built artifact into the output directory under the next
// free versioned name. The destination is opened with O_EXCL: if another
// session claimed the suffix between the probe and the write, the open
// fails and a fresh suffix is derived instead of overwriting.
func Promote(artifact, dir, name, ext string) (string, error) {
	src, err := os.Open(artifact)
	if err != nil {
		return "", fmt.Errorf("opening artifact: %w", err)
	}
	defer src.Close()

	for {
		dest, err := VersionedPath(dir, name, ext)
		if err != nil {
			return "", err
		}
		f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue // lost the race, re-derive
		}
		if err != nil {
			return "", fmt.Errorf("creating %s: %w", dest, err)
		}
		if _, err := src.Seek(0, io.SeekStart); err != nil {
			f.Close()
			return "", err
		}
		if _, err := io.Copy(f, src); err != nil {
			f.Close()
			os.Remove(dest)
			return "", fmt.Errorf("writing %s: %w", dest, err)
		}
		if err := f.Close(); err != nil {
			return "", err
		}
		return dest, nil
	}
}
