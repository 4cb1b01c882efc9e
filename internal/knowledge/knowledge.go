// Package knowledge loads the GDL reference documents that prime
// generation. GDL is scarce in model training data, so the relevant
// documents ride along in the system prompt.
package knowledge

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Base is a directory of Markdown reference documents.
type Base struct {
	dir    string
	docs   map[string]string
	loaded bool
}

func New(dir string) *Base {
	return &Base{dir: dir, docs: make(map[string]string)}
}

// Load reads every .md file in the directory. A missing directory is not an
// error; the base is simply empty.
func (b *Base) Load() error {
	b.docs = make(map[string]string)
	b.loaded = true

	entries, err := os.ReadDir(b.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading knowledge directory: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(b.dir, e.Name()))
		if err != nil {
			continue
		}
		b.docs[strings.TrimSuffix(e.Name(), ".md")] = string(data)
	}
	return nil
}

// All concatenates every document, for models with room to spare.
func (b *Base) All() string {
	b.ensureLoaded()
	names := b.DocNames()
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("## %s\n\n%s", name, b.docs[name]))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// Relevant returns up to maxDocs documents scored by keyword overlap with
// the query. When nothing scores, everything is returned: missing context
// hurts more than extra context.
func (b *Base) Relevant(query string, maxDocs int) string {
	b.ensureLoaded()
	if len(b.docs) == 0 {
		return ""
	}

	queryLower := strings.ToLower(query)
	type scored struct {
		score int
		name  string
	}
	var hits []scored

	for name, content := range b.docs {
		score := 0
		nameLower := strings.ToLower(name)
		contentLower := strings.ToLower(content)

		for _, word := range strings.Fields(queryLower) {
			if len(word) <= 2 {
				continue
			}
			if strings.Contains(nameLower, word) {
				score += 10
			}
			if strings.Contains(contentLower, word) {
				score++
			}
		}

		// Error-shaped queries want the error catalog; geometry words
		// want the syntax reference; structure words want the template.
		if containsAny(queryLower, "error", "bug", "fix", "fail", "wrong") &&
			containsAny(nameLower, "error", "common") {
			score += 20
		}
		if containsAny(queryLower, "prism", "revolve", "extrude", "tube", "syntax") &&
			containsAny(nameLower, "reference", "syntax", "guide") {
			score += 20
		}
		if containsAny(queryLower, "xml", "template", "structure") &&
			containsAny(nameLower, "template", "xml") {
			score += 20
		}

		if score > 0 {
			hits = append(hits, scored{score, name})
		}
	}

	if len(hits) == 0 {
		return b.All()
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].name < hits[j].name
	})
	if len(hits) > maxDocs {
		hits = hits[:maxDocs]
	}

	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		parts = append(parts, fmt.Sprintf("## %s\n\n%s", h.name, b.docs[h.name]))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// DocCount returns the number of loaded documents.
func (b *Base) DocCount() int {
	b.ensureLoaded()
	return len(b.docs)
}

// DocNames returns the loaded document names, sorted.
func (b *Base) DocNames() []string {
	b.ensureLoaded()
	names := make([]string, 0, len(b.docs))
	for name := range b.docs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (b *Base) ensureLoaded() {
	if !b.loaded {
		b.Load()
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
