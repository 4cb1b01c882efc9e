package batch

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gammazero/toposort"
)

// DAG represents a directed acyclic graph of parts.
type DAG struct {
	mu         sync.RWMutex
	parts      map[string]*Part    // All parts indexed by name
	dependents map[string][]string // Maps part name -> parts that depend on it
}

// NewDAG creates an empty DAG.
func NewDAG() *DAG {
	return &DAG{
		parts:      make(map[string]*Part),
		dependents: make(map[string][]string),
	}
}

// AddPart adds a part to the DAG. Returns error if the name already exists.
func (d *DAG) AddPart(part *Part) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.parts[part.Name]; exists {
		return fmt.Errorf("part %q already exists", part.Name)
	}

	d.parts[part.Name] = part

	// Build dependents map for efficient downstream lookup
	for _, dep := range part.DependsOn {
		d.dependents[dep] = append(d.dependents[dep], part.Name)
	}

	return nil
}

// Validate runs topological sort using gammazero/toposort.
// Returns ordered part names or error if a cycle is detected.
// Also verifies all names in DependsOn exist in the DAG.
func (d *DAG) Validate() ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	// First, verify all dependencies exist
	for name, part := range d.parts {
		for _, dep := range part.DependsOn {
			if _, exists := d.parts[dep]; !exists {
				return nil, fmt.Errorf("part %q depends on non-existent part %q", name, dep)
			}
		}
	}

	// Build edges for topological sort
	var edges []toposort.Edge
	for name, part := range d.parts {
		if len(part.DependsOn) == 0 {
			// Part with no dependencies - add edge from nil to ensure it's included
			edges = append(edges, toposort.Edge{nil, name})
		} else {
			for _, dep := range part.DependsOn {
				// Edge (dep, name) means dep must build before name
				edges = append(edges, toposort.Edge{dep, name})
			}
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("batch contains a dependency cycle: %w", err)
	}

	// Convert []interface{} to []string
	order := make([]string, 0, len(sorted))
	for _, name := range sorted {
		if name != nil {
			order = append(order, name.(string))
		}
	}

	// Verify all parts are in the sorted result (catches disconnected components)
	if len(order) != len(d.parts) {
		missing := []string{}
		foundMap := make(map[string]bool)
		for _, name := range order {
			foundMap[name] = true
		}
		for name := range d.parts {
			if !foundMap[name] {
				missing = append(missing, name)
			}
		}
		return nil, fmt.Errorf("topological sort lost %d parts: %s", len(missing), strings.Join(missing, ", "))
	}

	return order, nil
}

// Eligible returns all pending parts whose dependencies are ALL resolved.
func (d *DAG) Eligible() []*Part {
	d.mu.RLock()
	defer d.mu.RUnlock()

	eligible := []*Part{}

	for _, part := range d.parts {
		if part.Status != PartPending {
			continue
		}

		allResolved := true
		for _, depName := range part.DependsOn {
			dep, exists := d.parts[depName]
			if !exists || !d.isDependencyResolved(dep) {
				allResolved = false
				break
			}
		}

		if allResolved {
			eligible = append(eligible, clonePart(part))
		}
	}

	return eligible
}

// isDependencyResolved checks if a dependency is resolved based on its status
// and failure mode.
func (d *DAG) isDependencyResolved(dep *Part) bool {
	switch dep.Status {
	case PartCompleted:
		return true
	case PartSkipped:
		return true
	case PartFailed:
		switch dep.FailureMode {
		case FailSoft:
			return true
		case FailSkip:
			return true
		case FailHard:
			return false
		}
	}
	return false
}

// MarkRunning sets part status to PartRunning.
func (d *DAG) MarkRunning(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	part, exists := d.parts[name]
	if !exists {
		return fmt.Errorf("part %q not found", name)
	}

	part.Status = PartRunning
	return nil
}

// MarkCompleted sets part status to PartCompleted and stores the artifact path.
func (d *DAG) MarkCompleted(name, artifact string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	part, exists := d.parts[name]
	if !exists {
		return fmt.Errorf("part %q not found", name)
	}

	part.Status = PartCompleted
	part.Artifact = artifact
	return nil
}

// MarkFailed sets part status to PartFailed and stores the error.
// Dependents are affected per the part's FailureMode:
// - FailHard: dependents stay pending forever
// - FailSoft: dependents can become eligible
// - FailSkip: treat as completed for dependency resolution
func (d *DAG) MarkFailed(name string, err error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	part, exists := d.parts[name]
	if !exists {
		return fmt.Errorf("part %q not found", name)
	}

	part.Status = PartFailed
	part.Error = err
	return nil
}

// Get returns a part by name.
func (d *DAG) Get(name string) (*Part, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	part, exists := d.parts[name]
	if !exists {
		return nil, false
	}
	return clonePart(part), true
}

// Parts returns all parts.
func (d *DAG) Parts() []*Part {
	d.mu.RLock()
	defer d.mu.RUnlock()

	parts := make([]*Part, 0, len(d.parts))
	for _, part := range d.parts {
		parts = append(parts, clonePart(part))
	}
	return parts
}

// Order returns topologically sorted part names (calls Validate).
func (d *DAG) Order() ([]string, error) {
	return d.Validate()
}
