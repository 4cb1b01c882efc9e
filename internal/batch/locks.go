package batch

import (
	"sort"
	"sync"
)

// ResourceLockManager provides per-path mutual exclusion for concurrent
// sessions. Uses a keyed mutex pattern: each path gets its own mutex, so
// sessions touching different documents run concurrently while two sessions
// writing the same source or artifact serialize.
type ResourceLockManager struct {
	mu    sync.Mutex             // Guards the locks map itself
	locks map[string]*sync.Mutex // Per-path mutexes
}

// NewResourceLockManager creates a new ResourceLockManager.
func NewResourceLockManager() *ResourceLockManager {
	return &ResourceLockManager{
		locks: make(map[string]*sync.Mutex),
	}
}

// Lock acquires the per-path mutex, creating it on first access.
func (r *ResourceLockManager) Lock(path string) {
	r.mu.Lock()
	pathLock, exists := r.locks[path]
	if !exists {
		pathLock = &sync.Mutex{}
		r.locks[path] = pathLock
	}
	r.mu.Unlock()

	// Acquire the per-path lock (outside the manager lock to avoid contention)
	pathLock.Lock()
}

// Unlock releases the per-path mutex.
func (r *ResourceLockManager) Unlock(path string) {
	r.mu.Lock()
	pathLock, exists := r.locks[path]
	r.mu.Unlock()

	if exists {
		pathLock.Unlock()
	}
}

// LockAll acquires locks for ALL given paths.
// Paths are sorted lexicographically BEFORE acquiring to prevent deadlocks.
func (r *ResourceLockManager) LockAll(paths []string) {
	if len(paths) == 0 {
		return
	}

	// Sorted copy so the caller's slice is untouched
	sorted := make([]string, len(paths))
	copy(sorted, paths)
	sort.Strings(sorted)

	for _, path := range sorted {
		r.Lock(path)
	}
}

// UnlockAll releases locks for all given paths, in reverse sorted order for
// symmetry with LockAll.
func (r *ResourceLockManager) UnlockAll(paths []string) {
	if len(paths) == 0 {
		return
	}

	sorted := make([]string, len(paths))
	copy(sorted, paths)
	sort.Strings(sorted)

	for i := len(sorted) - 1; i >= 0; i-- {
		r.Unlock(sorted[i])
	}
}
