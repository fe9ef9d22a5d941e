// Package registry implements the process-wide mapping from canonical
// store identifier to the single live engine instance for that
// identifier, enforcing the "at most one engine per identifier per
// process" invariant.
package registry

import (
	"fmt"
	"sync"

	"github.com/kvfile/skv/lib/engine"
	"github.com/puzpuzpuz/xsync/v3"
)

// Factory builds a fresh engine for id on registry miss.
type Factory func() (*engine.Engine, error)

// Registry is a concurrent identifier -> engine map. The zero value is
// not usable; construct with New.
type Registry struct {
	instances *xsync.MapOf[string, *engine.Engine]

	mu      sync.Mutex
	armed   bool
	rootDir string
}

// New returns a fresh, empty registry that is not yet armed; Arm marks
// it initialized for a root directory.
func New() *Registry {
	return &Registry{
		instances: xsync.NewMapOf[string, *engine.Engine](),
	}
}

// Arm marks the registry as initialized for rootDir. Idempotent: a
// second call with the same rootDir is a no-op; a call with a
// different rootDir returns an error, mirroring initialize's one-shot
// contract.
func (r *Registry) Arm(rootDir string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.armed && r.rootDir != rootDir {
		return fmt.Errorf("registry: already armed for root %q, cannot re-arm for %q", r.rootDir, rootDir)
	}
	r.armed = true
	r.rootDir = rootDir
	return nil
}

// RootDir returns the directory the registry was armed with.
func (r *Registry) RootDir() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rootDir
}

// Get returns the live engine for id, constructing one via factory on
// first request. Re-entrant: a second Get for the same id returns the
// existing instance without invoking factory again.
func (r *Registry) Get(id string, factory Factory) (*engine.Engine, error) {
	if e, ok := r.instances.Load(id); ok {
		return e, nil
	}
	e, err := factory()
	if err != nil {
		return nil, err
	}
	actual, loaded := r.instances.LoadOrStore(id, e)
	if loaded {
		// another goroutine won the race; discard ours
		e.Close()
		return actual, nil
	}
	return actual, nil
}

// Close removes id from the registry and closes its engine, a no-op if
// id is not present.
func (r *Registry) Close(id string) error {
	e, ok := r.instances.LoadAndDelete(id)
	if !ok {
		return nil
	}
	return e.Close()
}

// Range iterates over every live engine.
func (r *Registry) Range(fn func(id string, e *engine.Engine) bool) {
	r.instances.Range(fn)
}

// Drain flushes and closes every live engine, mirroring onExit(): sync
// durably, then close each instance and remove it from the registry.
func (r *Registry) Drain() error {
	var firstErr error
	r.instances.Range(func(id string, e *engine.Engine) bool {
		if err := e.Sync(true); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := e.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		r.instances.Delete(id)
		return true
	})
	return firstErr
}

// Len returns the number of live engines.
func (r *Registry) Len() int {
	return r.instances.Size()
}
