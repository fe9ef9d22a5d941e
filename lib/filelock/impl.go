package filelock

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// flockManager backs Manager with whole-file unix.Flock advisory locks
// on a single file descriptor, layered under a mutex that counts
// re-entrant acquisitions of each role. The count belongs to the
// Manager, not to a goroutine: while a role is held, further calls to
// acquire it from any goroutine return at once, so the Manager does not
// exclude goroutines of one process from each other. The lock hierarchy
// this composes into (registry lock ->
// per-engine mutex -> this advisory lock) is maintained by callers.
type flockManager struct {
	file *os.File

	mu           sync.Mutex
	exclusiveN   int
	sharedN      int
	heldExclusiv bool
	heldShared   bool
}

// New wraps path (typically the meta file) with an advisory lock
// manager. The file is opened (created if absent) purely to hold the
// descriptor that flock operates on; it is never read or written here.
func New(path string) (Manager, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("filelock: open %s: %w", path, err)
	}
	return &flockManager{file: f}, nil
}

// NewFromFile wraps an already-open file descriptor, avoiding a second
// os.Open of the meta file the engine already holds mapped.
func NewFromFile(f *os.File) Manager {
	return &flockManager{file: f}
}

func (m *flockManager) Lock() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.heldExclusiv {
		m.exclusiveN++
		return nil
	}
	if err := unix.Flock(int(m.file.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("filelock: flock exclusive: %w", err)
	}
	m.heldExclusiv = true
	m.exclusiveN = 1
	return nil
}

func (m *flockManager) Unlock() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.heldExclusiv {
		return fmt.Errorf("filelock: unlock without matching lock")
	}
	m.exclusiveN--
	if m.exclusiveN > 0 {
		return nil
	}
	m.heldExclusiv = false
	if err := unix.Flock(int(m.file.Fd()), unix.LOCK_UN); err != nil {
		return fmt.Errorf("filelock: flock unlock: %w", err)
	}
	return nil
}

func (m *flockManager) RLock() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.heldShared {
		m.sharedN++
		return nil
	}
	if err := unix.Flock(int(m.file.Fd()), unix.LOCK_SH); err != nil {
		return fmt.Errorf("filelock: flock shared: %w", err)
	}
	m.heldShared = true
	m.sharedN = 1
	return nil
}

func (m *flockManager) RUnlock() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.heldShared {
		return fmt.Errorf("filelock: runlock without matching rlock")
	}
	m.sharedN--
	if m.sharedN > 0 {
		return nil
	}
	m.heldShared = false
	if err := unix.Flock(int(m.file.Fd()), unix.LOCK_UN); err != nil {
		return fmt.Errorf("filelock: flock unlock: %w", err)
	}
	return nil
}
