// Package filelock implements the advisory lock manager backing the
// engine's inter-process coordination protocol: shared (read-dominant)
// and exclusive (write-dominant) roles over whole-file OS flock locks on
// a file descriptor, most commonly the meta file's.
//
// Thread Safety:
//
//	A Manager is safe for concurrent use by multiple goroutines in one
//	process; re-entrant acquisition by the same role is counted so a
//	goroutine that already holds Lock (or RLock) may call it again
//	without blocking on itself, mirroring the scoped, counted
//	re-entrance the lock manager contract requires. The count is kept
//	per Manager, not per goroutine, so while a role is held other
//	goroutines of the same process acquire it without blocking too; the
//	engine serializes them with its own mutex. Cross-process
//	re-entrance follows OS flock semantics: a second process blocks
//	until the first releases.
//
// Usage Example:
//
//	lock, err := filelock.New(metaPath)
//	if err != nil { ... }
//	if err := lock.Lock(); err != nil { ... }
//	defer lock.Unlock()
package filelock
