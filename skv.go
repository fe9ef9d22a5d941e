package skv

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kvfile/skv/lib/engine"
	"github.com/kvfile/skv/lib/ident"
	"github.com/kvfile/skv/lib/registry"
	"github.com/kvfile/skv/lib/store"
)

var defaultRegistry = registry.New()

// Initialize arms the process-wide registry for rootDir, creating the
// directory tree if absent. Idempotent: calling it again with the same
// rootDir is a no-op.
func Initialize(rootDir string) error {
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return fmt.Errorf("skv: create root dir %s: %w", rootDir, err)
	}
	return defaultRegistry.Arm(rootDir)
}

// OnExit flushes and closes every live store.
func OnExit() error {
	return defaultRegistry.Drain()
}

// Store is a typed key-value store instance identified by a canonical
// id under the initialized root directory.
type Store struct {
	store.IStore
	engine *engine.Engine
}

// Open returns the store for id, constructing it lazily on first
// request. Re-entrant: a second Open for the same id within this
// process returns the existing instance.
func Open(id string, opts Options) (*Store, error) {
	root := defaultRegistry.RootDir()
	if root == "" {
		return nil, fmt.Errorf("skv: not initialized, call Initialize first")
	}

	dataName, metaName := ident.Encode(id, opts.RelativePath)
	dataPath := filepath.Join(root, dataName)
	metaPath := filepath.Join(root, metaName)
	if dir := filepath.Dir(dataPath); dir != root {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("skv: create namespace dir %s: %w", dir, err)
		}
	}

	// The encoded data file name is the canonical identifier: it keys the
	// registry and names the engine, so one id under different relative
	// paths maps to distinct engines.
	e, err := defaultRegistry.Get(dataName, func() (*engine.Engine, error) {
		// Lock is left nil: NewEngine derives its own advisory lock from
		// the meta file's descriptor once it opens the file pair, rather
		// than this factory opening a second descriptor on the same path.
		return engine.NewEngine(engine.Options{
			ID:                dataName,
			DataPath:          dataPath,
			MetaPath:          metaPath,
			CryptKey:          opts.CryptKey,
			SingleProcessMode: opts.SingleProcessMode,
			OnCRCCheckFail:    opts.OnCRCCheckFail,
			OnFileLengthError: opts.OnFileLengthError,
			NotifyOnChange:    opts.NotifyOnChange,
			OnChange:          opts.OnChange,
		})
	})
	if err != nil {
		return nil, err
	}

	return &Store{IStore: store.NewStore(e), engine: e}, nil
}

// Close removes this store from the process registry and releases its
// mapped files.
func (s *Store) Close() error {
	if err := defaultRegistry.Close(s.engine.ID()); err != nil {
		return err
	}
	return nil
}

// Sync msyncs both mappings, durable selecting a blocking flush.
func (s *Store) Sync(durable bool) error {
	return s.engine.Sync(durable)
}

// ClearAll removes every key and resets the store to its empty state.
func (s *Store) ClearAll() error {
	return s.engine.ClearAll()
}

// Trim compacts the store and shrinks its backing file when it has
// grown much larger than its live content.
func (s *Store) Trim() error {
	return s.engine.Trim()
}

// ReKey changes the store's encryption configuration (off<->on, or key
// rotation), immediately performing a full writeback under the new key.
func (s *Store) ReKey(newKey []byte) error {
	return s.engine.ReKey(newKey)
}

// TotalSize returns the combined size in bytes of the store's mapped
// data and meta files.
func (s *Store) TotalSize() (int, error) {
	return s.engine.TotalSize()
}

// IsFileValid probes id's on-disk files for basic consistency without
// opening a live store.
func IsFileValid(id string, opts Options) bool {
	root := defaultRegistry.RootDir()
	if root == "" {
		return false
	}
	dataName, metaName := ident.Encode(id, opts.RelativePath)
	return engine.IsFileValid(filepath.Join(root, dataName), filepath.Join(root, metaName))
}
