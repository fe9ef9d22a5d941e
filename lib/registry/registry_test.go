package registry

import (
	"path/filepath"
	"testing"

	"github.com/kvfile/skv/lib/engine"
)

func newTestEngine(t *testing.T, dir, id string) *engine.Engine {
	t.Helper()
	e, err := engine.NewEngine(engine.Options{
		ID:                id,
		DataPath:          filepath.Join(dir, id),
		MetaPath:          filepath.Join(dir, id+".crc"),
		SingleProcessMode: true,
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestGetIsReentrant(t *testing.T) {
	dir := t.TempDir()
	r := New()
	if err := r.Arm(dir); err != nil {
		t.Fatalf("Arm: %v", err)
	}

	calls := 0
	factory := func() (*engine.Engine, error) {
		calls++
		return newTestEngine(t, dir, "store-a"), nil
	}

	first, err := r.Get("store-a", factory)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	second, err := r.Get("store-a", factory)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if first != second {
		t.Fatalf("expected the same engine instance on re-entrant Get")
	}
	if calls != 1 {
		t.Fatalf("expected factory called once, got %d", calls)
	}
}

func TestCloseRemovesFromRegistry(t *testing.T) {
	dir := t.TempDir()
	r := New()
	r.Arm(dir)

	_, err := r.Get("store-b", func() (*engine.Engine, error) {
		return newTestEngine(t, dir, "store-b"), nil
	})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if r.Len() != 1 {
		t.Fatalf("expected 1 live engine, got %d", r.Len())
	}
	if err := r.Close("store-b"); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if r.Len() != 0 {
		t.Fatalf("expected registry empty after Close, got %d", r.Len())
	}
}

func TestDrainClosesAllEngines(t *testing.T) {
	dir := t.TempDir()
	r := New()
	r.Arm(dir)

	for _, id := range []string{"one", "two", "three"} {
		if _, err := r.Get(id, func() (*engine.Engine, error) {
			return newTestEngine(t, dir, id), nil
		}); err != nil {
			t.Fatalf("Get(%s): %v", id, err)
		}
	}
	if err := r.Drain(); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if r.Len() != 0 {
		t.Fatalf("expected empty registry after Drain, got %d", r.Len())
	}
}
