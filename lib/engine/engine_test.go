package engine

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/kvfile/skv/lib/filelock"
)

func newTestEngineOpts(dir, id string) Options {
	return Options{
		ID:                id,
		DataPath:          filepath.Join(dir, id),
		MetaPath:          filepath.Join(dir, id+".crc"),
		SingleProcessMode: true,
	}
}

// newCrossProcessOpts builds a pair of Options simulating two distinct
// processes sharing the same on-disk store: SingleProcessMode disabled
// and independent filelock.Manager instances (distinct file
// descriptors) over the same meta path, so the sequence/CRC
// cross-process protocol actually runs between them.
func newCrossProcessOpts(t *testing.T, dir, id string) (Options, Options) {
	t.Helper()
	metaPath := filepath.Join(dir, id+".crc")

	lockA, err := filelock.New(metaPath)
	if err != nil {
		t.Fatalf("filelock.New a: %v", err)
	}
	lockB, err := filelock.New(metaPath)
	if err != nil {
		t.Fatalf("filelock.New b: %v", err)
	}

	base := Options{
		ID:                id,
		DataPath:          filepath.Join(dir, id),
		MetaPath:          metaPath,
		SingleProcessMode: false,
	}
	optsA, optsB := base, base
	optsA.Lock = lockA
	optsB.Lock = lockB
	return optsA, optsB
}

func TestSetGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	e, err := NewEngine(newTestEngineOpts(dir, "s1"))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer e.Close()

	if err := e.Set("n", []byte("42")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := e.Set("s", []byte("hello")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	v, ok, err := e.Get("n")
	if err != nil || !ok || string(v) != "42" {
		t.Fatalf("Get(n) = %q, %v, %v", v, ok, err)
	}
	v, ok, err = e.Get("s")
	if err != nil || !ok || string(v) != "hello" {
		t.Fatalf("Get(s) = %q, %v, %v", v, ok, err)
	}

	count, err := e.Count()
	if err != nil || count != 2 {
		t.Fatalf("Count() = %d, %v, want 2", count, err)
	}
}

func TestReopenPreservesState(t *testing.T) {
	dir := t.TempDir()
	opts := newTestEngineOpts(dir, "s2")

	e, err := NewEngine(opts)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if err := e.Set("n", []byte("42")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := e.Set("s", []byte("hello")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	e2, err := NewEngine(opts)
	if err != nil {
		t.Fatalf("reopen NewEngine: %v", err)
	}
	defer e2.Close()

	v, ok, err := e2.Get("n")
	if err != nil || !ok || string(v) != "42" {
		t.Fatalf("Get(n) after reopen = %q, %v, %v", v, ok, err)
	}
	count, err := e2.Count()
	if err != nil || count != 2 {
		t.Fatalf("Count() after reopen = %d, %v, want 2", count, err)
	}
}

func TestRemoveTombstonesKey(t *testing.T) {
	dir := t.TempDir()
	e, err := NewEngine(newTestEngineOpts(dir, "s3"))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer e.Close()

	if err := e.Set("k", []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := e.Remove("k"); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	_, ok, err := e.Get("k")
	if err != nil || ok {
		t.Fatalf("Get(k) after remove = ok=%v, err=%v, want ok=false", ok, err)
	}
	has, err := e.ContainsKey("k")
	if err != nil || has {
		t.Fatalf("ContainsKey(k) after remove = %v, %v, want false", has, err)
	}
}

func TestTombstoneCompactionOnTrim(t *testing.T) {
	dir := t.TempDir()
	opts := newTestEngineOpts(dir, "s4")
	e, err := NewEngine(opts)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	for i := 0; i < 1000; i++ {
		key := fmt.Sprintf("k%d", i)
		if err := e.Set(key, []byte("x")); err != nil {
			t.Fatalf("Set(%s): %v", key, err)
		}
	}
	for i := 0; i < 900; i++ {
		key := fmt.Sprintf("k%d", i)
		if err := e.Remove(key); err != nil {
			t.Fatalf("Remove(%s): %v", key, err)
		}
	}
	if err := e.Trim(); err != nil {
		t.Fatalf("Trim: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	e2, err := NewEngine(opts)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer e2.Close()

	count, err := e2.Count()
	if err != nil || count != 100 {
		t.Fatalf("Count() = %d, %v, want 100", count, err)
	}
	keys, err := e2.AllKeys()
	if err != nil {
		t.Fatalf("AllKeys: %v", err)
	}
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		seen[k] = true
	}
	for i := 900; i < 1000; i++ {
		key := fmt.Sprintf("k%d", i)
		if !seen[key] {
			t.Fatalf("expected %s to survive trim", key)
		}
	}
}

func TestCRCCorruptionRecoversToLastConfirmed(t *testing.T) {
	dir := t.TempDir()
	opts := newTestEngineOpts(dir, "s5")

	e, err := NewEngine(opts)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if err := e.Set("a", []byte("1")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := e.fullWriteback(); err != nil {
		t.Fatalf("fullWriteback: %v", err)
	}
	// this append happens after the last confirmed snapshot and should be
	// lost on recovery
	if err := e.Set("b", []byte("2")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// flip a byte within the "b" record, appended after the last
	// confirmed snapshot, to force a CRC mismatch that leaves the
	// last-confirmed range (covering only "a") untouched.
	dataPath := filepath.Join(dir, "s5")
	corrupt(t, dataPath, 4)

	recoverOpts := opts
	recoverOpts.OnCRCCheckFail = func(string, FailureKind) Recovery { return Recover }

	e2, err := NewEngine(recoverOpts)
	if err != nil {
		t.Fatalf("reopen after corruption: %v", err)
	}
	defer e2.Close()

	v, ok, err := e2.Get("a")
	if err != nil || !ok || string(v) != "1" {
		t.Fatalf("Get(a) after recovery = %q, %v, %v, want present", v, ok, err)
	}
}

func TestReKeyRoundTrip(t *testing.T) {
	dir := t.TempDir()
	opts := newTestEngineOpts(dir, "s6")

	e, err := NewEngine(opts)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("k%d", i)
		if err := e.Set(key, []byte(fmt.Sprintf("v%d", i))); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	if err := e.ReKey([]byte("passw0rd12345678")); err != nil {
		t.Fatalf("ReKey: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	encOpts := opts
	encOpts.CryptKey = []byte("passw0rd12345678")
	e2, err := NewEngine(encOpts)
	if err != nil {
		t.Fatalf("reopen with key: %v", err)
	}
	defer e2.Close()

	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("k%d", i)
		want := fmt.Sprintf("v%d", i)
		v, ok, err := e2.Get(key)
		if err != nil || !ok || string(v) != want {
			t.Fatalf("Get(%s) = %q, %v, %v, want %q", key, v, ok, err, want)
		}
	}
}

func TestReKeyReopenWithWrongKeyRefuses(t *testing.T) {
	dir := t.TempDir()
	opts := newTestEngineOpts(dir, "s6b")

	e, err := NewEngine(opts)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if err := e.Set("k", []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := e.ReKey([]byte("rightpassword123")); err != nil {
		t.Fatalf("ReKey: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// The ciphertext is untouched, so the CRC over it still validates
	// against meta.crcDigest; only decodeRecords on the garbled plaintext
	// fails. Reopening with the wrong key must refuse rather than
	// silently return an empty store.
	wrongOpts := opts
	wrongOpts.CryptKey = []byte("wrongpassword123")

	if _, err := NewEngine(wrongOpts); err == nil {
		t.Fatalf("reopen with wrong key: want error, got nil")
	} else if err != ErrNotRecoverable {
		t.Fatalf("reopen with wrong key: err = %v, want ErrNotRecoverable", err)
	}

	// With a Recover strategy, the wrong-key open instead succeeds
	// against a freshly emptied store, and the original data is
	// discarded rather than exposed.
	recoverOpts := opts
	recoverOpts.CryptKey = []byte("wrongpassword123")
	recoverOpts.OnCRCCheckFail = func(string, FailureKind) Recovery { return Recover }

	e2, err := NewEngine(recoverOpts)
	if err != nil {
		t.Fatalf("reopen with wrong key and Recover strategy: %v", err)
	}
	defer e2.Close()

	count, err := e2.Count()
	if err != nil || count != 0 {
		t.Fatalf("Count() after wrong-key recover = %d, %v, want 0", count, err)
	}
}

func TestGrowthDoublesPageMultiple(t *testing.T) {
	dir := t.TempDir()
	e, err := NewEngine(newTestEngineOpts(dir, "s7"))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer e.Close()

	value := bytes.Repeat([]byte("x"), 64)
	for i := 0; i < 200; i++ {
		key := fmt.Sprintf("k%d", i)
		if err := e.Set(key, value); err != nil {
			t.Fatalf("Set(%s): %v", key, err)
		}
	}

	total, err := e.TotalSize()
	if err != nil {
		t.Fatalf("TotalSize: %v", err)
	}
	dataSize := total - e.fp.Meta.size
	if dataSize%DefaultPageSize != 0 {
		t.Fatalf("data file size %d is not a page multiple", dataSize)
	}
}

func TestSetRejectsEmptyKeyOrValue(t *testing.T) {
	dir := t.TempDir()
	e, err := NewEngine(newTestEngineOpts(dir, "s8"))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer e.Close()

	if err := e.Set("", []byte("v")); err != ErrEmptyKey {
		t.Fatalf("Set with empty key = %v, want ErrEmptyKey", err)
	}
	if err := e.Set("k", nil); err != ErrEmptyValue {
		t.Fatalf("Set with empty value = %v, want ErrEmptyValue", err)
	}
}

func TestCrossProcessSequenceChangeReloadsToEmpty(t *testing.T) {
	dir := t.TempDir()
	optsA, optsB := newCrossProcessOpts(t, dir, "s9")

	a, err := NewEngine(optsA)
	if err != nil {
		t.Fatalf("NewEngine a: %v", err)
	}
	defer a.Close()
	b, err := NewEngine(optsB)
	if err != nil {
		t.Fatalf("NewEngine b: %v", err)
	}
	defer b.Close()

	if err := a.Set("k", []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	count, err := b.Count()
	if err != nil || count != 1 {
		t.Fatalf("b.Count() before clear = %d, %v, want 1", count, err)
	}

	if err := a.ClearAll(); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}

	count, err = b.Count()
	if err != nil || count != 0 {
		t.Fatalf("b.Count() after a.ClearAll() = %d, %v, want 0", count, err)
	}
}

func TestCrossProcessAppendMergesIncrementally(t *testing.T) {
	dir := t.TempDir()
	optsA, optsB := newCrossProcessOpts(t, dir, "s10")

	a, err := NewEngine(optsA)
	if err != nil {
		t.Fatalf("NewEngine a: %v", err)
	}
	defer a.Close()
	b, err := NewEngine(optsB)
	if err != nil {
		t.Fatalf("NewEngine b: %v", err)
	}
	defer b.Close()

	if err := a.Set("k1", []byte("v1")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := b.Get("k1")
	if err != nil || !ok || string(v) != "v1" {
		t.Fatalf("b.Get(k1) = %q, %v, %v", v, ok, err)
	}

	if err := a.Set("k2", []byte("v2")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err = b.Get("k2")
	if err != nil || !ok || string(v) != "v2" {
		t.Fatalf("b.Get(k2) = %q, %v, %v", v, ok, err)
	}
}

func corrupt(t *testing.T, path string, offset int) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	data[4+offset] ^= 0xFF
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
