// Package skv is an embedded, persistent, crash-safe key-value store
// for concurrent access by one or more processes on the same host.
// Keys are non-empty strings; values are typed scalars, opaque byte
// buffers, UTF-8 strings, or ordered sequences of strings. The store is
// backed by a memory-mapped append log with periodic compaction and
// optional AES-CTR encryption.
//
// Key Components:
//
//   - lib/engine: the storage core -- file pair, meta record, cipher,
//     append buffer, codec, and the engine state machine that owns the
//     in-memory dictionary and the load/recover/compact/sync cycle.
//   - lib/filelock: the advisory lock manager backing cross-process
//     coordination.
//   - lib/registry: the process-wide identifier -> engine map.
//   - lib/ident: identifier-to-filename sanitization.
//   - lib/store: the typed accessor surface (SetInt32/GetString/...).
//
// Usage Example:
//
//	if err := skv.Initialize("/var/lib/myapp/kv"); err != nil {
//	    log.Fatal(err)
//	}
//	defer skv.OnExit()
//
//	s, err := skv.Open("settings", skv.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	if err := s.SetInt32("retries", 3); err != nil {
//	    log.Fatal(err)
//	}
//	n, err := s.GetInt32("retries", 0)
//
// Thread Safety:
//
//	A Store is safe for concurrent use by multiple goroutines, and for
//	concurrent use by multiple OS processes mapping the same files
//	(unless SingleProcessMode is set), coordinated through the advisory
//	lock hierarchy and the sequence/CRC change-detection protocol
//	documented on lib/engine.
package skv
