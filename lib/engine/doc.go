// Package engine implements the storage core of skv: an mmap-backed,
// crash-safe, cross-process key-value store. It owns the on-disk file
// layout, the append-log write path, compaction ("full writeback"),
// growth policy, and CRC/sequence-based recovery.
//
// The package focuses on:
//   - A memory-mapped, append-only data file paired with a fixed-size
//     meta file that carries a CRC digest, a monotonic sequence number,
//     and a "last confirmed" rollback point.
//   - Cross-process coordination through advisory file locks combined
//     with in-memory sequence/CRC comparison, so that concurrent
//     processes sharing the same identifier observe each other's writes
//     without a shared-memory IPC channel.
//   - Optional AES-CTR encryption of the record stream, transparent to
//     callers, refreshed with a random IV on every full rewrite.
//
// Key Components:
//
//   - Engine: the central structure. It owns the in-memory dictionary
//     (last-value-wins over the append log), the mapped file pair, the
//     meta record, an optional cipher, and the advisory lock manager.
//     All public operations acquire the engine's mutex first, mutating
//     operations additionally acquire the exclusive inter-process lock.
//
//   - Meta: an in-memory mirror of the meta file header (§ metafile
//     wire format). Version progression is monotonic: writing any
//     field that requires a newer format bumps the version to the
//     minimum required (Sequence -> ActualSize -> RandomIV).
//
//   - FilePair: owns the two memory-mapped regions (data + meta),
//     growable in place, always a positive multiple of the page size.
//
//   - Cipher: a keyed AES-CTR stream. Because CTR keystream bytes at
//     offset i depend only on i, resuming an interrupted stream after
//     a fresh load is just a matter of decrypting sequentially from
//     offset 0 - no explicit fast-forward bookkeeping is needed.
//
// Persistence Format: see the record layout documented in codec.go
// and the meta file wire format documented in meta.go.
//
// Concurrency: an Engine is safe for concurrent use by multiple
// goroutines in one process, and for concurrent use by multiple
// processes mapping the same files, coordinated via the exclusive/
// shared advisory locks in lib/filelock and the sequence/CRC protocol
// in checkLoadData.
package engine
