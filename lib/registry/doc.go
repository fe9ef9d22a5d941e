// Package registry provides the process-wide identifier -> engine map
// described in the core engine's design notes: armed by Initialize,
// drained by OnExit/Close, backed by a github.com/puzpuzpuz/xsync/v3
// concurrent map exactly as the corpus uses xsync.MapOf for its own
// shard and connection maps.
//
// Thread Safety:
//
//	Registry is safe for concurrent use. Get is re-entrant: concurrent
//	callers requesting the same identifier for the first time race to
//	construct an engine, and the loser's instance is discarded in favor
//	of the winner's, matching "re-entrant get returns the existing
//	instance".
package registry
