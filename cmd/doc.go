// Package cmd implements the command-line interface for skv, an embedded
// key-value store. It provides a hierarchical command structure for
// operating directly on a store rooted at a configurable directory.
//
// The package is organized into subpackages:
//
//   - kv: commands for key-value store operations (get, set, del, etc.)
//   - util: shared utilities for configuration (internal use)
//
// See skv --help for a list of all commands.
package cmd
