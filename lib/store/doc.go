// Package store provides the typed accessor surface over the byte-level
// engine: setInt32/getString and friends, serializing scalars with a
// varint/protobuf-style codec before delegating to the engine's
// byte-level Set/Get/Remove.
//
// The package focuses on:
//   - A unified interface (IStore) for typed key-value operations,
//     independent of the encryption or growth policy underneath.
//   - Scalar/byte/string/string-slice codecs, kept separate from the
//     engine's own record codec since the engine only ever sees opaque
//     byte values.
//
// Key Components:
//
//   - IStore Interface: the core abstraction defining typed operations
//     against a store. The interface methods return custom Error types
//     that provide detailed information about operation results.
//
//   - Error System: a structured error reporting mechanism using typed
//     error codes and descriptive messages, so callers can distinguish
//     "key not found" from "stored bytes don't decode as the requested
//     type" from an underlying engine failure.
//
// This interface-driven approach allows applications to:
//   - Treat the store as a typed map without hand-rolling scalar
//     encoding at every call site.
//   - Handle errors in a consistent, type-safe manner.
package store
