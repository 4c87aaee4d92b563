// Package checkpoint houses concrete implementations of core.CheckpointStore
// plus the branch operation that forks a run from a saved turn.
//
// The canonical store interface lives in the core package to keep domain
// contracts central. This package provides the versioned JSON artifact format,
// a directory-per-run FileStore whose writes are atomic from a reader's
// perspective (write-then-rename), and a volatile MemoryStore for tests and
// embedding. Add additional backends (object stores, databases) here without
// changing any calling code — only the wiring layer decides which
// implementation to instantiate.
package checkpoint
