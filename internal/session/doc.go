// Package session owns the working state of one analysis pipeline: the
// dataset under study, artifacts derived from it, and the append-only
// lineage log of every mutating operation.
//
// State is write-owned by the worker goroutine. Host-side consumers only see
// snapshots delivered through events, so every type here exposes deep-copy
// helpers. Treat this package as the single source of truth for pipeline
// state vocabulary; when you add a new operation, extend the Operation enum
// here and its gate rules in internal/stagegate.
package session
