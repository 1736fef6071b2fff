// Package batch drives a preconfigured stage sequence over a collection of
// input recordings using the worker's stage primitives.
//
// Failures are isolated per item: one bad recording never aborts the run.
// Cancellation is cooperative and polled only at item boundaries. Exactly
// one terminal summary is emitted per run, whether it completes, is
// canceled, or fails during setup before any item starts.
//
// Per-item outcomes are persisted to a SQLite results database in the
// output directory so reports survive the process, and the directory is
// held under a file lock for the duration of a run to keep concurrent
// batches off the same output tree.
package batch
