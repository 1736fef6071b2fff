// Package memdsp is an in-memory implementation of the backend seam.
//
// It performs only the structural transforms the orchestration layer needs
// to be runnable and testable: JSON dataset IO, windowed epoch extraction,
// epoch averaging, and shape-preserving stand-ins for the numerical stages.
// It makes no claim of signal-processing correctness; production deployments
// swap in a real engine behind backend.Interface.
package memdsp
