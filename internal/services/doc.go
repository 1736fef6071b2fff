// Package services defines the error taxonomy and context carriers shared by
// the worker, batch runner, and persistence layers.
//
// Errors are classified by wrapping them with one of the exported sentinel
// markers (precondition, backend, validation, io, trust). Worker boundaries
// call Details to recover the category and a user-facing message for error
// events, so no raw fault escapes the worker goroutine unclassified.
//
// Context helpers annotate a context.Context with the correlation ID, stage
// name, and batch item index so log lines and events can be tied back to the
// request that produced them.
package services
