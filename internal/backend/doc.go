// Package backend declares the opaque signal-processing seam the worker
// drives. The orchestration core only ever invokes these operations; it
// never reimplements the numerical algorithms behind them.
//
// Parameter structs live here so every caller (worker requests, batch specs,
// CLI flags) validates against one set of rules before dispatch.
package backend
