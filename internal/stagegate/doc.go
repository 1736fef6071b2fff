// Package stagegate enforces the pipeline dependency order.
//
// The gate is stateless: whether a stage may run is derived purely from
// which session fields are populated (dataset, decomposition, epochs), never
// from separate bookkeeping flags that could drift. Each operation also
// carries an enumerated effect describing whether it replaces, mutates,
// derives from, or only reads the working dataset; the worker consults the
// effect to decide what gets recorded in lineage.
package stagegate
