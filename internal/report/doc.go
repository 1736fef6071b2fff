// Package report renders lineage audits and batch results as text tables
// for the CLI.
package report
