// Package enrich holds the stage handler contract, the enrichment merge
// engine, and the enrichers themselves.
//
// Enrichers are deliberately thin: the interesting machinery is how their
// outputs are reconciled. Parallel stages work against private dataset
// copies; Merge folds those copies back onto the base, matching records by
// source URL and resolving field conflicts by a fixed stage precedence
// order rather than completion order.
package enrich
