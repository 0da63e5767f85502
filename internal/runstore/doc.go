// Package runstore persists the pipeline's run history and the small
// metadata artifact handed between split execution units.
//
// The SQLite ledger records every run and its per-stage outcomes for status
// queries and auditing. The metadata artifact is a JSON file produced once by
// the acquiring unit and consumed exactly once by the enriching unit.
package runstore
