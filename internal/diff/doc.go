// Package diff classifies the current dataset against the previous run's by
// identity key and maintains per-listing price history.
//
// Classification is exhaustive and exclusive over the union of identity keys:
// every key lands in exactly one of new, removed, updated, or unchanged.
// Price history is append-only; an updated record gains exactly one entry and
// prior entries are carried forward verbatim from the previous record.
package diff
