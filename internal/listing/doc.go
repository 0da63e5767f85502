// Package listing defines the open listing record model and the identity
// resolver built on top of it.
//
// Records are open field→value mappings; enrichment stages add fields freely
// and absence always means "unknown". The identity key deliberately excludes
// price, walk-minutes, and unit-count so that a physical unit keeps its
// identity across scrapes even when a duplicate group's representative record
// is substituted. The listing key adds price back and exists only to fold
// exact duplicates from a single acquisition.
package listing
