// Package pipeline schedules the run: a fixed phase graph interpreted once
// per run, with each stage spawned as its own OS process.
//
// Sequential phases serialize stages that read-modify-write a shared cache
// file; parallel phases run stages that only read shared state or write
// private dataset copies, reconciled after the phase barrier. Races are
// avoided by phase construction, not locks, which is why the graph is
// validated before anything runs.
package pipeline
