// Package dataset persists listing datasets on disk and drives their
// run-over-run lifecycle.
//
// Each property category owns a current file and a previous file; the
// previous file is always the prior run's current, rotated only after a
// successful acquisition so a fatal run never destroys the diff baseline.
// All writes go through atomic replacement, and the Store exposes pre-stage
// backup/restore so a stage that emits a structurally invalid dataset can be
// rolled back without propagating a half-written file.
package dataset
