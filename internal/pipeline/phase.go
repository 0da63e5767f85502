package pipeline

import (
	"fmt"
	"time"

	"sumika/internal/enrich"
)

// Phase names used by the default graph.
const (
	PhaseAcquire     = "acquire"
	PhaseCacheEnrich = "cache-enrich"
	PhaseEnrich      = "enrich"
)

// StageSpec describes one stage's place in the graph.
type StageSpec struct {
	Name string
	// Caches lists the canonical cache files this stage writes. Two stages
	// sharing a cache may never occupy the same parallel phase.
	Caches []string
	// DeltaCache names a cache domain this stage contributes to through a
	// delta file, reconciled by the scheduler after the phase barrier.
	// Delta writers are safe in parallel phases.
	DeltaCache string
	// Timeout overrides the configured per-stage timeout when non-zero.
	Timeout time.Duration
	// Fatal aborts the run when this stage fails for the primary category.
	Fatal bool
	// PrivateCopy makes the stage write a private dataset copy instead of
	// the current dataset, merged after the phase barrier.
	PrivateCopy bool
}

// Phase is a named group of stages separated from its neighbors by a
// synchronization barrier.
type Phase struct {
	Name     string
	Parallel bool
	Stages   []StageSpec
}

// Graph is the fixed phase sequence a run interprets.
type Graph struct {
	Phases []Phase
}

// Validate rejects graphs that would let two stages write one canonical
// cache file concurrently.
func (g Graph) Validate() error {
	for _, phase := range g.Phases {
		if !phase.Parallel {
			continue
		}
		writers := make(map[string]string)
		for _, spec := range phase.Stages {
			for _, cache := range spec.Caches {
				if prior, ok := writers[cache]; ok {
					return fmt.Errorf("phase %q: stages %q and %q both write cache %q in parallel",
						phase.Name, prior, spec.Name, cache)
				}
				writers[cache] = spec.Name
			}
		}
	}
	return nil
}

// DefaultGraph is the production phase graph: sequential acquisition, then
// the cache-owning enrichers one at a time, then the read-only and
// delta-writing enrichers in parallel.
func DefaultGraph() Graph {
	return Graph{Phases: []Phase{
		{
			Name: PhaseAcquire,
			Stages: []StageSpec{
				{Name: enrich.StageAcquire, Fatal: true},
			},
		},
		{
			Name: PhaseCacheEnrich,
			Stages: []StageSpec{
				{Name: enrich.StageGeocode, Caches: []string{"geocode"}},
				{Name: enrich.StageUnitCount, Caches: []string{"unitcount"}},
			},
		},
		{
			Name:     PhaseEnrich,
			Parallel: true,
			Stages: []StageSpec{
				{Name: enrich.StageHazard, PrivateCopy: true},
				{Name: enrich.StageCommute, PrivateCopy: true},
				{Name: enrich.StageValuation, PrivateCopy: true, DeltaCache: "valuation"},
			},
		},
	}}
}
