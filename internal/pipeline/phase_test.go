package pipeline

import (
	"testing"

	"sumika/internal/enrich"
)

func TestDefaultGraphValidates(t *testing.T) {
	if err := DefaultGraph().Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestValidateRejectsParallelCacheWriters(t *testing.T) {
	graph := Graph{Phases: []Phase{
		{
			Name:     "bad",
			Parallel: true,
			Stages: []StageSpec{
				{Name: enrich.StageGeocode, Caches: []string{"geocode"}},
				{Name: enrich.StageUnitCount, Caches: []string{"geocode"}},
			},
		},
	}}
	if err := graph.Validate(); err == nil {
		t.Fatal("two writers of one cache in a parallel phase must be rejected")
	}
}

func TestValidateAllowsSequentialCacheWriters(t *testing.T) {
	graph := Graph{Phases: []Phase{
		{
			Name: "ok",
			Stages: []StageSpec{
				{Name: enrich.StageGeocode, Caches: []string{"geocode"}},
				{Name: enrich.StageUnitCount, Caches: []string{"geocode"}},
			},
		},
	}}
	if err := graph.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestValidateAllowsParallelDeltaWriters(t *testing.T) {
	graph := Graph{Phases: []Phase{
		{
			Name:     "ok",
			Parallel: true,
			Stages: []StageSpec{
				{Name: enrich.StageValuation, PrivateCopy: true, DeltaCache: "valuation"},
				{Name: enrich.StageHazard, PrivateCopy: true, DeltaCache: "valuation"},
			},
		},
	}}
	if err := graph.Validate(); err != nil {
		t.Fatal(err)
	}
}
