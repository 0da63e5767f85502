package enrich

import (
	"reflect"
	"testing"

	"sumika/internal/listing"
	"sumika/internal/logging"
)

func baseRecords() []listing.Record {
	return []listing.Record{
		{listing.FieldURL: "https://a", listing.FieldPrice: int64(8200)},
		{listing.FieldURL: "https://b", listing.FieldPrice: int64(9100)},
	}
}

func TestMergeNoCopiesReturnsBase(t *testing.T) {
	base := baseRecords()
	merged, conflicts := Merge(base, nil, logging.NewNop())
	if len(conflicts) != 0 {
		t.Fatalf("conflicts = %d", len(conflicts))
	}
	if !reflect.DeepEqual(merged, base) {
		t.Fatal("merge with no copies must return base")
	}
}

func TestMergeIdenticalCopyReturnsBase(t *testing.T) {
	base := baseRecords()
	copies := map[string][]listing.Record{
		StageHazard: {base[0].Clone(), base[1].Clone()},
	}
	merged, conflicts := Merge(base, copies, logging.NewNop())
	if len(conflicts) != 0 {
		t.Fatalf("conflicts = %d", len(conflicts))
	}
	if !reflect.DeepEqual(merged, base) {
		t.Fatal("copy identical to base must contribute nothing")
	}
}

func TestMergeTakesChangedFieldsFromEachCopy(t *testing.T) {
	base := baseRecords()

	hazard := base[0].Clone()
	hazard[fieldHazardQuake] = int64(3)
	commute := base[0].Clone()
	commute[fieldCommutePrefix+"東京"] = int64(25)

	merged, conflicts := Merge(base, map[string][]listing.Record{
		StageHazard:  {hazard, base[1].Clone()},
		StageCommute: {commute, base[1].Clone()},
	}, logging.NewNop())

	if len(conflicts) != 0 {
		t.Fatalf("conflicts = %d", len(conflicts))
	}
	if merged[0][fieldHazardQuake] != int64(3) {
		t.Fatal("hazard change lost")
	}
	if merged[0][fieldCommutePrefix+"東京"] != int64(25) {
		t.Fatal("commute change lost")
	}
	if !reflect.DeepEqual(merged[1], base[1]) {
		t.Fatal("unchanged record altered")
	}
}

func TestMergeConflictResolvedByPrecedenceNotOrder(t *testing.T) {
	base := baseRecords()

	fromValuation := base[0].Clone()
	fromValuation[fieldValuation] = int64(9000)
	fromHazard := base[0].Clone()
	fromHazard[fieldValuation] = int64(7000)

	copies := map[string][]listing.Record{
		StageValuation: {fromValuation},
		StageHazard:    {fromHazard},
	}

	merged, conflicts := Merge(base, copies, logging.NewNop())
	if merged[0][fieldValuation] != int64(9000) {
		t.Fatalf("winner = %v, want the higher-precedence valuation copy", merged[0][fieldValuation])
	}
	if len(conflicts) != 1 {
		t.Fatalf("conflicts = %d", len(conflicts))
	}
	if conflicts[0].Winner != StageValuation || conflicts[0].Loser != StageHazard {
		t.Fatalf("conflict audit = %+v", conflicts[0])
	}

	// Same outcome regardless of which copy "arrived" — map iteration order
	// varies run to run, so repeated merges exercise both orders.
	for i := 0; i < 10; i++ {
		again, _ := Merge(base, copies, logging.NewNop())
		if again[0][fieldValuation] != int64(9000) {
			t.Fatal("merge outcome depends on iteration order")
		}
	}
}

func TestMergeAbsentCopyContributesNothing(t *testing.T) {
	base := baseRecords()

	hazard := base[0].Clone()
	hazard[fieldHazardQuake] = int64(2)

	// The commute stage failed: its copy only covers record b.
	merged, _ := Merge(base, map[string][]listing.Record{
		StageHazard:  {hazard},
		StageCommute: {base[1].Clone()},
	}, logging.NewNop())

	if merged[0][fieldHazardQuake] != int64(2) {
		t.Fatal("surviving copy's change lost")
	}
	if !reflect.DeepEqual(merged[1], base[1]) {
		t.Fatal("record untouched by all copies must equal base")
	}
}

func TestMergeMatchesByURLNotPosition(t *testing.T) {
	base := baseRecords()

	// Copy in reverse order; changes must still land on the right record.
	reversed := base[1].Clone()
	reversed[fieldHazardQuake] = int64(5)
	merged, _ := Merge(base, map[string][]listing.Record{
		StageHazard: {reversed, base[0].Clone()},
	}, logging.NewNop())

	if _, ok := merged[0][fieldHazardQuake]; ok {
		t.Fatal("change applied to wrong record")
	}
	if merged[1][fieldHazardQuake] != int64(5) {
		t.Fatal("change not applied to matching record")
	}
}

func TestRankIsATotalOrder(t *testing.T) {
	seen := make(map[int]string)
	for _, stage := range Stages() {
		rank := Rank(stage)
		if prior, dup := seen[rank]; dup {
			t.Fatalf("stages %q and %q share rank %d", prior, stage, rank)
		}
		seen[rank] = stage
	}
	if Rank("nonexistent") <= Rank(StageCommute) {
		t.Fatal("unknown stages must rank below every known stage")
	}
}
