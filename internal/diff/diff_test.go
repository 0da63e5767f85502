package diff

import (
	"testing"

	"sumika/internal/listing"
)

func record(name string, price int64) listing.Record {
	return listing.Record{
		listing.FieldURL:          "https://example.com/" + name,
		listing.FieldBuildingName: name,
		listing.FieldLayout:       "2LDK",
		listing.FieldFloorArea:    "55.2",
		listing.FieldAddress:      "東京都港区1-2-3",
		listing.FieldBuildYear:    "2010",
		listing.FieldStation:      "「品川」徒歩5分",
		listing.FieldPrice:        price,
	}
}

func TestFirstRunClassifiesEverythingNew(t *testing.T) {
	current := []listing.Record{record("A", 8200), record("B", 9100)}

	result := Diff(current, nil, "2026-08-31")
	if len(result.New) != 2 || len(result.Removed) != 0 || len(result.Updated) != 0 || len(result.Unchanged) != 0 {
		t.Fatalf("unexpected partition: %+v", result.Counts())
	}
	for _, rec := range result.Records {
		history := HistoryOf(rec)
		if len(history) != 0 {
			t.Fatal("first run must initialize empty history")
		}
		if _, ok := rec[listing.FieldPriceHistory]; !ok {
			t.Fatal("history field must be initialized")
		}
	}
}

func TestPriceOnlyChangeIsUpdatedWithHistoryEntry(t *testing.T) {
	previous := []listing.Record{record("X", 8200)}
	current := []listing.Record{record("X", 8500)}

	result := Diff(current, previous, "2026-08-31")
	if len(result.Updated) != 1 {
		t.Fatalf("expected one updated key, got %+v", result.Counts())
	}
	history := HistoryOf(result.Records[0])
	if len(history) != 1 {
		t.Fatalf("history length = %d", len(history))
	}
	if history[0].Price != 8500 || history[0].Date != "2026-08-31" {
		t.Fatalf("history entry = %+v", history[0])
	}
}

func TestHistoryIsAppendOnlyAcrossRuns(t *testing.T) {
	run1 := Diff([]listing.Record{record("X", 8200)}, nil, "2026-08-29")
	run2 := Diff([]listing.Record{record("X", 8500)}, run1.Records, "2026-08-30")
	run3 := Diff([]listing.Record{record("X", 8300)}, run2.Records, "2026-08-31")

	history := HistoryOf(run3.Records[0])
	if len(history) != 2 {
		t.Fatalf("history length = %d", len(history))
	}
	if history[0].Price != 8500 || history[1].Price != 8300 {
		t.Fatalf("prior entries mutated: %+v", history)
	}
}

func TestUnchangedCarriesHistoryForward(t *testing.T) {
	run1 := Diff([]listing.Record{record("X", 8200)}, nil, "2026-08-29")
	run2 := Diff([]listing.Record{record("X", 8500)}, run1.Records, "2026-08-30")
	run3 := Diff([]listing.Record{record("X", 8500)}, run2.Records, "2026-08-31")

	if len(run3.Unchanged) != 1 {
		t.Fatalf("expected unchanged, got %+v", run3.Counts())
	}
	history := HistoryOf(run3.Records[0])
	if len(history) != 1 || history[0].Price != 8500 {
		t.Fatalf("history not carried forward: %+v", history)
	}
}

func TestPartitionIsExhaustiveAndExclusive(t *testing.T) {
	previous := []listing.Record{record("A", 8200), record("B", 9100), record("C", 7000)}
	current := []listing.Record{record("A", 8200), record("B", 9500), record("D", 6000)}

	result := Diff(current, previous, "2026-08-31")

	all := make(map[string]int)
	for _, key := range result.New {
		all[key]++
	}
	for _, key := range result.Removed {
		all[key]++
	}
	for _, key := range result.Updated {
		all[key]++
	}
	for _, key := range result.Unchanged {
		all[key]++
	}

	union := make(map[string]bool)
	for _, rec := range append(append([]listing.Record{}, current...), previous...) {
		union[listing.IdentityKey(rec)] = true
	}
	if len(all) != len(union) {
		t.Fatalf("partition covers %d keys, union has %d", len(all), len(union))
	}
	for key, n := range all {
		if n != 1 {
			t.Fatalf("key %q classified %d times", key, n)
		}
	}

	counts := result.Counts()
	if counts.New != 1 || counts.Removed != 1 || counts.Updated != 1 || counts.Unchanged != 1 {
		t.Fatalf("counts = %+v", counts)
	}
	if !counts.HasChanges() {
		t.Fatal("changes present but HasChanges is false")
	}
}

func TestDiffDoesNotMutateInputs(t *testing.T) {
	current := []listing.Record{record("X", 8500)}
	previous := []listing.Record{record("X", 8200)}
	Diff(current, previous, "2026-08-31")

	if _, ok := current[0][listing.FieldPriceHistory]; ok {
		t.Fatal("input record mutated")
	}
}

func TestHistoryOfToleratesDecodedJSON(t *testing.T) {
	rec := listing.Record{
		listing.FieldPriceHistory: []any{
			map[string]any{"date": "2026-08-30", "price": float64(8200)},
		},
	}
	history := HistoryOf(rec)
	if len(history) != 1 || history[0].Price != 8200 {
		t.Fatalf("decoded history = %+v", history)
	}
}
