package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"sumika/internal/cachestore"
	"sumika/internal/config"
	"sumika/internal/dataset"
	"sumika/internal/listing"
	"sumika/internal/logging"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(root, "data")
	cfg.Paths.RawDir = filepath.Join(root, "raw")
	cfg.Paths.CacheDir = filepath.Join(root, "cache")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	return &cfg
}

func writeRaw(t *testing.T, cfg *config.Config, category string, records []listing.Record) {
	t.Helper()
	if err := dataset.Save(filepath.Join(cfg.Paths.RawDir, category+".json"), records); err != nil {
		t.Fatal(err)
	}
}

func TestAcquirerDedupesAndWritesOutput(t *testing.T) {
	cfg := testConfig(t)
	writeRaw(t, cfg, "mansion", []listing.Record{
		{listing.FieldURL: "https://a", listing.FieldPrice: 8200, listing.FieldBuildingName: "パークハウス"},
		{listing.FieldURL: "https://a2", listing.FieldPrice: 8200, listing.FieldBuildingName: "パークハウス"},
	})

	out := filepath.Join(cfg.Paths.DataDir, "mansion.incoming.json")
	acquirer := NewAcquirer(cfg, logging.NewNop())
	if err := acquirer.Run(context.Background(), Request{Category: "mansion", Output: out}); err != nil {
		t.Fatal(err)
	}

	records, err := dataset.Load(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("expected duplicates folded to 1 record, got %d", len(records))
	}
	if count, _ := records[0].IntField(listing.FieldDuplicateCount); count != 2 {
		t.Fatalf("duplicate_count = %d", count)
	}
}

func TestAcquirerEmptyDatasetFails(t *testing.T) {
	cfg := testConfig(t)
	writeRaw(t, cfg, "mansion", nil)

	acquirer := NewAcquirer(cfg, logging.NewNop())
	err := acquirer.Run(context.Background(), Request{
		Category: "mansion",
		Output:   filepath.Join(cfg.Paths.DataDir, "mansion.incoming.json"),
	})
	if !errors.Is(err, ErrNoRecords) {
		t.Fatalf("expected ErrNoRecords, got %v", err)
	}
}

func TestGeocoderUsesCacheBeforeService(t *testing.T) {
	cfg := testConfig(t)

	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode([]map[string]any{
			{"geometry": map[string]any{"coordinates": []float64{139.74, 35.62}}},
		})
	}))
	defer server.Close()
	cfg.Geocode.BaseURL = server.URL

	records := []listing.Record{
		{listing.FieldURL: "https://a", listing.FieldAddress: "東京都港区1-2-3"},
	}
	geocoder := NewGeocoder(cfg, logging.NewNop())
	out, err := geocoder.Transform(context.Background(), records)
	if err != nil {
		t.Fatal(err)
	}
	if out[0][fieldLatitude] != 35.62 || out[0][fieldLongitude] != 139.74 {
		t.Fatalf("coordinates = %v,%v", out[0][fieldLatitude], out[0][fieldLongitude])
	}
	if calls != 1 {
		t.Fatalf("service calls = %d", calls)
	}

	// Second pass over the same address must be served from the cache.
	again := NewGeocoder(cfg, logging.NewNop())
	if _, err := again.Transform(context.Background(), []listing.Record{
		{listing.FieldURL: "https://b", listing.FieldAddress: "東京都港区1-2-3"},
	}); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("cache miss on repeated address, calls = %d", calls)
	}
}

func TestGeocoderLookupFailureLeavesRecordUnchanged(t *testing.T) {
	cfg := testConfig(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[]"))
	}))
	defer server.Close()
	cfg.Geocode.BaseURL = server.URL

	geocoder := NewGeocoder(cfg, logging.NewNop())
	out, err := geocoder.Transform(context.Background(), []listing.Record{
		{listing.FieldURL: "https://a", listing.FieldAddress: "どこにもない住所"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := out[0][fieldLatitude]; ok {
		t.Fatal("failed lookup must not annotate the record")
	}
}

func TestUnitCounterSeedsAndReusesCache(t *testing.T) {
	cfg := testConfig(t)
	known := listing.Record{
		listing.FieldURL:          "https://a",
		listing.FieldBuildingName: "パークハウス",
		listing.FieldAddress:      "東京都港区1-2-3",
		listing.FieldTotalFloors:  10,
		listing.FieldOwnership:    "所有権",
		listing.FieldUnitCount:    48,
	}
	unknown := listing.Record{
		listing.FieldURL:          "https://b",
		listing.FieldBuildingName: "パークハウス",
		listing.FieldAddress:      "東京都港区1-2-3 5階",
		listing.FieldTotalFloors:  10,
		listing.FieldOwnership:    "所有権",
	}

	counter := NewUnitCounter(cfg, logging.NewNop())
	out, err := counter.Transform(context.Background(), []listing.Record{known, unknown})
	if err != nil {
		t.Fatal(err)
	}
	// Same building key after floor normalization: the seeded count applies.
	if count, _ := out[1].IntField(listing.FieldUnitCount); count != 48 {
		t.Fatalf("unit_count = %d, want seeded 48", count)
	}
}

func TestValuerWritesDeltaNotCanonicalCache(t *testing.T) {
	cfg := testConfig(t)

	valuer := NewValuer(cfg, logging.NewNop())
	_, err := valuer.Transform(context.Background(), []listing.Record{
		{listing.FieldURL: "https://a", listing.FieldPrice: 8200, listing.FieldBuildYear: 2010},
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(CachePath(cfg, StageValuation)); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("parallel stage must not write the canonical cache")
	}
	delta, err := cachestore.LoadDelta(DeltaPath(cfg, StageValuation))
	if err != nil {
		t.Fatal(err)
	}
	if len(delta) != 1 {
		t.Fatalf("delta entries = %d", len(delta))
	}
}

func TestCommuteEstimatorIsDeterministic(t *testing.T) {
	cfg := testConfig(t)
	cfg.Commute.Destinations = []string{"東京"}

	record := func() listing.Record {
		return listing.Record{
			listing.FieldURL:         "https://a",
			listing.FieldStation:     "山手線「品川」徒歩5分",
			listing.FieldWalkMinutes: 5,
		}
	}

	estimator := NewCommuteEstimator(cfg, logging.NewNop())
	first, err := estimator.Transform(context.Background(), []listing.Record{record()})
	if err != nil {
		t.Fatal(err)
	}
	second, err := estimator.Transform(context.Background(), []listing.Record{record()})
	if err != nil {
		t.Fatal(err)
	}
	key := fieldCommutePrefix + "東京"
	if first[0][key] != second[0][key] {
		t.Fatal("commute estimate not stable across runs")
	}
}

func TestHazardMapperIsDeterministic(t *testing.T) {
	mapper := NewHazardMapper(logging.NewNop())
	record := func() listing.Record {
		return listing.Record{listing.FieldURL: "https://a", listing.FieldAddress: "東京都港区1-2-3"}
	}
	first, err := mapper.Transform(context.Background(), []listing.Record{record()})
	if err != nil {
		t.Fatal(err)
	}
	second, err := mapper.Transform(context.Background(), []listing.Record{record()})
	if err != nil {
		t.Fatal(err)
	}
	if first[0][fieldHazardQuake] != second[0][fieldHazardQuake] {
		t.Fatal("hazard rank not stable across runs")
	}
}

func TestNewHandlerCoversEveryStage(t *testing.T) {
	cfg := testConfig(t)
	for _, stage := range Stages() {
		handler, err := NewHandler(stage, cfg, logging.NewNop())
		if err != nil {
			t.Fatalf("%s: %v", stage, err)
		}
		if handler.Name() != stage {
			t.Fatalf("handler for %s reports name %s", stage, handler.Name())
		}
	}
	if _, err := NewHandler("bogus", cfg, logging.NewNop()); err == nil {
		t.Fatal("unknown stage must fail")
	}
}
