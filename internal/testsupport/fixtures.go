package testsupport

import (
	"path/filepath"
	"testing"

	"sumika/internal/config"
	"sumika/internal/dataset"
	"sumika/internal/listing"
)

// SeedRaw drops a raw listing file for a category into the raw directory.
func SeedRaw(t testing.TB, cfg *config.Config, category string, records []listing.Record) {
	t.Helper()
	path := filepath.Join(cfg.Paths.RawDir, category+".json")
	if err := dataset.Save(path, records); err != nil {
		t.Fatalf("seed raw %s: %v", category, err)
	}
}

// Listing builds a minimal valid record with the given source URL and price.
func Listing(url string, price int64) listing.Record {
	return listing.Record{
		listing.FieldURL:          url,
		listing.FieldPrice:        price,
		listing.FieldBuildingName: "テストマンション",
		listing.FieldLayout:       "2LDK",
		listing.FieldFloorArea:    "55.2",
		listing.FieldAddress:      "東京都港区1-2-3",
		listing.FieldBuildYear:    "2010",
		listing.FieldStation:      "山手線「品川」徒歩5分",
		listing.FieldWalkMinutes:  5,
	}
}
