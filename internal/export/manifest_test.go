package export

import (
	"testing"

	"sumika/internal/listing"
	"sumika/internal/logging"
	"sumika/internal/testsupport"
)

func TestManifestTracksExportedFingerprint(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	records := []listing.Record{
		testsupport.Listing("https://example.com/1", 52_000_000),
		testsupport.Listing("https://example.com/2", 38_500_000),
	}

	manifest, err := OpenManifest(cfg, logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	upToDate, err := manifest.UpToDate("mansion", records)
	if err != nil {
		t.Fatal(err)
	}
	if upToDate {
		t.Fatal("empty manifest should not report up to date")
	}

	if err := manifest.MarkExported("mansion", records); err != nil {
		t.Fatal(err)
	}

	upToDate, err = manifest.UpToDate("mansion", records)
	if err != nil {
		t.Fatal(err)
	}
	if !upToDate {
		t.Fatal("unchanged dataset should be up to date after export")
	}
}

func TestManifestDetectsDatasetChange(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	before := []listing.Record{testsupport.Listing("https://example.com/1", 52_000_000)}
	after := []listing.Record{testsupport.Listing("https://example.com/1", 49_800_000)}

	manifest, err := OpenManifest(cfg, logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if err := manifest.MarkExported("mansion", before); err != nil {
		t.Fatal(err)
	}

	upToDate, err := manifest.UpToDate("mansion", after)
	if err != nil {
		t.Fatal(err)
	}
	if upToDate {
		t.Fatal("changed dataset should not be up to date")
	}
}

func TestManifestSurvivesReopen(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	records := []listing.Record{testsupport.Listing("https://example.com/1", 52_000_000)}

	manifest, err := OpenManifest(cfg, logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if err := manifest.MarkExported("mansion", records); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenManifest(cfg, logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	upToDate, err := reopened.UpToDate("mansion", records)
	if err != nil {
		t.Fatal(err)
	}
	if !upToDate {
		t.Fatal("manifest entry should persist across reopen")
	}
}
