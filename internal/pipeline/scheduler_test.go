package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"sumika/internal/config"
	"sumika/internal/dataset"
	"sumika/internal/enrich"
	"sumika/internal/listing"
	"sumika/internal/logging"
	"sumika/internal/notifications"
	"sumika/internal/runstore"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(root, "data")
	cfg.Paths.RawDir = filepath.Join(root, "raw")
	cfg.Paths.CacheDir = filepath.Join(root, "cache")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	cfg.Categories.Primary = "mansion"
	cfg.Categories.Secondary = []string{"house"}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	return &cfg
}

func seedRaw(t *testing.T, cfg *config.Config, category string, records []listing.Record) {
	t.Helper()
	if err := dataset.Save(filepath.Join(cfg.Paths.RawDir, category+".json"), records); err != nil {
		t.Fatal(err)
	}
}

func rawRecords(urls ...string) []listing.Record {
	records := make([]listing.Record, 0, len(urls))
	for i, url := range urls {
		records = append(records, listing.Record{
			listing.FieldURL:          url,
			listing.FieldPrice:        8000 + i,
			listing.FieldBuildingName: "ビル" + url,
			listing.FieldAddress:      "東京都港区1-2-3",
		})
	}
	return records
}

// scriptRunner simulates stages in-process: acquire copies the raw drop,
// other stages mark every record with their name. Stages listed in fail
// error out; stages listed in corrupt write garbage output.
type scriptRunner struct {
	cfg     *config.Config
	fail    map[string]bool
	corrupt map[string]bool

	mu    sync.Mutex
	calls []string
}

func (r *scriptRunner) RunStage(ctx context.Context, stage string, req enrich.Request) error {
	r.mu.Lock()
	r.calls = append(r.calls, req.Category+"/"+stage)
	r.mu.Unlock()

	if r.fail[stage] {
		return errors.New(stage + " exploded")
	}
	if r.corrupt[stage] {
		return os.WriteFile(req.Output, []byte("{broken"), 0o644)
	}

	if stage == enrich.StageAcquire {
		records, err := dataset.Load(filepath.Join(r.cfg.Paths.RawDir, req.Category+".json"))
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return enrich.ErrNoRecords
		}
		return dataset.Save(req.Output, listing.Dedupe(records))
	}

	records, err := dataset.Load(req.Input)
	if err != nil {
		return err
	}
	for _, record := range records {
		record["mark_"+stage] = true
	}
	return dataset.Save(req.Output, records)
}

func newTestScheduler(t *testing.T, cfg *config.Config, runner StageRunner) *Scheduler {
	t.Helper()
	scheduler, err := New(cfg, DefaultGraph(), runner, notifications.NewService(cfg), nil, logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	return scheduler
}

func TestFullRunEnrichesAndCountsChanges(t *testing.T) {
	cfg := testConfig(t)
	seedRaw(t, cfg, "mansion", rawRecords("https://a", "https://b"))
	seedRaw(t, cfg, "house", rawRecords("https://h"))

	runner := &scriptRunner{cfg: cfg}
	scheduler := newTestScheduler(t, cfg, runner)

	report, err := scheduler.Run(context.Background(), ModeFull)
	if err != nil {
		t.Fatal(err)
	}
	if !report.HasChanges {
		t.Fatal("first run must report changes")
	}
	if report.Counts["mansion"].New != 2 || report.Counts["house"].New != 1 {
		t.Fatalf("counts = %+v", report.Counts)
	}

	store := dataset.NewStore(cfg.Paths.DataDir, logging.NewNop())
	records, err := store.LoadCurrent("mansion")
	if err != nil {
		t.Fatal(err)
	}
	for _, stage := range []string{enrich.StageGeocode, enrich.StageUnitCount, enrich.StageHazard, enrich.StageCommute, enrich.StageValuation} {
		if records[0]["mark_"+stage] != true {
			t.Fatalf("stage %s enrichment missing from merged dataset", stage)
		}
	}
	if len(report.FailedStages()) != 0 {
		t.Fatalf("failed stages: %v", report.FailedStages())
	}
}

func TestPrimaryAcquisitionFailureIsFatal(t *testing.T) {
	cfg := testConfig(t)
	// No raw drop for the primary category.
	seedRaw(t, cfg, "house", rawRecords("https://h"))

	runner := &scriptRunner{cfg: cfg}
	scheduler := newTestScheduler(t, cfg, runner)

	if _, err := scheduler.Run(context.Background(), ModeFull); err == nil {
		t.Fatal("expected fatal run")
	}

	// The previous dataset must be untouched: nothing was ever rotated.
	store := dataset.NewStore(cfg.Paths.DataDir, logging.NewNop())
	if _, err := os.Stat(store.CurrentPath("mansion")); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("fatal acquisition must not create a current dataset")
	}
}

func TestSecondaryAcquisitionFailureIsSkipped(t *testing.T) {
	cfg := testConfig(t)
	seedRaw(t, cfg, "mansion", rawRecords("https://a"))
	// No raw drop for the secondary category.

	runner := &scriptRunner{cfg: cfg}
	scheduler := newTestScheduler(t, cfg, runner)

	report, err := scheduler.Run(context.Background(), ModeFull)
	if err != nil {
		t.Fatal(err)
	}
	if report.Counts["mansion"].New == 0 {
		t.Fatal("primary category must still complete")
	}
	failed := report.FailedStages()
	if len(failed) != 1 || failed[0] != "house/acquire" {
		t.Fatalf("failed stages = %v", failed)
	}
}

func TestCorruptStageOutputRestoresDataset(t *testing.T) {
	cfg := testConfig(t)
	cfg.Categories.Secondary = nil
	seedRaw(t, cfg, "mansion", rawRecords("https://a"))

	runner := &scriptRunner{cfg: cfg, corrupt: map[string]bool{enrich.StageGeocode: true}}
	scheduler := newTestScheduler(t, cfg, runner)

	report, err := scheduler.Run(context.Background(), ModeFull)
	if err != nil {
		t.Fatal(err)
	}

	store := dataset.NewStore(cfg.Paths.DataDir, logging.NewNop())
	records, err := store.LoadCurrent("mansion")
	if err != nil {
		t.Fatalf("dataset corrupted: %v", err)
	}
	if records[0]["mark_"+enrich.StageGeocode] != nil {
		t.Fatal("corrupt stage's changes must be absent")
	}
	// Later stages still ran against the restored dataset.
	if records[0]["mark_"+enrich.StageUnitCount] != true {
		t.Fatal("stage after the corrupt one must still apply")
	}

	var geocodeFailed bool
	for _, outcome := range report.Outcomes {
		if outcome.Stage == enrich.StageGeocode && !outcome.OK {
			geocodeFailed = true
		}
	}
	if !geocodeFailed {
		t.Fatal("corrupt output must be reported as a stage failure")
	}
}

func TestParallelSiblingSurvivesFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Categories.Secondary = nil
	seedRaw(t, cfg, "mansion", rawRecords("https://a"))

	runner := &scriptRunner{cfg: cfg, fail: map[string]bool{enrich.StageCommute: true}}
	scheduler := newTestScheduler(t, cfg, runner)

	report, err := scheduler.Run(context.Background(), ModeFull)
	if err != nil {
		t.Fatal(err)
	}

	store := dataset.NewStore(cfg.Paths.DataDir, logging.NewNop())
	records, err := store.LoadCurrent("mansion")
	if err != nil {
		t.Fatal(err)
	}
	if records[0]["mark_"+enrich.StageHazard] != true || records[0]["mark_"+enrich.StageValuation] != true {
		t.Fatal("surviving parallel siblings must still contribute")
	}
	if records[0]["mark_"+enrich.StageCommute] != nil {
		t.Fatal("failed stage must contribute nothing")
	}
	if stale := report.StaleStages("mansion"); len(stale) != 1 || stale[0] != enrich.StageCommute {
		t.Fatalf("stale stages = %v", stale)
	}
}

func TestSecondRunDetectsPriceChange(t *testing.T) {
	cfg := testConfig(t)
	cfg.Categories.Secondary = nil

	records := rawRecords("https://a")
	seedRaw(t, cfg, "mansion", records)
	runner := &scriptRunner{cfg: cfg}
	scheduler := newTestScheduler(t, cfg, runner)
	if _, err := scheduler.Run(context.Background(), ModeFull); err != nil {
		t.Fatal(err)
	}

	records[0][listing.FieldPrice] = 9500
	seedRaw(t, cfg, "mansion", records)
	report, err := scheduler.Run(context.Background(), ModeFull)
	if err != nil {
		t.Fatal(err)
	}
	if report.Counts["mansion"].Updated != 1 {
		t.Fatalf("counts = %+v", report.Counts["mansion"])
	}
}

func TestSplitRunHandsOffMetadataExactlyOnce(t *testing.T) {
	cfg := testConfig(t)
	cfg.Categories.Secondary = nil
	seedRaw(t, cfg, "mansion", rawRecords("https://a"))

	runner := &scriptRunner{cfg: cfg}
	scheduler := newTestScheduler(t, cfg, runner)

	acquired, err := scheduler.Run(context.Background(), ModeAcquire)
	if err != nil {
		t.Fatal(err)
	}
	meta, err := runstore.ReadArtifact(runstore.ArtifactPath(cfg.Paths.DataDir))
	if err != nil {
		t.Fatal(err)
	}
	if meta.RunID != acquired.RunID || !meta.HasChanges {
		t.Fatalf("artifact = %+v", meta)
	}

	enriched, err := scheduler.Run(context.Background(), ModeEnrich)
	if err != nil {
		t.Fatal(err)
	}
	if enriched.RunID != acquired.RunID {
		t.Fatal("enrich unit must continue the acquiring unit's run")
	}

	store := dataset.NewStore(cfg.Paths.DataDir, logging.NewNop())
	records, err := store.LoadCurrent("mansion")
	if err != nil {
		t.Fatal(err)
	}
	if records[0]["mark_"+enrich.StageHazard] != true {
		t.Fatal("enrich unit did not enrich")
	}

	if _, err := scheduler.Run(context.Background(), ModeEnrich); !errors.Is(err, runstore.ErrNoArtifact) {
		t.Fatalf("second enrich unit must find no artifact, got %v", err)
	}
}

func TestConcurrentRunsAreLockedOut(t *testing.T) {
	cfg := testConfig(t)
	cfg.Categories.Secondary = nil
	seedRaw(t, cfg, "mansion", rawRecords("https://a"))

	blocker := make(chan struct{})
	started := make(chan struct{})
	runner := &blockingRunner{inner: &scriptRunner{cfg: cfg}, release: blocker, started: started}
	scheduler := newTestScheduler(t, cfg, runner)

	done := make(chan error, 1)
	go func() {
		_, err := scheduler.Run(context.Background(), ModeFull)
		done <- err
	}()
	<-started

	other := newTestScheduler(t, cfg, &scriptRunner{cfg: cfg})
	if _, err := other.Run(context.Background(), ModeFull); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}

	close(blocker)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}

type blockingRunner struct {
	inner    StageRunner
	release  chan struct{}
	started  chan struct{}
	blockOne sync.Once
}

func (r *blockingRunner) RunStage(ctx context.Context, stage string, req enrich.Request) error {
	r.blockOne.Do(func() {
		close(r.started)
		<-r.release
	})
	return r.inner.RunStage(ctx, stage, req)
}
