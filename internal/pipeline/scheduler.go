package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"sumika/internal/cachestore"
	"sumika/internal/config"
	"sumika/internal/dataset"
	"sumika/internal/diff"
	"sumika/internal/enrich"
	"sumika/internal/listing"
	"sumika/internal/logging"
	"sumika/internal/notifications"
	"sumika/internal/runstore"
)

// Mode selects which half of a split run this execution unit performs.
type Mode int

const (
	// ModeFull runs acquisition, diff, and enrichment in one unit.
	ModeFull Mode = iota
	// ModeAcquire acquires, rotates, diffs, and leaves the run metadata
	// artifact for a later enrichment unit.
	ModeAcquire
	// ModeEnrich consumes the metadata artifact and runs enrichment and
	// notification against the already rotated dataset.
	ModeEnrich
)

// ErrLocked indicates another run holds the dataset directory.
var ErrLocked = errors.New("another run holds the dataset lock")

// Scheduler interprets the phase graph once per run.
type Scheduler struct {
	cfg      *config.Config
	graph    Graph
	runner   StageRunner
	store    *dataset.Store
	notifier notifications.Service
	ledger   *runstore.Store
	logger   *slog.Logger
	now      func() time.Time
}

// New validates the graph and builds a scheduler. The ledger may be nil; run
// history is then not recorded.
func New(cfg *config.Config, graph Graph, runner StageRunner, notifier notifications.Service, ledger *runstore.Store, logger *slog.Logger) (*Scheduler, error) {
	if err := graph.Validate(); err != nil {
		return nil, err
	}
	return &Scheduler{
		cfg:      cfg,
		graph:    graph,
		runner:   runner,
		store:    dataset.NewStore(cfg.Paths.DataDir, logger),
		notifier: notifier,
		ledger:   ledger,
		logger:   logging.NewComponentLogger(logger, "scheduler"),
		now:      time.Now,
	}, nil
}

// Run executes the phase graph for every configured category, primary first.
// Stage failures are contained; only primary acquisition aborts the run.
func (s *Scheduler) Run(ctx context.Context, mode Mode) (*RunReport, error) {
	if err := s.cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	lock := flock.New(filepath.Join(s.cfg.Paths.DataDir, "sumika.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}
	defer func() { _ = lock.Unlock() }()

	report := &RunReport{StartedAt: s.now(), Counts: make(map[string]diff.Counts)}
	if mode == ModeEnrich {
		meta, err := runstore.ConsumeArtifact(runstore.ArtifactPath(s.cfg.Paths.DataDir))
		if err != nil {
			return nil, err
		}
		report.RunID = meta.RunID
		report.HasChanges = meta.HasChanges
		report.Notify = meta.Notify
		for category, counts := range meta.CategoryCounts {
			report.Counts[category] = counts
		}
	} else {
		report.RunID = uuid.NewString()
		if s.ledger != nil {
			if err := s.ledger.BeginRun(ctx, report.RunID, report.StartedAt); err != nil {
				return nil, err
			}
		}
	}

	ctx = logging.WithRunID(ctx, report.RunID)
	log := s.logger.With(logging.String(logging.FieldRunID, report.RunID))
	log.Info("run started", logging.Int("mode", int(mode)))

	var runErr error
	for _, category := range s.cfg.AllCategories() {
		if err := s.runCategory(ctx, report, category, mode); err != nil {
			runErr = err
			break
		}
	}

	if runErr == nil {
		switch mode {
		case ModeAcquire:
			err := runstore.WriteArtifact(runstore.ArtifactPath(s.cfg.Paths.DataDir), runstore.Metadata{
				RunID:          report.RunID,
				HasChanges:     report.HasChanges,
				Notify:         report.Notify,
				CategoryCounts: report.Counts,
			})
			if err != nil {
				runErr = err
			}
		default:
			if report.Notify {
				if err := s.notifier.NotifyChanges(ctx, report.RunID, report.Counts); err != nil {
					log.Warn("change notification failed", logging.Error(err))
				}
			}
			if failed := report.FailedStages(); len(failed) > 0 {
				if err := s.notifier.NotifyRunCompleted(ctx, report.RunID, failed, s.now().Sub(report.StartedAt)); err != nil {
					log.Warn("completion notification failed", logging.Error(err))
				}
			}
		}
	}

	report.FinishedAt = s.now()
	if s.ledger != nil {
		for _, outcome := range report.Outcomes {
			record := runstore.OutcomeRecord{
				Stage:    outcome.Stage,
				Category: outcome.Category,
				OK:       outcome.OK,
				Duration: outcome.Duration,
			}
			if outcome.Err != nil {
				record.Error = outcome.Err.Error()
			}
			if err := s.ledger.RecordOutcome(ctx, report.RunID, record); err != nil {
				log.Warn("record stage outcome failed", logging.Error(err))
			}
		}
		finish := runstore.RunRecord{
			RunID:          report.RunID,
			FinishedAt:     report.FinishedAt,
			HasChanges:     report.HasChanges,
			Notify:         report.Notify,
			CategoryCounts: report.Counts,
		}
		if runErr != nil {
			finish.Error = runErr.Error()
		}
		if err := s.ledger.FinishRun(ctx, finish); err != nil {
			log.Warn("finish run record failed", logging.Error(err))
		}
	}

	if runErr != nil {
		if s.cfg.Notifications.Errors {
			if err := s.notifier.NotifyError(ctx, runErr, "pipeline run"); err != nil {
				log.Warn("error notification failed", logging.Error(err))
			}
		}
		log.Error("run aborted", logging.Error(runErr))
		return report, runErr
	}

	log.Info("run finished",
		logging.Bool("has_changes", report.HasChanges),
		logging.Int("failed_stages", len(report.FailedStages())),
		logging.Duration("duration", report.FinishedAt.Sub(report.StartedAt)))
	return report, nil
}

func (s *Scheduler) runCategory(ctx context.Context, report *RunReport, category string, mode Mode) error {
	ctx = logging.WithCategory(ctx, category)
	log := s.logger.With(logging.String(logging.FieldCategory, category))

	for _, phase := range s.graph.Phases {
		acquirePhase := phase.Name == PhaseAcquire
		if mode == ModeEnrich && acquirePhase {
			continue
		}
		if mode == ModeAcquire && !acquirePhase {
			continue
		}

		if acquirePhase {
			proceed, err := s.runAcquirePhase(ctx, report, phase, category)
			if err != nil {
				return err
			}
			if !proceed {
				return nil
			}
			continue
		}

		// Enrichment phases need a current dataset; a secondary category
		// skipped at acquisition has nothing to enrich.
		if _, err := os.Stat(s.store.CurrentPath(category)); err != nil {
			log.Warn("no current dataset, skipping category", logging.Error(err))
			return nil
		}

		if phase.Parallel {
			if err := s.runParallelPhase(ctx, report, phase, category); err != nil {
				return err
			}
		} else {
			s.runSequentialPhase(ctx, report, phase, category)
		}
	}
	return nil
}

// runAcquirePhase ingests the category and, on success, rotates the dataset
// and computes the diff against the previous run. The second return value
// reports whether later phases should run for this category.
func (s *Scheduler) runAcquirePhase(ctx context.Context, report *RunReport, phase Phase, category string) (bool, error) {
	primary := category == s.cfg.Categories.Primary
	log := s.logger.With(logging.String(logging.FieldCategory, category))

	for _, spec := range phase.Stages {
		incoming := s.store.IncomingPath(category)
		outcome := s.execStage(ctx, spec, category, enrich.Request{
			Category: category,
			Output:   incoming,
		})
		if outcome.OK {
			if err := dataset.ValidateFile(incoming); err != nil {
				outcome.OK = false
				outcome.Err = err
			}
		}
		report.Outcomes = append(report.Outcomes, outcome)

		if !outcome.OK {
			if primary && spec.Fatal {
				return false, fmt.Errorf("acquire %s: %w", category, outcome.Err)
			}
			log.Warn("acquisition failed, skipping category",
				logging.String(logging.FieldStage, spec.Name),
				logging.Error(outcome.Err))
			return false, nil
		}

		if err := s.store.Rotate(category, incoming); err != nil {
			if primary {
				return false, err
			}
			log.Warn("dataset rotation failed, skipping category", logging.Error(err))
			return false, nil
		}

		if err := s.diffCategory(report, category); err != nil {
			if primary {
				return false, err
			}
			log.Warn("diff failed, skipping category", logging.Error(err))
			return false, nil
		}
	}
	return true, nil
}

func (s *Scheduler) diffCategory(report *RunReport, category string) error {
	current, err := s.store.LoadCurrent(category)
	if err != nil {
		return err
	}
	previous, err := s.store.LoadPrevious(category)
	if err != nil {
		return err
	}

	result := diff.Diff(current, previous, s.now().Format("2006-01-02"))
	if err := dataset.Save(s.store.CurrentPath(category), result.Records); err != nil {
		return err
	}

	counts := result.Counts()
	report.Counts[category] = counts
	if counts.HasChanges() {
		report.HasChanges = true
		if s.cfg.Notifications.Changes {
			report.Notify = true
		}
	}
	s.logger.Info("diff complete",
		logging.String(logging.FieldCategory, category),
		logging.Int("new", counts.New),
		logging.Int("updated", counts.Updated),
		logging.Int("removed", counts.Removed),
		logging.Int("unchanged", counts.Unchanged))
	return nil
}

// runSequentialPhase runs cache-owning stages one at a time, in place, with
// a backup/validate/restore envelope so a bad stage cannot corrupt the
// dataset.
func (s *Scheduler) runSequentialPhase(ctx context.Context, report *RunReport, phase Phase, category string) {
	current := s.store.CurrentPath(category)
	for _, spec := range phase.Stages {
		if err := s.store.Backup(category); err != nil {
			report.Outcomes = append(report.Outcomes, Outcome{
				Stage:    spec.Name,
				Category: category,
				Err:      err,
			})
			continue
		}

		outcome := s.execStage(ctx, spec, category, enrich.Request{
			Category: category,
			Input:    current,
			Output:   current,
		})
		if outcome.OK {
			if err := dataset.ValidateFile(current); err != nil {
				outcome.OK = false
				outcome.Err = fmt.Errorf("stage output invalid: %w", err)
			}
		}
		report.Outcomes = append(report.Outcomes, outcome)

		if outcome.OK {
			s.store.DiscardBackup(category)
			continue
		}
		if err := s.store.Restore(category); err != nil {
			s.logger.Error("dataset restore failed",
				logging.String(logging.FieldCategory, category),
				logging.String(logging.FieldStage, spec.Name),
				logging.Error(err))
		}
	}
}

// runParallelPhase runs every stage concurrently against private dataset
// copies, waits at the barrier, then reconciles datasets and cache deltas.
func (s *Scheduler) runParallelPhase(ctx context.Context, report *RunReport, phase Phase, category string) error {
	current := s.store.CurrentPath(category)

	outcomes := make([]Outcome, len(phase.Stages))
	var wg sync.WaitGroup
	for i, spec := range phase.Stages {
		output := current
		if spec.PrivateCopy {
			output = s.store.StagePath(category, spec.Name)
		}
		wg.Add(1)
		go func(i int, spec StageSpec, output string) {
			defer wg.Done()
			outcomes[i] = s.execStage(ctx, spec, category, enrich.Request{
				Category: category,
				Input:    current,
				Output:   output,
			})
		}(i, spec, output)
	}
	wg.Wait()

	copies := make(map[string][]listing.Record, len(phase.Stages))
	stageNames := make([]string, 0, len(phase.Stages))
	for i, spec := range phase.Stages {
		stageNames = append(stageNames, spec.Name)
		outcome := outcomes[i]
		if outcome.OK && spec.PrivateCopy {
			records, err := dataset.Load(s.store.StagePath(category, spec.Name))
			if err != nil {
				outcome.OK = false
				outcome.Err = fmt.Errorf("stage output invalid: %w", err)
				outcomes[i] = outcome
			} else {
				copies[spec.Name] = records
			}
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}

	base, err := s.store.LoadCurrent(category)
	if err != nil {
		return fmt.Errorf("load base dataset for merge: %w", err)
	}
	merged, _ := enrich.Merge(base, copies, s.logger)
	if err := dataset.Save(current, merged); err != nil {
		return fmt.Errorf("save merged dataset: %w", err)
	}
	s.store.DiscardStageCopies(category, stageNames)

	for i, spec := range phase.Stages {
		if spec.DeltaCache == "" || !outcomes[i].OK {
			continue
		}
		if err := s.mergeCacheDelta(spec); err != nil {
			s.logger.Warn("cache delta reconciliation failed",
				logging.String(logging.FieldStage, spec.Name),
				logging.Error(err))
		}
	}
	return nil
}

func (s *Scheduler) mergeCacheDelta(spec StageSpec) error {
	deltaPath := enrich.DeltaPath(s.cfg, spec.Name)
	delta, err := cachestore.LoadDelta(deltaPath)
	if err != nil {
		return err
	}
	if len(delta) == 0 {
		_ = os.Remove(deltaPath)
		return nil
	}

	canonical := filepath.Join(s.cfg.Paths.CacheDir, spec.DeltaCache+".json")
	cache, err := cachestore.Open(canonical, s.logger)
	if err != nil {
		return err
	}
	cachestore.Merge(cache, []cachestore.Delta{delta}, enrich.Rank, s.logger)
	if err := cache.Save(); err != nil {
		return err
	}
	return os.Remove(deltaPath)
}

func (s *Scheduler) execStage(ctx context.Context, spec StageSpec, category string, req enrich.Request) Outcome {
	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = time.Duration(s.cfg.Pipeline.StageTimeout) * time.Second
	}
	stageCtx, cancel := context.WithTimeout(logging.WithStage(ctx, spec.Name), timeout)
	defer cancel()

	start := s.now()
	err := s.runner.RunStage(stageCtx, spec.Name, req)
	outcome := Outcome{
		Stage:    spec.Name,
		Category: category,
		OK:       err == nil,
		Err:      err,
		Duration: s.now().Sub(start),
	}

	if err != nil {
		s.logger.Warn("stage failed",
			logging.String(logging.FieldStage, spec.Name),
			logging.String(logging.FieldCategory, category),
			logging.Duration("duration", outcome.Duration),
			logging.Error(err))
	} else {
		s.logger.Info("stage complete",
			logging.String(logging.FieldStage, spec.Name),
			logging.String(logging.FieldCategory, category),
			logging.Duration("duration", outcome.Duration))
	}
	return outcome
}
