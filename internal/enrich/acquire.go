package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"sumika/internal/config"
	"sumika/internal/dataset"
	"sumika/internal/listing"
	"sumika/internal/logging"
)

// ErrNoRecords indicates acquisition produced an empty dataset. The
// scheduler treats this as fatal for the primary category only.
var ErrNoRecords = errors.New("acquisition produced no records")

// Acquirer ingests the raw listing drop for a category: structural
// validation, duplicate folding, then the incoming dataset file. It ignores
// the request's input path; acquisition starts a run from raw data.
type Acquirer struct {
	rawDir string
	logger *slog.Logger
}

// NewAcquirer builds the acquisition handler.
func NewAcquirer(cfg *config.Config, logger *slog.Logger) *Acquirer {
	return &Acquirer{
		rawDir: cfg.Paths.RawDir,
		logger: stageLogger(logger, StageAcquire),
	}
}

func (a *Acquirer) Name() string { return StageAcquire }

// Run reads <raw_dir>/<category>.json, folds exact duplicates, and writes
// the deduplicated dataset to the request's output path.
func (a *Acquirer) Run(ctx context.Context, req Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rawPath := filepath.Join(a.rawDir, req.Category+".json")
	records, err := dataset.Load(rawPath)
	if err != nil {
		return fmt.Errorf("acquire %s: %w", req.Category, err)
	}
	if len(records) == 0 {
		return fmt.Errorf("acquire %s: %w", req.Category, ErrNoRecords)
	}

	deduped := listing.Dedupe(records)
	if err := dataset.Save(req.Output, deduped); err != nil {
		return fmt.Errorf("acquire %s: %w", req.Category, err)
	}

	a.logger.Info("raw listings ingested",
		logging.String(logging.FieldCategory, req.Category),
		logging.Int("raw_count", len(records)),
		logging.Int("deduped_count", len(deduped)))
	return nil
}
