package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"sumika/internal/config"
	"sumika/internal/dataset"
	"sumika/internal/listing"
	"sumika/internal/logging"
)

// Request carries one stage invocation's file contract.
type Request struct {
	Category string
	Input    string
	Output   string
}

// Handler is one acquisition or enrichment unit of work. Run reads the
// request's input dataset, writes the output dataset atomically on success,
// and leaves the output untouched on failure.
type Handler interface {
	Name() string
	Run(ctx context.Context, req Request) error
}

// Transformer is the record-level contract most enrichers implement; the
// file plumbing around it is shared.
type Transformer interface {
	Name() string
	Transform(ctx context.Context, records []listing.Record) ([]listing.Record, error)
}

// NewHandler builds the handler for a stage name.
func NewHandler(name string, cfg *config.Config, logger *slog.Logger) (Handler, error) {
	switch name {
	case StageAcquire:
		return NewAcquirer(cfg, logger), nil
	case StageGeocode:
		return transformHandler{NewGeocoder(cfg, logger)}, nil
	case StageUnitCount:
		return transformHandler{NewUnitCounter(cfg, logger)}, nil
	case StageHazard:
		return transformHandler{NewHazardMapper(logger)}, nil
	case StageCommute:
		return transformHandler{NewCommuteEstimator(cfg, logger)}, nil
	case StageValuation:
		return transformHandler{NewValuer(cfg, logger)}, nil
	default:
		return nil, fmt.Errorf("unknown stage %q", name)
	}
}

// transformHandler adapts a Transformer to the file-based Handler contract.
type transformHandler struct {
	t Transformer
}

func (h transformHandler) Name() string { return h.t.Name() }

func (h transformHandler) Run(ctx context.Context, req Request) error {
	records, err := dataset.Load(req.Input)
	if err != nil {
		return fmt.Errorf("stage %s: %w", h.t.Name(), err)
	}
	transformed, err := h.t.Transform(ctx, records)
	if err != nil {
		return fmt.Errorf("stage %s: %w", h.t.Name(), err)
	}
	if err := dataset.Save(req.Output, transformed); err != nil {
		return fmt.Errorf("stage %s: %w", h.t.Name(), err)
	}
	return nil
}

// CachePath returns the cache file a stage owns, or empty for cacheless
// stages.
func CachePath(cfg *config.Config, stage string) string {
	switch stage {
	case StageGeocode:
		return filepath.Join(cfg.Paths.CacheDir, "geocode.json")
	case StageUnitCount:
		return filepath.Join(cfg.Paths.CacheDir, "unitcount.json")
	case StageValuation:
		return filepath.Join(cfg.Paths.CacheDir, "valuation.json")
	default:
		return ""
	}
}

// DeltaPath returns where a parallel stage leaves its cache delta for later
// reconciliation.
func DeltaPath(cfg *config.Config, stage string) string {
	return filepath.Join(cfg.Paths.CacheDir, stage+".delta.json")
}

func stageLogger(logger *slog.Logger, stage string) *slog.Logger {
	return logging.NewComponentLogger(logger, stage)
}
