package enrich

import (
	"context"
	"log/slog"

	"sumika/internal/cachestore"
	"sumika/internal/config"
	"sumika/internal/listing"
	"sumika/internal/logging"
)

// UnitCounter fills in the unit count for buildings where the source page
// omitted it, using the persistent unit-count cache keyed by building. It
// runs in a sequential phase and owns its cache file.
type UnitCounter struct {
	cachePath string
	logger    *slog.Logger
}

// NewUnitCounter builds the unit-count stage.
func NewUnitCounter(cfg *config.Config, logger *slog.Logger) *UnitCounter {
	return &UnitCounter{
		cachePath: CachePath(cfg, StageUnitCount),
		logger:    stageLogger(logger, StageUnitCount),
	}
}

func (u *UnitCounter) Name() string { return StageUnitCount }

// Transform resolves unit counts per building key: cached value first, then
// a floor-based estimate for buildings never seen before. Records that
// already carry a unit count seed the cache.
func (u *UnitCounter) Transform(ctx context.Context, records []listing.Record) ([]listing.Record, error) {
	cache, err := cachestore.Open(u.cachePath, u.logger)
	if err != nil {
		return nil, err
	}

	estimated := 0
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key := listing.BuildingKey(record)
		if key == "" {
			continue
		}

		if count, ok := record.IntField(listing.FieldUnitCount); ok && count > 0 {
			cache.Put(key, count, StageUnitCount)
			continue
		}

		if entry, ok := cache.Lookup(key); ok {
			if count, ok := asInt64(entry.Value); ok && count > 0 {
				record[listing.FieldUnitCount] = count
				continue
			}
		}

		if count := estimateUnitCount(record); count > 0 {
			record[listing.FieldUnitCount] = count
			cache.Put(key, count, StageUnitCount)
			estimated++
		}
	}

	if err := cache.Save(); err != nil {
		return nil, err
	}
	u.logger.Info("unit counts resolved",
		logging.Int("record_count", len(records)),
		logging.Int("estimated", estimated))
	return records, nil
}

// estimateUnitCount guesses from total floors when the building was never
// observed with a real count. Mid-rise Japanese condominiums average a
// handful of units per floor.
func estimateUnitCount(record listing.Record) int64 {
	floors, ok := record.IntField(listing.FieldTotalFloors)
	if !ok || floors <= 0 {
		return 0
	}
	return floors * 4
}

func asInt64(value any) (int64, bool) {
	switch typed := value.(type) {
	case int64:
		return typed, true
	case int:
		return int64(typed), true
	case float64:
		return int64(typed), true
	}
	return 0, false
}
