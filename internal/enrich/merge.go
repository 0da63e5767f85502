package enrich

import (
	"log/slog"
	"reflect"
	"sort"

	"sumika/internal/listing"
	"sumika/internal/logging"
)

// Conflict records two stages changing the same field of the same record to
// different values. Not an error, but it must be observable for auditing.
type Conflict struct {
	URL       string
	Field     string
	Winner    string
	Loser     string
	WinnerVal any
	LoserVal  any
}

// Merge reconciles independently enriched copies of base into one dataset.
// Records match by source URL, never by identity key, because enrichment can
// rewrite the name fields the identity key is built from. A field changed by
// exactly one copy wins outright; a field changed by several copies falls to
// the stage with the higher precedence. A copy absent from copies (its stage
// failed) contributes nothing. Merge(base, nil) and merging a copy identical
// to base both return base unchanged.
func Merge(base []listing.Record, copies map[string][]listing.Record, logger *slog.Logger) ([]listing.Record, []Conflict) {
	log := logging.NewComponentLogger(logger, "enrich")

	stages := make([]string, 0, len(copies))
	for stage := range copies {
		stages = append(stages, stage)
	}
	sort.Slice(stages, func(i, j int) bool { return Rank(stages[i]) < Rank(stages[j]) })

	indexes := make(map[string]map[string]listing.Record, len(copies))
	for stage, records := range copies {
		index := make(map[string]listing.Record, len(records))
		for _, record := range records {
			if url := record.StringField(listing.FieldURL); url != "" {
				index[url] = record
			}
		}
		indexes[stage] = index
	}

	merged := make([]listing.Record, 0, len(base))
	var conflicts []Conflict
	for _, baseRecord := range base {
		url := baseRecord.StringField(listing.FieldURL)
		out := baseRecord.Clone()

		// winner per field, in precedence order so the first claim sticks.
		claimed := make(map[string]string)
		for _, stage := range stages {
			copyRecord, ok := indexes[stage][url]
			if !ok {
				continue
			}
			fields := make([]string, 0, len(copyRecord))
			for field := range copyRecord {
				fields = append(fields, field)
			}
			sort.Strings(fields)
			for _, field := range fields {
				value := copyRecord[field]
				if reflect.DeepEqual(value, baseRecord[field]) {
					continue
				}
				if winner, taken := claimed[field]; taken {
					if !reflect.DeepEqual(value, out[field]) {
						conflicts = append(conflicts, Conflict{
							URL:       url,
							Field:     field,
							Winner:    winner,
							Loser:     stage,
							WinnerVal: out[field],
							LoserVal:  value,
						})
					}
					continue
				}
				claimed[field] = stage
				out[field] = value
			}
		}
		merged = append(merged, out)
	}

	for _, conflict := range conflicts {
		log.Warn("enrichment merge conflict",
			logging.String("url", conflict.URL),
			logging.String("field", conflict.Field),
			logging.String("winning_stage", conflict.Winner),
			logging.String("losing_stage", conflict.Loser))
	}
	return merged, conflicts
}
