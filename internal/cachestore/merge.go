package cachestore

import (
	"log/slog"
	"sort"

	"sumika/internal/logging"
)

// Conflict records a delta entry that lost reconciliation, for audit logging.
type Conflict struct {
	Key      string
	Stage    string
	WonStage string
}

// MergeResult summarizes one reconciliation pass.
type MergeResult struct {
	Applied   int
	Skipped   int
	Conflicts []Conflict
}

// Merge reconciles worker deltas into the canonical store. For each key the
// newest LastValidated wins; exact timestamp ties fall to the stage with the
// lower precedence rank. An entry already in the canonical store wins over
// any delta entry that is not strictly newer.
func Merge(store *Store, deltas []Delta, precedence func(stage string) int, logger *slog.Logger) MergeResult {
	log := logging.NewComponentLogger(logger, "cachestore")

	winners := make(map[string]Entry)
	var result MergeResult
	for _, delta := range deltas {
		keys := make([]string, 0, len(delta))
		for key := range delta {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			entry := delta[key]
			current, seen := winners[key]
			if !seen {
				winners[key] = entry
				continue
			}
			if newer(entry, current, precedence) {
				result.Conflicts = append(result.Conflicts, Conflict{
					Key:      key,
					Stage:    current.Stage,
					WonStage: entry.Stage,
				})
				winners[key] = entry
			} else {
				result.Conflicts = append(result.Conflicts, Conflict{
					Key:      key,
					Stage:    entry.Stage,
					WonStage: current.Stage,
				})
			}
		}
	}

	store.mu.Lock()
	for key, entry := range winners {
		if canonical, ok := store.entries[key]; ok && canonical.LastValidated.After(entry.LastValidated) {
			result.Skipped++
			continue
		}
		store.entries[key] = entry
		store.dirty[key] = entry
		result.Applied++
	}
	store.mu.Unlock()

	for _, conflict := range result.Conflicts {
		log.Warn("cache delta conflict",
			logging.String("key", conflict.Key),
			logging.String("losing_stage", conflict.Stage),
			logging.String("winning_stage", conflict.WonStage))
	}
	log.Debug("cache deltas merged",
		logging.String("path", store.path),
		logging.Int("applied", result.Applied),
		logging.Int("skipped", result.Skipped),
		logging.Int("conflicts", len(result.Conflicts)))
	return result
}

func newer(candidate, current Entry, precedence func(stage string) int) bool {
	if candidate.LastValidated.After(current.LastValidated) {
		return true
	}
	if current.LastValidated.After(candidate.LastValidated) {
		return false
	}
	return precedence(candidate.Stage) < precedence(current.Stage)
}
