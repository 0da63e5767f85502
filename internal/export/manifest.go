package export

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"

	"sumika/internal/cachestore"
	"sumika/internal/config"
	"sumika/internal/listing"
)

const manifestStage = "export"

// ManifestPath returns the upload manifest cache file.
func ManifestPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.CacheDir, "manifest.json")
}

// Manifest records the fingerprint of the last exported dataset per
// category so unchanged datasets are not re-uploaded.
type Manifest struct {
	store *cachestore.Store
}

// OpenManifest loads the upload manifest cache.
func OpenManifest(cfg *config.Config, logger *slog.Logger) (*Manifest, error) {
	store, err := cachestore.Open(ManifestPath(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("open upload manifest: %w", err)
	}
	return &Manifest{store: store}, nil
}

// UpToDate reports whether the category's dataset matches what was last
// exported.
func (m *Manifest) UpToDate(category string, records []listing.Record) (bool, error) {
	sum, err := fingerprint(records)
	if err != nil {
		return false, err
	}
	entry, ok := m.store.Lookup(category)
	if !ok {
		return false, nil
	}
	previous, _ := entry.Value.(string)
	return previous == sum, nil
}

// MarkExported records the category's dataset fingerprint and persists the
// manifest.
func (m *Manifest) MarkExported(category string, records []listing.Record) error {
	sum, err := fingerprint(records)
	if err != nil {
		return err
	}
	m.store.Put(category, sum, manifestStage)
	return m.store.Save()
}

func fingerprint(records []listing.Record) (string, error) {
	payload, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("fingerprint dataset: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
