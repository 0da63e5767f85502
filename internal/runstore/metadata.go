package runstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"sumika/internal/diff"
	"sumika/internal/fileutil"
)

// ErrNoArtifact indicates no metadata artifact is waiting to be consumed.
var ErrNoArtifact = errors.New("no run metadata artifact")

// Metadata is the handoff artifact between split execution units: produced
// once by the acquiring unit, consumed exactly once downstream.
type Metadata struct {
	RunID          string                 `json:"run_id"`
	HasChanges     bool                   `json:"has_changes"`
	Notify         bool                   `json:"notify"`
	CategoryCounts map[string]diff.Counts `json:"category_counts"`
}

// ArtifactPath returns where the metadata artifact lives inside a data
// directory.
func ArtifactPath(dataDir string) string {
	return filepath.Join(dataDir, "run_metadata.json")
}

// WriteArtifact persists the metadata artifact atomically.
func WriteArtifact(path string, meta Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run metadata: %w", err)
	}
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write run metadata: %w", err)
	}
	return nil
}

// ReadArtifact loads the metadata artifact without consuming it.
func ReadArtifact(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Metadata{}, ErrNoArtifact
		}
		return Metadata{}, fmt.Errorf("read run metadata: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, fmt.Errorf("parse run metadata: %w", err)
	}
	return meta, nil
}

// ConsumeArtifact loads the metadata artifact and removes it, so a second
// consumer finds nothing.
func ConsumeArtifact(path string) (Metadata, error) {
	meta, err := ReadArtifact(path)
	if err != nil {
		return Metadata{}, err
	}
	if err := os.Remove(path); err != nil {
		return Metadata{}, fmt.Errorf("consume run metadata: %w", err)
	}
	return meta, nil
}
