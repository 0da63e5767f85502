package dataset

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"sumika/internal/fileutil"
	"sumika/internal/listing"
	"sumika/internal/logging"
)

// Store locates and rotates per-category dataset files inside one data
// directory.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore builds a Store rooted at dir.
func NewStore(dir string, logger *slog.Logger) *Store {
	return &Store{
		dir:    dir,
		logger: logging.NewComponentLogger(logger, "dataset"),
	}
}

// Dir returns the data directory the store operates on.
func (s *Store) Dir() string { return s.dir }

// CurrentPath returns the current dataset file for a category.
func (s *Store) CurrentPath(category string) string {
	return filepath.Join(s.dir, category+".json")
}

// PreviousPath returns the prior run's dataset file for a category.
func (s *Store) PreviousPath(category string) string {
	return filepath.Join(s.dir, category+".prev.json")
}

// StagePath returns the private dataset copy a parallel stage writes for a
// category.
func (s *Store) StagePath(category, stage string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s.%s.json", category, stage))
}

// IncomingPath returns the scratch file acquisition writes before rotation.
func (s *Store) IncomingPath(category string) string {
	return filepath.Join(s.dir, category+".incoming.json")
}

func (s *Store) backupPath(category string) string {
	return filepath.Join(s.dir, category+".bak.json")
}

// LoadCurrent reads the current dataset for a category.
func (s *Store) LoadCurrent(category string) ([]listing.Record, error) {
	return Load(s.CurrentPath(category))
}

// LoadPrevious reads the prior run's dataset. A missing file is not an
// error: the first run has no previous dataset.
func (s *Store) LoadPrevious(category string) ([]listing.Record, error) {
	records, err := Load(s.PreviousPath(category))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return records, nil
}

// Rotate promotes a freshly acquired dataset: the existing current file
// becomes previous, and the incoming file becomes current. When no current
// file exists (first run) the incoming file is promoted directly.
// Rotation only runs after successful acquisition, so a fatal acquisition
// never touches the previous dataset.
func (s *Store) Rotate(category, incomingPath string) error {
	current := s.CurrentPath(category)
	previous := s.PreviousPath(category)

	if _, err := os.Stat(current); err == nil {
		if err := os.Rename(current, previous); err != nil {
			return fmt.Errorf("rotate current to previous: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat current dataset: %w", err)
	}

	if err := os.Rename(incomingPath, current); err != nil {
		return fmt.Errorf("promote incoming dataset: %w", err)
	}

	s.logger.Debug("dataset rotated",
		logging.String(logging.FieldCategory, category),
		logging.String("current", current))
	return nil
}

// Backup copies the current dataset aside before an in-place stage runs.
func (s *Store) Backup(category string) error {
	if err := fileutil.CopyFile(s.CurrentPath(category), s.backupPath(category)); err != nil {
		return fmt.Errorf("backup dataset: %w", err)
	}
	return nil
}

// Restore replaces the current dataset with the pre-stage backup.
func (s *Store) Restore(category string) error {
	if err := os.Rename(s.backupPath(category), s.CurrentPath(category)); err != nil {
		return fmt.Errorf("restore dataset backup: %w", err)
	}
	s.logger.Warn("dataset restored from pre-stage backup",
		logging.String(logging.FieldCategory, category),
		logging.String(logging.FieldEventType, "dataset_restored"),
		logging.String(logging.FieldErrorHint, "inspect the failed stage's logs"))
	return nil
}

// DiscardBackup removes the pre-stage backup after a stage validates.
func (s *Store) DiscardBackup(category string) {
	_ = os.Remove(s.backupPath(category))
}

// DiscardStageCopies removes private per-stage dataset copies after merging.
func (s *Store) DiscardStageCopies(category string, stages []string) {
	for _, stage := range stages {
		_ = os.Remove(s.StagePath(category, stage))
	}
}
