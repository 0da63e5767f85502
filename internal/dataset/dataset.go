package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"sumika/internal/fileutil"
	"sumika/internal/listing"
)

// ErrInvalid indicates a dataset file that fails structural validation.
var ErrInvalid = errors.New("invalid dataset")

// Load reads and structurally validates a dataset file.
func Load(path string) ([]listing.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}
	records, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}
	return records, nil
}

// Decode parses raw dataset bytes and applies structural validation.
func Decode(data []byte) ([]listing.Record, error) {
	var records []listing.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := Validate(records); err != nil {
		return nil, err
	}
	return records, nil
}

// Save writes records to path atomically.
func Save(path string, records []listing.Record) error {
	if records == nil {
		records = []listing.Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal dataset: %w", err)
	}
	return fileutil.WriteFileAtomic(path, data, 0o644)
}

// Validate checks the structural invariants every dataset file must hold:
// every record is an object carrying a non-empty source URL, the stable
// external identifier the merge engine matches on.
func Validate(records []listing.Record) error {
	for i, record := range records {
		if record == nil {
			return fmt.Errorf("%w: record %d is null", ErrInvalid, i)
		}
		if record.StringField(listing.FieldURL) == "" {
			return fmt.Errorf("%w: record %d has no url", ErrInvalid, i)
		}
	}
	return nil
}

// ValidateFile loads path and reports whether it holds a structurally valid
// dataset.
func ValidateFile(path string) error {
	_, err := Load(path)
	return err
}
