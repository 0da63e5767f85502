package runstore

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"sumika/internal/config"
	"sumika/internal/diff"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; the ledger carries no data worth migrating.
const schemaVersion = 1

// ErrSchemaMismatch indicates the ledger database predates the current
// schema.
var ErrSchemaMismatch = errors.New("run ledger schema version mismatch")

// RunRecord is one pipeline run as stored in the ledger.
type RunRecord struct {
	RunID          string
	StartedAt      time.Time
	FinishedAt     time.Time
	HasChanges     bool
	Notify         bool
	CategoryCounts map[string]diff.Counts
	Error          string
}

// OutcomeRecord is one stage execution within a run.
type OutcomeRecord struct {
	Stage    string
	Category string
	OK       bool
	Error    string
	Duration time.Duration
}

// Store is the SQLite-backed run ledger.
type Store struct {
	db   *sql.DB
	path string
}

// Open connects to the ledger database under the configured log directory
// and initializes the schema when missing.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "runs.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open run ledger: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

// BeginRun inserts the run row at start time so a crash still leaves a trace.
func (s *Store) BeginRun(ctx context.Context, runID string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (run_id, started_at) VALUES (?, ?)",
		runID, startedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun completes the run row with its result.
func (s *Store) FinishRun(ctx context.Context, record RunRecord) error {
	counts, err := json.Marshal(record.CategoryCounts)
	if err != nil {
		return fmt.Errorf("marshal category counts: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, has_changes = ?, notify = ?, category_counts = ?, error = ?
         WHERE run_id = ?`,
		record.FinishedAt.UTC().Format(time.RFC3339Nano),
		boolToInt(record.HasChanges),
		boolToInt(record.Notify),
		string(counts),
		nullableString(record.Error),
		record.RunID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// RecordOutcome appends one stage outcome to the run's audit trail.
func (s *Store) RecordOutcome(ctx context.Context, runID string, outcome OutcomeRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stage_outcomes (run_id, stage, category, ok, error, duration_ms, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID,
		outcome.Stage,
		outcome.Category,
		boolToInt(outcome.OK),
		nullableString(outcome.Error),
		outcome.Duration.Milliseconds(),
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert stage outcome: %w", err)
	}
	return nil
}

// RecentRuns returns the newest runs first, up to limit.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, started_at, finished_at, has_changes, notify, category_counts, error
         FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var (
			record     RunRecord
			startedAt  string
			finishedAt sql.NullString
			hasChanges int
			notify     int
			counts     sql.NullString
			runError   sql.NullString
		)
		if err := rows.Scan(&record.RunID, &startedAt, &finishedAt, &hasChanges, &notify, &counts, &runError); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		record.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		if finishedAt.Valid {
			record.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedAt.String)
		}
		record.HasChanges = hasChanges != 0
		record.Notify = notify != 0
		if counts.Valid && counts.String != "" {
			if err := json.Unmarshal([]byte(counts.String), &record.CategoryCounts); err != nil {
				return nil, fmt.Errorf("parse category counts: %w", err)
			}
		}
		record.Error = runError.String
		records = append(records, record)
	}
	return records, rows.Err()
}

// Outcomes returns a run's stage outcomes in execution order.
func (s *Store) Outcomes(ctx context.Context, runID string) ([]OutcomeRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stage, category, ok, error, duration_ms
         FROM stage_outcomes WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query stage outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []OutcomeRecord
	for rows.Next() {
		var (
			outcome    OutcomeRecord
			ok         int
			stageError sql.NullString
			durationMS int64
		)
		if err := rows.Scan(&outcome.Stage, &outcome.Category, &ok, &stageError, &durationMS); err != nil {
			return nil, fmt.Errorf("scan stage outcome: %w", err)
		}
		outcome.OK = ok != 0
		outcome.Error = stageError.String
		outcome.Duration = time.Duration(durationMS) * time.Millisecond
		outcomes = append(outcomes, outcome)
	}
	return outcomes, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
