package export

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"sumika/internal/config"
	"sumika/internal/listing"
	"sumika/internal/logging"
)

// ErrDisabled indicates export ran without a configured DSN.
var ErrDisabled = errors.New("export is not configured")

// Exporter writes datasets to a Postgres table.
type Exporter struct {
	dsn    string
	table  string
	logger *slog.Logger
}

// New builds an exporter from configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Exporter, error) {
	if cfg.Export.DSN == "" {
		return nil, ErrDisabled
	}
	table := cfg.Export.Table
	if table == "" {
		table = "listings"
	}
	return &Exporter{
		dsn:    cfg.Export.DSN,
		table:  table,
		logger: logging.NewComponentLogger(logger, "export"),
	}, nil
}

// Dataset replaces the category's rows with the given records in one
// transaction, using COPY for the batch insert. Returns the row count.
func (e *Exporter) Dataset(ctx context.Context, category string, records []listing.Record) (int, error) {
	db, err := sql.Open("postgres", e.dsn)
	if err != nil {
		return 0, fmt.Errorf("open postgres: %w", err)
	}
	defer db.Close()

	if err := e.ensureTable(ctx, db); err != nil {
		return 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin export tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE category = $1", pq.QuoteIdentifier(e.table)),
		category); err != nil {
		return 0, fmt.Errorf("clear category rows: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(e.table,
		"category", "url", "identity_key", "price", "payload", "exported_at"))
	if err != nil {
		return 0, fmt.Errorf("prepare copy: %w", err)
	}

	exportedAt := time.Now().UTC()
	for _, record := range records {
		payload, err := json.Marshal(record)
		if err != nil {
			_ = stmt.Close()
			return 0, fmt.Errorf("marshal record: %w", err)
		}
		price, _ := record.IntField(listing.FieldPrice)
		if _, err := stmt.ExecContext(ctx,
			category,
			record.StringField(listing.FieldURL),
			listing.IdentityKey(record),
			price,
			string(payload),
			exportedAt); err != nil {
			_ = stmt.Close()
			return 0, fmt.Errorf("copy record: %w", err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return 0, fmt.Errorf("flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return 0, fmt.Errorf("close copy: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit export: %w", err)
	}

	e.logger.Info("dataset exported",
		logging.String(logging.FieldCategory, category),
		logging.Int("row_count", len(records)))
	return len(records), nil
}

func (e *Exporter) ensureTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            category TEXT NOT NULL,
            url TEXT NOT NULL,
            identity_key TEXT NOT NULL,
            price BIGINT NOT NULL DEFAULT 0,
            payload JSONB NOT NULL,
            exported_at TIMESTAMPTZ NOT NULL
        )`, pq.QuoteIdentifier(e.table)))
	if err != nil {
		return fmt.Errorf("ensure export table: %w", err)
	}
	return nil
}
