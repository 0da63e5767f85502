package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"

	"sumika/internal/cachestore"
	"sumika/internal/config"
	"sumika/internal/listing"
	"sumika/internal/logging"
)

const fieldValuation = "valuation"

// Valuer annotates records with an independent value estimate. It runs in
// the parallel phase: it reads the canonical valuation cache but persists
// only a delta file, which the scheduler reconciles after the phase barrier.
type Valuer struct {
	baseURL   string
	apiKey    string
	cachePath string
	deltaPath string
	client    *http.Client
	logger    *slog.Logger
}

// NewValuer builds the valuation stage.
func NewValuer(cfg *config.Config, logger *slog.Logger) *Valuer {
	return &Valuer{
		baseURL:   cfg.Valuation.BaseURL,
		apiKey:    cfg.Valuation.APIKey,
		cachePath: CachePath(cfg, StageValuation),
		deltaPath: DeltaPath(cfg, StageValuation),
		client: &http.Client{
			Timeout: time.Duration(cfg.Valuation.RequestTimeout) * time.Second,
		},
		logger: stageLogger(logger, StageValuation),
	}
}

func (v *Valuer) Name() string { return StageValuation }

// Transform resolves a valuation per source URL: cache first, then the
// configured valuation service, then a local estimate. New values land in
// the delta file only; the canonical cache file is never written here.
func (v *Valuer) Transform(ctx context.Context, records []listing.Record) ([]listing.Record, error) {
	cache, err := cachestore.Open(v.cachePath, v.logger)
	if err != nil {
		return nil, err
	}

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		source := record.StringField(listing.FieldURL)

		if entry, ok := cache.Lookup(source); ok {
			if value, ok := asInt64(entry.Value); ok {
				record[fieldValuation] = value
				continue
			}
		}

		value, err := v.valuate(ctx, record)
		if err != nil {
			v.logger.Warn("valuation lookup failed",
				logging.String("url", source),
				logging.Error(err))
			continue
		}
		if value <= 0 {
			continue
		}
		record[fieldValuation] = value
		cache.Put(source, value, StageValuation)
	}

	if err := cache.SaveDelta(v.deltaPath); err != nil {
		return nil, err
	}
	v.logger.Info("valuation complete",
		logging.Int("record_count", len(records)),
		logging.Int("new_valuations", len(cache.Delta())))
	return records, nil
}

func (v *Valuer) valuate(ctx context.Context, record listing.Record) (int64, error) {
	if v.baseURL == "" {
		return estimateValuation(record), nil
	}

	operation := func() (int64, error) {
		endpoint := fmt.Sprintf("%s?area=%s&year=%s",
			v.baseURL,
			url.QueryEscape(record.StringField(listing.FieldFloorArea)),
			url.QueryEscape(record.StringField(listing.FieldBuildYear)))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return 0, backoff.Permanent(err)
		}
		if v.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+v.apiKey)
		}
		resp, err := v.client.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return 0, fmt.Errorf("valuation service returned %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return 0, backoff.Permanent(fmt.Errorf("valuation request rejected with %d", resp.StatusCode))
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return 0, err
		}
		var payload struct {
			Valuation int64 `json:"valuation"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return 0, backoff.Permanent(fmt.Errorf("parse valuation response: %w", err))
		}
		return payload.Valuation, nil
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(3))
}

// estimateValuation discounts the asking price by building age when no
// valuation service is configured. Crude, but stable and monotonic in age.
func estimateValuation(record listing.Record) int64 {
	price, ok := record.IntField(listing.FieldPrice)
	if !ok || price <= 0 {
		return 0
	}
	year, _ := record.IntField(listing.FieldBuildYear)
	age := int64(time.Now().Year()) - year
	if year <= 0 || age < 0 {
		age = 0
	}
	if age > 40 {
		age = 40
	}
	return price * (100 - age) / 100
}
