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

const (
	fieldLatitude  = "latitude"
	fieldLongitude = "longitude"
)

type coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Geocoder resolves listing addresses to coordinates through the GSI address
// search endpoint, backed by the persistent geocode cache. It runs in a
// sequential phase and owns its cache file for the duration of the stage.
type Geocoder struct {
	baseURL    string
	cachePath  string
	maxRetries int
	client     *http.Client
	logger     *slog.Logger
}

// NewGeocoder builds the geocode stage.
func NewGeocoder(cfg *config.Config, logger *slog.Logger) *Geocoder {
	return &Geocoder{
		baseURL:    cfg.Geocode.BaseURL,
		cachePath:  CachePath(cfg, StageGeocode),
		maxRetries: cfg.Geocode.MaxRetries,
		client: &http.Client{
			Timeout: time.Duration(cfg.Geocode.RequestTimeout) * time.Second,
		},
		logger: stageLogger(logger, StageGeocode),
	}
}

func (g *Geocoder) Name() string { return StageGeocode }

// Transform annotates each record with latitude/longitude. A failed lookup
// leaves the record unchanged; only cache persistence failures abort the
// stage.
func (g *Geocoder) Transform(ctx context.Context, records []listing.Record) ([]listing.Record, error) {
	cache, err := cachestore.Open(g.cachePath, g.logger)
	if err != nil {
		return nil, err
	}

	misses := 0
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		address := record.StringField(listing.FieldAddress)
		if address == "" {
			continue
		}

		if entry, ok := cache.Lookup(address); ok {
			if coords, ok := decodeCoordinates(entry.Value); ok {
				record[fieldLatitude] = coords.Latitude
				record[fieldLongitude] = coords.Longitude
				continue
			}
		}

		coords, err := g.lookup(ctx, address)
		if err != nil {
			misses++
			g.logger.Warn("geocode lookup failed",
				logging.String("address", address),
				logging.Error(err))
			continue
		}
		record[fieldLatitude] = coords.Latitude
		record[fieldLongitude] = coords.Longitude
		cache.Put(address, coords, StageGeocode)
	}

	if err := cache.Save(); err != nil {
		return nil, err
	}
	g.logger.Info("geocoding complete",
		logging.Int("record_count", len(records)),
		logging.Int("lookup_failures", misses))
	return records, nil
}

type gsiFeature struct {
	Geometry struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
}

func (g *Geocoder) lookup(ctx context.Context, address string) (coordinates, error) {
	operation := func() (coordinates, error) {
		endpoint := g.baseURL + "?q=" + url.QueryEscape(address)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return coordinates{}, backoff.Permanent(err)
		}
		resp, err := g.client.Do(req)
		if err != nil {
			return coordinates{}, err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return coordinates{}, fmt.Errorf("geocode service returned %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return coordinates{}, backoff.Permanent(fmt.Errorf("geocode request rejected with %d", resp.StatusCode))
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return coordinates{}, err
		}
		var features []gsiFeature
		if err := json.Unmarshal(body, &features); err != nil {
			return coordinates{}, backoff.Permanent(fmt.Errorf("parse geocode response: %w", err))
		}
		if len(features) == 0 || len(features[0].Geometry.Coordinates) < 2 {
			return coordinates{}, backoff.Permanent(fmt.Errorf("no match for address"))
		}
		// GeoJSON order: longitude first.
		return coordinates{
			Latitude:  features[0].Geometry.Coordinates[1],
			Longitude: features[0].Geometry.Coordinates[0],
		}, nil
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(g.maxRetries)))
}

func decodeCoordinates(value any) (coordinates, bool) {
	switch typed := value.(type) {
	case coordinates:
		return typed, true
	case map[string]any:
		lat, latOK := typed["latitude"].(float64)
		lng, lngOK := typed["longitude"].(float64)
		if latOK && lngOK {
			return coordinates{Latitude: lat, Longitude: lng}, true
		}
	}
	return coordinates{}, false
}
