package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCategories()
	c.normalizeGeocode()
	c.normalizeValuation()
	c.normalizePipeline()
	c.normalizeNotifications()
	c.normalizeExport()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.RawDir, err = expandPath(c.Paths.RawDir); err != nil {
		return fmt.Errorf("paths.raw_dir: %w", err)
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("SUMIKA_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeCategories() {
	c.Categories.Primary = strings.ToLower(strings.TrimSpace(c.Categories.Primary))
	if c.Categories.Primary == "" {
		c.Categories.Primary = defaultPrimaryCategory
	}
	seen := map[string]struct{}{c.Categories.Primary: {}}
	secondary := make([]string, 0, len(c.Categories.Secondary))
	for _, category := range c.Categories.Secondary {
		normalized := strings.ToLower(strings.TrimSpace(category))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		secondary = append(secondary, normalized)
	}
	c.Categories.Secondary = secondary
}

func (c *Config) normalizeGeocode() {
	c.Geocode.BaseURL = strings.TrimSpace(c.Geocode.BaseURL)
	if c.Geocode.BaseURL == "" {
		c.Geocode.BaseURL = defaultGeocodeBaseURL
	}
	if c.Geocode.RequestTimeout <= 0 {
		c.Geocode.RequestTimeout = defaultGeocodeTimeout
	}
	if c.Geocode.MaxRetries <= 0 {
		c.Geocode.MaxRetries = defaultGeocodeMaxRetries
	}
}

func (c *Config) normalizeValuation() {
	c.Valuation.BaseURL = strings.TrimSpace(c.Valuation.BaseURL)
	c.Valuation.APIKey = strings.TrimSpace(c.Valuation.APIKey)
	if c.Valuation.APIKey == "" {
		if value, ok := os.LookupEnv("SUMIKA_VALUATION_API_KEY"); ok {
			c.Valuation.APIKey = strings.TrimSpace(value)
		}
	}
	if c.Valuation.RequestTimeout <= 0 {
		c.Valuation.RequestTimeout = defaultValuationTimeout
	}
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.StageTimeout <= 0 {
		c.Pipeline.StageTimeout = defaultStageTimeoutSeconds
	}
	c.Pipeline.StageBinary = strings.TrimSpace(c.Pipeline.StageBinary)
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("SUMIKA_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeExport() {
	c.Export.DSN = strings.TrimSpace(c.Export.DSN)
	if c.Export.DSN == "" {
		if value, ok := os.LookupEnv("SUMIKA_EXPORT_DSN"); ok {
			c.Export.DSN = strings.TrimSpace(value)
		}
	}
	c.Export.Table = strings.TrimSpace(c.Export.Table)
	if c.Export.Table == "" {
		c.Export.Table = defaultExportTable
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
