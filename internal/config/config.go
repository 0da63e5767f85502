package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	RawDir   string `toml:"raw_dir"`
	CacheDir string `toml:"cache_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Categories declares the property categories processed each run.
// The primary category is fatal when acquisition yields zero records;
// secondary categories degrade gracefully.
type Categories struct {
	Primary   string   `toml:"primary"`
	Secondary []string `toml:"secondary"`
}

// Geocode contains configuration for the address geocoding service.
type Geocode struct {
	BaseURL        string `toml:"base_url"`
	RequestTimeout int    `toml:"request_timeout"`
	MaxRetries     int    `toml:"max_retries"`
}

// Commute lists destination stations for commute-time enrichment.
type Commute struct {
	Destinations []string `toml:"destinations"`
}

// Valuation contains tuning for the third-party valuation lookup.
type Valuation struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Pipeline contains scheduler timing and stage invocation settings.
type Pipeline struct {
	// StageTimeout bounds each stage subprocess, in seconds.
	StageTimeout int `toml:"stage_timeout"`
	// StageBinary overrides the executable spawned per stage. Empty means
	// the running binary re-invokes itself.
	StageBinary string `toml:"stage_binary"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Changes        bool   `toml:"changes"`
	Errors         bool   `toml:"errors"`
}

// Export contains configuration for the optional Postgres dataset export.
type Export struct {
	Enabled bool   `toml:"enabled"`
	DSN     string `toml:"dsn"`
	Table   string `toml:"table"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for sumika.
//
// Configuration sections by subsystem:
//   - Paths: dataset, raw input, cache, and log directories plus API bind
//   - Categories: primary and secondary property categories
//   - Geocode: address geocoding endpoint
//   - Commute: commute enrichment destinations
//   - Valuation: valuation lookup endpoint
//   - Pipeline: stage timeout and invocation settings
//   - Notifications: ntfy push notification settings
//   - Export: Postgres export of the published dataset
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Categories    Categories    `toml:"categories"`
	Geocode       Geocode       `toml:"geocode"`
	Commute       Commute       `toml:"commute"`
	Valuation     Valuation     `toml:"valuation"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Notifications Notifications `toml:"notifications"`
	Export        Export        `toml:"export"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/sumika/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. A .env file next to the
// working directory is applied first so secret fallbacks resolve.
func Load(path string) (*Config, string, bool, error) {
	_ = godotenv.Load()

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/sumika/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("sumika.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for pipeline operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.RawDir, c.Paths.CacheDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// AllCategories returns the primary category followed by secondary categories.
func (c *Config) AllCategories() []string {
	out := make([]string, 0, 1+len(c.Categories.Secondary))
	out = append(out, c.Categories.Primary)
	out = append(out, c.Categories.Secondary...)
	return out
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
