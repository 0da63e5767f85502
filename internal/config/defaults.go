package config

const (
	defaultDataDir               = "~/.local/share/sumika/data"
	defaultRawDir                = "~/.local/share/sumika/raw"
	defaultCacheDir              = "~/.local/share/sumika/cache"
	defaultLogDir                = "~/.local/share/sumika/logs"
	defaultAPIBind               = "127.0.0.1:7581"
	defaultPrimaryCategory       = "mansion"
	defaultGeocodeBaseURL        = "https://msearch.gsi.go.jp/address-search/AddressSearch"
	defaultGeocodeTimeout        = 10
	defaultGeocodeMaxRetries     = 3
	defaultValuationTimeout      = 15
	defaultStageTimeoutSeconds   = 1800
	defaultNotifyRequestTimeout  = 10
	defaultExportTable           = "listings"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			RawDir:   defaultRawDir,
			CacheDir: defaultCacheDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Categories: Categories{
			Primary:   defaultPrimaryCategory,
			Secondary: []string{"house"},
		},
		Geocode: Geocode{
			BaseURL:        defaultGeocodeBaseURL,
			RequestTimeout: defaultGeocodeTimeout,
			MaxRetries:     defaultGeocodeMaxRetries,
		},
		Commute: Commute{
			Destinations: []string{"東京", "新宿"},
		},
		Valuation: Valuation{
			RequestTimeout: defaultValuationTimeout,
		},
		Pipeline: Pipeline{
			StageTimeout: defaultStageTimeoutSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Changes:        true,
			Errors:         true,
		},
		Export: Export{
			Table: defaultExportTable,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
