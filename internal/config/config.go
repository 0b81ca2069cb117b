package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Source     SourceConfig     `yaml:"source" mapstructure:"source"`
	Geocode    GeocodeConfig    `yaml:"geocode" mapstructure:"geocode"`
	Match      MatchConfig      `yaml:"match" mapstructure:"match"`
	Refresh    RefreshConfig    `yaml:"refresh" mapstructure:"refresh"`
	FireDanger FireDangerConfig `yaml:"firedanger" mapstructure:"firedanger"`
	Routes     RoutesConfig     `yaml:"routes" mapstructure:"routes"`
	Registry   RegistryConfig   `yaml:"registry" mapstructure:"registry"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// SourceConfig points at the structured feed exports produced by the scrape
// collaborator.
type SourceConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// GeocodeConfig configures the coordinate-resolution waterfall.
type GeocodeConfig struct {
	Nominatim NominatimConfig `yaml:"nominatim" mapstructure:"nominatim"`
	Google    GoogleConfig    `yaml:"google" mapstructure:"google"`
	// PremiumBudget caps metered lookups per run; negative means unlimited.
	PremiumBudget int `yaml:"premium_budget" mapstructure:"premium_budget"`
	// EnrichQueueSize bounds the background premium-upgrade queue.
	EnrichQueueSize int `yaml:"enrich_queue_size" mapstructure:"enrich_queue_size"`
}

// NominatimConfig holds free-provider settings.
type NominatimConfig struct {
	BaseURL      string `yaml:"base_url" mapstructure:"base_url"`
	UserAgent    string `yaml:"user_agent" mapstructure:"user_agent"`
	CountryCodes string `yaml:"country_codes" mapstructure:"country_codes"`
}

// GoogleConfig holds metered-provider settings. An empty key disables the
// premium tier entirely.
type GoogleConfig struct {
	Key    string `yaml:"key" mapstructure:"key"`
	Region string `yaml:"region" mapstructure:"region"`
}

// MatchConfig holds the fuzzy-match acceptance thresholds.
type MatchConfig struct {
	FacilityThreshold float64 `yaml:"facility_threshold" mapstructure:"facility_threshold"`
	ClosureThreshold  float64 `yaml:"closure_threshold" mapstructure:"closure_threshold"`
}

// RefreshConfig configures snapshot freshness and geocode query anchoring.
type RefreshConfig struct {
	TTLHours int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
	Region   string `yaml:"region" mapstructure:"region"`
}

// FireDangerConfig configures the district rating source. The feed supplies
// polygons with live ratings; the shapefile is an offline boundary fallback.
type FireDangerConfig struct {
	FeedURL            string `yaml:"feed_url" mapstructure:"feed_url"`
	ShapefilePath      string `yaml:"shapefile_path" mapstructure:"shapefile_path"`
	ShapefileNameField string `yaml:"shapefile_name_field" mapstructure:"shapefile_name_field"`
	ShapefileCodeField string `yaml:"shapefile_code_field" mapstructure:"shapefile_code_field"`
}

// RoutesConfig configures driving estimates from a fixed origin.
type RoutesConfig struct {
	Enabled   bool    `yaml:"enabled" mapstructure:"enabled"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	OriginLat float64 `yaml:"origin_lat" mapstructure:"origin_lat"`
	OriginLon float64 `yaml:"origin_lon" mapstructure:"origin_lon"`
}

// RegistryConfig points at an optional facility/tag definitions file.
type RegistryConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. Every knob has a
// working default so a bare binary runs against the public endpoints.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FORESTWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("source.dir", "feeds")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "forest-watch.db")
	v.SetDefault("geocode.nominatim.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.nominatim.user_agent", "forest-watch/1.0")
	v.SetDefault("geocode.nominatim.country_codes", "au")
	v.SetDefault("geocode.premium_budget", 100)
	v.SetDefault("geocode.enrich_queue_size", 256)
	v.SetDefault("match.facility_threshold", 0.75)
	v.SetDefault("match.closure_threshold", 0.85)
	v.SetDefault("refresh.ttl_hours", 6)
	v.SetDefault("refresh.region", "NSW, Australia")
	v.SetDefault("firedanger.shapefile_name_field", "DIST_NAME")
	v.SetDefault("firedanger.shapefile_code_field", "DIST_NO")
	v.SetDefault("routes.base_url", "https://router.project-osrm.org")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
