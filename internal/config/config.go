package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/triagemap/internal/geo"
	"github.com/sells-group/triagemap/internal/hotspot"
	"github.com/sells-group/triagemap/internal/zone"
)

// Config holds the full application configuration.
type Config struct {
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Feed      FeedConfig      `yaml:"feed" mapstructure:"feed"`
	Boundary  BoundaryConfig  `yaml:"boundary" mapstructure:"boundary"`
	Registry  RegistryConfig  `yaml:"registry" mapstructure:"registry"`
	Zone      ZoneConfig      `yaml:"zone" mapstructure:"zone"`
	Hotspot   HotspotConfig   `yaml:"hotspot" mapstructure:"hotspot"`
	Territory TerritoryConfig `yaml:"territory" mapstructure:"territory"`
	Resolve   ResolveConfig   `yaml:"resolve" mapstructure:"resolve"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// StoreConfig configures the case database.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// FeedConfig selects where per-disease region stats come from: "store"
// aggregates the local case database, "http" calls a remote service.
type FeedConfig struct {
	Source      string  `yaml:"source" mapstructure:"source"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// BoundaryConfig locates the boundary catalog. URL is only used by
// `boundary fetch`.
type BoundaryConfig struct {
	Path       string   `yaml:"path" mapstructure:"path"`
	URL        string   `yaml:"url" mapstructure:"url"`
	NameFields []string `yaml:"name_fields" mapstructure:"name_fields"`
}

// RegistryConfig locates the known-point registry. Empty means the embedded
// default.
type RegistryConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ZoneConfig holds the feed's tier cutoffs, in percent.
type ZoneConfig struct {
	RedThreshold  float64 `yaml:"red_threshold" mapstructure:"red_threshold"`
	BlueThreshold float64 `yaml:"blue_threshold" mapstructure:"blue_threshold"`
}

// Thresholds converts the config to zone thresholds.
func (z ZoneConfig) Thresholds() zone.Thresholds {
	return zone.Thresholds{Red: z.RedThreshold, Blue: z.BlueThreshold}
}

// HotspotConfig holds the hotspot marker radii in meters.
type HotspotConfig struct {
	InnerRadiusMeters float64 `yaml:"inner_radius_meters" mapstructure:"inner_radius_meters"`
	OuterRadiusMeters float64 `yaml:"outer_radius_meters" mapstructure:"outer_radius_meters"`
}

// Radii converts the config to hotspot radii.
func (h HotspotConfig) Radii() hotspot.Radii {
	return hotspot.Radii{InnerMeters: h.InnerRadiusMeters, OuterMeters: h.OuterRadiusMeters}
}

// TerritoryConfig is the fallback point for regions that cannot be placed.
type TerritoryConfig struct {
	CenterLat float64 `yaml:"center_lat" mapstructure:"center_lat"`
	CenterLon float64 `yaml:"center_lon" mapstructure:"center_lon"`
}

// Center returns the territory center.
func (t TerritoryConfig) Center() geo.Point {
	return geo.Point{Lat: t.CenterLat, Lon: t.CenterLon}
}

// ResolveConfig tunes the resolver's point memo.
type ResolveConfig struct {
	CacheSize int `yaml:"cache_size" mapstructure:"cache_size"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TRIAGEMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "triagemap.db")
	v.SetDefault("feed.source", "store")
	v.SetDefault("feed.base_url", "")
	v.SetDefault("feed.rate_limit", 10.0)
	v.SetDefault("feed.timeout_secs", 30)
	v.SetDefault("boundary.path", "")
	v.SetDefault("boundary.url", "")
	v.SetDefault("boundary.name_fields", []string{"NAME_2", "NAME_3", "name"})
	v.SetDefault("registry.path", "")
	v.SetDefault("zone.red_threshold", zone.DefaultRedThreshold)
	v.SetDefault("zone.blue_threshold", zone.DefaultBlueThreshold)
	v.SetDefault("hotspot.inner_radius_meters", hotspot.DefaultInnerRadiusMeters)
	v.SetDefault("hotspot.outer_radius_meters", hotspot.DefaultOuterRadiusMeters)
	v.SetDefault("territory.center_lat", 30.3753)
	v.SetDefault("territory.center_lon", 69.3451)
	v.SetDefault("resolve.cache_size", 0)

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

// Validate checks the settings a command mode needs. Modes: "serve",
// "map" (resolve and hotspots), "store" (migrate and import).
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		errs = append(errs, c.validateMap()...)
		errs = append(errs, c.validateStore()...)
	case "map":
		errs = append(errs, c.validateMap()...)
		if c.Feed.Source == "store" {
			errs = append(errs, c.validateStore()...)
		}
	case "store":
		errs = append(errs, c.validateStore()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateMap() []string {
	var errs []string
	if err := c.Zone.Thresholds().Validate(); err != nil {
		errs = append(errs, "zone thresholds must satisfy 0 <= blue_threshold <= red_threshold <= 100")
	}
	switch c.Feed.Source {
	case "store":
	case "http":
		if c.Feed.BaseURL == "" {
			errs = append(errs, "feed.base_url is required when feed.source is http")
		}
	default:
		errs = append(errs, fmt.Sprintf("feed.source must be store or http, got %q", c.Feed.Source))
	}
	if !c.Territory.Center().Valid() {
		errs = append(errs, "territory center out of range")
	}
	if c.Hotspot.InnerRadiusMeters > c.Hotspot.OuterRadiusMeters {
		errs = append(errs, "hotspot.inner_radius_meters must not exceed outer_radius_meters")
	}
	return errs
}

func (c *Config) validateStore() []string {
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		return []string{"store.database_url is required for postgres"}
	}
	return nil
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
