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
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Data   DataConfig   `yaml:"data" mapstructure:"data"`
	Access AccessConfig `yaml:"access" mapstructure:"access"`
	Filter FilterConfig `yaml:"filter" mapstructure:"filter"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run-history database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// DataConfig holds input and output directory locations and the base
// names of the input layers, so datasets shipping e.g.
// sidewalks_and_trees.geojson work without renaming files.
type DataConfig struct {
	DataDir        string `yaml:"data_dir" mapstructure:"data_dir"`
	OutputDir      string `yaml:"output_dir" mapstructure:"output_dir"`
	WebDataDir     string `yaml:"web_data_dir" mapstructure:"web_data_dir"`
	BuildingsLayer string `yaml:"buildings_layer" mapstructure:"buildings_layer"`
	AmenitiesLayer string `yaml:"amenities_layer" mapstructure:"amenities_layer"`
	TreesLayer     string `yaml:"trees_layer" mapstructure:"trees_layer"`
	ParksLayer     string `yaml:"parks_layer" mapstructure:"parks_layer"`
}

// AccessConfig configures the accessibility aggregation.
type AccessConfig struct {
	RadiusM        float64  `yaml:"radius_m" mapstructure:"radius_m"`
	TypeProperty   string   `yaml:"type_property" mapstructure:"type_property"`
	ExcludedTypes  []string `yaml:"excluded_types" mapstructure:"excluded_types"`
	KeepProperties []string `yaml:"keep_properties" mapstructure:"keep_properties"`
	Concurrency    int      `yaml:"concurrency" mapstructure:"concurrency"`
}

// FilterConfig configures the study-area distance filter.
type FilterConfig struct {
	MaxDistanceKM float64 `yaml:"max_distance_km" mapstructure:"max_distance_km"`
	BoundaryLayer string  `yaml:"boundary_layer" mapstructure:"boundary_layer"`
}

// ServerConfig configures the data server.
type ServerConfig struct {
	Port      int     `yaml:"port" mapstructure:"port"`
	StaticDir string  `yaml:"static_dir" mapstructure:"static_dir"`
	RateRPS   float64 `yaml:"rate_rps" mapstructure:"rate_rps"`
	RateBurst int     `yaml:"rate_burst" mapstructure:"rate_burst"`
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
	v.SetEnvPrefix("ACCESSMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "accessmap.db")
	v.SetDefault("data.data_dir", "data")
	v.SetDefault("data.output_dir", "output")
	v.SetDefault("data.web_data_dir", "web/data")
	v.SetDefault("data.buildings_layer", "buildings")
	v.SetDefault("data.amenities_layer", "amenities")
	v.SetDefault("data.trees_layer", "trees")
	v.SetDefault("data.parks_layer", "parks")
	v.SetDefault("access.radius_m", 100.0)
	v.SetDefault("access.type_property", "top_classi")
	v.SetDefault("access.excluded_types", []string{"none", "other", "private_establishment"})
	v.SetDefault("access.keep_properties", []string{
		"name", "hebrew_nam", "english_na", "amenity_type", "top_classi", "subcategor",
	})
	v.SetDefault("access.concurrency", 4)
	v.SetDefault("filter.max_distance_km", 10.0)
	v.SetDefault("filter.boundary_layer", "neighborhoods.geojson")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.static_dir", "web")
	v.SetDefault("server.rate_rps", 50.0)
	v.SetDefault("server.rate_burst", 100)
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
