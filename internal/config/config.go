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
	Inputs     InputsConfig     `yaml:"inputs" mapstructure:"inputs"`
	Exclusions ExclusionsConfig `yaml:"exclusions" mapstructure:"exclusions"`
	Join       JoinConfig       `yaml:"join" mapstructure:"join"`
	Match      MatchConfig      `yaml:"match" mapstructure:"match"`
	Dedupe     DedupeConfig     `yaml:"dedupe" mapstructure:"dedupe"`
	Tools      ToolsConfig      `yaml:"tools" mapstructure:"tools"`
	MilePoint  MilePointConfig  `yaml:"milepoint" mapstructure:"milepoint"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run-history database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// InputsConfig names the source files for one region.
type InputsConfig struct {
	Region        string `yaml:"region" mapstructure:"region"`
	BridgeCSV     string `yaml:"bridge_csv" mapstructure:"bridge_csv"`
	BridgeXLSX    string `yaml:"bridge_xlsx" mapstructure:"bridge_xlsx"`
	OSMExtract    string `yaml:"osm_extract" mapstructure:"osm_extract"`
	RoadShapefile string `yaml:"road_shapefile" mapstructure:"road_shapefile"`
	JoinCSV       string `yaml:"join_csv" mapstructure:"join_csv"`
	OutputDir     string `yaml:"output_dir" mapstructure:"output_dir"`
}

// ExclusionsConfig names the externally materialized OSM-tag exclusion
// lists, one bridge-id CSV per funnel category. Empty paths skip the
// category.
type ExclusionsConfig struct {
	ExistingOSMBridgeCSV string `yaml:"existing_osm_bridge_csv" mapstructure:"existing_osm_bridge_csv"`
	FreewayCSV           string `yaml:"freeway_csv" mapstructure:"freeway_csv"`
	ParallelBridgeCSV    string `yaml:"parallel_bridge_csv" mapstructure:"parallel_bridge_csv"`
	TunnelCulvertCSV     string `yaml:"tunnel_culvert_csv" mapstructure:"tunnel_culvert_csv"`
}

// JoinConfig configures the spatial join stage.
type JoinConfig struct {
	DatabaseURL string   `yaml:"database_url" mapstructure:"database_url"`
	BufferM     float64  `yaml:"buffer_m" mapstructure:"buffer_m"`
	Predicates  []string `yaml:"predicates" mapstructure:"predicates"`
}

// MatchConfig holds the similarity thresholds that split the automated,
// review, and excluded bands.
type MatchConfig struct {
	AutomatedThreshold int `yaml:"automated_threshold" mapstructure:"automated_threshold"`
	ReviewFloor        int `yaml:"review_floor" mapstructure:"review_floor"`
}

// DedupeConfig configures the nearby-bridge conflict stage.
type DedupeConfig struct {
	RadiusM float64 `yaml:"radius_m" mapstructure:"radius_m"`
}

// ToolsConfig locates the external OSM tooling.
type ToolsConfig struct {
	OsmiumPath  string `yaml:"osmium_path" mapstructure:"osmium_path"`
	Ogr2ogrPath string `yaml:"ogr2ogr_path" mapstructure:"ogr2ogr_path"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// MilePointConfig configures the linear-referencing method inputs.
type MilePointConfig struct {
	RouteCSV  string `yaml:"route_csv" mapstructure:"route_csv"`
	BridgeCSV string `yaml:"bridge_csv" mapstructure:"bridge_csv"`
}

// PipelineConfig configures orchestration behavior.
type PipelineConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
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
	v.SetEnvPrefix("BRIDGEMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.path", "bridgematch.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("inputs.region", "kentucky")
	v.SetDefault("inputs.output_dir", "output")
	v.SetDefault("join.buffer_m", 30.0)
	v.SetDefault("join.predicates", []string{"intersects", "crosses"})
	v.SetDefault("match.automated_threshold", 75)
	v.SetDefault("match.review_floor", 60)
	v.SetDefault("dedupe.radius_m", 30.0)
	v.SetDefault("tools.osmium_path", "osmium")
	v.SetDefault("tools.ogr2ogr_path", "ogr2ogr")
	v.SetDefault("tools.timeout_secs", 600)
	v.SetDefault("pipeline.workers", 8)

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
