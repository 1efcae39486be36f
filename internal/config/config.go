// Package config loads hindsight's settings from a YAML file, HINDSIGHT_
// environment variables, and defaults, and turns them into the objects
// the commands need.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes environment overrides, e.g. HINDSIGHT_ENGINE_PATH.
const EnvPrefix = "HINDSIGHT"

// Config holds the full application configuration.
type Config struct {
	Engine   EngineConfig   `yaml:"engine" mapstructure:"engine"`
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
	Archive  ArchiveConfig  `yaml:"archive" mapstructure:"archive"`
	Results  ResultsConfig  `yaml:"results" mapstructure:"results"`
	ChessCom ChessComConfig `yaml:"chesscom" mapstructure:"chesscom"`
	Metrics  MetricsConfig  `yaml:"metrics" mapstructure:"metrics"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// EngineConfig configures the engine process pool.
type EngineConfig struct {
	Path      string        `yaml:"path" mapstructure:"path"`
	Args      []string      `yaml:"args" mapstructure:"args"`
	PoolSize  int           `yaml:"pool_size" mapstructure:"pool_size"`
	Depth     int           `yaml:"depth" mapstructure:"depth"`
	MoveTime  time.Duration `yaml:"move_time" mapstructure:"move_time"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Threads   int           `yaml:"threads" mapstructure:"threads"`
	HashMB    int           `yaml:"hash_mb" mapstructure:"hash_mb"`
	CacheSize int           `yaml:"cache_size" mapstructure:"cache_size"`
}

// AnalysisConfig configures classification and aggregation.
type AnalysisConfig struct {
	MateCap            int    `yaml:"mate_cap" mapstructure:"mate_cap"`
	Inaccuracy         int    `yaml:"inaccuracy" mapstructure:"inaccuracy"`
	Mistake            int    `yaml:"mistake" mapstructure:"mistake"`
	Blunder            int    `yaml:"blunder" mapstructure:"blunder"`
	TopN               int    `yaml:"top_n" mapstructure:"top_n"`
	Granularity        string `yaml:"granularity" mapstructure:"granularity"`
	Player             string `yaml:"player" mapstructure:"player"`
	EndgameMaxMaterial int    `yaml:"endgame_max_material" mapstructure:"endgame_max_material"`
	EndgameAllowQueens bool   `yaml:"endgame_allow_queens" mapstructure:"endgame_allow_queens"`
	BreakerThreshold   int    `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	Concurrency        int    `yaml:"concurrency" mapstructure:"concurrency"`
}

// ArchiveConfig selects where raw monthly archives are kept.
type ArchiveConfig struct {
	// Backend is "disk", "gcs", or "s3".
	Backend  string `yaml:"backend" mapstructure:"backend"`
	Dir      string `yaml:"dir" mapstructure:"dir"`
	Bucket   string `yaml:"bucket" mapstructure:"bucket"`
	Prefix   string `yaml:"prefix" mapstructure:"prefix"`
	Region   string `yaml:"region" mapstructure:"region"`
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	Codec    string `yaml:"codec" mapstructure:"codec"`
}

// ResultsConfig locates the result database.
type ResultsConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ChessComConfig configures the game API client.
type ChessComConfig struct {
	Username string  `yaml:"username" mapstructure:"username"`
	BaseURL  string  `yaml:"base_url" mapstructure:"base_url"`
	Rate     float64 `yaml:"rate" mapstructure:"rate"`
	Months   int     `yaml:"months" mapstructure:"months"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.path", "stockfish")
	v.SetDefault("engine.args", []string{})
	v.SetDefault("engine.pool_size", 2)
	v.SetDefault("engine.depth", 12)
	v.SetDefault("engine.move_time", time.Duration(0))
	v.SetDefault("engine.timeout", 30*time.Second)
	v.SetDefault("engine.threads", 1)
	v.SetDefault("engine.hash_mb", 16)
	v.SetDefault("engine.cache_size", 100000)

	v.SetDefault("analysis.mate_cap", 1000)
	v.SetDefault("analysis.inaccuracy", 50)
	v.SetDefault("analysis.mistake", 150)
	v.SetDefault("analysis.blunder", 300)
	v.SetDefault("analysis.top_n", 5)
	v.SetDefault("analysis.granularity", "day")
	v.SetDefault("analysis.player", "")
	v.SetDefault("analysis.endgame_max_material", 10)
	v.SetDefault("analysis.endgame_allow_queens", false)
	v.SetDefault("analysis.breaker_threshold", 16)
	v.SetDefault("analysis.concurrency", 0)

	v.SetDefault("archive.backend", "disk")
	v.SetDefault("archive.dir", defaultDataDir("archives"))
	v.SetDefault("archive.bucket", "")
	v.SetDefault("archive.prefix", "")
	v.SetDefault("archive.region", "")
	v.SetDefault("archive.endpoint", "")
	v.SetDefault("archive.codec", "zstd")

	v.SetDefault("results.path", defaultDataDir("results.db"))

	v.SetDefault("chesscom.username", "")
	v.SetDefault("chesscom.base_url", "https://api.chess.com/pub/player")
	v.SetDefault("chesscom.rate", 2.0)
	v.SetDefault("chesscom.months", 12)

	v.SetDefault("metrics.addr", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// defaultDataDir places data under the user's data directory, falling
// back to the working directory.
func defaultDataDir(name string) string {
	if dir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(dir, ".local", "share", "hindsight", name)
	}
	return filepath.Join(".hindsight", name)
}

// Load reads configuration. When path is empty, hindsight.yaml is looked
// up in the working directory and the user config directory; a missing
// file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("hindsight")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "hindsight"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

// NewLogger builds a logger from cfg. Format "json" selects the
// production encoder; anything else the development console encoder.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("config: parse log level: %w", err)
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("config: build logger: %w", err)
	}
	return logger, nil
}

// InitLogger builds a logger from cfg and installs it as zap's global.
func InitLogger(cfg LogConfig) (*zap.Logger, error) {
	logger, err := NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}
