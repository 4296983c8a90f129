// Package config loads evaluator settings from YAML files and the
// environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/chazu/brushcsg/pkg/intersect"
	"github.com/chazu/brushcsg/pkg/kernel/sdfx"
	"github.com/chazu/brushcsg/pkg/pipeline"
	"github.com/chazu/brushcsg/pkg/routing"
	"github.com/chazu/brushcsg/pkg/surface"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "BRUSHCSG_"

// Config is the top-level configuration.
//
// Thread Safety: Safe to read concurrently. Not safe to modify after creation.
type Config struct {
	Evaluator EvaluatorConfig `json:"evaluator" yaml:"evaluator"`
	Index     IndexConfig     `json:"index" yaml:"index"`
	Cache     CacheConfig     `json:"cache" yaml:"cache"`
	Preview   PreviewConfig   `json:"preview" yaml:"preview"`
	Logging   LoggingConfig   `json:"logging" yaml:"logging"`
}

// EvaluatorConfig controls pass concurrency.
type EvaluatorConfig struct {
	// Workers bounds the goroutines per fan-out; 0 means GOMAXPROCS.
	Workers int `json:"workers" yaml:"workers" validate:"gte=0,lte=1024"`
}

// IndexConfig controls the intersection index.
type IndexConfig struct {
	CellSize         float64 `json:"cell_size" yaml:"cell_size" validate:"gt=0"`
	MaxCellsPerBrush int     `json:"max_cells_per_brush" yaml:"max_cells_per_brush" validate:"gte=1"`
	PlaneEpsilon     float64 `json:"plane_epsilon" yaml:"plane_epsilon" validate:"gt=0,lt=1"`
}

// CacheConfig sizes the routing and surface caches.
type CacheConfig struct {
	RoutingTables int `json:"routing_tables" yaml:"routing_tables" validate:"gte=1"`
	Positions     int `json:"positions" yaml:"positions" validate:"gte=1"`
	Normals       int `json:"normals" yaml:"normals" validate:"gte=1"`
	UV            int `json:"uv" yaml:"uv" validate:"gte=1"`
	Lightmap      int `json:"lightmap" yaml:"lightmap" validate:"gte=1"`
}

// PreviewConfig controls the marching-cubes preview.
type PreviewConfig struct {
	Cells int `json:"cells" yaml:"cells" validate:"gte=8,lte=1024"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `json:"format" yaml:"format" validate:"oneof=text json"`
}

// Default returns the default configuration.
func Default() Config {
	ix := intersect.DefaultConfig()
	sizes := surface.DefaultCacheSizes()
	return Config{
		Evaluator: EvaluatorConfig{Workers: 0},
		Index: IndexConfig{
			CellSize:         ix.CellSize,
			MaxCellsPerBrush: ix.MaxCellsPerBrush,
			PlaneEpsilon:     ix.Epsilon,
		},
		Cache: CacheConfig{
			RoutingTables: routing.DefaultCacheSize,
			Positions:     sizes.Positions,
			Normals:       sizes.Normals,
			UV:            sizes.UV,
			Lightmap:      sizes.Lightmap,
		},
		Preview: PreviewConfig{Cells: sdfx.DefaultMeshCells},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load loads configuration with priority: env > file > defaults. A missing
// file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("config: load %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, os.Getenv); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	// Try YAML first, then JSON.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return fmt.Errorf("parse (tried YAML and JSON): YAML error: %v, JSON error: %w", err, jsonErr)
		}
	}
	return nil
}

// applyEnv overrides cfg from BRUSHCSG_* variables read through getenv.
func applyEnv(cfg *Config, getenv func(string) string) error {
	ints := []struct {
		key string
		dst *int
	}{
		{"WORKERS", &cfg.Evaluator.Workers},
		{"MAX_CELLS_PER_BRUSH", &cfg.Index.MaxCellsPerBrush},
		{"ROUTING_CACHE", &cfg.Cache.RoutingTables},
		{"PREVIEW_CELLS", &cfg.Preview.Cells},
	}
	for _, e := range ints {
		if v := getenv(EnvPrefix + e.key); v != "" {
			i, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, e.key, err)
			}
			*e.dst = i
		}
	}

	floats := []struct {
		key string
		dst *float64
	}{
		{"CELL_SIZE", &cfg.Index.CellSize},
		{"PLANE_EPSILON", &cfg.Index.PlaneEpsilon},
	}
	for _, e := range floats {
		if v := getenv(EnvPrefix + e.key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, e.key, err)
			}
			*e.dst = f
		}
	}

	if v := getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := getenv(EnvPrefix + "LOG_FORMAT"); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	return nil
}

var validate = validator.New()

// Validate checks every field against its constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	return nil
}

// Options converts the configuration to evaluator options.
func (c Config) Options(logger *slog.Logger) pipeline.Options {
	opts := pipeline.DefaultOptions()
	if c.Evaluator.Workers > 0 {
		opts.Workers = c.Evaluator.Workers
	}
	opts.Index = intersect.Config{
		CellSize:         c.Index.CellSize,
		MaxCellsPerBrush: c.Index.MaxCellsPerBrush,
		Epsilon:          c.Index.PlaneEpsilon,
	}
	opts.RoutingCacheSize = c.Cache.RoutingTables
	opts.SurfaceCache = surface.CacheSizes{
		Positions: c.Cache.Positions,
		Normals:   c.Cache.Normals,
		UV:        c.Cache.UV,
		Lightmap:  c.Cache.Lightmap,
	}
	opts.Logger = logger
	return opts
}

// Level returns the configured slog level.
func (c Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// NewLogger builds the logger described by the configuration.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.Level()}
	if c.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
