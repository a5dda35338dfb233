// Package config loads thumbs configuration from JSONC files, environment and
// command line overrides.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/tailscale/hujson"

	"github.com/calvinalkan/thumbs/internal/grid"
	"github.com/calvinalkan/thumbs/internal/logger"
	"github.com/calvinalkan/thumbs/internal/thumbcache"
)

// Error variables for config loading.
var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrConfigInvalid      = errors.New("invalid config file")
	ErrCacheDirEmpty      = errors.New("cache_dir cannot be empty")
	ErrThumbSizes         = errors.New("thumb_sizes must be positive and strictly ascending")
	ErrZoomLevel          = errors.New("zoom_level out of range")
	ErrNegative           = errors.New("must not be negative")
	ErrWorkers            = errors.New("workers must be at least 1")
	ErrQueueCapacity      = errors.New("queue_capacity must be at least 1")
)

// ProjectFileName is the per-directory config file picked up from the work
// directory when no explicit config is given.
const ProjectFileName = ".thumbs.json"

// Defaults for values not set anywhere.
const (
	DefaultZoomLevel      = 3
	DefaultGridGap        = 10
	DefaultPrefetchMargin = 20
	DefaultQueueCapacity  = 256
)

// Config holds all configuration options.
type Config struct {
	// From config files (serialized)
	CacheDir       string `json:"cache_dir,omitempty"`
	Private        bool   `json:"private"`
	ThumbSizes     []int  `json:"thumb_sizes"`
	ZoomLevel      int    `json:"zoom_level"`
	GridGap        int    `json:"grid_gap"`
	PrefetchMargin int    `json:"prefetch_margin"`
	Workers        int    `json:"workers"`
	QueueCapacity  int    `json:"queue_capacity"`
	LogLevel       string `json:"log_level"`
	LogFormat      string `json:"log_format"`

	// Resolved (computed, not serialized)
	WorkDir   string `json:"-"` // Absolute working directory
	CacheRoot string `json:"-"` // Absolute cache root

	// Sources tracks which config files were loaded (for diagnostics)
	Sources Sources `json:"-"`
}

// Sources tracks which config files were loaded.
type Sources struct {
	Global  string // Path to global config if loaded, empty otherwise
	Project string // Path to project or explicit config if loaded, empty otherwise
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		ThumbSizes:     slices.Clone(grid.DefaultThumbSizes),
		ZoomLevel:      DefaultZoomLevel,
		GridGap:        DefaultGridGap,
		PrefetchMargin: DefaultPrefetchMargin,
		Workers:        max(runtime.NumCPU(), 1),
		QueueCapacity:  DefaultQueueCapacity,
		LogLevel:       "warn",
		LogFormat:      logger.FormatText,
	}
}

// fileConfig is one config file as written. Pointer fields tell "unset"
// apart from zero values.
type fileConfig struct {
	CacheDir       *string `json:"cache_dir"`
	Private        *bool   `json:"private"`
	ThumbSizes     []int   `json:"thumb_sizes"`
	ZoomLevel      *int    `json:"zoom_level"`
	GridGap        *int    `json:"grid_gap"`
	PrefetchMargin *int    `json:"prefetch_margin"`
	Workers        *int    `json:"workers"`
	QueueCapacity  *int    `json:"queue_capacity"`
	LogLevel       *string `json:"log_level"`
	LogFormat      *string `json:"log_format"`
}

// Overrides are command line values. Zero values mean "not given".
type Overrides struct {
	CacheDir  string
	Private   bool
	Workers   int
	LogLevel  string
	LogFormat string
}

// LoadInput holds the inputs for Load.
type LoadInput struct {
	WorkDir    string            // if empty, os.Getwd() is used
	ConfigPath string            // -c/--config flag value
	Overrides  Overrides         // flag values
	Env        map[string]string // environment variables
}

// globalPath returns $XDG_CONFIG_HOME/thumbs/config.json if set, otherwise
// ~/.config/thumbs/config.json. Empty if neither variable is set.
func globalPath(env map[string]string) string {
	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, thumbcache.DirName, "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", thumbcache.DirName, "config.json")
	}

	return ""
}

// Load loads configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config (~/.config/thumbs/config.json or $XDG_CONFIG_HOME/thumbs/config.json)
// 3. Project config file in the work directory (.thumbs.json, if exists),
// or the explicit config file given by ConfigPath instead
// 4. CLI overrides.
//
// The cache root is resolved last: cache_dir relative to the work directory,
// or the user cache directory from Env when cache_dir is unset.
func Load(input LoadInput) (Config, error) {
	workDir := input.WorkDir
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	cfg := Default()

	if path := globalPath(input.Env); path != "" {
		fc, loaded, err := loadFile(path, false)
		if err != nil {
			return Config{}, err
		}

		if loaded {
			cfg = merge(cfg, fc)
			cfg.Sources.Global = path
		}
	}

	projectCfg, projectPath, err := loadProject(workDir, input.ConfigPath)
	if err != nil {
		return Config{}, err
	}

	if projectPath != "" {
		cfg = merge(cfg, projectCfg)
		cfg.Sources.Project = projectPath
	}

	cfg = apply(cfg, input.Overrides)

	err = Validate(cfg)
	if err != nil {
		return Config{}, err
	}

	cfg.WorkDir = workDir

	switch {
	case cfg.CacheDir == "":
		cfg.CacheRoot, err = thumbcache.ResolveRoot(input.Env)
		if err != nil {
			return Config{}, fmt.Errorf("%w (set cache_dir, XDG_CACHE_HOME or HOME)", err)
		}
	case filepath.IsAbs(cfg.CacheDir):
		cfg.CacheRoot = filepath.Clean(cfg.CacheDir)
	default:
		cfg.CacheRoot = filepath.Join(workDir, cfg.CacheDir)
	}

	return cfg, nil
}

// loadProject loads the explicit config file, which must exist, or the
// optional .thumbs.json in workDir. The returned path is empty when nothing
// was loaded.
func loadProject(workDir, configPath string) (fileConfig, string, error) {
	if configPath == "" {
		path := filepath.Join(workDir, ProjectFileName)

		fc, loaded, err := loadFile(path, false)
		if err != nil || !loaded {
			return fileConfig{}, "", err
		}

		return fc, path, nil
	}

	path := configPath
	if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}

	_, statErr := os.Stat(path)
	if statErr != nil {
		return fileConfig{}, "", fmt.Errorf("%w: %s", ErrConfigFileNotFound, configPath)
	}

	fc, _, err := loadFile(path, true)
	if err != nil {
		return fileConfig{}, "", err
	}

	return fc, path, nil
}

// loadFile reads one config file. If mustExist is false, a missing file is
// not an error and loaded is false.
func loadFile(path string, mustExist bool) (fileConfig, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return fileConfig{}, false, nil
		}

		return fileConfig{}, false, fmt.Errorf("%w: %s: %w", ErrConfigFileRead, path, err)
	}

	fc, err := parse(data)
	if err != nil {
		return fileConfig{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	return fc, true, nil
}

func parse(data []byte) (fileConfig, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fileConfig{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var fc fileConfig

	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.DisallowUnknownFields()

	err = dec.Decode(&fc)
	if err != nil {
		return fileConfig{}, fmt.Errorf("invalid JSON: %w", err)
	}

	if fc.CacheDir != nil && strings.TrimSpace(*fc.CacheDir) == "" {
		return fileConfig{}, ErrCacheDirEmpty
	}

	if fc.ThumbSizes != nil && len(fc.ThumbSizes) == 0 {
		return fileConfig{}, fmt.Errorf("%w: empty list", ErrThumbSizes)
	}

	return fc, nil
}

func merge(base Config, overlay fileConfig) Config {
	if overlay.CacheDir != nil {
		base.CacheDir = *overlay.CacheDir
	}

	if overlay.Private != nil {
		base.Private = *overlay.Private
	}

	if overlay.ThumbSizes != nil {
		base.ThumbSizes = slices.Clone(overlay.ThumbSizes)
	}

	setInt(&base.ZoomLevel, overlay.ZoomLevel)
	setInt(&base.GridGap, overlay.GridGap)
	setInt(&base.PrefetchMargin, overlay.PrefetchMargin)
	setInt(&base.Workers, overlay.Workers)
	setInt(&base.QueueCapacity, overlay.QueueCapacity)

	if overlay.LogLevel != nil {
		base.LogLevel = *overlay.LogLevel
	}

	if overlay.LogFormat != nil {
		base.LogFormat = *overlay.LogFormat
	}

	return base
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func apply(cfg Config, o Overrides) Config {
	if o.CacheDir != "" {
		cfg.CacheDir = o.CacheDir
	}

	if o.Private {
		cfg.Private = true
	}

	if o.Workers != 0 {
		cfg.Workers = o.Workers
	}

	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}

	if o.LogFormat != "" {
		cfg.LogFormat = o.LogFormat
	}

	return cfg
}

// Validate checks cfg for values the engine, pool or logger would reject.
func Validate(cfg Config) error {
	if len(cfg.ThumbSizes) == 0 {
		return fmt.Errorf("%w: empty list", ErrThumbSizes)
	}

	for i, size := range cfg.ThumbSizes {
		if size <= 0 || (i > 0 && size <= cfg.ThumbSizes[i-1]) {
			return fmt.Errorf("%w: %v", ErrThumbSizes, cfg.ThumbSizes)
		}
	}

	if cfg.ZoomLevel < 0 || cfg.ZoomLevel >= len(cfg.ThumbSizes) {
		return fmt.Errorf("%w: %d (have %d sizes)", ErrZoomLevel, cfg.ZoomLevel, len(cfg.ThumbSizes))
	}

	if cfg.GridGap < 0 {
		return fmt.Errorf("grid_gap %w: %d", ErrNegative, cfg.GridGap)
	}

	if cfg.PrefetchMargin < 0 {
		return fmt.Errorf("prefetch_margin %w: %d", ErrNegative, cfg.PrefetchMargin)
	}

	if cfg.Workers < 1 {
		return fmt.Errorf("%w: %d", ErrWorkers, cfg.Workers)
	}

	if cfg.QueueCapacity < 1 {
		return fmt.Errorf("%w: %d", ErrQueueCapacity, cfg.QueueCapacity)
	}

	_, err := logger.New(nil, logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return err
	}

	return nil
}

// LoggerConfig returns the logger settings of cfg.
func (c Config) LoggerConfig() logger.Config {
	return logger.Config{Level: c.LogLevel, Format: c.LogFormat}
}
