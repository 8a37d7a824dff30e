package main

import "errors"

// Config validation errors
var (
	ErrInvalidGroupSize   = errors.New("group_size must be at least 1")
	ErrInvalidPointCount  = errors.New("points_per_rank must be positive")
	ErrInvalidDimensions  = errors.New("dimensions must be positive")
	ErrInvalidLeafSize    = errors.New("leaf_size must be at least 1")
	ErrInvalidSampleProb  = errors.New("sample_probability must be in (0, 1]")
	ErrInvalidLogLevel    = errors.New("log_level must be debug, info, warn, or error")
	ErrInvalidLogFormat   = errors.New("log_format must be 'json' or 'console'")
	ErrInvalidArenaConfig = errors.New("arena_size must be positive when arena_path is set")
)

// Config is the simulation configuration, read from the environment.
type Config struct {
	GroupSize     int     `envconfig:"GROUP_SIZE" default:"4"`
	PointsPerRank int     `envconfig:"POINTS_PER_RANK" default:"100"`
	Dimensions    int     `envconfig:"DIMENSIONS" default:"2"`
	LeafSize      int     `envconfig:"LEAF_SIZE" default:"20"`
	SampleProb    float64 `envconfig:"SAMPLE_PROBABILITY" default:"0.5"`

	// ClusterSpread is the standard deviation of each synthetic Gaussian
	// cluster; cluster centers sit clusterSeparation apart per axis.
	ClusterSpread     float64 `envconfig:"CLUSTER_SPREAD" default:"1.0"`
	ClusterSeparation float64 `envconfig:"CLUSTER_SEPARATION" default:"20.0"`

	// ArenaPath, when set, places every rank's point buffers in
	// file-backed arenas <ArenaPath>.rank-<r> of ArenaSize bytes each.
	ArenaPath string `envconfig:"ARENA_PATH" default:""`
	ArenaSize int    `envconfig:"ARENA_SIZE" default:"67108864"`

	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"console"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:""`
}

// ValidateConfig validates the configuration and returns an error if invalid
func ValidateConfig(cfg *Config) error {
	if cfg.GroupSize < 1 {
		return ErrInvalidGroupSize
	}
	if cfg.PointsPerRank <= 0 {
		return ErrInvalidPointCount
	}
	if cfg.Dimensions <= 0 {
		return ErrInvalidDimensions
	}
	if cfg.LeafSize < 1 {
		return ErrInvalidLeafSize
	}
	if cfg.SampleProb <= 0 || cfg.SampleProb > 1 {
		return ErrInvalidSampleProb
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return ErrInvalidLogFormat
	}
	if cfg.ArenaPath != "" && cfg.ArenaSize <= 0 {
		return ErrInvalidArenaConfig
	}
	return nil
}
