// Package config handles modelboard configuration loading and management.
package config

import "time"

// Config holds all settings.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Delivery   DeliveryConfig   `yaml:"delivery"`
	Viewer     ViewerConfig     `yaml:"viewer"`
	Annotation AnnotationConfig `yaml:"annotation"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig holds HTTP listener settings for the delivery service.
type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// DeliveryConfig holds local file and proxy settings.
type DeliveryConfig struct {
	// BaseURL is where a running delivery service is reachable, e.g.
	// "http://localhost:8080". Empty means local files are read in-process.
	BaseURL     string   `yaml:"base_url"`
	UseProxy    bool     `yaml:"use_proxy"` // route remote URLs through the proxy
	LocalRoots  []string `yaml:"local_roots"`
	AllowOrigin string   `yaml:"allow_origin"`

	ProxyTimeout time.Duration `yaml:"proxy_timeout"`
}

// ViewerConfig holds viewport, camera and preview settings.
type ViewerConfig struct {
	Width          int     `yaml:"width"`
	Height         int     `yaml:"height"`
	DPR            float64 `yaml:"dpr"`
	Background     string  `yaml:"background"`
	ClickTolerance float64 `yaml:"click_tolerance"`

	FovDegrees       float64 `yaml:"fov_degrees"`
	TargetSize       float64 `yaml:"target_size"`
	RescaleThreshold float64 `yaml:"rescale_threshold"`
	Margin           float64 `yaml:"margin"`
	MinDistanceRatio float64 `yaml:"min_distance_ratio"`
	MaxDistanceRatio float64 `yaml:"max_distance_ratio"`
	Damping          float64 `yaml:"damping"`

	Ambient        float64 `yaml:"ambient"`
	LightAzimuth   float64 `yaml:"light_azimuth"`   // degrees around Y from +Z
	LightElevation float64 `yaml:"light_elevation"` // degrees above the horizon
}

// AnnotationConfig holds the default pen style.
type AnnotationConfig struct {
	Color        string  `yaml:"color"`
	LineWidth    float64 `yaml:"line_width"`
	FontSize     float64 `yaml:"font_size"`
	EraserRadius float64 `yaml:"eraser_radius"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json

	// Rotating file output, disabled when LogFile is empty.
	LogFile    string `yaml:"log_file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   5 * time.Second,
		},
		Delivery: DeliveryConfig{
			AllowOrigin:  "*",
			ProxyTimeout: 60 * time.Second,
		},
		Viewer: ViewerConfig{
			Width:            1280,
			Height:           720,
			DPR:              1,
			Background:       "#ffffff",
			ClickTolerance:   4,
			FovDegrees:       60,
			TargetSize:       1,
			RescaleThreshold: 100,
			Margin:           1.5,
			MinDistanceRatio: 0.05,
			MaxDistanceRatio: 20,
			Damping:          0.08,
			Ambient:          0.6,
			LightAzimuth:     34,
			LightElevation:   48,
		},
		Annotation: AnnotationConfig{
			Color:        "#000000",
			LineWidth:    2,
			FontSize:     16,
			EraserRadius: 12,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   true,
		},
	}
}
