// Package config provides configuration management for the Clipsmith Agent.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	// Default values
	DefaultPort     = 8747
	DefaultLogLevel = "info"
	DefaultDataDir  = ".clipsmith"

	// Environment variable names
	EnvPort     = "CLIPSMITH_PORT"
	EnvLogLevel = "CLIPSMITH_LOG_LEVEL"
	EnvDataDir  = "CLIPSMITH_DATA_DIR"
	EnvHeadless = "CLIPSMITH_HEADLESS"

	// FFmpeg environment variable names
	EnvFFmpegPath  = "CLIPSMITH_FFMPEG"
	EnvFFprobePath = "CLIPSMITH_FFPROBE"
	EnvHWAccel     = "CLIPSMITH_HWACCEL"

	// Database filename
	DBFilename = "clipsmith.db"

	// Render defaults
	DefaultProbeTimeoutSeconds = 30
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	RenderDir() string
	OutputDir() string
	FFmpegPath() string
	FFprobePath() string
	HWAccel() string
	ProbeTimeout() time.Duration
	Headless() bool
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port     int
	logLevel string
	dataDir  string
	headless bool

	ffmpegPath  string
	ffprobePath string
	hwAccel     string
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:     DefaultPort,
		logLevel: DefaultLogLevel,
		dataDir:  defaultDataDir(),
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if h := os.Getenv(EnvHeadless); h != "" {
		headless, err := strconv.ParseBool(h)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		cfg.headless = headless
	}

	cfg.ffmpegPath = os.Getenv(EnvFFmpegPath)
	cfg.ffprobePath = os.Getenv(EnvFFprobePath)
	cfg.hwAccel = os.Getenv(EnvHWAccel)

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// RenderDir returns the scratch directory for in-progress renders
func (c *EnvConfig) RenderDir() string {
	return filepath.Join(c.dataDir, "render")
}

// OutputDir returns the default directory for finished renders
func (c *EnvConfig) OutputDir() string {
	return filepath.Join(c.dataDir, "output")
}

func (c *EnvConfig) FFmpegPath() string {
	return c.ffmpegPath
}

func (c *EnvConfig) FFprobePath() string {
	return c.ffprobePath
}

// HWAccel returns the ffmpeg hardware-acceleration hint, empty for
// software decoding
func (c *EnvConfig) HWAccel() string {
	return c.hwAccel
}

func (c *EnvConfig) ProbeTimeout() time.Duration {
	return time.Duration(DefaultProbeTimeoutSeconds) * time.Second
}

// Headless reports whether the agent runs without the tray UI
func (c *EnvConfig) Headless() bool {
	return c.headless
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
