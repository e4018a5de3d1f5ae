package config

import (
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"

	"github.com/validaoxyz/slot-timeline/internal/logger"
)

// Config holds configuration values
type Config struct {
	LogsDir         string
	Workers         int
	ReparseInterval time.Duration
	MetricsPort     int
	SnapshotOut     string
	LineBufferKB    int
	FileCacheSize   int
	// unused cache entries older than this are dropped; 0 keeps them
	FileCacheTTL    time.Duration
	LogLevel        string
}

// Flags holds command line overrides; zero values leave the environment value in place.
type Flags struct {
	LogsDir         string
	Workers         int
	ReparseInterval time.Duration
	MetricsPort     int
	SnapshotOut     string
	LogLevel        string
}

// LoadConfig loads environment variables, applies flag overrides and validates the result
func LoadConfig(flags *Flags) (Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	cfg := Config{
		LogsDir:         getString("LOGS_DIR", "./logs"),
		SnapshotOut:     os.Getenv("SNAPSHOT_OUT"),
		LogLevel:        getString("LOG_LEVEL", "info"),
		Workers:         runtime.NumCPU(),
		ReparseInterval: 30 * time.Second,
		MetricsPort:     8086,
		LineBufferKB:    1024,
		FileCacheSize:   256,
		FileCacheTTL:    time.Hour,
	}

	var err error
	if cfg.Workers, err = getInt("PARSE_WORKERS", cfg.Workers); err != nil {
		return Config{}, err
	}
	if cfg.MetricsPort, err = getInt("METRICS_PORT", cfg.MetricsPort); err != nil {
		return Config{}, err
	}
	if cfg.LineBufferKB, err = getInt("LINE_BUFFER_KB", cfg.LineBufferKB); err != nil {
		return Config{}, err
	}
	if cfg.FileCacheSize, err = getInt("FILE_CACHE_SIZE", cfg.FileCacheSize); err != nil {
		return Config{}, err
	}
	if cfg.ReparseInterval, err = getDuration("REPARSE_INTERVAL", cfg.ReparseInterval); err != nil {
		return Config{}, err
	}
	if cfg.FileCacheTTL, err = getDuration("FILE_CACHE_TTL", cfg.FileCacheTTL); err != nil {
		return Config{}, err
	}

	if flags != nil {
		cfg.applyFlags(flags)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyFlags(f *Flags) {
	if f.LogsDir != "" {
		c.LogsDir = f.LogsDir
	}
	if f.Workers != 0 {
		c.Workers = f.Workers
	}
	if f.ReparseInterval != 0 {
		c.ReparseInterval = f.ReparseInterval
	}
	if f.MetricsPort != 0 {
		c.MetricsPort = f.MetricsPort
	}
	if f.SnapshotOut != "" {
		c.SnapshotOut = f.SnapshotOut
	}
	if f.LogLevel != "" {
		c.LogLevel = f.LogLevel
	}
}

func (c Config) Validate() error {
	switch {
	case c.LogsDir == "":
		return eris.New("logs directory must be set")
	case c.Workers <= 0:
		return eris.Errorf("workers must be positive, got %d", c.Workers)
	case c.ReparseInterval <= 0:
		return eris.Errorf("reparse interval must be positive, got %v", c.ReparseInterval)
	case c.MetricsPort <= 0 || c.MetricsPort > 65535:
		return eris.Errorf("invalid metrics port %d", c.MetricsPort)
	case c.LineBufferKB <= 0:
		return eris.Errorf("line buffer must be positive, got %d KB", c.LineBufferKB)
	case c.FileCacheSize <= 0:
		return eris.Errorf("file cache size must be positive, got %d", c.FileCacheSize)
	case c.FileCacheTTL < 0:
		return eris.Errorf("file cache ttl must not be negative, got %v", c.FileCacheTTL)
	}
	return nil
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, eris.Wrapf(err, "invalid %s %q", key, v)
	}
	return n, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, eris.Wrapf(err, "invalid %s %q", key, v)
	}
	return d, nil
}
