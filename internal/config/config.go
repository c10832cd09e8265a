package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"logwatch/internal/activitylog"
	"logwatch/internal/logging"
	"logwatch/internal/watcher"
)

const (
	EnvConfigFile = "LOGWATCH_CONFIG"

	BackendInotify  = "inotify"
	BackendFSNotify = "fsnotify"
)

// Config holds everything except the watched root, which only comes from
// the command line.
type Config struct {
	LogFile          string        `yaml:"log_file"`
	MaxWatches       int           `yaml:"max_watches"`
	ThrottleWindow   time.Duration `yaml:"throttle_window"`
	ThrottleCapacity int           `yaml:"throttle_capacity"`
	ThrottlePolicy   string        `yaml:"throttle_policy"`
	Backend          string        `yaml:"backend"`
	LogLevel         string        `yaml:"log_level"`
	MetricsFile      string        `yaml:"metrics_file"`
}

func Default() Config {
	backend := BackendInotify
	if runtime.GOOS != "linux" {
		backend = BackendFSNotify
	}
	return Config{
		LogFile:          activitylog.DefaultFileName,
		MaxWatches:       watcher.DefaultMaxWatches,
		ThrottleWindow:   watcher.DefaultThrottleWindow,
		ThrottleCapacity: watcher.DefaultThrottleCapacity,
		ThrottlePolicy:   watcher.ThrottlePolicyNone,
		Backend:          backend,
		LogLevel:         string(logging.LevelInfo),
	}
}

// Load applies defaults, the optional YAML file named by LOGWATCH_CONFIG,
// then LOGWATCH_* environment overrides, and validates the result.
func Load(getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := Default()

	if path := strings.TrimSpace(getenv(EnvConfigFile)); path != "" {
		payload, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := decodeYAML(payload, &cfg); err != nil {
			return cfg, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	applyEnv(&cfg, getenv)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func decodeYAML(payload []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(payload))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	if raw := strings.TrimSpace(getenv("LOGWATCH_LOG_FILE")); raw != "" {
		cfg.LogFile = raw
	}
	if raw := getenv("LOGWATCH_MAX_WATCHES"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			cfg.MaxWatches = parsed
		}
	}
	if raw := getenv("LOGWATCH_THROTTLE_WINDOW"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			cfg.ThrottleWindow = parsed
		}
	}
	if raw := getenv("LOGWATCH_THROTTLE_CAPACITY"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			cfg.ThrottleCapacity = parsed
		}
	}
	if raw := strings.TrimSpace(getenv("LOGWATCH_THROTTLE_POLICY")); raw != "" {
		cfg.ThrottlePolicy = strings.ToLower(raw)
	}
	if raw := strings.TrimSpace(getenv("LOGWATCH_BACKEND")); raw != "" {
		cfg.Backend = strings.ToLower(raw)
	}
	if raw := strings.TrimSpace(getenv("LOGWATCH_LOG_LEVEL")); raw != "" {
		cfg.LogLevel = raw
	}
	if raw := strings.TrimSpace(getenv("LOGWATCH_METRICS_FILE")); raw != "" {
		cfg.MetricsFile = raw
	}
}

func (cfg Config) Validate() error {
	var errs []error
	if strings.TrimSpace(cfg.LogFile) == "" {
		errs = append(errs, errors.New("log_file is required"))
	}
	if cfg.MaxWatches <= 0 || cfg.MaxWatches > watcher.MaxWatchLimit {
		errs = append(errs, fmt.Errorf("max_watches must be between 1 and %d, got %d", watcher.MaxWatchLimit, cfg.MaxWatches))
	}
	if cfg.ThrottleWindow <= 0 {
		errs = append(errs, fmt.Errorf("throttle_window must be positive, got %s", cfg.ThrottleWindow))
	}
	if cfg.ThrottleCapacity <= 0 || cfg.ThrottleCapacity > watcher.MaxThrottleCapacity {
		errs = append(errs, fmt.Errorf("throttle_capacity must be between 1 and %d, got %d", watcher.MaxThrottleCapacity, cfg.ThrottleCapacity))
	}
	switch cfg.ThrottlePolicy {
	case watcher.ThrottlePolicyNone, watcher.ThrottlePolicyLRU:
	default:
		errs = append(errs, fmt.Errorf("unknown throttle_policy %q", cfg.ThrottlePolicy))
	}
	switch cfg.Backend {
	case BackendInotify, BackendFSNotify:
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", cfg.Backend))
	}
	if _, ok := logging.ParseLevel(cfg.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("unknown log_level %q", cfg.LogLevel))
	}
	return errors.Join(errs...)
}

// Level returns the parsed log level, falling back to info.
func (cfg Config) Level() logging.Level {
	level, ok := logging.ParseLevel(cfg.LogLevel)
	if !ok {
		return logging.LevelInfo
	}
	return level
}
