// Package config loads the stk client configuration from YAML with STK_*
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/GChainey/substackToKindle/internal/client"
	"github.com/GChainey/substackToKindle/internal/history"
	"github.com/GChainey/substackToKindle/internal/poller"
	"github.com/GChainey/substackToKindle/internal/store"
)

const (
	appDirName  = "stk"
	envPrefix   = "STK"
	logFileName = "stk.log"
)

// Config is the client configuration.
type Config struct {
	APIURL       string        `mapstructure:"api_url" yaml:"api_url"`
	Transport    string        `mapstructure:"transport" yaml:"transport"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	HTTPTimeout  time.Duration `mapstructure:"http_timeout" yaml:"http_timeout"`
	StateDir     string        `mapstructure:"state_dir" yaml:"state_dir"`
	LogFile      string        `mapstructure:"log_file" yaml:"log_file"`
	LogLevel     string        `mapstructure:"log_level" yaml:"log_level"`
	HistoryLimit int           `mapstructure:"history_limit" yaml:"history_limit"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		APIURL:       client.DefaultBaseURL,
		Transport:    "sse",
		PollInterval: poller.DefaultInterval,
		HTTPTimeout:  10 * time.Second,
		StateDir:     store.DefaultDir(),
		LogLevel:     "info",
		HistoryLimit: history.DefaultLimit,
	}
}

// DefaultPath returns ~/.config/stk/config.yaml, respecting XDG_CONFIG_HOME.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appDirName, "config.yaml"), nil
}

// Load reads configuration from path. If path is empty, uses DefaultPath.
// A missing file is not an error; defaults and environment apply.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg := Default()
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("api_url", cfg.APIURL)
	v.SetDefault("transport", cfg.Transport)
	v.SetDefault("poll_interval", cfg.PollInterval)
	v.SetDefault("http_timeout", cfg.HTTPTimeout)
	v.SetDefault("state_dir", cfg.StateDir)
	v.SetDefault("log_file", cfg.LogFile)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("history_limit", cfg.HistoryLimit)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}

	cfg.APIURL = strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	cfg.Transport = strings.ToLower(strings.TrimSpace(cfg.Transport))
	cfg.StateDir = os.ExpandEnv(cfg.StateDir)
	cfg.LogFile = os.ExpandEnv(cfg.LogFile)
	if cfg.LogFile == "" {
		cfg.LogFile = filepath.Join(cfg.StateDir, logFileName)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later and obscurely.
func (c Config) Validate() error {
	parsed, err := url.Parse(c.APIURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("api_url must include scheme and host (e.g. http://localhost:8000/api)")
	}
	switch c.Transport {
	case "sse", "websocket":
	default:
		return fmt.Errorf("unsupported transport %q (want sse or websocket)", c.Transport)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http_timeout must be positive")
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("history_limit must not be negative")
	}
	return nil
}

// fileView is the on-disk shape written by WriteDefault; durations are
// written as strings so the file stays editable.
type fileView struct {
	APIURL       string `yaml:"api_url"`
	Transport    string `yaml:"transport"`
	PollInterval string `yaml:"poll_interval"`
	HTTPTimeout  string `yaml:"http_timeout"`
	StateDir     string `yaml:"state_dir"`
	LogFile      string `yaml:"log_file,omitempty"`
	LogLevel     string `yaml:"log_level"`
	HistoryLimit int    `yaml:"history_limit"`
}

// WriteDefault writes the default config to path and returns the path used.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg := Default()
	data, err := yaml.Marshal(fileView{
		APIURL:       cfg.APIURL,
		Transport:    cfg.Transport,
		PollInterval: cfg.PollInterval.String(),
		HTTPTimeout:  cfg.HTTPTimeout.String(),
		StateDir:     cfg.StateDir,
		LogLevel:     cfg.LogLevel,
		HistoryLimit: cfg.HistoryLimit,
	})
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
