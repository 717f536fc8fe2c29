package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Front-end modes
const (
	ModeAuto = "auto"
	ModeTUI  = "tui"
	ModeLine = "line"
)

// Config holds all application configuration
type Config struct {
	// Service settings
	ServerURL     string        `toml:"server_url" yaml:"server_url"`
	HealthPath    string        `toml:"health_path" yaml:"health_path"`
	AskPath       string        `toml:"ask_path" yaml:"ask_path"`
	HealthTimeout time.Duration `toml:"-" yaml:"-"`
	AskTimeout    time.Duration `toml:"-" yaml:"-"`
	PollInterval  time.Duration `toml:"-" yaml:"-"`
	Debug         bool          `toml:"debug" yaml:"debug"`

	// Manual connection retries
	RetryPerSecond float64 `toml:"retry_per_second" yaml:"retry_per_second"`
	RetryBurst     int     `toml:"retry_burst" yaml:"retry_burst"`

	// History settings
	HistoryPath  string `toml:"history_path" yaml:"history_path"`
	RecentLimit  int    `toml:"recent_limit" yaml:"recent_limit"`
	WatchHistory bool   `toml:"watch_history" yaml:"watch_history"`

	// Front-end and logging
	Mode    string `toml:"mode" yaml:"mode"`
	LogPath string `toml:"log_path" yaml:"log_path"`
	Verbose bool   `toml:"verbose" yaml:"verbose"`
}

// fileConfig mirrors Config for config files, where durations are written as strings ("5s").
type fileConfig struct {
	Config        `yaml:",inline"`
	HealthTimeout string `toml:"health_timeout" yaml:"health_timeout"`
	AskTimeout    string `toml:"ask_timeout" yaml:"ask_timeout"`
	PollInterval  string `toml:"poll_interval" yaml:"poll_interval"`
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		// Service defaults
		ServerURL:     "http://localhost:5000",
		HealthPath:    "/health",
		AskPath:       "/ask",
		HealthTimeout: 5 * time.Second,
		AskTimeout:    30 * time.Second,
		PollInterval:  30 * time.Second,

		RetryPerSecond: 1,
		RetryBurst:     3,

		// History defaults
		HistoryPath:  expandHome("~/.ragchat/chatbot_logs.json"),
		RecentLimit:  10,
		WatchHistory: true,

		Mode:    ModeAuto,
		LogPath: expandHome("~/.ragchat/ragchat.log"),
	}
}

// LoadFile overlays settings from a TOML or YAML file, chosen by extension.
// Keys absent from the file keep their current value.
func (c *Config) LoadFile(path string) error {
	fc := fileConfig{Config: *c}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	default:
		if _, err := toml.DecodeFile(path, &fc); err != nil {
			return fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	}

	durations := []struct {
		raw string
		dst *time.Duration
		key string
	}{
		{fc.HealthTimeout, &fc.Config.HealthTimeout, "health_timeout"},
		{fc.AskTimeout, &fc.Config.AskTimeout, "ask_timeout"},
		{fc.PollInterval, &fc.Config.PollInterval, "poll_interval"},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", d.key, d.raw, err)
		}
		*d.dst = v
	}

	fc.Config.HistoryPath = expandHome(fc.Config.HistoryPath)
	fc.Config.LogPath = expandHome(fc.Config.LogPath)
	*c = fc.Config
	return nil
}

// LoadEnv reads an optional .env file and overlays RAGCHAT_* variables.
// A missing .env file is not an error.
func (c *Config) LoadEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load env file: %w", err)
	}

	c.ServerURL = getEnv("RAGCHAT_SERVER_URL", c.ServerURL)
	c.HealthPath = getEnv("RAGCHAT_HEALTH_PATH", c.HealthPath)
	c.AskPath = getEnv("RAGCHAT_ASK_PATH", c.AskPath)
	c.HealthTimeout = getEnvDuration("RAGCHAT_HEALTH_TIMEOUT", c.HealthTimeout)
	c.AskTimeout = getEnvDuration("RAGCHAT_ASK_TIMEOUT", c.AskTimeout)
	c.PollInterval = getEnvDuration("RAGCHAT_POLL_INTERVAL", c.PollInterval)
	c.Debug = getEnvBool("RAGCHAT_DEBUG", c.Debug)
	c.HistoryPath = expandHome(getEnv("RAGCHAT_HISTORY_PATH", c.HistoryPath))
	c.RecentLimit = getEnvInt("RAGCHAT_RECENT_LIMIT", c.RecentLimit)
	c.WatchHistory = getEnvBool("RAGCHAT_WATCH_HISTORY", c.WatchHistory)
	c.Mode = getEnv("RAGCHAT_MODE", c.Mode)
	c.LogPath = expandHome(getEnv("RAGCHAT_LOG_PATH", c.LogPath))
	c.Verbose = getEnvBool("RAGCHAT_VERBOSE", c.Verbose)
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server URL cannot be empty")
	}
	if !strings.HasPrefix(c.HealthPath, "/") || !strings.HasPrefix(c.AskPath, "/") {
		return fmt.Errorf("health and ask paths must start with /")
	}
	if c.HealthTimeout <= 0 || c.AskTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("poll interval cannot be negative")
	}
	if c.RetryPerSecond <= 0 || c.RetryBurst < 1 {
		return fmt.Errorf("retry rate must be positive and burst at least 1")
	}
	if c.HistoryPath == "" {
		return fmt.Errorf("history path cannot be empty")
	}
	if c.RecentLimit < 1 {
		return fmt.Errorf("recent limit must be at least 1")
	}
	switch c.Mode {
	case ModeAuto, ModeTUI, ModeLine:
	default:
		return fmt.Errorf("unknown mode %q (want auto, tui or line)", c.Mode)
	}
	return nil
}

// expandHome expands the ~ in file paths to the user's home directory
func expandHome(path string) string {
	if len(path) > 0 && path[0] == '~' {
		return getHomeDir() + path[1:]
	}
	return path
}

// getHomeDir returns the user's home directory
func getHomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	// Fallback for Windows
	if home := os.Getenv("USERPROFILE"); home != "" {
		return home
	}
	return "."
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
