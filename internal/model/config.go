package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// RoleEmployee is the only role that registers for background push.
const RoleEmployee = "employee"

// APIConfig holds settings for the REST collaborator.
type APIConfig struct {
	// BaseURL is the root URL of the backend (e.g., https://hr.example.com/api).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds every single HTTP request.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// MaxRetries is how many times a rate-limited request is retried.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
}

// RealtimeConfig holds settings for the realtime event transport.
type RealtimeConfig struct {
	URL            string `mapstructure:"url" yaml:"url"`
	ReconnectMinMs int    `mapstructure:"reconnect_min_ms" yaml:"reconnect_min_ms"`
	ReconnectMaxMs int    `mapstructure:"reconnect_max_ms" yaml:"reconnect_max_ms"`
}

// SessionConfig identifies the signed-in user.
type SessionConfig struct {
	UserID     string `mapstructure:"user_id" yaml:"user_id"`
	EmployeeID string `mapstructure:"employee_id" yaml:"employee_id"`
	Role       string `mapstructure:"role" yaml:"role"`
}

// PushConfig controls background push registration.
type PushConfig struct {
	Enabled      bool   `mapstructure:"enabled" yaml:"enabled"`
	EligibleRole string `mapstructure:"eligible_role" yaml:"eligible_role"`
	WorkerScript string `mapstructure:"worker_script" yaml:"worker_script"`
	WorkerScope  string `mapstructure:"worker_scope" yaml:"worker_scope"`
}

// StorageConfig locates the durable per-user storage.
type StorageConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file"`
}

// TimerConfig controls the elapsed display and the presence resync loop.
type TimerConfig struct {
	TickMs    int `mapstructure:"tick_ms" yaml:"tick_ms"`
	ResyncSec int `mapstructure:"resync_sec" yaml:"resync_sec"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API      APIConfig      `mapstructure:"api" yaml:"api"`
	Realtime RealtimeConfig `mapstructure:"realtime" yaml:"realtime"`
	Session  SessionConfig  `mapstructure:"session" yaml:"session"`
	Push     PushConfig     `mapstructure:"push" yaml:"push"`
	Storage  StorageConfig  `mapstructure:"storage" yaml:"storage"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Timer    TimerConfig    `mapstructure:"timer" yaml:"timer"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/workpresence/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "workpresence")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	dir := configDir()
	return &AppConfig{
		API: APIConfig{
			TimeoutSec: 30,
			MaxRetries: 3,
		},
		Realtime: RealtimeConfig{
			ReconnectMinMs: 500,
			ReconnectMaxMs: 30000,
		},
		Session: SessionConfig{
			Role: RoleEmployee,
		},
		Push: PushConfig{
			Enabled:      true,
			EligibleRole: RoleEmployee,
			WorkerScript: "/sw.js",
			WorkerScope:  "/",
		},
		Storage: StorageConfig{
			Path: filepath.Join(dir, "workpresence.db"),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
			File:   filepath.Join(dir, "workpresence.log"),
		},
		Timer: TimerConfig{
			TickMs:    1000,
			ResyncSec: 300,
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with WORKPRESENCE_ override file values.
// If the file does not exist, it returns the defaults (plus any overrides).
func LoadConfig(path string) (*AppConfig, error) {
	cfg := defaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("WORKPRESENCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults so missing keys resolve to sensible values, and so
	// AutomaticEnv knows which keys exist.
	v.SetDefault("api.base_url", cfg.API.BaseURL)
	v.SetDefault("api.timeout_sec", cfg.API.TimeoutSec)
	v.SetDefault("api.max_retries", cfg.API.MaxRetries)
	v.SetDefault("realtime.url", cfg.Realtime.URL)
	v.SetDefault("realtime.reconnect_min_ms", cfg.Realtime.ReconnectMinMs)
	v.SetDefault("realtime.reconnect_max_ms", cfg.Realtime.ReconnectMaxMs)
	v.SetDefault("session.user_id", cfg.Session.UserID)
	v.SetDefault("session.employee_id", cfg.Session.EmployeeID)
	v.SetDefault("session.role", cfg.Session.Role)
	v.SetDefault("push.enabled", cfg.Push.Enabled)
	v.SetDefault("push.eligible_role", cfg.Push.EligibleRole)
	v.SetDefault("push.worker_script", cfg.Push.WorkerScript)
	v.SetDefault("push.worker_scope", cfg.Push.WorkerScope)
	v.SetDefault("storage.path", cfg.Storage.Path)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.file", cfg.Log.File)
	v.SetDefault("timer.tick_ms", cfg.Timer.TickMs)
	v.SetDefault("timer.resync_sec", cfg.Timer.ResyncSec)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Session.EmployeeID == "" {
		cfg.Session.EmployeeID = cfg.Session.UserID
	}

	return cfg, nil
}

// Validate reports settings the client cannot run without.
func (c *AppConfig) Validate() error {
	var missing []string
	if c.API.BaseURL == "" {
		missing = append(missing, "api.base_url")
	}
	if c.Session.UserID == "" {
		missing = append(missing, "session.user_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("realtime", cfg.Realtime)
	v.Set("session", cfg.Session)
	v.Set("push", cfg.Push)
	v.Set("storage", cfg.Storage)
	v.Set("log", cfg.Log)
	v.Set("timer", cfg.Timer)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
