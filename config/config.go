package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nstehr/creep/creep-core/rules"
)

// Config holds all sidecar settings.
type Config struct {
	LogLevel   string `yaml:"log_level"`
	SocketPath string `yaml:"socket_path"`

	// HTTPAddr serves the inspector and the websocket bridge. Empty disables it.
	HTTPAddr string `yaml:"http_addr"`

	// MinTickLimit is the Game.cpu.tickLimit below which ticks are skipped
	// so the bucket can refill.
	MinTickLimit int `yaml:"min_tick_limit"`

	Storage StorageConfig `yaml:"storage"`

	// Rules replace the default tile classification when non-empty.
	Rules []RuleConfig `yaml:"rules"`
}

// StorageConfig selects the terrain cache backend.
type StorageConfig struct {
	Driver   string         `yaml:"driver"` // none, file, postgres
	FilePath string         `yaml:"file_path"`
	Database DatabaseConfig `yaml:"database"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RuleConfig struct {
	Name      string `yaml:"name"`
	Priority  int    `yaml:"priority"`
	Category  string `yaml:"category"`
	Exclusive bool   `yaml:"exclusive"`
	Condition string `yaml:"condition"`
}

// Default returns Config with sensible defaults.
func Default() Config {
	return Config{
		LogLevel:     "info",
		SocketPath:   "/tmp/creep.sock",
		HTTPAddr:     "127.0.0.1:8787",
		MinTickLimit: 450,
		Storage: StorageConfig{
			Driver:   "file",
			FilePath: "data/terrain.json",
			Database: DatabaseConfig{
				Host:     "127.0.0.1",
				Port:     5432,
				User:     "creep",
				Password: "creep",
				DBName:   "creep",
				SSLMode:  "disable",
			},
		},
	}
}

// Load loads config from a YAML file.
// If the file doesn't exist, returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("validating config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Storage.Driver {
	case "", "none", "file", "postgres":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "file" && c.Storage.FilePath == "" {
		return fmt.Errorf("storage.file_path is required for the file driver")
	}
	if c.MinTickLimit < 0 {
		return fmt.Errorf("min_tick_limit must not be negative")
	}
	return nil
}

// TileRules converts configured rules, falling back to rules.DefaultRules.
func (c Config) TileRules() []*rules.Rule {
	if len(c.Rules) == 0 {
		return rules.DefaultRules()
	}
	out := make([]*rules.Rule, 0, len(c.Rules))
	for _, r := range c.Rules {
		out = append(out, &rules.Rule{
			Name:         r.Name,
			Priority:     r.Priority,
			Category:     r.Category,
			Exclusive:    r.Exclusive,
			ConditionSrc: r.Condition,
		})
	}
	return out
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
