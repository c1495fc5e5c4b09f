/*
Package config loads the server configuration.

SOURCES (later wins):
  1. Defaults (DefaultConfig)
  2. YAML file (optional; a missing file means defaults)
  3. .env file in the working directory (optional)
  4. Environment variables:
       SHIFT_LISTEN, SHIFT_DB, SHIFT_ROSTER, SHIFT_LOG_LEVEL,
       SHIFT_LOG_FORMAT, TELEGRAM_BOT_TOKEN, TELEGRAM_CHAT_ID
  5. Command-line flags (applied by cmd/server)

EXAMPLE:
  listen: ":8080"
  database: "./data/shifts.db"
  roster: "./roster.yaml"
  log_level: info
  log_format: text
  allowed_origins: ["http://localhost:5173"]
  max_occurrences: 2000
  audit:
    enabled: true
    cron: "@hourly"
    horizon_days: 14
  telegram:
    token: ""
    chat_id: 0

SEE ALSO:
  - cmd/server/main.go: flag overrides and logger setup
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/warp/shift-engine/schedule"
)

// AuditConfig controls the periodic schedule audit.
type AuditConfig struct {
	Enabled bool `yaml:"enabled"`
	// Cron is a robfig/cron spec ("@hourly", "0 */6 * * *").
	Cron string `yaml:"cron"`
	// HorizonDays is how far ahead of today each run looks.
	HorizonDays int `yaml:"horizon_days"`
}

// TelegramConfig enables audit alerts to a Telegram chat.
type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

// Enabled reports whether both token and chat are set.
func (t TelegramConfig) Enabled() bool { return t.Token != "" && t.ChatID != 0 }

// Config is the top-level server configuration.
type Config struct {
	Listen         string         `yaml:"listen"`
	Database       string         `yaml:"database"`
	Roster         string         `yaml:"roster"`
	LogLevel       string         `yaml:"log_level"`
	LogFormat      string         `yaml:"log_format"` // text or json
	AllowedOrigins []string       `yaml:"allowed_origins"`
	MaxOccurrences int            `yaml:"max_occurrences"`
	Audit          AuditConfig    `yaml:"audit"`
	Telegram       TelegramConfig `yaml:"telegram"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		Listen:         ":8080",
		Database:       "shifts.db",
		LogLevel:       "info",
		LogFormat:      "text",
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		MaxOccurrences: schedule.DefaultMaxOccurrences,
		Audit: AuditConfig{
			Enabled:     true,
			Cron:        "@hourly",
			HorizonDays: 14,
		},
	}
}

// Normalize fills zero values with defaults and falls back on unknown
// log settings.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.Database == "" {
		c.Database = d.Database
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		c.LogLevel = d.LogLevel
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		c.LogFormat = d.LogFormat
	}
	if c.AllowedOrigins == nil {
		c.AllowedOrigins = d.AllowedOrigins
	}
	if c.MaxOccurrences <= 0 {
		c.MaxOccurrences = d.MaxOccurrences
	}
	if c.Audit.Cron == "" {
		c.Audit.Cron = d.Audit.Cron
	}
	if c.Audit.HorizonDays <= 0 {
		c.Audit.HorizonDays = d.Audit.HorizonDays
	}
}

// Load builds the configuration from path (optional), .env and the
// environment. An empty path skips the YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			logrus.WithField("path", path).Debug("config file not found, using defaults")
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.Normalize()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Listen = getEnv("SHIFT_LISTEN", c.Listen)
	c.Database = getEnv("SHIFT_DB", c.Database)
	c.Roster = getEnv("SHIFT_ROSTER", c.Roster)
	c.LogLevel = strings.ToLower(getEnv("SHIFT_LOG_LEVEL", c.LogLevel))
	c.LogFormat = strings.ToLower(getEnv("SHIFT_LOG_FORMAT", c.LogFormat))
	c.Telegram.Token = getEnv("TELEGRAM_BOT_TOKEN", c.Telegram.Token)

	if v, ok := os.LookupEnv("TELEGRAM_CHAT_ID"); ok && v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("TELEGRAM_CHAT_ID: %w", err)
		}
		c.Telegram.ChatID = id
	}
	return nil
}

// Logger returns a logrus logger configured from LogLevel and LogFormat.
func (c *Config) Logger() *logrus.Logger {
	log := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	if c.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultVal
}
