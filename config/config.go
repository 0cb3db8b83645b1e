package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DatabasePath     string       `yaml:"database_path"`
	LedgerPath       string       `yaml:"ledger_path"`
	Timezone         string       `yaml:"timezone"`
	LogLevel         string       `yaml:"log_level"`
	LogFormat        string       `yaml:"log_format"`
	ReminderSchedule string       `yaml:"reminder_schedule"`
	DispatchSchedule string       `yaml:"dispatch_schedule"`
	Workers          int          `yaml:"workers"`
	ExportYears      int          `yaml:"export_years"`
	ServerPort       string       `yaml:"server_port"`
	TelegramToken    string       `yaml:"telegram_token"`
	API              APIConfig    `yaml:"api"`
	CalDAV           CalDAVConfig `yaml:"caldav"`

	location *time.Location
}

type APIConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type CalDAVConfig struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Calendar string `yaml:"calendar"`
}

// Enabled reports whether a CalDAV server and its credentials are set.
func (c CalDAVConfig) Enabled() bool {
	return c.URL != "" && c.Username != "" && c.Password != ""
}

func Default() *Config {
	return &Config{
		DatabasePath:     "./data/luach.db",
		LedgerPath:       "./data/ledger.db",
		Timezone:         "Asia/Jerusalem",
		LogLevel:         "info",
		LogFormat:        "text",
		ReminderSchedule: "0 * * * *",
		DispatchSchedule: "* * * * *",
		Workers:          4,
		ExportYears:      10,
		ServerPort:       "8080",
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty or missing), then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"DATABASE_PATH":      &c.DatabasePath,
		"LEDGER_PATH":        &c.LedgerPath,
		"TIMEZONE":           &c.Timezone,
		"LOG_LEVEL":          &c.LogLevel,
		"LOG_FORMAT":         &c.LogFormat,
		"REMINDER_SCHEDULE":  &c.ReminderSchedule,
		"DISPATCH_SCHEDULE":  &c.DispatchSchedule,
		"SERVER_PORT":        &c.ServerPort,
		"TELEGRAM_BOT_TOKEN": &c.TelegramToken,
		"API_USERNAME":       &c.API.Username,
		"API_PASSWORD":       &c.API.Password,
		"CALDAV_URL":         &c.CalDAV.URL,
		"CALDAV_USERNAME":    &c.CalDAV.Username,
		"CALDAV_PASSWORD":    &c.CalDAV.Password,
		"CALDAV_CALENDAR":    &c.CalDAV.Calendar,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"WORKERS":      &c.Workers,
		"EXPORT_YEARS": &c.ExportYears,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s must be a number", key)
			}
			*dst = n
		}
	}
	return nil
}

func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.DatabasePath, validation.Required),
		validation.Field(&c.LedgerPath, validation.Required),
		validation.Field(&c.Timezone, validation.Required),
		validation.Field(&c.LogFormat, validation.In("text", "json")),
		validation.Field(&c.ReminderSchedule, validation.Required, validation.By(cronSpec)),
		validation.Field(&c.DispatchSchedule, validation.Required, validation.By(cronSpec)),
		validation.Field(&c.Workers, validation.Required, validation.Min(1), validation.Max(64)),
		validation.Field(&c.ExportYears, validation.Min(1), validation.Max(100)),
		validation.Field(&c.ServerPort, validation.Required),
	); err != nil {
		return err
	}
	if c.API.Username != "" && c.API.Password == "" {
		return fmt.Errorf("api: username is set but password is empty")
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone: %w", err)
	}
	c.location = loc
	return nil
}

// Location is the server time zone. Valid after Validate.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

func cronSpec(value any) error {
	s, _ := value.(string)
	if _, err := cron.ParseStandard(s); err != nil {
		return fmt.Errorf("invalid cron spec: %w", err)
	}
	return nil
}
