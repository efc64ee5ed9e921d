package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultCurrency   = "INR"
	DefaultTimezone   = "Asia/Kolkata"
	DefaultCalendarID = "primary"
	DefaultDueDays    = 30
	DefaultWatchCron  = "0 * * * *"
	DefaultPDFTimeout = "60s"
)

type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is "console" or "json".
	Format string `yaml:"format"`
}

// Config is the application configuration. Relative paths are resolved
// against the directory holding the config file.
type Config struct {
	DatabasePath   string    `yaml:"database_path"`
	CredentialsDir string    `yaml:"credentials_dir"`
	InvoicesDir    string    `yaml:"invoices_dir"`
	Currency       string    `yaml:"currency"`
	Timezone       string    `yaml:"timezone"`
	CalendarID     string    `yaml:"calendar_id"`
	ICSSource      string    `yaml:"ics_source,omitempty"`
	DueDays        int       `yaml:"due_days"`
	WatchCron      string    `yaml:"watch_cron"`
	PDFTimeout     string    `yaml:"pdf_timeout"`
	ChromePath     string    `yaml:"chrome_path,omitempty"`
	Log            LogConfig `yaml:"log"`

	baseDir string
}

func DefaultConfig() *Config {
	return &Config{
		DatabasePath:   "calbill.db",
		CredentialsDir: "credentials",
		InvoicesDir:    "invoices",
		Currency:       DefaultCurrency,
		Timezone:       DefaultTimezone,
		CalendarID:     DefaultCalendarID,
		DueDays:        DefaultDueDays,
		WatchCron:      DefaultWatchCron,
		PDFTimeout:     DefaultPDFTimeout,
		Log:            LogConfig{Level: "info", Format: "console"},
	}
}

// DefaultPath is ~/.config/calbill/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".config", "calbill", "config.yaml"), nil
}

// Normalize fills zero values with defaults so older or partial files
// still load.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if strings.TrimSpace(c.DatabasePath) == "" {
		c.DatabasePath = def.DatabasePath
	}
	if strings.TrimSpace(c.CredentialsDir) == "" {
		c.CredentialsDir = def.CredentialsDir
	}
	if strings.TrimSpace(c.InvoicesDir) == "" {
		c.InvoicesDir = def.InvoicesDir
	}
	c.Currency = strings.ToUpper(strings.TrimSpace(c.Currency))
	if c.Currency == "" {
		c.Currency = def.Currency
	}
	if strings.TrimSpace(c.Timezone) == "" {
		c.Timezone = def.Timezone
	}
	if strings.TrimSpace(c.CalendarID) == "" {
		c.CalendarID = def.CalendarID
	}
	if c.DueDays < 0 {
		c.DueDays = def.DueDays
	}
	if strings.TrimSpace(c.WatchCron) == "" {
		c.WatchCron = def.WatchCron
	}
	if strings.TrimSpace(c.PDFTimeout) == "" {
		c.PDFTimeout = def.PDFTimeout
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
		c.Log.Level = strings.ToLower(c.Log.Level)
	default:
		c.Log.Level = def.Log.Level
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
		c.Log.Format = strings.ToLower(c.Log.Format)
	default:
		c.Log.Format = def.Log.Format
	}
}

// Validate reports settings that cannot be defaulted away.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	if _, err := time.ParseDuration(c.PDFTimeout); err != nil {
		return fmt.Errorf("config: pdf_timeout %q: %w", c.PDFTimeout, err)
	}
	return nil
}

func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) RenderTimeout() time.Duration {
	d, err := time.ParseDuration(c.PDFTimeout)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultPDFTimeout)
	}
	return d
}

func (c *Config) resolve(p string) string {
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	if filepath.IsAbs(p) || c.baseDir == "" {
		return p
	}
	return filepath.Join(c.baseDir, p)
}

func (c *Config) Database() string { return c.resolve(c.DatabasePath) }

func (c *Config) Credentials() string { return c.resolve(c.CredentialsDir) }

func (c *Config) Invoices() string { return c.resolve(c.InvoicesDir) }

func (c *Config) CredentialsFile() string {
	return filepath.Join(c.Credentials(), "credentials.json")
}

func (c *Config) TokenFile() string {
	return filepath.Join(c.Credentials(), "token.json")
}

// Load reads the YAML file at path, writing a default one with 0600
// permissions on first run. A .env file in the working directory and
// CALBILL_* variables are applied on top.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}
	_ = godotenv.Load()

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg = FromEnv(cfg)
	cfg.Normalize()
	cfg.baseDir = filepath.Dir(path)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path atomically via a temp file and rename.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}
	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".calbill-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
