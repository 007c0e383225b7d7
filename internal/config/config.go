package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
	APIBind string `toml:"api_bind"`
	EnvFile string `toml:"env_file"`
}

// Database selects the event store backend.
type Database struct {
	Driver       string `toml:"driver"` // sqlite | postgres
	Path         string `toml:"path"`   // sqlite file; defaults to <data_dir>/events.db
	DSN          string `toml:"dsn"`    // postgres connection string
	MaxOpenConns int    `toml:"max_open_conns"`
}

// Primary configures the model that enumerates events for a city and week.
type Primary struct {
	Protocol       string  `toml:"protocol"` // chat | messages
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	APIKey         string  `toml:"api_key"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	MaxTokens      int     `toml:"max_tokens"`
	Temperature    float64 `toml:"temperature"`
}

// Verification configures the fact-check model and its retry and fan-out budget.
type Verification struct {
	Protocol          string  `toml:"protocol"`
	BaseURL           string  `toml:"base_url"`
	Model             string  `toml:"model"`
	APIKey            string  `toml:"api_key"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	MaxTokens         int     `toml:"max_tokens"`
	Temperature       float64 `toml:"temperature"`
	MaxAttempts       int     `toml:"max_attempts"`
	BackoffMS         int     `toml:"backoff_ms"`
	Workers           int     `toml:"workers"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	CacheTTLMinutes   int     `toml:"cache_ttl_minutes"`
}

// Ingest controls which cities are ingested and when the scheduler runs.
type Ingest struct {
	DefaultCity      string   `toml:"default_city"`
	Cities           []string `toml:"cities"`
	WindowWeeks      int      `toml:"window_weeks"`
	RunAt            string   `toml:"run_at"`
	Timezone         string   `toml:"timezone"`
	SchedulerEnabled bool     `toml:"scheduler_enabled"`
}

// Notifications configures ntfy delivery of scheduled run results.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"` // full topic URL; empty disables notifications
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	OnSuccess             bool   `toml:"on_success"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for eventscout.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories, API bind address, .env file
//   - Database: sqlite or postgres event store
//   - Primary: event discovery model endpoint
//   - Verification: fact-check model endpoint, retries and worker budget
//   - Ingest: cities, rolling window, and daily schedule
//   - Notifications: ntfy topic for scheduled run results
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Database      Database      `toml:"database"`
	Primary       Primary       `toml:"primary"`
	Verification  Verification  `toml:"verification"`
	Ingest        Ingest        `toml:"ingest"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`

	location *time.Location
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A missing file yields the defaults.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadEnvFile(cfg.Paths.EnvFile); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("eventscout.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// loadEnvFile populates the process environment from a dotenv file without
// overriding variables that are already set. A missing file is ignored.
func loadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	expanded, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("paths.env_file: %w", err)
	}
	if _, err := os.Stat(expanded); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat env file: %w", err)
	}
	if err := godotenv.Load(expanded); err != nil {
		return fmt.Errorf("load env file %s: %w", expanded, err)
	}
	return nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir, c.CityLockDir()}
	if c.Database.Driver == DriverSQLite {
		dirs = append(dirs, filepath.Dir(c.Database.Path))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DaemonLockPath is the single-instance lock held by a running daemon.
func (c *Config) DaemonLockPath() string {
	return filepath.Join(c.Paths.DataDir, "eventscoutd.lock")
}

// CityLockDir holds the per-city advisory lock files used by ingestion runs.
func (c *Config) CityLockDir() string {
	return filepath.Join(c.Paths.DataDir, "locks")
}

// Location returns the timezone used for schedules and default target dates.
func (c *Config) Location() *time.Location {
	if c.location != nil {
		return c.location
	}
	return time.Local
}

// RunAtClock returns the hour and minute of the daily scheduled run.
func (c *Config) RunAtClock() (int, int) {
	parsed, err := time.Parse("15:04", c.Ingest.RunAt)
	if err != nil {
		return 3, 0
	}
	return parsed.Hour(), parsed.Minute()
}

// IngestCities returns the cities the scheduler walks, falling back to the default city.
func (c *Config) IngestCities() []string {
	if len(c.Ingest.Cities) > 0 {
		return append([]string(nil), c.Ingest.Cities...)
	}
	if c.Ingest.DefaultCity == "" {
		return nil
	}
	return []string{c.Ingest.DefaultCity}
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains the connection settings one model endpoint needs.
type LLMConfig struct {
	Protocol       string
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
	MaxTokens      int
	Temperature    float64
}

// Configured reports whether the endpoint has a credential.
func (l LLMConfig) Configured() bool {
	return strings.TrimSpace(l.APIKey) != ""
}

// PrimaryLLM returns the settings for the event discovery endpoint.
func (c *Config) PrimaryLLM() LLMConfig {
	return LLMConfig{
		Protocol:       c.Primary.Protocol,
		APIKey:         strings.TrimSpace(c.Primary.APIKey),
		BaseURL:        strings.TrimSpace(c.Primary.BaseURL),
		Model:          strings.TrimSpace(c.Primary.Model),
		TimeoutSeconds: c.Primary.TimeoutSeconds,
		MaxTokens:      c.Primary.MaxTokens,
		Temperature:    c.Primary.Temperature,
	}
}

// VerificationLLM returns the settings for the fact-check endpoint. The
// credential never falls back to the primary key.
func (c *Config) VerificationLLM() LLMConfig {
	return LLMConfig{
		Protocol:       c.Verification.Protocol,
		APIKey:         strings.TrimSpace(c.Verification.APIKey),
		BaseURL:        strings.TrimSpace(c.Verification.BaseURL),
		Model:          strings.TrimSpace(c.Verification.Model),
		TimeoutSeconds: c.Verification.TimeoutSeconds,
		MaxTokens:      c.Verification.MaxTokens,
		Temperature:    c.Verification.Temperature,
	}
}
