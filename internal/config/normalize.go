package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeDatabase(); err != nil {
		return err
	}
	c.normalizePrimary()
	c.normalizeVerification()
	if err := c.normalizeIngest(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(envOverride(c.Notifications.NtfyTopic, "EVENTSCOUT_NTFY_TOPIC"))
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNtfyTimeout
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeDatabase() error {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	switch c.Database.Driver {
	case "", "sqlite3":
		c.Database.Driver = DriverSQLite
	case "postgresql", "pg":
		c.Database.Driver = DriverPostgres
	}
	c.Database.DSN = envOverride(c.Database.DSN, "EVENTSCOUT_DATABASE_DSN", "DATABASE_URL")
	if c.Database.Driver == DriverSQLite {
		if strings.TrimSpace(c.Database.Path) == "" {
			c.Database.Path = filepath.Join(c.Paths.DataDir, defaultSQLiteName)
		}
		var err error
		if c.Database.Path, err = expandPath(c.Database.Path); err != nil {
			return fmt.Errorf("database.path: %w", err)
		}
	}
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 4
	}
	return nil
}

func (c *Config) normalizePrimary() {
	c.Primary.Protocol = normalizeProtocol(c.Primary.Protocol)
	c.Primary.BaseURL = defaultBaseURL(c.Primary.Protocol, c.Primary.BaseURL)
	c.Primary.Model = defaultModel(c.Primary.Protocol, c.Primary.Model)
	if c.Primary.TimeoutSeconds <= 0 {
		c.Primary.TimeoutSeconds = defaultPrimaryTimeout
	}
	if c.Primary.MaxTokens <= 0 {
		c.Primary.MaxTokens = defaultPrimaryMaxTokens
	}
	providerKey := "OPENAI_API_KEY"
	if c.Primary.Protocol == ProtocolMessages {
		providerKey = "ANTHROPIC_API_KEY"
	}
	c.Primary.APIKey = envOverride(c.Primary.APIKey, "EVENTSCOUT_PRIMARY_API_KEY", providerKey)
}

func (c *Config) normalizeVerification() {
	c.Verification.Protocol = normalizeProtocol(c.Verification.Protocol)
	c.Verification.BaseURL = defaultBaseURL(c.Verification.Protocol, c.Verification.BaseURL)
	c.Verification.Model = defaultModel(c.Verification.Protocol, c.Verification.Model)
	if c.Verification.TimeoutSeconds <= 0 {
		c.Verification.TimeoutSeconds = defaultVerifyTimeout
	}
	if c.Verification.MaxTokens <= 0 {
		c.Verification.MaxTokens = defaultVerifyMaxTokens
	}
	if c.Verification.MaxAttempts <= 0 {
		c.Verification.MaxAttempts = defaultVerifyAttempts
	}
	if c.Verification.BackoffMS <= 0 {
		c.Verification.BackoffMS = defaultVerifyBackoffMS
	}
	if c.Verification.Workers <= 0 {
		c.Verification.Workers = defaultVerifyWorkers
	}
	if c.Verification.CacheTTLMinutes < 0 {
		c.Verification.CacheTTLMinutes = 0
	}
	c.Verification.APIKey = envOverride(c.Verification.APIKey, "EVENTSCOUT_VERIFY_API_KEY")
}

func (c *Config) normalizeIngest() error {
	c.Ingest.DefaultCity = strings.TrimSpace(c.Ingest.DefaultCity)
	if value, ok := os.LookupEnv("EVENTSCOUT_DEFAULT_CITY"); ok && strings.TrimSpace(value) != "" {
		c.Ingest.DefaultCity = strings.TrimSpace(value)
	}
	cities := make([]string, 0, len(c.Ingest.Cities))
	seen := make(map[string]struct{}, len(c.Ingest.Cities))
	for _, city := range c.Ingest.Cities {
		city = strings.TrimSpace(city)
		if city == "" {
			continue
		}
		if _, ok := seen[city]; ok {
			continue
		}
		seen[city] = struct{}{}
		cities = append(cities, city)
	}
	c.Ingest.Cities = cities
	if c.Ingest.WindowWeeks <= 0 {
		c.Ingest.WindowWeeks = defaultWindowWeeks
	}
	c.Ingest.RunAt = strings.TrimSpace(c.Ingest.RunAt)
	if c.Ingest.RunAt == "" {
		c.Ingest.RunAt = defaultRunAt
	}
	c.Ingest.Timezone = strings.TrimSpace(c.Ingest.Timezone)
	if c.Ingest.Timezone == "" {
		c.Ingest.Timezone = defaultTimezone
	}
	loc, err := time.LoadLocation(c.Ingest.Timezone)
	if err != nil {
		return fmt.Errorf("ingest.timezone: %w", err)
	}
	c.location = loc
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func normalizeProtocol(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	switch value {
	case "", "openai", "chat_completions":
		return ProtocolChat
	case "anthropic":
		return ProtocolMessages
	default:
		return value
	}
}

func defaultBaseURL(protocol, value string) string {
	value = strings.TrimRight(strings.TrimSpace(value), "/")
	if value != "" {
		return value
	}
	if protocol == ProtocolMessages {
		return defaultMessagesBaseURL
	}
	return defaultChatBaseURL
}

func defaultModel(protocol, value string) string {
	value = strings.TrimSpace(value)
	if value != "" {
		return value
	}
	if protocol == ProtocolMessages {
		return defaultMessagesModel
	}
	return defaultChatModel
}

// envOverride returns the first non-empty environment value among keys, or
// the trimmed current value when none is set.
func envOverride(current string, keys ...string) string {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return strings.TrimSpace(current)
}
