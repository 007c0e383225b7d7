package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate ensures the configuration is usable. Missing model credentials are
// not a validation failure; ingestion reports them as unavailable at run time.
func (c *Config) Validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateEndpoints(); err != nil {
		return err
	}
	if err := c.validateVerification(); err != nil {
		return err
	}
	if err := c.validateIngest(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	if !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic must be a full http(s) URL, got %q", topic)
	}
	return nil
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if strings.TrimSpace(c.Database.Path) == "" {
			return errors.New("database.path must be set for the sqlite driver")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return errors.New("database.dsn must be set for the postgres driver (or set EVENTSCOUT_DATABASE_DSN)")
		}
	default:
		return fmt.Errorf("database.driver: unsupported value %q (want sqlite or postgres)", c.Database.Driver)
	}
	return nil
}

func (c *Config) validateEndpoints() error {
	for name, protocol := range map[string]string{
		"primary.protocol":      c.Primary.Protocol,
		"verification.protocol": c.Verification.Protocol,
	} {
		if protocol != ProtocolChat && protocol != ProtocolMessages {
			return fmt.Errorf("%s: unsupported value %q (want chat or messages)", name, protocol)
		}
	}
	if c.Primary.Temperature < 0 || c.Primary.Temperature > 2 {
		return errors.New("primary.temperature must be between 0 and 2")
	}
	if c.Verification.Temperature < 0 || c.Verification.Temperature > 2 {
		return errors.New("verification.temperature must be between 0 and 2")
	}
	return nil
}

func (c *Config) validateVerification() error {
	if err := ensurePositiveMap(map[string]int{
		"verification.max_attempts": c.Verification.MaxAttempts,
		"verification.backoff_ms":   c.Verification.BackoffMS,
		"verification.workers":      c.Verification.Workers,
	}); err != nil {
		return err
	}
	if c.Verification.RequestsPerSecond < 0 {
		return errors.New("verification.requests_per_second must be >= 0")
	}
	return nil
}

func (c *Config) validateIngest() error {
	if c.Ingest.DefaultCity == "" {
		return errors.New("ingest.default_city must be set")
	}
	if c.Ingest.WindowWeeks > 52 {
		return errors.New("ingest.window_weeks must be at most 52")
	}
	if _, err := time.Parse("15:04", c.Ingest.RunAt); err != nil {
		return fmt.Errorf("ingest.run_at must use HH:MM, got %q", c.Ingest.RunAt)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
