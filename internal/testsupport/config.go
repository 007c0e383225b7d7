package testsupport

import (
	"path/filepath"
	"testing"

	"eventscout/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Both LLM endpoints carry placeholder keys and point at an unroutable URL
// until WithLLMServer overrides them.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Paths.EnvFile = ""
	cfgVal.Database.Path = filepath.Join(base, "data", "events.db")
	cfgVal.Primary.APIKey = "test-primary"
	cfgVal.Primary.BaseURL = "http://127.0.0.1:1/v1"
	cfgVal.Primary.Model = "test-model"
	cfgVal.Verification.APIKey = "test-verify"
	cfgVal.Verification.BaseURL = "http://127.0.0.1:1/v1"
	cfgVal.Verification.Model = "test-model"
	cfgVal.Verification.BackoffMS = 1
	cfgVal.Verification.CacheTTLMinutes = 0
	cfgVal.Ingest.Cities = []string{cfgVal.Ingest.DefaultCity}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithLLMServer points both LLM endpoints at baseURL.
func WithLLMServer(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Primary.BaseURL = baseURL
		b.cfg.Verification.BaseURL = baseURL
	}
}

// WithoutCredentials clears both API keys.
func WithoutCredentials() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Primary.APIKey = ""
		b.cfg.Verification.APIKey = ""
	}
}

// WithCity sets the default city and the scheduled city list.
func WithCity(city string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Ingest.DefaultCity = city
		b.cfg.Ingest.Cities = []string{city}
	}
}

// WithWindowWeeks overrides the number of weekly target dates per run.
func WithWindowWeeks(weeks int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Ingest.WindowWeeks = weeks
	}
}
