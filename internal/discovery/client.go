package discovery

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"eventscout/internal/config"
	"eventscout/internal/extract"
	"eventscout/internal/logging"
	"eventscout/internal/metrics"
	"eventscout/internal/services"
	"eventscout/internal/services/llm"
)

// Client asks the primary model which events a city has in a given week.
type Client struct {
	llm     *llm.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
	llmOpts []llm.Option
}

// Option customizes the client.
type Option func(*Client)

// WithMetrics records call outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithLLMOptions forwards options to the underlying transport.
func WithLLMOptions(opts ...llm.Option) Option {
	return func(c *Client) {
		c.llmOpts = append(c.llmOpts, opts...)
	}
}

// NewClient builds a discovery client for the primary endpoint. Primary
// calls are not retried; a failed call yields an empty result for its date.
func NewClient(cfg config.LLMConfig, logger *slog.Logger, opts ...Option) (*Client, error) {
	client := &Client{logger: logging.NewComponentLogger(logger, "discovery")}
	for _, opt := range opts {
		opt(client)
	}
	transport, err := llm.NewClient(llm.Config{
		Protocol:       cfg.Protocol,
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		TimeoutSeconds: cfg.TimeoutSeconds,
		MaxTokens:      cfg.MaxTokens,
		Temperature:    cfg.Temperature,
	}, client.llmOpts...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "discovery", "init", "Invalid primary endpoint configuration", err)
	}
	client.llm = transport
	return client, nil
}

// Configured reports whether the primary credential is present.
func (c *Client) Configured() bool {
	return c != nil && c.llm.Configured()
}

// HealthCheck verifies the primary endpoint answers.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.llm.HealthCheck(ctx)
}

// Fetch returns the raw event records the model lists for city during the
// week containing target. Upstream and parse failures are logged and yield
// an empty list; only a missing credential is an error.
func (c *Client) Fetch(ctx context.Context, city string, target time.Time) ([]json.RawMessage, error) {
	if !c.Configured() {
		return nil, services.Wrap(services.ErrUnavailable, "discovery", "fetch", "Primary API key not configured", nil)
	}
	logger := c.logger.With(
		logging.String(logging.FieldCity, city),
		logging.String(logging.FieldTargetDate, target.Format(time.DateOnly)),
	)

	started := time.Now()
	content, err := c.llm.Complete(ctx, llm.Request{System: SystemPrompt, User: UserPrompt(city, target)})
	c.metrics.ObserveLLM(metrics.EndpointPrimary, llm.Outcome(err))
	if err != nil {
		status, _ := llm.StatusCode(err)
		logging.WarnWithContext(logger, "event fetch failed",
			"primary_request_failed",
			logging.String(logging.FieldErrorHint, "check primary endpoint, model, and credential"),
			logging.String(logging.FieldImpact, "no events for this date"),
			logging.String("outcome", llm.Outcome(err)),
			logging.Int("status", status),
			logging.Error(err),
		)
		return nil, nil
	}

	records, ok := extract.Array(content)
	if !ok {
		logging.WarnWithContext(logger, "event fetch returned no JSON array",
			"primary_payload_malformed",
			logging.String(logging.FieldImpact, "no events for this date"),
			logging.String("snippet", llm.SummarizeSnippet(content)),
		)
		return nil, nil
	}
	logger.Info("event fetch complete",
		logging.Int("records", len(records)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return records, nil
}
