package verification

import (
	"context"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"eventscout/internal/config"
	"eventscout/internal/events"
	"eventscout/internal/extract"
	"eventscout/internal/logging"
	"eventscout/internal/metrics"
	"eventscout/internal/services"
	"eventscout/internal/services/llm"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = time.Second
	maxRetryDelay      = 30 * time.Second
)

// Reasons attached to unverified verdicts the model did not produce.
const (
	ReasonUnavailable = "verification unavailable: no API key configured"
	ReasonFailed      = "verification request failed"
	ReasonMalformed   = "verification response was not a JSON object"
	ReasonNoVerdict   = "verification response missing boolean verified"
)

// Policy controls retries, the shared request budget, and the verdict memo.
type Policy struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	RequestsPerSecond float64
	CacheTTL          time.Duration
}

// PolicyFromConfig reads the verification section.
func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{
		MaxAttempts:       cfg.Verification.MaxAttempts,
		BaseDelay:         time.Duration(cfg.Verification.BackoffMS) * time.Millisecond,
		RequestsPerSecond: cfg.Verification.RequestsPerSecond,
		CacheTTL:          time.Duration(cfg.Verification.CacheTTLMinutes) * time.Minute,
	}
}

// Client fact-checks candidates against the secondary model.
type Client struct {
	llm     *llm.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
	limiter *rate.Limiter
	memo    *gocache.Cache
	llmOpts []llm.Option
}

// Option customizes the client.
type Option func(*Client)

// WithMetrics records verdicts and retries.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithLLMOptions forwards options to the underlying transport. They apply
// after the policy, so a sleeper or backoff set here wins.
func WithLLMOptions(opts ...llm.Option) Option {
	return func(c *Client) {
		c.llmOpts = append(c.llmOpts, opts...)
	}
}

// NewClient builds a verification client. Rate-limited (429) and transport
// failures are retried up to policy.MaxAttempts with exponential backoff
// from policy.BaseDelay; other HTTP errors are not retried.
func NewClient(cfg config.LLMConfig, policy Policy, logger *slog.Logger, opts ...Option) (*Client, error) {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = defaultMaxAttempts
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = defaultBaseDelay
	}

	client := &Client{logger: logging.NewComponentLogger(logger, "verification")}
	if policy.RequestsPerSecond > 0 {
		burst := max(1, int(policy.RequestsPerSecond))
		client.limiter = rate.NewLimiter(rate.Limit(policy.RequestsPerSecond), burst)
	}
	if policy.CacheTTL > 0 {
		client.memo = gocache.New(policy.CacheTTL, 2*policy.CacheTTL)
	}
	for _, opt := range opts {
		opt(client)
	}

	llmOpts := []llm.Option{
		llm.WithRetryMaxAttempts(policy.MaxAttempts),
		llm.WithRetryBackoff(policy.BaseDelay, maxRetryDelay),
		llm.WithRetryObserver(client.observeRetry),
	}
	transport, err := llm.NewClient(llm.Config{
		Protocol:       cfg.Protocol,
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		TimeoutSeconds: cfg.TimeoutSeconds,
		MaxTokens:      cfg.MaxTokens,
		Temperature:    cfg.Temperature,
	}, append(llmOpts, client.llmOpts...)...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "verification", "init", "Invalid verification endpoint configuration", err)
	}
	client.llm = transport
	return client, nil
}

// Configured reports whether the verification credential is present.
func (c *Client) Configured() bool {
	return c != nil && c.llm.Configured()
}

// HealthCheck verifies the verification endpoint answers.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.llm.HealthCheck(ctx)
}

// Verify fact-checks one candidate. It never fails: every problem yields an
// unverified verdict whose reason explains it. Definitive verdicts are
// memoized by dedup hash when a cache TTL is configured.
func (c *Client) Verify(ctx context.Context, city string, candidate events.Candidate) events.Verdict {
	key := events.Hash(candidate.Title, candidate.StartDate, candidate.Venue, city)
	if c.memo != nil {
		if cached, ok := c.memo.Get(key); ok {
			c.metrics.ObserveVerdict("cached")
			return cached.(events.Verdict)
		}
	}
	verdict, definitive := c.verify(ctx, city, candidate)
	if definitive && c.memo != nil {
		c.memo.SetDefault(key, verdict)
	}
	return verdict
}

// Recheck fact-checks one candidate without consulting or filling the memo.
func (c *Client) Recheck(ctx context.Context, city string, candidate events.Candidate) events.Verdict {
	verdict, _ := c.verify(ctx, city, candidate)
	return verdict
}

// verify reports whether the verdict came from the model itself.
func (c *Client) verify(ctx context.Context, city string, candidate events.Candidate) (events.Verdict, bool) {
	logger := c.logger.With(
		logging.String(logging.FieldCity, city),
		logging.String("title", candidate.Title),
		logging.String("start_date", candidate.StartDate),
	)
	if !c.Configured() {
		return c.unverified(ReasonUnavailable), false
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			logger.Debug("verification rate wait aborted", logging.Error(err))
			return c.unverified(ReasonFailed + ": " + err.Error()), false
		}
	}

	content, err := c.llm.Complete(ctx, llm.Request{
		System:     SystemPrompt,
		User:       UserPrompt(city, candidate),
		JSONObject: true,
	})
	c.metrics.ObserveLLM(metrics.EndpointVerification, llm.Outcome(err))
	if err != nil {
		status, _ := llm.StatusCode(err)
		logging.WarnWithContext(logger, "verification request failed",
			"verification_failed",
			logging.String(logging.FieldErrorHint, "check verification endpoint, model, and credential"),
			logging.String(logging.FieldImpact, "event treated as unverified"),
			logging.String("outcome", llm.Outcome(err)),
			logging.Int("status", status),
			logging.Error(err),
		)
		return c.unverified(ReasonFailed + ": " + llm.Outcome(err)), false
	}

	verdict, ok := parseVerdict(content)
	if !ok {
		logger.Debug("verification response rejected",
			logging.String("reason", verdict.Reason),
			logging.String("snippet", llm.SummarizeSnippet(content)),
		)
		c.metrics.ObserveVerdict("unverified")
		return verdict, false
	}
	result := "unverified"
	if verdict.Verified {
		result = "verified"
	}
	c.metrics.ObserveVerdict(result)
	attrs := append(logging.DecisionAttrs("verification", result, verdict.Reason),
		logging.Float64("confidence", verdict.Confidence))
	logger.Debug("verification decided", logging.Args(attrs...)...)
	return verdict, true
}

func (c *Client) unverified(reason string) events.Verdict {
	c.metrics.ObserveVerdict("unverified")
	return events.Verdict{Reason: reason}
}

// parseVerdict reads {verified, confidence, reason}. The second result is
// false when the payload carries no usable verdict.
func parseVerdict(content string) (events.Verdict, bool) {
	obj, ok := extract.Object(content)
	if !ok {
		return events.Verdict{Reason: ReasonMalformed}, false
	}
	verified, ok := obj["verified"].(bool)
	if !ok {
		return events.Verdict{Reason: ReasonNoVerdict}, false
	}
	verdict := events.Verdict{Verified: verified}
	if confidence, ok := obj["confidence"].(float64); ok {
		verdict.Confidence = min(max(confidence, 0), 1)
	}
	if reason, ok := obj["reason"].(string); ok {
		verdict.Reason = reason
	}
	return verdict, true
}

func (c *Client) observeRetry(event llm.RetryEvent) {
	c.metrics.ObserveRetry(metrics.EndpointVerification, event.Status)
	c.logger.Info("verification retry scheduled",
		logging.Int("attempt", event.Attempt),
		logging.Int("status", event.Status),
		logging.Duration("delay", event.Delay),
		logging.Error(event.Err),
	)
}
