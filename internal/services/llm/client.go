package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	ProtocolChat     = "chat"
	ProtocolMessages = "messages"

	defaultHTTPTimeout    = 60 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryAttempts  = 1
	defaultMaxTokens      = 1024
)

// ErrEmptyContent reports a successful response that carried no answer text.
var ErrEmptyContent = errors.New("llm: empty content")

// Config captures the runtime settings required to talk to one model endpoint.
type Config struct {
	Protocol       string
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
	MaxTokens      int
	Temperature    float64
}

// Request is a single system/user prompt pair.
type Request struct {
	System string
	User   string
	// JSONObject asks chat endpoints to constrain output to a JSON object.
	JSONObject bool
}

// RetryEvent describes a failed attempt that will be retried.
type RetryEvent struct {
	Attempt int
	Delay   time.Duration
	Status  int
	Err     error
}

type transport interface {
	complete(ctx context.Context, req Request) (string, error)
}

// Client sends prompts to a chat-completions or messages endpoint and
// retries rate-limited and transport failures with exponential backoff.
type Client struct {
	cfg        Config
	httpClient *http.Client
	transport  transport

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
	onRetry          func(RetryEvent)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts sets the total number of attempts (defaults to 1, no retry).
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// WithRetryObserver registers a callback invoked before each retry sleep.
func WithRetryObserver(fn func(RetryEvent)) Option {
	return func(c *Client) {
		c.onRetry = fn
	}
}

// NewClient constructs a client for the configured protocol.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	cfg.Protocol = strings.ToLower(strings.TrimSpace(cfg.Protocol))
	if cfg.Protocol == "" {
		cfg.Protocol = ProtocolChat
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}

	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg:              cfg,
		httpClient:       &http.Client{Timeout: timeout},
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}

	switch cfg.Protocol {
	case ProtocolChat:
		client.transport = newChatTransport(cfg, client.httpClient)
	case ProtocolMessages:
		client.transport = newMessagesTransport(cfg, client.httpClient)
	default:
		return nil, fmt.Errorf("llm: unsupported protocol %q (supported: chat, messages)", cfg.Protocol)
	}
	return client, nil
}

// Configured reports whether the client has a credential to send requests with.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.APIKey != ""
}

// Protocol returns the wire protocol the client speaks.
func (c *Client) Protocol() string {
	if c == nil {
		return ""
	}
	return c.cfg.Protocol
}

// Complete sends the prompt and returns the model's answer text.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	req.System = strings.TrimSpace(req.System)
	req.User = strings.TrimSpace(req.User)
	if req.User == "" {
		return "", errors.New("llm complete: user prompt required")
	}
	if !c.Configured() {
		return "", errors.New("llm complete: api key required")
	}

	attempts := c.retryAttempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		content, err := c.transport.complete(ctx, req)
		if err == nil {
			if content = strings.TrimSpace(content); content != "" {
				return content, nil
			}
			err = ErrEmptyContent
		}
		lastErr = err

		delay, retry := c.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			if attempt > 1 {
				return "", fmt.Errorf("llm complete: failed after %d attempts: %w", attempt, err)
			}
			return "", err
		}
		if c.onRetry != nil {
			status, _ := StatusCode(err)
			c.onRetry(RetryEvent{Attempt: attempt, Delay: delay, Status: status, Err: err})
		}
		if err := c.sleep(ctx, delay); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("llm complete: failed after %d attempts: %w", attempts, lastErr)
}

// HealthCheck issues a minimal prompt to verify the key and model are usable.
func (c *Client) HealthCheck(ctx context.Context) error {
	content, err := c.Complete(ctx, Request{
		System:     "You must respond with JSON only.",
		User:       `Respond with {"ok":true}`,
		JSONObject: true,
	})
	if err != nil {
		return fmt.Errorf("llm health: %w", err)
	}
	if !strings.Contains(content, "true") {
		return fmt.Errorf("llm health: unexpected response: %s", SummarizeSnippet(content))
	}
	return nil
}

func (c *Client) retryAttempts() int {
	if c == nil || c.retryMaxAttempts <= 0 {
		return 1
	}
	return c.retryMaxAttempts
}

// retryDelay decides whether err earns another attempt. Only rate limiting
// and transport failures are retried; other HTTP statuses fail immediately.
func (c *Client) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || err == nil {
		return 0, false
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	if IsRateLimited(err) {
		delay := c.backoffDelay(attempt)
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.RetryAfter > delay {
			delay = c.capDelay(statusErr.RetryAfter)
		}
		return delay, true
	}
	if IsTransport(err) {
		return c.backoffDelay(attempt), true
	}
	return 0, false
}

// backoffDelay returns base*2^(attempt-1): 1s, 2s, 4s, ... capped at the max delay.
func (c *Client) backoffDelay(attempt int) time.Duration {
	base := c.retryBaseDelay
	if base <= 0 {
		return 0
	}
	if attempt <= 0 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if c.retryMaxDelay > 0 && delay > c.retryMaxDelay/2 {
			return c.retryMaxDelay
		}
		delay *= 2
	}
	return c.capDelay(delay)
}

func (c *Client) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if c.retryMaxDelay > 0 && delay > c.retryMaxDelay {
		return c.retryMaxDelay
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SummarizeSnippet collapses whitespace and truncates content for log lines.
func SummarizeSnippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if clean == "" {
		return "<empty>"
	}
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
