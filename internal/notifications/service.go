package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"eventscout/internal/config"
)

const userAgent = "eventscout/0.1.0"

// CityOutcome is the result of one city within a scheduled run.
type CityOutcome struct {
	City     string
	Inserted int
	Updated  int
	Err      error
}

// Service is the notification surface used by the scheduler and CLI.
type Service interface {
	NotifyRunFinished(ctx context.Context, outcomes []CityOutcome, elapsed time.Duration) error
	TestNotification(ctx context.Context) error
}

// NewService builds an ntfy-backed notifier, or a no-op when no topic is set.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		onSuccess: cfg.Notifications.OnSuccess,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	onSuccess bool
}

func (n *ntfyService) NotifyRunFinished(ctx context.Context, outcomes []CityOutcome, elapsed time.Duration) error {
	data, ok := runPayload(outcomes, elapsed, n.onSuccess)
	if !ok {
		return nil
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "eventscout - Test",
		message:  "Notification delivery is working",
		tags:     []string{"eventscout", "test"},
		priority: "low",
	})
}

// runPayload formats a scheduled run. It reports false when there is nothing
// to send: an empty run, or a clean run while success notices are off.
func runPayload(outcomes []CityOutcome, elapsed time.Duration, onSuccess bool) (payload, bool) {
	if len(outcomes) == 0 {
		return payload{}, false
	}
	var inserted, updated int
	var failed []string
	for _, o := range outcomes {
		if o.Err != nil {
			failed = append(failed, fmt.Sprintf("%s: %s", o.City, strings.TrimSpace(o.Err.Error())))
			continue
		}
		inserted += o.Inserted
		updated += o.Updated
	}
	if len(failed) == 0 && !onSuccess {
		return payload{}, false
	}

	elapsed = elapsed.Round(time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	summary := fmt.Sprintf("%d of %d cities refreshed in %s: %d inserted, %d updated",
		len(outcomes)-len(failed), len(outcomes), elapsed, inserted, updated)

	if len(failed) == 0 {
		return payload{
			title:   "eventscout - Ingestion Complete",
			message: summary,
			tags:    []string{"eventscout", "ingest", "completed"},
		}, true
	}
	return payload{
		title:    "eventscout - Ingestion Errors",
		message:  summary + "\n" + strings.Join(failed, "\n"),
		tags:     []string{"eventscout", "ingest", "error"},
		priority: "high",
	}, true
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyRunFinished(context.Context, []CityOutcome, time.Duration) error { return nil }
func (noopService) TestNotification(context.Context) error                                { return nil }
