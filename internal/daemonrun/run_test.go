package daemonrun

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"eventscout/internal/discovery"
	"eventscout/internal/events"
	"eventscout/internal/testsupport"
)

func TestNewComponentsWiresStack(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	components, err := NewComponents(cfg, nil)
	if err != nil {
		t.Fatalf("NewComponents: %v", err)
	}
	t.Cleanup(func() { components.Close() })

	if !components.Discovery.Configured() || !components.Verifier.Configured() {
		t.Fatal("expected both endpoints configured")
	}
	if !components.Orchestrator.Available() {
		t.Fatal("expected orchestrator available")
	}
	if err := components.Store.Ping(context.Background()); err != nil {
		t.Fatalf("store ping: %v", err)
	}
}

func TestRunOnceIngestsConfiguredCities(t *testing.T) {
	srv := testsupport.NewChatServer(t, func(req testsupport.ChatRequest) testsupport.ChatReply {
		if req.System() == discovery.SystemPrompt {
			return testsupport.ChatReply{Content: `[{"title":"Lantern Expo","type":"expo","venue":"West Lake Hall","address":null,"source_url":null,"price_range":null,"organizer":null,"start_date":"2025-03-01","end_date":null}]`}
		}
		return testsupport.ChatReply{Content: `{"verified":true,"confidence":0.9,"reason":"listed"}`}
	})
	cfg := testsupport.NewConfig(t,
		testsupport.WithLLMServer(srv.BaseURL()),
		testsupport.WithCity("杭州"),
		testsupport.WithWindowWeeks(2),
	)
	cfg.Logging.Format = "json"

	if err := Run(context.Background(), cfg, Options{LogLevel: "error", Once: true}); err != nil {
		t.Fatalf("Run once: %v", err)
	}

	st := testsupport.MustOpenStore(t, cfg)
	page, err := st.Query(context.Background(), events.Filter{City: "杭州"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	// Both weekly dates return the same listing; dedup keeps one row.
	if page.Total != 1 || page.Items[0].Title != "Lantern Expo" {
		t.Fatalf("unexpected stored events: %+v", page)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.LogDir, "eventscout.log")); err != nil {
		t.Fatalf("expected daemon log file: %v", err)
	}
}

func TestRunOnceWithoutCredentials(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutCredentials())
	err := Run(context.Background(), cfg, Options{LogLevel: "error", Once: true})
	if err == nil || !strings.Contains(err.Error(), "ingestion run") {
		t.Fatalf("expected unavailable ingestion error, got %v", err)
	}
}
