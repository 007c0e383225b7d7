package daemon_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"eventscout/internal/api"
	"eventscout/internal/daemon"
	"eventscout/internal/events"
	"eventscout/internal/metrics"
	"eventscout/internal/testsupport"
)

type endpointStub bool

func (e endpointStub) Configured() bool { return bool(e) }

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedEvents(t, store, "上海",
		testsupport.Candidate("Spring Expo", events.TypeExpo, "2025-03-10"),
		testsupport.Candidate("Jazz Night", events.TypeConcert, "2025-03-11"),
	)

	d, err := daemon.New(cfg, daemon.Dependencies{
		Store:   store,
		Primary: endpointStub(true),
		Metrics: metrics.New(),
	}, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !d.Running() {
		t.Fatal("expected daemon to report running")
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	base := "http://" + d.APIAddr()
	resp, err := http.Get(base + "/api/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	defer resp.Body.Close()
	var health api.HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Database != "ok" || health.Store == nil || health.Store.Total != 2 {
		t.Fatalf("unexpected health: %+v", health)
	}
	if health.Status != "degraded" || health.VerificationConfigured {
		t.Fatalf("expected degraded without a verifier: %+v", health)
	}

	metricsResp, err := http.Get(base + "/metrics")
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	metricsResp.Body.Close()
	if metricsResp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status = %d", metricsResp.StatusCode)
	}

	d.Stop()
	if d.Running() {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	first, err := daemon.New(cfg, daemon.Dependencies{Store: store}, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(first.Stop)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}

	second, err := daemon.New(cfg, daemon.Dependencies{Store: store}, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("expected lock conflict for second daemon")
	}

	first.Stop()
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("expected start after release, got %v", err)
	}
	second.Stop()
}

func TestDaemonRequiresStore(t *testing.T) {
	if _, err := daemon.New(testsupport.NewConfig(t), daemon.Dependencies{}, nil); err == nil {
		t.Fatal("expected error without store")
	}
}
