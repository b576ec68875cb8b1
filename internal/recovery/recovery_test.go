package recovery

import (
	"context"
	"net/http"
	"testing"
	"time"

	"chaos-shop/internal/deployment"
	"chaos-shop/internal/events"
	"chaos-shop/internal/fault"
	"chaos-shop/internal/service"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func newTestDeployment(t *testing.T, ids ...string) *deployment.Deployment {
	t.Helper()
	d := deployment.New()
	for _, id := range ids {
		faults := fault.NewState()
		svc := service.New(id, "127.0.0.1:0", service.FaultMiddleware(faults, okHandler()), faults)
		if err := d.Add(svc); err != nil {
			t.Fatalf("failed to add service: %v", err)
		}
	}
	if err := d.StartAll(context.Background()); err != nil {
		t.Fatalf("failed to start deployment: %v", err)
	}
	t.Cleanup(func() { _ = d.StopAll() })
	return d
}

func fastConfig() Config {
	return Config{
		HealthCheckInterval: 50 * time.Millisecond,
		RecoveryDelay:       100 * time.Millisecond,
		MaxRetries:          3,
		AutoRestart:         true,
		AutoResume:          true,
		ClearDelay:          true,
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return false
}

func TestManagerRestartsStoppedService(t *testing.T) {
	d := newTestDeployment(t, "backend")
	m := New(d, fastConfig())

	m.Start(context.Background())
	defer m.Stop()

	svc, _ := d.Get("backend")
	if err := svc.Stop(); err != nil {
		t.Fatalf("failed to stop: %v", err)
	}

	if !waitFor(t, 3*time.Second, func() bool {
		return svc.Status() == service.StatusRunning
	}) {
		t.Fatalf("expected restarted service, status %v", svc.Status())
	}

	stats := m.Stats()
	if stats.TotalRecoveries == 0 {
		t.Error("expected at least one recovery attempt")
	}
}

func TestManagerResumesSuspendedService(t *testing.T) {
	d := newTestDeployment(t, "backend")
	m := New(d, fastConfig())

	bus := events.NewBus()
	defer bus.Close()
	m.SetEventBus(bus)
	ch := bus.Subscribe()

	m.Start(context.Background())
	defer m.Stop()

	svc, _ := d.Get("backend")
	if err := svc.Suspend(); err != nil {
		t.Fatalf("failed to suspend: %v", err)
	}

	if !waitFor(t, 3*time.Second, func() bool {
		return svc.Status() == service.StatusRunning
	}) {
		t.Fatalf("expected resumed service, status %v", svc.Status())
	}

	// A recovery success event should have been published
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Type == events.EventRecoverySuccess {
				return
			}
		case <-deadline:
			t.Fatal("expected recovery success event")
		}
	}
}

func TestManagerClearsInjectedDelay(t *testing.T) {
	d := newTestDeployment(t, "backend")
	m := New(d, fastConfig())

	m.Start(context.Background())
	defer m.Stop()

	svc, _ := d.Get("backend")
	svc.SetDelay(2 * time.Second)

	if !waitFor(t, 3*time.Second, func() bool {
		return svc.Delay() == 0
	}) {
		t.Errorf("expected delay cleared, still %v", svc.Delay())
	}
}

func TestManagerRespectsMaxRetries(t *testing.T) {
	d := deployment.New()
	// Occupy a port, then point the service at it so restart always fails
	blocker := service.New("blocker", "127.0.0.1:0", okHandler(), nil)
	if err := blocker.Start(context.Background()); err != nil {
		t.Fatalf("failed to start blocker: %v", err)
	}
	t.Cleanup(func() { _ = blocker.Stop() })

	addr := blocker.BaseURL()[len("http://"):]
	failing := service.New("backend", addr, okHandler(), nil)
	if err := d.Add(failing); err != nil {
		t.Fatalf("failed to add service: %v", err)
	}

	cfg := fastConfig()
	cfg.MaxRetries = 2
	m := New(d, cfg)
	m.Start(context.Background())
	defer m.Stop()

	// Give the manager time to exhaust its retries
	time.Sleep(1500 * time.Millisecond)

	stats := m.Stats()
	if stats.FailedRecoveries == 0 {
		t.Error("expected failed recoveries")
	}
	if stats.TotalRecoveries > uint64(cfg.MaxRetries) {
		t.Errorf("expected at most %d attempts, got %d", cfg.MaxRetries, stats.TotalRecoveries)
	}
}

func TestManagerClearsFailureAfterExternalRestart(t *testing.T) {
	d := newTestDeployment(t, "backend")

	cfg := fastConfig()
	// 長い待機時間にしてマネージャー自身には再起動させない
	cfg.RecoveryDelay = time.Minute
	m := New(d, cfg)
	m.Start(context.Background())
	defer m.Stop()

	svc, _ := d.Get("backend")
	if err := svc.Stop(); err != nil {
		t.Fatalf("failed to stop: %v", err)
	}

	if !waitFor(t, 3*time.Second, func() bool {
		return m.Stats().CurrentlyFailed == 1
	}) {
		t.Fatalf("expected failure detection, got %d", m.Stats().CurrentlyFailed)
	}

	// マネージャーを介さず外部から再起動する
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("failed to restart externally: %v", err)
	}

	if !waitFor(t, 3*time.Second, func() bool {
		return m.Stats().CurrentlyFailed == 0
	}) {
		t.Fatalf("expected failure count cleared after external restart, got %d", m.Stats().CurrentlyFailed)
	}

	// 次の停止は新規検出として扱われ、RecoveryDelayを待ってから
	// リトライされる。古いFailedAtが残っていると即リトライになる
	if err := svc.Stop(); err != nil {
		t.Fatalf("failed to stop again: %v", err)
	}
	time.Sleep(300 * time.Millisecond)
	if svc.Status() != service.StatusStopped {
		t.Errorf("expected service to stay stopped during recovery delay, got %v", svc.Status())
	}
}

func TestManagerDisabledAutoRestart(t *testing.T) {
	d := newTestDeployment(t, "backend")

	cfg := fastConfig()
	cfg.AutoRestart = false
	m := New(d, cfg)
	m.Start(context.Background())
	defer m.Stop()

	svc, _ := d.Get("backend")
	if err := svc.Stop(); err != nil {
		t.Fatalf("failed to stop: %v", err)
	}

	time.Sleep(500 * time.Millisecond)

	if svc.Status() != service.StatusStopped {
		t.Errorf("expected service to stay stopped, got %v", svc.Status())
	}
}

func TestManagerStartStop(t *testing.T) {
	d := newTestDeployment(t, "backend")
	m := New(d, fastConfig())

	if m.IsRunning() {
		t.Error("expected not running initially")
	}

	m.Start(context.Background())
	if !m.IsRunning() {
		t.Error("expected running after Start")
	}

	// Idempotent start
	m.Start(context.Background())

	m.Stop()
	if m.IsRunning() {
		t.Error("expected stopped after Stop")
	}
}

func TestManagerResetStats(t *testing.T) {
	d := newTestDeployment(t, "backend")
	m := New(d, fastConfig())

	m.mu.Lock()
	m.stats.TotalRecoveries = 5
	m.mu.Unlock()

	m.ResetStats()
	if m.Stats().TotalRecoveries != 0 {
		t.Error("expected stats reset")
	}
}
