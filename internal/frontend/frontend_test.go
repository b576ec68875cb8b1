package frontend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chaos-shop/internal/breaker"
	"chaos-shop/internal/catalog"
	"chaos-shop/internal/fault"
	"chaos-shop/internal/metrics"
	"chaos-shop/internal/service"
)

func newTestBackend() (*httptest.Server, *fault.State) {
	faults := fault.NewState()
	h := catalog.NewHandler("backend", catalog.NewStore(), faults)
	return httptest.NewServer(h.Mux()), faults
}

func newTestFrontend(variant Variant, backendURL string, timeout time.Duration) *Handler {
	cfg := DefaultConfig(backendURL)
	cfg.Variant = variant
	cfg.Timeout = timeout
	// Short open timeout so tests never wait long
	cfg.Breaker = breaker.Config{FailureThreshold: 3, OpenTimeout: time.Second}
	return NewHandler("frontend-"+string(variant), cfg, nil)
}

func getPage(t *testing.T, srv *httptest.Server) (int, string) {
	t.Helper()
	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("page request failed: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestParseVariant(t *testing.T) {
	tests := []struct {
		in      string
		want    Variant
		wantErr bool
	}{
		{"v1", VariantNaive, false},
		{"naive", VariantNaive, false},
		{"bad", VariantNaive, false},
		{"v2", VariantResilient, false},
		{"resilient", VariantResilient, false},
		{"good", VariantResilient, false},
		{"v3", "", true},
	}

	for _, tt := range tests {
		got, err := ParseVariant(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseVariant(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseVariant(%q): unexpected error %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseVariant(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNaiveFrontendHealthyBackend(t *testing.T) {
	backend, _ := newTestBackend()
	defer backend.Close()

	fe := newTestFrontend(VariantNaive, backend.URL, time.Second)
	srv := httptest.NewServer(fe.Mux())
	defer srv.Close()

	code, body := getPage(t, srv)
	if code != http.StatusOK {
		t.Errorf("expected 200, got %d", code)
	}
	if !strings.Contains(body, "Laptop") {
		t.Error("expected product Laptop in page")
	}
	if !strings.Contains(body, "LIVE DATA") {
		t.Error("expected live badge")
	}
}

func TestNaiveFrontendBackendDown(t *testing.T) {
	backend, _ := newTestBackend()
	backendURL := backend.URL
	backend.Close()

	fe := newTestFrontend(VariantNaive, backendURL, time.Second)
	srv := httptest.NewServer(fe.Mux())
	defer srv.Close()

	code, body := getPage(t, srv)
	if code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 from naive frontend, got %d", code)
	}
	if !strings.Contains(body, "ERROR") {
		t.Error("expected error page")
	}
}

func TestNaiveFrontendSlowBackend(t *testing.T) {
	backend, faults := newTestBackend()
	defer backend.Close()

	faults.SetDelay(300 * time.Millisecond)

	fe := newTestFrontend(VariantNaive, backend.URL, 100*time.Millisecond)
	srv := httptest.NewServer(fe.Mux())
	defer srv.Close()

	code, _ := getPage(t, srv)
	if code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when backend exceeds timeout, got %d", code)
	}
}

func TestResilientFrontendHealthyBackend(t *testing.T) {
	backend, _ := newTestBackend()
	defer backend.Close()

	fe := newTestFrontend(VariantResilient, backend.URL, time.Second)
	srv := httptest.NewServer(fe.Mux())
	defer srv.Close()

	code, body := getPage(t, srv)
	if code != http.StatusOK {
		t.Errorf("expected 200, got %d", code)
	}
	if !strings.Contains(body, "LIVE DATA") {
		t.Error("expected live badge")
	}

	if got := fe.Metrics().BySource()[metrics.SourceLive]; got != 1 {
		t.Errorf("expected 1 live response recorded, got %d", got)
	}
}

func TestResilientFrontendServesCacheWhenBackendDies(t *testing.T) {
	backend, faults := newTestBackend()
	defer backend.Close()

	fe := newTestFrontend(VariantResilient, backend.URL, time.Second)
	srv := httptest.NewServer(fe.Mux())
	defer srv.Close()

	// Warm the cache with a successful request
	if code, _ := getPage(t, srv); code != http.StatusOK {
		t.Fatal("expected initial request to succeed")
	}

	faults.Suspend()

	code, body := getPage(t, srv)
	if code != http.StatusOK {
		t.Errorf("expected 200 from resilient frontend, got %d", code)
	}
	if !strings.Contains(body, "CACHED DATA") {
		t.Error("expected cached badge")
	}
	if !strings.Contains(body, "Laptop") {
		t.Error("expected cached products in page")
	}

	if got := fe.Metrics().BySource()[metrics.SourceCache]; got != 1 {
		t.Errorf("expected 1 cache response recorded, got %d", got)
	}
}

func TestResilientFrontendFallbackWithoutCache(t *testing.T) {
	backend, faults := newTestBackend()
	defer backend.Close()

	faults.Suspend()

	fe := newTestFrontend(VariantResilient, backend.URL, time.Second)
	srv := httptest.NewServer(fe.Mux())
	defer srv.Close()

	code, body := getPage(t, srv)
	if code != http.StatusOK {
		t.Errorf("expected 200 from resilient frontend, got %d", code)
	}
	if !strings.Contains(body, "FALLBACK DATA") {
		t.Error("expected fallback badge")
	}
	if !strings.Contains(body, "Laptop (cached)") {
		t.Error("expected fallback catalog in page")
	}

	if got := fe.Metrics().BySource()[metrics.SourceFallback]; got != 1 {
		t.Errorf("expected 1 fallback response recorded, got %d", got)
	}
}

func TestResilientFrontendRecoversAfterBackendRestart(t *testing.T) {
	faults := fault.NewState()
	h := catalog.NewHandler("backend", catalog.NewStore(), faults)
	backend := service.New("backend", "127.0.0.1:0", h.Mux(), faults)
	ctx := context.Background()

	if err := backend.Start(ctx); err != nil {
		t.Fatalf("failed to start backend: %v", err)
	}
	defer func() { _ = backend.Stop() }()

	fe := newTestFrontend(VariantResilient, backend.BaseURL(), time.Second)
	srv := httptest.NewServer(fe.Mux())
	defer srv.Close()

	if code, body := getPage(t, srv); code != http.StatusOK || !strings.Contains(body, "LIVE DATA") {
		t.Fatalf("expected live data before kill, got %d", code)
	}

	// バックエンドを殺すとキャッシュ応答に切り替わる
	if err := backend.Stop(); err != nil {
		t.Fatalf("failed to stop backend: %v", err)
	}
	if _, body := getPage(t, srv); !strings.Contains(body, "CACHED DATA") {
		t.Error("expected cached data while backend is down")
	}

	// 再起動時は同じポートに束縛されるため、フロントエンドが
	// 保持しているバックエンドURLのままライブ応答に復帰する
	if err := backend.Start(ctx); err != nil {
		t.Fatalf("failed to restart backend: %v", err)
	}

	code, body := getPage(t, srv)
	if code != http.StatusOK {
		t.Errorf("expected 200 after backend restart, got %d", code)
	}
	if !strings.Contains(body, "LIVE DATA") {
		t.Error("expected live data to resume after backend restart")
	}
}

func TestResilientFrontendBreakerOpens(t *testing.T) {
	backend, faults := newTestBackend()
	defer backend.Close()

	faults.Suspend()

	fe := newTestFrontend(VariantResilient, backend.URL, time.Second)
	srv := httptest.NewServer(fe.Mux())
	defer srv.Close()

	// Threshold is 3: three failing requests open the circuit
	for i := 0; i < 3; i++ {
		getPage(t, srv)
	}

	if fe.Breaker().State() != breaker.StateOpen {
		t.Errorf("expected open breaker, got %v", fe.Breaker().State())
	}

	// Page still works, served from fallback
	code, _ := getPage(t, srv)
	if code != http.StatusOK {
		t.Errorf("expected 200 with open breaker, got %d", code)
	}
}

func TestResilientFrontendBreakerStatus(t *testing.T) {
	backend, _ := newTestBackend()
	defer backend.Close()

	fe := newTestFrontend(VariantResilient, backend.URL, time.Second)
	srv := httptest.NewServer(fe.Mux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/circuit-breaker/status")
	if err != nil {
		t.Fatalf("breaker status request failed: %v", err)
	}
	defer resp.Body.Close()

	var status BreakerStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if status.State != "closed" {
		t.Errorf("expected closed, got %s", status.State)
	}
}

func TestFrontendHealth(t *testing.T) {
	backend, _ := newTestBackend()
	defer backend.Close()

	fe := newTestFrontend(VariantResilient, backend.URL, time.Second)
	srv := httptest.NewServer(fe.Mux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if health.Status != "healthy" {
		t.Errorf("expected healthy, got %s", health.Status)
	}
	if health.CircuitBreakerState != "closed" {
		t.Errorf("expected closed breaker in health, got %s", health.CircuitBreakerState)
	}
}

func TestNaiveFrontendHasNoBreakerEndpoint(t *testing.T) {
	backend, _ := newTestBackend()
	defer backend.Close()

	fe := newTestFrontend(VariantNaive, backend.URL, time.Second)
	srv := httptest.NewServer(fe.Mux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/circuit-breaker/status")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for breaker endpoint on naive frontend, got %d", resp.StatusCode)
	}
}
