package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chaos-shop/internal/events"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	srv := NewServer("127.0.0.1:0", events.NewBus())
	handler, err := srv.routes()
	if err != nil {
		t.Fatalf("failed to build routes: %v", err)
	}

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return srv, ts
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
	}
	return resp
}

func TestHandleStatusIdle(t *testing.T) {
	_, ts := newTestServer(t)

	var status StatusResponse
	getJSON(t, ts.URL+"/api/status", &status)

	if status.Running {
		t.Error("expected not running initially")
	}
	if status.ServiceCount != 0 {
		t.Errorf("expected no services, got %d", status.ServiceCount)
	}
}

func TestHandleServicesEmpty(t *testing.T) {
	_, ts := newTestServer(t)

	var services []ServiceInfo
	getJSON(t, ts.URL+"/api/services", &services)

	if len(services) != 0 {
		t.Errorf("expected empty service list, got %v", services)
	}
}

func TestHandleMetricsEmpty(t *testing.T) {
	_, ts := newTestServer(t)

	var m MetricsResponse
	getJSON(t, ts.URL+"/api/metrics", &m)

	if m.TotalRequests != 0 {
		t.Errorf("expected zero requests, got %d", m.TotalRequests)
	}
}

func TestHandlePresets(t *testing.T) {
	_, ts := newTestServer(t)

	var presets []PresetInfo
	getJSON(t, ts.URL+"/api/presets", &presets)

	if len(presets) != 5 {
		t.Fatalf("expected 5 presets, got %d", len(presets))
	}
	for _, p := range presets {
		if p.Name == "" || p.Description == "" {
			t.Errorf("preset missing name or description: %+v", p)
		}
	}
}

func TestScenarioLifecycle(t *testing.T) {
	_, ts := newTestServer(t)

	body := `{"preset": "baseline", "duration": "2s"}`
	resp, err := http.Post(ts.URL+"/api/scenario/start", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on start, got %d", resp.StatusCode)
	}

	// 二重開始は409
	resp, err = http.Post(ts.URL+"/api/scenario/start", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("second start failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 on double start, got %d", resp.StatusCode)
	}

	// セットアップが終わるまで少し待つ
	time.Sleep(300 * time.Millisecond)

	var status StatusResponse
	getJSON(t, ts.URL+"/api/status", &status)
	if !status.Running {
		t.Error("expected scenario to be running")
	}
	if status.ScenarioName != "baseline" {
		t.Errorf("expected scenario 'baseline', got '%s'", status.ScenarioName)
	}

	var services []ServiceInfo
	getJSON(t, ts.URL+"/api/services", &services)
	if len(services) != 2 {
		t.Errorf("expected backend and frontend, got %v", services)
	}

	// 停止
	resp, err = http.Post(ts.URL+"/api/scenario/stop", "application/json", nil)
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 on stop, got %d", resp.StatusCode)
	}

	// 実行終了を待つ
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		getJSON(t, ts.URL+"/api/status", &status)
		if !status.Running {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if status.Running {
		t.Error("scenario should have stopped after cancellation")
	}
}

func TestScenarioStopWithoutRun(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/scenario/stop", "application/json", nil)
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 when nothing is running, got %d", resp.StatusCode)
	}
}

func TestScenarioStartInvalidRequests(t *testing.T) {
	_, ts := newTestServer(t)

	cases := []struct {
		name string
		body string
	}{
		{"bad json", `{preset}`},
		{"bad duration", `{"preset": "baseline", "duration": "long"}`},
		{"bad frontend", `{"preset": "baseline", "frontend": "v9"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/api/scenario/start", "application/json", strings.NewReader(tc.body))
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestHandleExperimentRun(t *testing.T) {
	_, ts := newTestServer(t)

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "healthy"}`))
	}))
	defer backend.Close()

	exp := map[string]any{
		"title": "probe only",
		"steady-state-hypothesis": map[string]any{
			"title": "healthy",
			"probes": []map[string]any{{
				"type":      "probe",
				"name":      "health-ok",
				"tolerance": 200,
				"provider":  map[string]any{"type": "http", "url": backend.URL},
			}},
		},
	}
	body, _ := json.Marshal(exp)

	resp, err := http.Post(ts.URL+"/api/experiment/run", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("experiment run failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var journal struct {
		RunID   string `json:"run_id"`
		Verdict string `json:"verdict"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&journal); err != nil {
		t.Fatalf("failed to decode journal: %v", err)
	}
	if journal.Verdict != "completed" {
		t.Errorf("expected completed verdict, got %s", journal.Verdict)
	}
	if journal.RunID == "" {
		t.Error("expected a run ID")
	}
}

func TestHandleExperimentRunInvalid(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/experiment/run", "application/json", strings.NewReader(`{"no-title": true}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid experiment, got %d", resp.StatusCode)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/status", "application/json", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/api/scenario/start")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", resp.StatusCode)
	}
}

func TestStaticIndex(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 for dashboard, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/html") {
		t.Errorf("expected HTML content type, got %s", ct)
	}
}
