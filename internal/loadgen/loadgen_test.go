package loadgen

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestGeneratorSendsRequests(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	config := DefaultConfig()
	config.TargetURL = srv.URL
	config.Interval = 10 * time.Millisecond
	config.Workers = 2

	gen := New(config, nil)
	gen.RunFor(context.Background(), 200*time.Millisecond)

	if hits.Load() == 0 {
		t.Error("expected at least one request to reach the server")
	}
	if gen.Sent() == 0 {
		t.Error("expected Sent() > 0")
	}

	snap := gen.Metrics().Snapshot()
	if snap.SuccessRequests == 0 {
		t.Errorf("expected recorded successes, got %+v", snap)
	}
	if snap.FailedRequests != 0 {
		t.Errorf("expected no failures against a healthy server, got %d", snap.FailedRequests)
	}
}

func TestGeneratorRecordsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	config := DefaultConfig()
	config.TargetURL = srv.URL
	config.Interval = 10 * time.Millisecond

	gen := New(config, nil)
	gen.RunFor(context.Background(), 100*time.Millisecond)

	snap := gen.Metrics().Snapshot()
	if snap.FailedRequests == 0 {
		t.Errorf("expected recorded failures against a 500 server, got %+v", snap)
	}
	if snap.SuccessRequests != 0 {
		t.Errorf("expected no successes, got %d", snap.SuccessRequests)
	}
}

func TestGeneratorRequestsLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	config := DefaultConfig()
	config.TargetURL = srv.URL
	config.Interval = 5 * time.Millisecond
	config.RequestsLimit = 3

	gen := New(config, nil)
	gen.RunFor(context.Background(), 500*time.Millisecond)

	if gen.Sent() != 3 {
		t.Errorf("expected exactly 3 sent requests, got %d", gen.Sent())
	}
}

func TestGeneratorUnreachableTarget(t *testing.T) {
	config := DefaultConfig()
	config.TargetURL = "http://127.0.0.1:1/"
	config.Interval = 10 * time.Millisecond
	config.Timeout = 200 * time.Millisecond

	gen := New(config, nil)
	gen.RunFor(context.Background(), 100*time.Millisecond)

	snap := gen.Metrics().Snapshot()
	if snap.FailedRequests == 0 {
		t.Errorf("expected failures against an unreachable target, got %+v", snap)
	}
}

func TestGeneratorStopIdempotent(t *testing.T) {
	config := DefaultConfig()
	config.TargetURL = "http://127.0.0.1:1/"

	gen := New(config, nil)
	gen.Start(context.Background())
	gen.Stop()
	gen.Stop() // 2回目は何もしない

	if gen.Running() {
		t.Error("generator should not be running after Stop")
	}
}
