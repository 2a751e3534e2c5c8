package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHealthEndpoint(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t, 0, 0).Handler())
	defer ts.Close()

	start := time.Now()
	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()
	elapsed := time.Since(start)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	// The probe is built from in-memory state; it must answer fast.
	if elapsed > time.Second {
		t.Errorf("health probe too slow: %v", elapsed)
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("bad health body: %v", err)
	}
	if health.Status != "ok" {
		t.Errorf("unexpected status %q", health.Status)
	}
	if health.Timestamp == 0 {
		t.Error("timestamp missing")
	}
	if health.Version != "0.0.1" {
		t.Errorf("unexpected version %q", health.Version)
	}
	if health.SessionCount != 0 {
		t.Errorf("expected 0 sessions, got %d", health.SessionCount)
	}
	if health.Metadata["server_name"] != "conduit-test" {
		t.Errorf("metadata server_name: %v", health.Metadata)
	}
	if health.Metadata["protocol_version"] != "2025-06-18" {
		t.Errorf("metadata protocol_version: %v", health.Metadata)
	}
}

func TestHealthCountsSessions(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t, 0, 0).Handler())
	defer ts.Close()

	resp := postJSON(t, ts, initBody, nil)
	resp.Body.Close()

	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()
	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("bad health body: %v", err)
	}
	if health.SessionCount != 1 {
		t.Errorf("expected 1 session, got %d", health.SessionCount)
	}
}
