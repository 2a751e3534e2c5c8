package transport

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/conduitmcp/conduit/internal/router"
	"github.com/conduitmcp/conduit/internal/session"
	"github.com/conduitmcp/conduit/pkg/handler"
	"github.com/conduitmcp/conduit/pkg/mcp"
)

func TestMetricsEndpoint(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t, 0, 0).Handler())
	defer ts.Close()

	resp := postJSON(t, ts, initBody, nil)
	resp.Body.Close()

	mresp, err := ts.Client().Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer mresp.Body.Close()
	body, _ := io.ReadAll(mresp.Body)

	for _, want := range []string{
		"conduit_requests_total",
		"conduit_request_duration_seconds",
		"conduit_active_sessions",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}

func TestSessionGaugeTracksRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	rt := router.New(router.Config{ServerInfo: mcp.Implementation{Name: "m"}})
	srv := NewServer(Config{
		Registry:       session.NewRegistry(0),
		Router:         rt,
		SessionHandler: handler.BaseHandler{},
		PromRegistry:   reg,
	})

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp := postJSON(t, ts, initBody, nil)
	resp.Body.Close()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	var sessions *dto.MetricFamily
	for _, mf := range families {
		if mf.GetName() == "conduit_active_sessions" {
			sessions = mf
		}
	}
	if sessions == nil {
		t.Fatal("conduit_active_sessions not registered")
	}
	if got := sessions.GetMetric()[0].GetGauge().GetValue(); got != 1 {
		t.Errorf("expected 1 active session, got %v", got)
	}
}
