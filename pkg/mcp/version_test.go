package mcp

import "testing"

func TestNegotiateVersion(t *testing.T) {
	supported := []string{"2025-06-18", "2025-03-26"}

	if got := NegotiateVersion("2025-03-26", supported); got != "2025-03-26" {
		t.Errorf("supported version should be echoed, got %q", got)
	}
	if got := NegotiateVersion("2025-06-18", supported); got != "2025-06-18" {
		t.Errorf("supported version should be echoed, got %q", got)
	}

	// Unknown revisions get the server's highest, never the requested one.
	if got := NegotiateVersion("2099-01-01", supported); got != "2025-06-18" {
		t.Errorf("unsupported version should yield highest supported, got %q", got)
	}
	if got := NegotiateVersion("", supported); got != "2025-06-18" {
		t.Errorf("empty version should yield highest supported, got %q", got)
	}
}

func TestLatestVersion(t *testing.T) {
	if got := LatestVersion([]string{"2025-03-26", "2025-06-18"}); got != "2025-06-18" {
		t.Errorf("expected 2025-06-18, got %q", got)
	}
}
