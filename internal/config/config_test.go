package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	v, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := v.GetInt("server.port"); got != 8093 {
		t.Errorf("server.port = %d, want 8093", got)
	}
	if got := v.GetString("logging.level"); got != "info" {
		t.Errorf("logging.level = %q, want info", got)
	}
	if !v.GetBool("dsm.use_tls") {
		t.Error("dsm.use_tls should default true")
	}
	if got := v.GetDuration("sched.poll_timeout"); got != 15*time.Second {
		t.Errorf("sched.poll_timeout = %v, want 15s", got)
	}
	if got := v.GetFloat64("sched.policy.idle_factor"); got != 4.0 {
		t.Errorf("sched.policy.idle_factor = %v, want 4.0", got)
	}
	if got := v.GetInt("aggregate.failure_threshold"); got != 3 {
		t.Errorf("aggregate.failure_threshold = %d, want 3", got)
	}
	if got := v.GetDuration("history.retention"); got != 168*time.Hour {
		t.Errorf("history.retention = %v, want 168h", got)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "naspulse.yaml")
	cfg := []byte("server:\n  port: 9000\ndsm:\n  host: nas.local\n  username: monitor\n")
	if err := os.WriteFile(path, cfg, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	v, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := v.GetInt("server.port"); got != 9000 {
		t.Errorf("server.port = %d, want 9000", got)
	}
	if got := v.GetString("dsm.host"); got != "nas.local" {
		t.Errorf("dsm.host = %q", got)
	}
	// Untouched keys keep their defaults.
	if got := v.GetInt("sched.max_in_flight"); got != 4 {
		t.Errorf("sched.max_in_flight = %d, want 4", got)
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "naspulse.yaml")
	if err := os.WriteFile(path, []byte("server: [not: valid"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed config")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("NASPULSE_DSM_PORT", "5000")

	v, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := v.GetInt("dsm.port"); got != 5000 {
		t.Errorf("dsm.port = %d, want 5000", got)
	}
}
