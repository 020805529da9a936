package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
auth:
  signing_key: "s3cret"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Fatalf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Market.MaxTermMonths != 120 || cfg.Market.MaxAPRBps != 10000 {
		t.Fatalf("market defaults: %+v", cfg.Market)
	}
	if cfg.Auth.Issuer == "" || cfg.Auth.TTLMinutes != 60 {
		t.Fatalf("auth defaults: %+v", cfg.Auth)
	}
	if cfg.Worker.IntervalSeconds != 2 || cfg.Worker.BatchSize != 100 {
		t.Fatalf("worker defaults: %+v", cfg.Worker)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
auth:
  signing_key: "s3cret"
`)
	t.Setenv("SERVER_ADDR", ":7070")
	t.Setenv("MARKET_MAX_APR_BPS", "5000")
	t.Setenv("WORKER_BATCH_SIZE", "not-a-number")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":7070" {
		t.Fatalf("addr = %q, want env override", cfg.Server.Addr)
	}
	if cfg.Market.MaxAPRBps != 5000 {
		t.Fatalf("max apr = %d", cfg.Market.MaxAPRBps)
	}
	// Unparseable env values fall back, then defaults apply.
	if cfg.Worker.BatchSize != 100 {
		t.Fatalf("batch size = %d", cfg.Worker.BatchSize)
	}
}

func TestLoadRequiredFields(t *testing.T) {
	if _, err := Load(writeConfig(t, `
auth:
  signing_key: "s3cret"
`)); err == nil {
		t.Fatal("missing server.addr accepted")
	}
	if _, err := Load(writeConfig(t, `
server:
  addr: ":9090"
`)); err == nil {
		t.Fatal("missing auth.signing_key accepted")
	}
}
