package config

import "testing"

func TestParseEnv(t *testing.T) {
	t.Setenv("VAULT_TEST_ADDR", "localhost:9090")

	var cfg struct {
		Addr string `env:"VAULT_TEST_ADDR"`
	}
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Addr != "localhost:9090" {
		t.Fatalf("expected localhost:9090, got %q", cfg.Addr)
	}
}

func TestParseEnvWithPrefix(t *testing.T) {
	t.Setenv("VAULT_REGISTRY_ADDR", "registry:443")

	var cfg struct {
		RegistryAddr string `env:"REGISTRY_ADDR"`
	}
	if err := ParseEnvWithPrefix(&cfg, "VAULT_"); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.RegistryAddr != "registry:443" {
		t.Fatalf("expected registry:443, got %q", cfg.RegistryAddr)
	}
}

func TestParseEnvInvalidTarget(t *testing.T) {
	if err := ParseEnv(42); err == nil {
		t.Fatal("expected error for non-struct target")
	}
}
