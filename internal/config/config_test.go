package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_DefaultsWhenMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":8080" || cfg.Storage.Backend != "memory" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  addr: ":7000"
storage:
  backend: db
  postgres_dsn: postgres://file
  clickhouse_dsn: clickhouse://file/vel
escrow:
  vault: vault-addr
  whitelist:
    - contract-a
token:
  mints:
    - account: alice-addr
      amount: 500
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("POSTGRES_DSN", "postgres://env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":7000" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Storage.PostgresDSN != "postgres://env" {
		t.Errorf("env override lost: %q", cfg.Storage.PostgresDSN)
	}
	if len(cfg.Escrow.Whitelist) != 1 || cfg.Escrow.Whitelist[0] != "contract-a" {
		t.Errorf("whitelist: %+v", cfg.Escrow.Whitelist)
	}
	if len(cfg.Token.Mints) != 1 || cfg.Token.Mints[0].Account != "alice-addr" || cfg.Token.Mints[0].Amount != 500 {
		t.Errorf("mints: %+v", cfg.Token.Mints)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("config invalid: %v", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	cfg := &Config{}
	cfg.Storage.Backend = "db"
	if err := cfg.Validate(); err == nil {
		t.Error("db backend without DSNs should fail")
	}

	cfg.Storage.Backend = "cassandra"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown backend should fail")
	}

	cfg.Storage.Backend = "memory"
	cfg.Token.Mints = []Mint{{Account: "alice-addr", Amount: 0}}
	if err := cfg.Validate(); err == nil {
		t.Error("zero-amount mint should fail")
	}
	cfg.Token.Mints = []Mint{{Account: "", Amount: 10}}
	if err := cfg.Validate(); err == nil {
		t.Error("mint without an account should fail")
	}
}
