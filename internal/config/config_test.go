package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "MEMORY")
	t.Setenv("SETTLEMENT_TX_TIMEOUT", "not-a-duration")
	t.Setenv("ALLOWED_ORIGINS", " http://a.test , ,http://b.test")

	cfg := Load()

	if !cfg.UsesMemoryStore() {
		t.Fatalf("expected memory store, got %q", cfg.StorageDriver)
	}
	if cfg.SettlementTxTimeout != 5*time.Second {
		t.Fatalf("expected fallback timeout 5s, got %s", cfg.SettlementTxTimeout)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[0] != "http://a.test" || cfg.AllowedOrigins[1] != "http://b.test" {
		t.Fatalf("unexpected origins: %#v", cfg.AllowedOrigins)
	}
}

func TestStatementsEnabled(t *testing.T) {
	cfg := &Config{S3Bucket: "b"}
	if cfg.StatementsEnabled() {
		t.Fatal("expected statements disabled without credentials")
	}
	cfg.S3AccessKey, cfg.S3SecretKey = "k", "s"
	if !cfg.StatementsEnabled() {
		t.Fatal("expected statements enabled")
	}
}

func TestPostgresPoolSettings(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://db/app")
	t.Setenv("DB_MAX_OPEN_CONNS", "12")
	t.Setenv("DB_MAX_IDLE_CONNS", "zero")
	t.Setenv("DB_LOCK_TIMEOUT", "750ms")

	pg := Load().Postgres()

	if pg.URL != "postgres://db/app" || pg.MaxOpenConns != 12 {
		t.Fatalf("unexpected pool settings %+v", pg)
	}
	if pg.MaxIdleConns != 25 {
		t.Fatalf("expected fallback idle conns 25, got %d", pg.MaxIdleConns)
	}
	if pg.LockTimeout != 750*time.Millisecond {
		t.Fatalf("expected lock timeout 750ms, got %s", pg.LockTimeout)
	}
}
