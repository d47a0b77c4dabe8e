package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  url: postgres://localhost/chat
ai:
  openai_key: sk-test
`)
	cfg, err := LoadConfig(path, false)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Server.Port != 8032 {
		t.Fatalf("default port = %d", cfg.Server.Port)
	}
	if cfg.Server.WriteTimeout != 5*time.Minute {
		t.Fatalf("write timeout = %v", cfg.Server.WriteTimeout)
	}
	if cfg.Server.StreamWriteTimeout != 30*time.Second {
		t.Fatalf("stream write timeout = %v", cfg.Server.StreamWriteTimeout)
	}
	if cfg.AI.DefaultModel != "gpt-4o-mini" {
		t.Fatalf("default model = %q", cfg.AI.DefaultModel)
	}
	if cfg.AI.HistoryBudget != 8192 {
		t.Fatalf("history budget = %d", cfg.AI.HistoryBudget)
	}
	if cfg.Retention.Interval != time.Hour || cfg.Retention.Workers != 4 {
		t.Fatalf("retention defaults = %+v", cfg.Retention)
	}
}

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	path := writeConfig(t, `
ai:
  openai_key: sk-test
`)
	if _, err := LoadConfig(path, false); err == nil {
		t.Fatal("expected error for missing database.url")
	}
}

func TestLoadConfigRequiresProviderOutsideDev(t *testing.T) {
	body := `
database:
  url: postgres://localhost/chat
`
	if _, err := LoadConfig(writeConfig(t, body), false); err == nil {
		t.Fatal("expected error without provider keys")
	}
	// Dev mode runs on the scripted generator instead.
	if _, err := LoadConfig(writeConfig(t, body), true); err != nil {
		t.Fatalf("dev mode should not require keys: %v", err)
	}
}

func TestLoadConfigValidatesEncryptionKeyLength(t *testing.T) {
	path := writeConfig(t, `
database:
  url: postgres://localhost/chat
security:
  encryption_key: tooshort
`)
	if _, err := LoadConfig(path, true); err == nil {
		t.Fatal("expected error for short encryption key")
	}
}
