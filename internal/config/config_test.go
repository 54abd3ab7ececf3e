package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.URL != defaultServerURL {
		t.Fatalf("expected default server url, got %q", cfg.Server.URL)
	}
	if cfg.Notify.MaxToasts != 3 {
		t.Fatalf("expected default toast cap, got %d", cfg.Notify.MaxToasts)
	}
}

func TestLoadConfigOverridesAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := "[server]\nurl = \"http://10.0.0.5:4096/\"\n\n[notify]\nmax_toasts = 5\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.URL != "http://10.0.0.5:4096" {
		t.Fatalf("expected trimmed url, got %q", cfg.Server.URL)
	}
	if cfg.Notify.MaxToasts != 5 {
		t.Fatalf("expected overridden toast cap, got %d", cfg.Notify.MaxToasts)
	}
	if cfg.Notify.ToastDurationMS != 5000 {
		t.Fatalf("expected default toast duration, got %d", cfg.Notify.ToastDurationMS)
	}
	if cfg.Stream.CharDelayMS != 8 {
		t.Fatalf("expected default char delay, got %d", cfg.Stream.CharDelayMS)
	}
}

func TestLoadConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[server\nurl ="), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected error for malformed config")
	}
}
