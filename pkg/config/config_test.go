package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Memory.MaxHistory != 20 {
		t.Errorf("expected default max_history 20, got %d", cfg.Memory.MaxHistory)
	}
	if cfg.Memory.DefaultAffection != 30 {
		t.Errorf("expected default affection 30, got %d", cfg.Memory.DefaultAffection)
	}
	if cfg.LLM.MaxTurns != 3 {
		t.Errorf("expected default max_turns 3, got %d", cfg.LLM.MaxTurns)
	}
}

func TestLoadConfigMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{"llm": {"model": "test-model"}, "memory": {"max_history": 5}}`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LLM.Model != "test-model" {
		t.Errorf("expected model from file, got %q", cfg.LLM.Model)
	}
	if cfg.Memory.MaxHistory != 5 {
		t.Errorf("expected max_history 5, got %d", cfg.Memory.MaxHistory)
	}
	// Untouched sections keep defaults.
	if cfg.Delegate.TimeoutSeconds != 10 {
		t.Errorf("expected default delegate timeout, got %d", cfg.Delegate.TimeoutSeconds)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"llm": {"model": "from-file"}}`), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("AIKO_LLM_MODEL", "from-env")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LLM.Model != "from-env" {
		t.Errorf("expected env override, got %q", cfg.LLM.Model)
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.json")

	cfg := DefaultConfig()
	cfg.Vault.Path = "/tmp/vault"
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.Vault.Path != "/tmp/vault" {
		t.Errorf("expected vault path round trip, got %q", loaded.Vault.Path)
	}
}
