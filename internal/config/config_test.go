package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	clearCortexEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Host != "127.0.0.1" {
		t.Errorf("Host = %q, want 127.0.0.1", cfg.Host)
	}
	if cfg.Port != 2112 {
		t.Errorf("Port = %d, want 2112", cfg.Port)
	}
	if cfg.MaxPayloadBytes != 1048576 {
		t.Errorf("MaxPayloadBytes = %d, want 1048576", cfg.MaxPayloadBytes)
	}
	if cfg.DataDir != ".cortex" {
		t.Errorf("DataDir = %q, want .cortex", cfg.DataDir)
	}
	if cfg.LLMTimeout() != 60*time.Second {
		t.Errorf("LLMTimeout = %v, want 60s", cfg.LLMTimeout())
	}
}

func TestLoadGeneratesAuthCode(t *testing.T) {
	clearCortexEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.AuthCode == "" {
		t.Fatal("AuthCode should be generated when unset")
	}
	if len(cfg.AuthCode) != 16 {
		t.Errorf("generated AuthCode length = %d, want 16", len(cfg.AuthCode))
	}
	if !cfg.GeneratedAuthCode {
		t.Error("GeneratedAuthCode should be true for a generated code")
	}
}

// clearCortexEnv isolates tests from the ambient environment.
func clearCortexEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CORTEX_AUTH_CODE", "CORTEX_HOST", "CORTEX_PORT",
		"CORTEX_MAX_PAYLOAD_BYTES", "CORTEX_DATA_DIR",
		"CORTEX_LLM_TIMEOUT_SECONDS",
	} {
		// t.Setenv registers restoration of the original value;
		// the unset makes envDefault tags apply.
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("unset %s: %v", key, err)
		}
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearCortexEnv(t)
	t.Setenv("CORTEX_AUTH_CODE", "s3cret")
	t.Setenv("CORTEX_PORT", "9000")
	t.Setenv("CORTEX_LLM_TIMEOUT_SECONDS", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.AuthCode != "s3cret" {
		t.Errorf("AuthCode = %q, want s3cret", cfg.AuthCode)
	}
	if cfg.GeneratedAuthCode {
		t.Error("GeneratedAuthCode should be false for a configured code")
	}
	if cfg.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Port)
	}
	if cfg.LLMTimeout() != 5*time.Second {
		t.Errorf("LLMTimeout = %v, want 5s", cfg.LLMTimeout())
	}
	if cfg.RelayAddr() != "127.0.0.1:9000" {
		t.Errorf("RelayAddr = %q", cfg.RelayAddr())
	}
}

func TestLLMTimeoutFallback(t *testing.T) {
	cfg := &Config{LLMTimeoutSeconds: 0}
	if cfg.LLMTimeout() != 60*time.Second {
		t.Errorf("LLMTimeout fallback = %v, want 60s", cfg.LLMTimeout())
	}
}
