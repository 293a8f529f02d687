package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the daemon configuration. It is constructed once at
// startup and passed to every component; nothing mutates it afterwards.
type Config struct {
	// AuthCode is the shared secret gating all relay traffic.
	// Generated at startup when not provided.
	AuthCode string `env:"CORTEX_AUTH_CODE"`

	// Host and Port are the relay bind address.
	Host string `env:"CORTEX_HOST" envDefault:"127.0.0.1"`
	Port int    `env:"CORTEX_PORT" envDefault:"2112"`

	// MaxPayloadBytes caps a single relay frame. Connections sending
	// larger frames are dropped.
	MaxPayloadBytes int `env:"CORTEX_MAX_PAYLOAD_BYTES" envDefault:"1048576"`

	// DataDir is the root of the capsule/diagnosis file store.
	DataDir string `env:"CORTEX_DATA_DIR" envDefault:".cortex"`

	// Diagnosis service settings. APIKey empty means diagnosis is
	// disabled: requests fail fast without a network call.
	APIKey     string `env:"OPENROUTER_API_KEY"`
	Model      string `env:"CORTEX_MODEL" envDefault:"openai/gpt-4o-mini"`
	LLMBaseURL string `env:"CORTEX_LLM_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	AppURL     string `env:"CORTEX_APP_URL" envDefault:"https://github.com/hpungsan/cortex"`
	AppTitle   string `env:"CORTEX_APP_TITLE" envDefault:"cortex"`

	// LLMTimeoutSeconds bounds a single diagnosis request.
	LLMTimeoutSeconds int `env:"CORTEX_LLM_TIMEOUT_SECONDS" envDefault:"60"`

	// WebPort is the bind port for the read-only capsule viewer.
	WebPort int `env:"CORTEX_WEB_PORT" envDefault:"2113"`

	// GeneratedAuthCode is true when AuthCode was generated rather than
	// configured, so the serve banner can tell the operator to save it.
	GeneratedAuthCode bool `env:"-"`
}

// Load reads configuration from the environment and fills in a generated
// auth code when none is configured.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.AuthCode == "" {
		code, err := generateAuthCode()
		if err != nil {
			return nil, fmt.Errorf("generate auth code: %w", err)
		}
		cfg.AuthCode = code
		cfg.GeneratedAuthCode = true
	}

	return cfg, nil
}

// LLMTimeout returns the diagnosis timeout as a duration.
func (c *Config) LLMTimeout() time.Duration {
	if c.LLMTimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.LLMTimeoutSeconds) * time.Second
}

// RelayAddr returns the host:port the relay listens on.
func (c *Config) RelayAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// generateAuthCode produces a 16-hex-character pairing code.
func generateAuthCode() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
