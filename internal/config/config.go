// Package config loads supportaudit configuration from YAML, .env files and
// the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Scoring providers.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
	ProviderNone   = "none"
)

// Config holds all supportaudit configuration.
type Config struct {
	// DBPath is the SQLite ledger file.
	DBPath string `yaml:"db_path"`
	// Listen is the HTTP daemon address.
	Listen  string        `yaml:"listen"`
	Scoring ScoringConfig `yaml:"scoring"`
	Batch   BatchConfig   `yaml:"batch"`
	Log     LogConfig     `yaml:"log"`
}

// ScoringConfig selects and configures the external scoring service.
type ScoringConfig struct {
	// Provider is gemini, ollama or none.
	Provider string `yaml:"provider"`
	// Timeout bounds a single scoring call.
	Timeout time.Duration `yaml:"timeout"`
	Gemini  GeminiConfig  `yaml:"gemini"`
	Ollama  OllamaConfig  `yaml:"ollama"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	APIKey string `yaml:"api_key,omitempty"`
	Model  string `yaml:"model"`
}

// OllamaConfig holds settings for an Ollama (OpenAI-compatible) endpoint.
type OllamaConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"api_key,omitempty"`
}

// BatchConfig bounds concurrent audits.
type BatchConfig struct {
	MaxWorkers int `yaml:"max_workers"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Format is text or json.
	Format string `yaml:"format"`
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		DBPath: "database/audits.db",
		Listen: "127.0.0.1:7480",
		Scoring: ScoringConfig{
			Provider: ProviderGemini,
			Timeout:  60 * time.Second,
			Gemini: GeminiConfig{
				Model: "gemini-2.5-flash",
			},
			Ollama: OllamaConfig{
				BaseURL: "http://127.0.0.1:11434",
				Model:   "llama3.1:8b",
			},
		},
		Batch: BatchConfig{MaxWorkers: 4},
		Log:   LogConfig{Format: "text", Level: "info"},
	}
}

// DefaultPath returns ~/.supportaudit/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home dir: %w", err)
	}
	return filepath.Join(home, ".supportaudit", "config.yaml"), nil
}

// Load reads path (a missing file means defaults), loads a .env file from
// the working directory if present, then applies environment overrides.
// An empty path uses DefaultPath.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err == nil {
			path = p
		}
	}

	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// Existing environment variables win over .env entries.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.DBPath, "SUPPORTAUDIT_DB")
	setString(&c.Listen, "SUPPORTAUDIT_LISTEN")
	setString(&c.Scoring.Provider, "SCORING_PROVIDER")
	setString(&c.Scoring.Gemini.APIKey, "GEMINI_API_KEY")
	setString(&c.Scoring.Gemini.Model, "GEMINI_MODEL")
	setString(&c.Scoring.Ollama.BaseURL, "OLLAMA_BASE_URL")
	setString(&c.Scoring.Ollama.Model, "OLLAMA_MODEL")
	setString(&c.Scoring.Ollama.APIKey, "OLLAMA_API_KEY")
	setString(&c.Log.Format, "SUPPORTAUDIT_LOG_FORMAT")
	setString(&c.Log.Level, "SUPPORTAUDIT_LOG_LEVEL")

	if v := strings.TrimSpace(os.Getenv("SUPPORTAUDIT_MAX_WORKERS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SUPPORTAUDIT_MAX_WORKERS: %w", err)
		}
		c.Batch.MaxWorkers = n
	}
	c.Scoring.Provider = strings.ToLower(c.Scoring.Provider)
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// SaveConfig writes cfg to path, creating parent directories if needed.
func SaveConfig(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("db_path is required")
	}

	validProviders := map[string]bool{
		ProviderGemini: true,
		ProviderOllama: true,
		ProviderNone:   true,
	}
	if !validProviders[c.Scoring.Provider] {
		return fmt.Errorf("invalid scoring provider %q, must be: gemini, ollama, or none", c.Scoring.Provider)
	}
	if c.Scoring.Timeout <= 0 {
		return fmt.Errorf("scoring.timeout must be positive")
	}
	if c.Batch.MaxWorkers < 1 {
		return fmt.Errorf("batch.max_workers must be at least 1")
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q, must be: text or json", c.Log.Format)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	return nil
}
