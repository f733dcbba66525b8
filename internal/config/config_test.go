package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Batch.MaxWorkers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Batch.MaxWorkers)
	}
	if cfg.Scoring.Provider != ProviderGemini {
		t.Errorf("expected gemini provider, got %s", cfg.Scoring.Provider)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
db_path: /tmp/ledger.db
scoring:
  provider: ollama
  timeout: 15s
  ollama:
    model: qwen2.5
batch:
  max_workers: 2
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SUPPORTAUDIT_MAX_WORKERS", "8")
	t.Setenv("OLLAMA_BASE_URL", "http://ollama:11434")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DBPath != "/tmp/ledger.db" {
		t.Errorf("expected db path from file, got %s", cfg.DBPath)
	}
	if cfg.Scoring.Provider != ProviderOllama || cfg.Scoring.Timeout != 15*time.Second {
		t.Errorf("unexpected scoring config: %+v", cfg.Scoring)
	}
	if cfg.Scoring.Ollama.Model != "qwen2.5" || cfg.Scoring.Ollama.BaseURL != "http://ollama:11434" {
		t.Errorf("unexpected ollama config: %+v", cfg.Scoring.Ollama)
	}
	if cfg.Batch.MaxWorkers != 8 {
		t.Errorf("expected env to override workers, got %d", cfg.Batch.MaxWorkers)
	}
	// Untouched sections keep their defaults.
	if cfg.Listen != DefaultConfig().Listen {
		t.Errorf("expected default listen address, got %s", cfg.Listen)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	clearEnv(t)

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("GEMINI_API_KEY=from-dotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// godotenv never replaces a variable that is set, even to "".
	os.Unsetenv("GEMINI_API_KEY")

	cfg, err := Load(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Scoring.Gemini.APIKey != "from-dotenv" {
		t.Errorf("expected key from .env, got %q", cfg.Scoring.Gemini.APIKey)
	}
}

func TestLoad_Invalid(t *testing.T) {
	chdir(t, t.TempDir())
	clearEnv(t)

	tests := []struct {
		name string
		yml  string
		env  map[string]string
		want string
	}{
		{"bad yaml", "scoring: [", nil, "parsing config file"},
		{"bad provider", "scoring:\n  provider: openai\n", nil, "invalid scoring provider"},
		{"zero workers", "batch:\n  max_workers: 0\n", nil, "max_workers"},
		{"bad worker env", "", map[string]string{"SUPPORTAUDIT_MAX_WORKERS": "many"}, "SUPPORTAUDIT_MAX_WORKERS"},
		{"bad log format", "log:\n  format: xml\n", nil, "invalid log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.yml), 0o600); err != nil {
				t.Fatal(err)
			}

			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	chdir(t, t.TempDir())
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Scoring.Timeout = 90 * time.Second
	cfg.Log.Format = "json"

	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}

	if err := SaveConfig(path, nil); err == nil {
		t.Error("expected error saving nil config")
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
}

// clearEnv blanks every override so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SUPPORTAUDIT_DB", "SUPPORTAUDIT_LISTEN", "SCORING_PROVIDER",
		"GEMINI_API_KEY", "GEMINI_MODEL", "OLLAMA_BASE_URL", "OLLAMA_MODEL",
		"OLLAMA_API_KEY", "SUPPORTAUDIT_LOG_FORMAT", "SUPPORTAUDIT_LOG_LEVEL",
		"SUPPORTAUDIT_MAX_WORKERS",
	} {
		t.Setenv(key, "")
	}
}
