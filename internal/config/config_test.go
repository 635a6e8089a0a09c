package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/taigrr/treefind/internal/types"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoad_YAML(t *testing.T) {
	t.Setenv("TREEFIND_NOTEBOOK", "/srv/notes")
	t.Setenv("TREEFIND_ENV", "")
	path := writeConfig(t, "treefind.yaml", `
notebook:
  path: ${TREEFIND_NOTEBOOK}
  ignored_patterns: ["archive/**"]
search:
  accent_insensitive: true
logging:
  env: ${TREEFIND_ENV:-prod}
  level: debug
server:
  http_addr: ":8080"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Notebook.Path != "/srv/notes" {
		t.Errorf("Notebook.Path = %q, want %q", cfg.Notebook.Path, "/srv/notes")
	}
	if cfg.Logging.Env != "prod" || cfg.Logging.Level != "debug" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if !cfg.Search.AccentInsensitive || cfg.Search.PreviewWidth != 160 {
		t.Errorf("Search = %+v", cfg.Search)
	}
	if cfg.Server.HTTPAddr != ":8080" || cfg.Server.MetricsPath != "/metrics" {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if got := cfg.Notebook.PathFilter().IgnoredPatterns; len(got) != 1 || got[0] != "archive/**" {
		t.Errorf("PathFilter().IgnoredPatterns = %v", got)
	}
}

func TestLoad_TOML(t *testing.T) {
	path := writeConfig(t, "treefind.toml", `
[notebook]
path = "/data/nb"
watch = true

[search]
preview_width = 40
whole_word = true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Notebook.Path != "/data/nb" || !cfg.Notebook.Watch || cfg.Notebook.WatchDebounceMS != 200 {
		t.Errorf("Notebook = %+v", cfg.Notebook)
	}
	if cfg.Search.PreviewWidth != 40 || !cfg.Search.WholeWord {
		t.Errorf("Search = %+v", cfg.Search)
	}
	if cfg.Logging.Env != "local" {
		t.Errorf("Logging.Env = %q, want local", cfg.Logging.Env)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() accepted a missing file")
	}
	if _, err := Load(writeConfig(t, "treefind.json", "{}")); err == nil {
		t.Error("Load() accepted an unsupported format")
	}
	if _, err := Load(writeConfig(t, "bad.yaml", "notebook: [")); err == nil {
		t.Error("Load() accepted invalid YAML")
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Notebook.Path != "." || cfg.Server.ShutdownSec != 10 {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Config{Notebook: NotebookConfig{Path: t.TempDir()}}
		cfg.ApplyDefaults()
		return cfg
	}

	cfg := valid()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"missing notebook", func(c *Config) { c.Notebook.Path = filepath.Join(c.Notebook.Path, "nope") }},
		{"unknown env", func(c *Config) { c.Logging.Env = "staging" }},
		{"unknown level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"relative metrics path", func(c *Config) { c.Server.MetricsPath = "metrics" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() error = nil, want error")
			}
		})
	}
}

func TestSearchConfig_Apply(t *testing.T) {
	opts := types.SearchOptions{CaseSensitive: true}
	SearchConfig{AccentInsensitive: true}.Apply(&opts)
	if !opts.CaseSensitive || !opts.AccentInsensitive || opts.WholeWord {
		t.Errorf("Apply() = %+v", opts)
	}
}
