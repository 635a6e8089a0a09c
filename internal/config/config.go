// Package config loads the treefind configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/taigrr/treefind/internal/pathfilter"
	"github.com/taigrr/treefind/internal/types"
)

// Config holds the treefind configuration.
type Config struct {
	Notebook NotebookConfig `yaml:"notebook" toml:"notebook"`
	Search   SearchConfig   `yaml:"search" toml:"search"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
	Server   ServerConfig   `yaml:"server" toml:"server"`
}

// NotebookConfig holds the notebook location and file rules.
type NotebookConfig struct {
	Path              string   `yaml:"path" toml:"path"`
	IgnoredPatterns   []string `yaml:"ignored_patterns" toml:"ignored_patterns"`
	AllowedExtensions []string `yaml:"allowed_extensions" toml:"allowed_extensions"`
	Watch             bool     `yaml:"watch" toml:"watch"`
	WatchDebounceMS   int      `yaml:"watch_debounce_ms" toml:"watch_debounce_ms"`
}

// SearchConfig holds default search flags.
type SearchConfig struct {
	CaseSensitive      bool `yaml:"case_sensitive" toml:"case_sensitive"`
	AccentInsensitive  bool `yaml:"accent_insensitive" toml:"accent_insensitive"`
	WholeWord          bool `yaml:"whole_word" toml:"whole_word"`
	OverrideExclusions bool `yaml:"override_exclusions" toml:"override_exclusions"`
	PreviewWidth       int  `yaml:"preview_width" toml:"preview_width"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Env   string `yaml:"env" toml:"env"`     // prod, dev, local (default: local)
	Level string `yaml:"level" toml:"level"` // debug, info, warn, error (default: determined by env)
}

// ServerConfig holds the HTTP transport settings. An empty address serves
// MCP over stdio.
type ServerConfig struct {
	HTTPAddr    string `yaml:"http_addr" toml:"http_addr"`
	MetricsPath string `yaml:"metrics_path" toml:"metrics_path"`
	ShutdownSec int    `yaml:"shutdown_timeout_sec" toml:"shutdown_timeout_sec"`
}

// Load reads configuration from a YAML or TOML file, chosen by extension.
// An empty path yields the defaults.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}

		// Substitute env variables of the form ${VAR}
		data = expandEnvVars(data)

		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".yaml", ".yml":
			err = yaml.Unmarshal(data, &cfg)
		case ".toml":
			err = toml.Unmarshal(data, &cfg)
		default:
			return Config{}, fmt.Errorf("unsupported config format %q", ext)
		}
		if err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Notebook.Path == "" {
		c.Notebook.Path = "."
	}
	if c.Notebook.WatchDebounceMS <= 0 {
		c.Notebook.WatchDebounceMS = 200
	}
	if c.Search.PreviewWidth <= 0 {
		c.Search.PreviewWidth = 160
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "local"
	}
	if c.Server.MetricsPath == "" {
		c.Server.MetricsPath = "/metrics"
	}
	if c.Server.ShutdownSec <= 0 {
		c.Server.ShutdownSec = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	info, err := os.Stat(c.Notebook.Path)
	if err != nil {
		return fmt.Errorf("notebook.path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("notebook.path must be a directory, got %s", c.Notebook.Path)
	}
	switch c.Logging.Env {
	case "prod", "dev", "local":
	default:
		return fmt.Errorf("logging.env must be prod, dev or local, got %q", c.Logging.Env)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	if !strings.HasPrefix(c.Server.MetricsPath, "/") {
		return fmt.Errorf("server.metrics_path must start with /, got %q", c.Server.MetricsPath)
	}
	return nil
}

// PathFilter returns the notebook file rules.
func (c NotebookConfig) PathFilter() *pathfilter.Config {
	return &pathfilter.Config{
		IgnoredPatterns:   c.IgnoredPatterns,
		AllowedExtensions: c.AllowedExtensions,
	}
}

// Apply turns on the configured default flags in opts.
func (c SearchConfig) Apply(opts *types.SearchOptions) {
	opts.CaseSensitive = opts.CaseSensitive || c.CaseSensitive
	opts.AccentInsensitive = opts.AccentInsensitive || c.AccentInsensitive
	opts.WholeWord = opts.WholeWord || c.WholeWord
	opts.OverrideExclusions = opts.OverrideExclusions || c.OverrideExclusions
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
