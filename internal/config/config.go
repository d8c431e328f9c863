package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lex-fmt/testaudit/internal/audit"
	"github.com/lex-fmt/testaudit/internal/support"
)

// FileName is the per-repository override file looked up under the root.
const FileName = ".testaudit.yml"

// Config is the compiled-in configuration with optional overrides.
type Config struct {
	SchemaVersion string              `yaml:"schemaVersion"`
	Scan          ScanConfig          `yaml:"scan"`
	Rules         map[string][]string `yaml:"rules,omitempty"`
	Logging       LoggingConfig       `yaml:"logging"`
}

type ScanConfig struct {
	TestsDir   string   `yaml:"tests_dir"`
	SourcesDir string   `yaml:"sources_dir"`
	Extension  string   `yaml:"extension"`
	TestTokens []string `yaml:"test_tokens"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type Flags struct {
	ConfigPath string
	Root       string
}

// Default returns the compiled-in defaults.
func Default() Config {
	layout := audit.DefaultLayout()
	return Config{
		SchemaVersion: "1.0",
		Scan: ScanConfig{
			TestsDir:   layout.TestsDir,
			SourcesDir: layout.SourcesDir,
			Extension:  layout.Extension,
			TestTokens: layout.TestTokens,
		},
		Logging: LoggingConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// Load reads a YAML config from disk.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(support.StripBOM(data), &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Resolve applies defaults and the override file, then validates. An
// explicit ConfigPath must exist; otherwise FileName under Root is used when
// present. The returned path is empty when only defaults apply.
func Resolve(flags Flags) (Config, string, error) {
	cfg := Default()
	path := flags.ConfigPath
	if path == "" && flags.Root != "" {
		candidate := filepath.Join(flags.Root, FileName)
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}

	if path != "" {
		loaded, err := Load(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Config{}, "", fmt.Errorf("config not found: %s", path)
			}
			return Config{}, "", err
		}
		defaults := Default()
		mergeConfigDefaults(&loaded, &defaults)
		cfg = loaded
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, "", err
	}
	return cfg, path, nil
}

// Validate checks the resolved configuration for consistency.
func (c *Config) Validate() error {
	if c.SchemaVersion != "1.0" {
		return fmt.Errorf("unsupported schemaVersion: %s (expected 1.0)", c.SchemaVersion)
	}
	if c.Scan.TestsDir == "" && c.Scan.SourcesDir == "" {
		return errors.New("scan: tests_dir and sources_dir are both empty")
	}
	if !strings.HasPrefix(c.Scan.Extension, ".") {
		return fmt.Errorf("scan: extension %q must start with a dot", c.Scan.Extension)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging: unknown level %q", c.Logging.Level)
	}
	_, err := c.RuleSet()
	return err
}

// Layout converts the scan section for the auditor.
func (c *Config) Layout() audit.Layout {
	return audit.Layout{
		TestsDir:   c.Scan.TestsDir,
		SourcesDir: c.Scan.SourcesDir,
		Extension:  c.Scan.Extension,
		TestTokens: c.Scan.TestTokens,
	}
}

// RuleSet returns the built-in rules extended with the configured patterns.
func (c *Config) RuleSet() (*audit.RuleSet, error) {
	rules := audit.DefaultRules()
	if len(c.Rules) == 0 {
		return rules, nil
	}
	extra := make(map[audit.Category][]string, len(c.Rules))
	for name, patterns := range c.Rules {
		cat, err := audit.ParseCategory(name)
		if err != nil {
			return nil, fmt.Errorf("rules: %w", err)
		}
		extra[cat] = patterns
	}
	extended, err := rules.Extend(extra)
	if err != nil {
		return nil, fmt.Errorf("rules: %w", err)
	}
	return extended, nil
}

func mergeConfigDefaults(cfg *Config, defaults *Config) {
	if cfg.SchemaVersion == "" {
		cfg.SchemaVersion = defaults.SchemaVersion
	}
	if cfg.Scan.TestsDir == "" && cfg.Scan.SourcesDir == "" {
		cfg.Scan.TestsDir = defaults.Scan.TestsDir
		cfg.Scan.SourcesDir = defaults.Scan.SourcesDir
	}
	if cfg.Scan.Extension == "" {
		cfg.Scan.Extension = defaults.Scan.Extension
	}
	if len(cfg.Scan.TestTokens) == 0 {
		cfg.Scan.TestTokens = defaults.Scan.TestTokens
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}
}
