// Package config loads the angi configuration file.
// The file lives at ~/.config/angi/config.yaml unless overridden.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/natefinch/atomic"
)

const (
	CurrentVersion = "v1"

	DefaultListen       = "127.0.0.1:8080"
	DefaultEndpointPath = "/api/angi"
	DefaultProvider     = "anthropic"
	DefaultMaxTokens    = 1024
)

var defaultModels = map[string]string{
	"anthropic": "claude-haiku-4-5-20251001",
	"openai":    "gpt-4o-mini",
}

var defaultTokenKeys = map[string]string{
	"anthropic": "ANTHROPIC_API_KEY",
	"openai":    "OPENAI_API_KEY",
}

type Config struct {
	Version string `yaml:"version,omitempty"`
	// Listen is a TCP address ("127.0.0.1:8080"), unix:///path or npipe://name.
	Listen       string `yaml:"listen,omitempty" validate:"required"`
	EndpointPath string `yaml:"endpoint_path,omitempty" validate:"required,startswith=/"`
	// StrictIDs makes duplicate component ids an error rather than a warning.
	StrictIDs *bool       `yaml:"strict_ids,omitempty"`
	Model     ModelConfig `yaml:"model"`
	EnvFiles  []string    `yaml:"env_files,omitempty"`
}

type ModelConfig struct {
	Provider  string `yaml:"provider,omitempty" validate:"required,oneof=anthropic openai fake"`
	Model     string `yaml:"model,omitempty" validate:"required_unless=Provider fake"`
	MaxTokens int64  `yaml:"max_tokens,omitempty" validate:"gte=0"`
	BaseURL   string `yaml:"base_url,omitempty" validate:"omitempty,url"`
	// TokenKey names the environment variable holding the API key.
	TokenKey string `yaml:"token_key,omitempty"`
	// Script is the event script replayed by the fake provider.
	Script string `yaml:"script,omitempty" validate:"required_if=Provider fake"`
}

// Strict reports whether duplicate component ids are rejected.
func (c *Config) Strict() bool {
	return c.StrictIDs == nil || *c.StrictIDs
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every unset field.
func (c *Config) ApplyDefaults() {
	if c.Version == "" {
		c.Version = CurrentVersion
	}
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.EndpointPath == "" {
		c.EndpointPath = DefaultEndpointPath
	}
	c.Model.ApplyDefaults()
}

func (m *ModelConfig) ApplyDefaults() {
	if m.Provider == "" {
		m.Provider = DefaultProvider
	}
	if m.Model == "" {
		m.Model = defaultModels[m.Provider]
	}
	if m.MaxTokens == 0 {
		m.MaxTokens = DefaultMaxTokens
	}
	if m.TokenKey == "" {
		m.TokenKey = defaultTokenKeys[m.Provider]
	}
}

// ValidationError lists every invalid field.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration after defaults have been applied.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	problems := make([]string, 0, len(verrs))
	for _, e := range verrs {
		problems = append(problems, fmt.Sprintf("%s: failed %q (value: %v)", e.Namespace(), e.Tag(), e.Value()))
	}
	return &ValidationError{Problems: problems}
}

// Load reads path. A missing file yields the defaults. Relative paths in the
// file are resolved against the file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

// Parse decodes and validates a YAML document.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.UnmarshalWithOptions(data, cfg, yaml.DisallowUnknownField()); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) resolvePaths(dir string) {
	for i, f := range c.EnvFiles {
		if !filepath.IsAbs(f) && !strings.HasPrefix(f, "~") {
			c.EnvFiles[i] = filepath.Join(dir, f)
		}
	}
	if s := c.Model.Script; s != "" && !filepath.IsAbs(s) {
		c.Model.Script = filepath.Join(dir, s)
	}
}

// Save writes the configuration atomically, creating the directory if needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	c.Version = CurrentVersion

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return atomic.WriteFile(path, bytes.NewReader(data))
}
