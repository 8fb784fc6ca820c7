// Package config loads the daemon configuration. Precedence, lowest
// to highest: built-in defaults, an optional YAML file, environment
// variables with the TEXTTRANSFORM_ prefix. Env names map onto config
// keys by section and field: TEXTTRANSFORM_SERVER_LISTEN sets
// server.listen, TEXTTRANSFORM_LLM_API_KEY sets llm.api_key.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/metasphere-xyz/texttransform/internal/plan"
)

const (
	envPrefix         = "TEXTTRANSFORM_"
	maxConfigFileSize = 1 << 20
)

// ServerConfig shapes the HTTP surface.
type ServerConfig struct {
	Listen             string   `koanf:"listen" yaml:"listen"`
	CORSOrigins        []string `koanf:"cors_origins" yaml:"cors_origins"`
	APIKeys            []Secret `koanf:"api_keys" yaml:"api_keys"`
	RateLimitPerMinute int      `koanf:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
	ShutdownTimeout    Duration `koanf:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// LLMConfig points the gateway at an OpenAI-compatible completion
// endpoint: Groq in production, cmd/groq-stub for local work.
type LLMConfig struct {
	BaseURL        string   `koanf:"base_url" yaml:"base_url"`
	Model          string   `koanf:"model" yaml:"model"`
	APIKey         Secret   `koanf:"api_key" yaml:"api_key"`
	Timeout        Duration `koanf:"timeout" yaml:"timeout"`
	MaxAttempts    int      `koanf:"max_attempts" yaml:"max_attempts"`
	InitialBackoff Duration `koanf:"initial_backoff" yaml:"initial_backoff"`
}

// TransformConfig carries the planning policy: percentage bounds per
// direction, step bounds, version caps, and the deviation tolerance.
type TransformConfig struct {
	MaxVersions        int     `koanf:"max_versions" yaml:"max_versions"`
	MinCompression     int     `koanf:"min_compression" yaml:"min_compression"`
	MaxCompression     int     `koanf:"max_compression" yaml:"max_compression"`
	DefaultCompression int     `koanf:"default_compression" yaml:"default_compression"`
	MinExpansion       int     `koanf:"min_expansion" yaml:"min_expansion"`
	MaxExpansion       int     `koanf:"max_expansion" yaml:"max_expansion"`
	DefaultExpansion   int     `koanf:"default_expansion" yaml:"default_expansion"`
	MinStep            int     `koanf:"min_step" yaml:"min_step"`
	MaxStep            int     `koanf:"max_step" yaml:"max_step"`
	DefaultStops       int     `koanf:"default_stops" yaml:"default_stops"`
	Tolerance          float64 `koanf:"tolerance" yaml:"tolerance"`
}

// LogConfig selects level and output format. Format "auto" picks
// console for a TTY and JSON otherwise.
type LogConfig struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
}

// Config is the full daemon configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server" yaml:"server"`
	LLM       LLMConfig       `koanf:"llm" yaml:"llm"`
	Transform TransformConfig `koanf:"transform" yaml:"transform"`
	Log       LogConfig       `koanf:"log" yaml:"log"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Listen:             ":2323",
			CORSOrigins:        []string{"http://localhost:3000"},
			RateLimitPerMinute: 100,
			ShutdownTimeout:    Duration(10 * time.Second),
		},
		LLM: LLMConfig{
			BaseURL:        "https://api.groq.com/openai/v1",
			Model:          "llama3-groq-70b-8192-tool-use-preview",
			Timeout:        Duration(60 * time.Second),
			MaxAttempts:    3,
			InitialBackoff: Duration(time.Second),
		},
		Transform: TransformConfig{
			MaxVersions:        5,
			MinCompression:     10,
			MaxCompression:     90,
			DefaultCompression: 50,
			MinExpansion:       110,
			MaxExpansion:       300,
			DefaultExpansion:   150,
			MinStep:            10,
			MaxStep:            50,
			DefaultStops:       3,
			Tolerance:          0.5,
		},
		Log: LogConfig{Level: "info", Format: "auto"},
	}
}

// Load reads the optional YAML file at path, overlays environment
// variables, fills defaults, and validates. An empty path skips the
// file; a non-empty path that cannot be read is an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envToKey), nil); err != nil {
		return nil, fmt.Errorf("config: read environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readConfigFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("config: stat %s: %w", path, err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config: %s too large: %d bytes (max %d)", path, info.Size(), maxConfigFileSize)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return content, nil
}

// envToKey maps TEXTTRANSFORM_SERVER_RATE_LIMIT_PER_MINUTE onto
// server.rate_limit_per_minute: the first underscore after the prefix
// splits section from field, later underscores stay in the field name.
func envToKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	parts := strings.SplitN(s, "_", 2)
	if len(parts) == 1 {
		return parts[0]
	}
	return parts[0] + "." + parts[1]
}

func applyDefaults(cfg *Config) {
	def := Default()

	if strings.TrimSpace(cfg.Server.Listen) == "" {
		cfg.Server.Listen = def.Server.Listen
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = def.Server.CORSOrigins
	}
	if cfg.Server.RateLimitPerMinute == 0 {
		cfg.Server.RateLimitPerMinute = def.Server.RateLimitPerMinute
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}

	if strings.TrimSpace(cfg.LLM.BaseURL) == "" {
		cfg.LLM.BaseURL = def.LLM.BaseURL
	}
	if strings.TrimSpace(cfg.LLM.Model) == "" {
		cfg.LLM.Model = def.LLM.Model
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = def.LLM.Timeout
	}
	if cfg.LLM.MaxAttempts == 0 {
		cfg.LLM.MaxAttempts = def.LLM.MaxAttempts
	}
	if cfg.LLM.InitialBackoff == 0 {
		cfg.LLM.InitialBackoff = def.LLM.InitialBackoff
	}

	t := &cfg.Transform
	dt := def.Transform
	if t.MaxVersions == 0 {
		t.MaxVersions = dt.MaxVersions
	}
	if t.MinCompression == 0 {
		t.MinCompression = dt.MinCompression
	}
	if t.MaxCompression == 0 {
		t.MaxCompression = dt.MaxCompression
	}
	if t.DefaultCompression == 0 {
		t.DefaultCompression = dt.DefaultCompression
	}
	if t.MinExpansion == 0 {
		t.MinExpansion = dt.MinExpansion
	}
	if t.MaxExpansion == 0 {
		t.MaxExpansion = dt.MaxExpansion
	}
	if t.DefaultExpansion == 0 {
		t.DefaultExpansion = dt.DefaultExpansion
	}
	if t.MinStep == 0 {
		t.MinStep = dt.MinStep
	}
	if t.MaxStep == 0 {
		t.MaxStep = dt.MaxStep
	}
	if t.DefaultStops == 0 {
		t.DefaultStops = dt.DefaultStops
	}
	if t.Tolerance == 0 {
		t.Tolerance = dt.Tolerance
	}

	if strings.TrimSpace(cfg.Log.Level) == "" {
		cfg.Log.Level = def.Log.Level
	}
	if strings.TrimSpace(cfg.Log.Format) == "" {
		cfg.Log.Format = def.Log.Format
	}
}

// Validate enforces bounds coherence before the daemon starts serving.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Listen) == "" {
		return errors.New("config: server.listen is required")
	}
	if c.Server.RateLimitPerMinute < 1 {
		return errors.New("config: server.rate_limit_per_minute must be positive")
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("config: server.shutdown_timeout must be positive")
	}

	if strings.TrimSpace(c.LLM.BaseURL) == "" {
		return errors.New("config: llm.base_url is required")
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return errors.New("config: llm.model is required (or set TEXTTRANSFORM_LLM_MODEL)")
	}
	if c.LLM.MaxAttempts < 1 {
		return errors.New("config: llm.max_attempts must be at least 1")
	}
	if c.LLM.Timeout.Duration() <= 0 {
		return errors.New("config: llm.timeout must be positive")
	}

	t := c.Transform
	if t.MaxVersions < 1 {
		return errors.New("config: transform.max_versions must be at least 1")
	}
	if t.MinCompression <= 0 || t.MaxCompression >= 100 || t.MinCompression > t.MaxCompression {
		return fmt.Errorf("config: compression bounds %d-%d must sit inside (0,100)", t.MinCompression, t.MaxCompression)
	}
	if t.DefaultCompression < t.MinCompression || t.DefaultCompression > t.MaxCompression {
		return fmt.Errorf("config: default compression %d outside %d-%d", t.DefaultCompression, t.MinCompression, t.MaxCompression)
	}
	if t.MinExpansion <= 100 || t.MinExpansion > t.MaxExpansion {
		return fmt.Errorf("config: expansion bounds %d-%d must sit above 100", t.MinExpansion, t.MaxExpansion)
	}
	if t.DefaultExpansion < t.MinExpansion || t.DefaultExpansion > t.MaxExpansion {
		return fmt.Errorf("config: default expansion %d outside %d-%d", t.DefaultExpansion, t.MinExpansion, t.MaxExpansion)
	}
	if t.MinStep <= 0 || t.MinStep > t.MaxStep {
		return fmt.Errorf("config: step bounds %d-%d invalid", t.MinStep, t.MaxStep)
	}
	if t.DefaultStops < 1 {
		return errors.New("config: transform.default_stops must be at least 1")
	}
	if t.Tolerance <= 0 || t.Tolerance > 1 {
		return errors.New("config: transform.tolerance must be in (0,1]")
	}

	switch c.Log.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("config: log.format %q not one of auto, console, json", c.Log.Format)
	}
	return nil
}

// Limits converts the transform section into the planner policy.
func (c *Config) Limits() plan.Limits {
	return plan.Limits{
		MaxVersions:        c.Transform.MaxVersions,
		MinCompression:     c.Transform.MinCompression,
		MaxCompression:     c.Transform.MaxCompression,
		DefaultCompression: c.Transform.DefaultCompression,
		MinExpansion:       c.Transform.MinExpansion,
		MaxExpansion:       c.Transform.MaxExpansion,
		DefaultExpansion:   c.Transform.DefaultExpansion,
		MinStep:            c.Transform.MinStep,
		MaxStep:            c.Transform.MaxStep,
		DefaultStops:       c.Transform.DefaultStops,
	}
}

// APIKeyValues returns the configured keys in clear text for the auth
// middleware.
func (c *Config) APIKeyValues() []string {
	if len(c.Server.APIKeys) == 0 {
		return nil
	}
	out := make([]string, len(c.Server.APIKeys))
	for i, k := range c.Server.APIKeys {
		out[i] = k.Value()
	}
	return out
}

// Dump renders the effective configuration as YAML with secrets
// redacted.
func (c *Config) Dump() (string, error) {
	out, err := yamlv3.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("config: render: %w", err)
	}
	return string(out), nil
}
