// Package config loads client settings from a file, ONE_* environment variables
// and the vendor credential variables, and hot-reloads the file on change.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/dan-solli/one/pkg/llm"
	"github.com/dan-solli/one/pkg/one"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every setting's environment variable (ONE_MODEL, ...)
const EnvPrefix = "ONE"

// Settings is the decoded configuration.
type Settings struct {
	// Model is empty to use the provider's default model
	Model    string `mapstructure:"model"`
	Provider string `mapstructure:"provider"`

	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	System      string  `mapstructure:"system"`

	Timeout time.Duration `mapstructure:"timeout"`

	OpenAIAPIKey     string `mapstructure:"openai_api_key"`
	AnthropicAPIKey  string `mapstructure:"anthropic_api_key"`
	OpenAIBaseURL    string `mapstructure:"openai_base_url"`
	AnthropicBaseURL string `mapstructure:"anthropic_base_url"`

	HistoryPath  string `mapstructure:"history_path"`
	TracePath    string `mapstructure:"trace_path"`
	TraceEnabled bool   `mapstructure:"trace_enabled"`

	// TracePartition splits the trace file per provider
	TracePartition bool `mapstructure:"trace_partition"`
}

// vendor variables are honored next to their ONE_ forms
var vendorEnv = map[string]string{
	"openai_api_key":     "OPENAI_API_KEY",
	"anthropic_api_key":  "ANTHROPIC_API_KEY",
	"openai_base_url":    "OPENAI_BASE_URL",
	"anthropic_base_url": "ANTHROPIC_BASE_URL",
}

func defaults() map[string]any {
	return map[string]any{
		"model":              "",
		"provider":           "",
		"temperature":        llm.DefaultTemperature,
		"max_tokens":         0,
		"system":             "",
		"timeout":            60 * time.Second,
		"openai_api_key":     "",
		"anthropic_api_key":  "",
		"openai_base_url":    "",
		"anthropic_base_url": "",
		"history_path":       "",
		"trace_path":         "",
		"trace_enabled":      false,
		"trace_partition":    false,
	}
}

// Config is a loaded configuration. It is safe for concurrent use.
type Config struct {
	v    *viper.Viper
	path string

	mu       sync.RWMutex
	value    Settings
	watchers []func(old, new Settings)

	logger *slog.Logger

	watchOnce sync.Once
}

// Option configures Load.
type Option func(*Config)

// WithDefaults overrides built-in defaults.
func WithDefaults(values map[string]any) Option {
	return func(c *Config) {
		for k, v := range values {
			c.v.SetDefault(k, v)
		}
	}
}

// WithLogger sets where hot-reload failures are reported. Defaults to
// slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Load reads the file at path (YAML, JSON or TOML by extension) and the
// environment. An empty path loads the environment and defaults only.
func Load(path string, opts ...Option) (*Config, error) {
	v := viper.New()
	c := &Config{v: v, path: path, logger: slog.Default()}

	for k, val := range defaults() {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, env := range vendorEnv {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(key), env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	for _, opt := range opts {
		opt(c)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := c.Refresh(); err != nil {
		return nil, err
	}
	return c, nil
}

// Viper exposes the underlying instance, e.g. for binding command-line flags.
// Call Refresh afterwards.
func (c *Config) Viper() *viper.Viper {
	return c.v
}

// Refresh decodes the current viper state into Settings.
func (c *Config) Refresh() error {
	var s Settings
	if err := c.v.Unmarshal(&s); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}

	c.mu.Lock()
	c.value = s
	c.mu.Unlock()
	return nil
}

// Get returns the current settings.
func (c *Config) Get() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Credential implements llm.CredentialSource.
func (c *Config) Credential(kind llm.Kind) (string, bool) {
	s := c.Get()
	var key string
	switch kind {
	case llm.KindOpenAI:
		key = s.OpenAIAPIKey
	case llm.KindAnthropic:
		key = s.AnthropicAPIKey
	}
	key = strings.TrimSpace(key)
	return key, key != ""
}

// BaseURL returns the configured endpoint for kind, or "".
func (s Settings) BaseURL(kind llm.Kind) string {
	switch kind {
	case llm.KindOpenAI:
		return s.OpenAIBaseURL
	case llm.KindAnthropic:
		return s.AnthropicBaseURL
	}
	return ""
}

// ModelConfig converts the settings into a one.Config using c as the
// credential source. Sinks (metrics, traces, history) are left to the caller.
func (c *Config) ModelConfig() one.Config {
	s := c.Get()

	cfg := one.Config{
		Model:        s.Model,
		Provider:     s.Provider,
		Credentials:  c,
		Timeout:      s.Timeout,
		TraceEnabled: s.TraceEnabled,
	}
	if kind, ok := s.kind(); ok {
		cfg.BaseURL = s.BaseURL(kind)
	}
	return cfg
}

// GenerateOptions returns the per-call defaults from the settings.
func (c *Config) GenerateOptions() []one.GenerateOption {
	s := c.Get()

	opts := []one.GenerateOption{one.WithTemperature(s.Temperature)}
	if s.MaxTokens > 0 {
		opts = append(opts, one.WithMaxTokens(s.MaxTokens))
	}
	if s.System != "" {
		opts = append(opts, one.WithSystem(s.System))
	}
	return opts
}

func (s Settings) kind() (llm.Kind, bool) {
	if s.Provider != "" {
		k, err := llm.ParseKind(s.Provider)
		return k, err == nil
	}
	model := s.Model
	if model == "" {
		model = llm.DefaultModel()
	}
	k, err := llm.Detect(model)
	return k, err == nil
}

// Watch registers fn to run after the file changes and the decoded settings
// differ. Watching starts on the first call.
func (c *Config) Watch(fn func(old, new Settings)) error {
	if c.path == "" {
		return errors.New("config: no file to watch")
	}

	c.mu.Lock()
	c.watchers = append(c.watchers, fn)
	c.mu.Unlock()

	c.watchOnce.Do(c.watch)
	return nil
}

func (c *Config) watch() {
	var (
		debounceTimer *time.Timer
		debounceMu    sync.Mutex
	)

	// editors emit several events per save
	c.v.OnConfigChange(func(_ fsnotify.Event) {
		debounceMu.Lock()
		defer debounceMu.Unlock()
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		debounceTimer = time.AfterFunc(100*time.Millisecond, c.handleConfigChange)
	})

	c.v.WatchConfig()
}

func (c *Config) handleConfigChange() {
	old := c.Get()

	// viper keeps the previous values when the new file does not parse
	if err := c.v.ReadInConfig(); err != nil {
		c.logger.Warn("config reload failed, keeping previous settings", "path", c.path, "error", err)
		return
	}
	if err := c.Refresh(); err != nil {
		c.logger.Warn("config reload failed, keeping previous settings", "path", c.path, "error", err)
		return
	}
	updated := c.Get()
	if reflect.DeepEqual(old, updated) {
		return
	}

	c.mu.RLock()
	watchers := make([]func(old, new Settings), len(c.watchers))
	copy(watchers, c.watchers)
	c.mu.RUnlock()

	for _, fn := range watchers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error("config watcher panicked", "path", c.path, "panic", r)
				}
			}()
			fn(old, updated)
		}()
	}
}
