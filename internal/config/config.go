// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/aish/internal/history"
	"github.com/jeranaias/aish/internal/storage"
	"github.com/jeranaias/aish/internal/tokenizer"
	"github.com/jeranaias/aish/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete aish configuration.
type Config struct {
	Version string `toml:"version" json:"version" yaml:"version"`

	Chat    ChatConfig    `toml:"chat" json:"chat" yaml:"chat"`
	History HistoryConfig `toml:"history" json:"history" yaml:"history"`
	Shell   ShellConfig   `toml:"shell" json:"shell" yaml:"shell"`
	UI      UIConfig      `toml:"ui" json:"ui" yaml:"ui"`
	Log     LogConfig     `toml:"log" json:"log" yaml:"log"`
}

// ChatConfig configures the chat-completion service.
type ChatConfig struct {
	// BaseURL is the OpenAI-compatible API root, e.g. https://openrouter.ai/api/v1
	BaseURL string `toml:"base_url" json:"base_url" yaml:"base_url"`
	// APIKey is sent as a bearer token. Optional for local servers.
	APIKey string `toml:"api_key" json:"api_key" yaml:"api_key"`
	// Model is the model identifier passed to the service.
	Model string `toml:"model" json:"model" yaml:"model"`
	// Temperature controls sampling randomness.
	Temperature float64 `toml:"temperature" json:"temperature" yaml:"temperature"`
	// TimeoutSecs bounds a single HTTP attempt.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs" yaml:"timeout_secs"`
	// MaxRetries is the number of attempts on 429 and 5xx responses.
	MaxRetries int `toml:"max_retries" json:"max_retries" yaml:"max_retries"`
	// RequestsPerSecond is the client-side rate limit. Zero disables it.
	RequestsPerSecond float64 `toml:"requests_per_second" json:"requests_per_second" yaml:"requests_per_second"`
	// MaxSteps bounds the commands the assistant may run per request. Zero is unbounded.
	MaxSteps int `toml:"max_steps" json:"max_steps" yaml:"max_steps"`
	// Provider holds OpenRouter routing preferences.
	Provider ProviderConfig `toml:"provider" json:"provider" yaml:"provider"`
}

// ProviderConfig mirrors OpenRouter's provider preferences.
type ProviderConfig struct {
	Order             []string `toml:"order,omitempty" json:"order,omitempty" yaml:"order,omitempty"`
	AllowFallbacks    *bool    `toml:"allow_fallbacks,omitempty" json:"allow_fallbacks,omitempty" yaml:"allow_fallbacks,omitempty"`
	RequireParameters *bool    `toml:"require_parameters,omitempty" json:"require_parameters,omitempty" yaml:"require_parameters,omitempty"`
	DataCollection    string   `toml:"data_collection,omitempty" json:"data_collection,omitempty" yaml:"data_collection,omitempty"`
	Ignore            []string `toml:"ignore,omitempty" json:"ignore,omitempty" yaml:"ignore,omitempty"`
	Quantizations     []string `toml:"quantizations,omitempty" json:"quantizations,omitempty" yaml:"quantizations,omitempty"`
	Sort              string   `toml:"sort,omitempty" json:"sort,omitempty" yaml:"sort,omitempty"`
}

// HistoryConfig configures the transcript store.
type HistoryConfig struct {
	// Backend is "json", "sqlite" or "memory".
	Backend string `toml:"backend" json:"backend" yaml:"backend"`
	// Path overrides the backend's default file.
	Path string `toml:"path" json:"path" yaml:"path"`
	// MaxTokens is the transcript token budget.
	MaxTokens int `toml:"max_tokens" json:"max_tokens" yaml:"max_tokens"`
	// Policy is the eviction policy: "simple" or "latest".
	Policy string `toml:"policy" json:"policy" yaml:"policy"`
	// Tokenizer is "tiktoken", "estimate" or "words".
	Tokenizer string `toml:"tokenizer" json:"tokenizer" yaml:"tokenizer"`
	// TokenModel selects the tiktoken encoding.
	TokenModel string `toml:"token_model" json:"token_model" yaml:"token_model"`
	// SystemPrompt replaces the built-in prompt when set.
	SystemPrompt string `toml:"system_prompt,omitempty" json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
}

// ShellConfig configures the persistent shell.
type ShellConfig struct {
	// Program is the shell binary.
	Program string `toml:"program" json:"program" yaml:"program"`
	// Args are passed to Program.
	Args []string `toml:"args,omitempty" json:"args,omitempty" yaml:"args,omitempty"`
	// Dir is the initial working directory. Empty means the home directory.
	Dir string `toml:"dir,omitempty" json:"dir,omitempty" yaml:"dir,omitempty"`
	// CommandTimeoutSecs bounds each command. Zero waits indefinitely.
	CommandTimeoutSecs int `toml:"command_timeout_secs" json:"command_timeout_secs" yaml:"command_timeout_secs"`
	// StrictStderr waits for a stderr sentinel as well as stdout.
	StrictStderr bool `toml:"strict_stderr" json:"strict_stderr" yaml:"strict_stderr"`
	// Sentinel overrides the end-of-output marker.
	Sentinel string `toml:"sentinel,omitempty" json:"sentinel,omitempty" yaml:"sentinel,omitempty"`
	// NormalizeCommands applies NFKC to assistant commands.
	NormalizeCommands bool `toml:"normalize_commands" json:"normalize_commands" yaml:"normalize_commands"`
}

// UIConfig configures the REPL.
type UIConfig struct {
	// Theme is "auto", "dark" or "light".
	Theme string `toml:"theme" json:"theme" yaml:"theme"`
	// Markdown renders assistant conclusions with glamour.
	Markdown bool `toml:"markdown" json:"markdown" yaml:"markdown"`
	// Highlight colors assistant commands.
	Highlight bool `toml:"highlight" json:"highlight" yaml:"highlight"`
	// ShowTokens puts the token count in the prompt.
	ShowTokens bool `toml:"show_tokens" json:"show_tokens" yaml:"show_tokens"`
	// InputHistory is the line-editor history file.
	InputHistory string `toml:"input_history,omitempty" json:"input_history,omitempty" yaml:"input_history,omitempty"`
}

// LogConfig configures the diagnostic log.
type LogConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `toml:"level" json:"level" yaml:"level"`
	// Path is the log file. Empty means ~/.aish/aish.log.
	Path string `toml:"path,omitempty" json:"path,omitempty" yaml:"path,omitempty"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Version: "1",

		Chat: ChatConfig{
			BaseURL:           "https://openrouter.ai/api/v1",
			Model:             "openai/gpt-4o-mini",
			Temperature:       0.2,
			TimeoutSecs:       120,
			MaxRetries:        3,
			RequestsPerSecond: 2,
		},

		History: HistoryConfig{
			Backend:    string(storage.BackendJSON),
			MaxTokens:  history.DefaultMaxTokens,
			Policy:     history.PolicyLatest,
			Tokenizer:  string(tokenizer.KindTiktoken),
			TokenModel: "gpt2",
		},

		Shell: ShellConfig{
			Program: "bash",
		},

		UI: UIConfig{
			Theme:      "auto",
			Markdown:   true,
			Highlight:  true,
			ShowTokens: true,
		},

		Log: LogConfig{
			Level: "info",
		},
	}
}

// CommandTimeout returns the shell command timeout as a duration.
func (s ShellConfig) CommandTimeout() time.Duration {
	return time.Duration(s.CommandTimeoutSecs) * time.Second
}

// Timeout returns the HTTP attempt timeout as a duration.
func (c ChatConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns ~/.aish.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".aish"), nil
}

func configPath(name string) (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// ConfigPathTOML returns the path to config.toml.
func ConfigPathTOML() (string, error) { return configPath("config.toml") }

// ConfigPathJSON returns the path to config.json.
func ConfigPathJSON() (string, error) { return configPath("config.json") }

// ConfigPathYAML returns the path to config.yaml.
func ConfigPathYAML() (string, error) { return configPath("config.yaml") }

// EnsureConfigDir creates ConfigDir if needed.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// ensureSecurePermissions tightens a config file to 0600.
// SECURITY: config files may hold the API key.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the first of config.toml, config.json and config.yaml found in
// ConfigDir, applies environment overrides, fills defaults and validates.
// With no file present the defaults are used.
func Load() (*Config, error) {
	for _, pathFn := range []func() (string, error){ConfigPathTOML, ConfigPathJSON, ConfigPathYAML} {
		path, err := pathFn()
		if err != nil {
			break
		}
		if _, statErr := os.Stat(path); statErr != nil {
			continue
		}
		return LoadFromPath(path)
	}
	return finish(Default())
}

// LoadFromPath loads a specific file. The format follows the extension;
// anything other than .json, .yaml or .yml is read as TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = LoadJSON(cfg, path)
	case ".yaml", ".yml":
		err = LoadYAML(cfg, path)
	default:
		err = LoadTOML(cfg, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file into cfg.
func LoadTOML(cfg *Config, path string) error {
	warnPermissions(path)
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file into cfg.
func LoadJSON(cfg *Config, path string) error {
	warnPermissions(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadYAML decodes a YAML file into cfg.
func LoadYAML(cfg *Config, path string) error {
	warnPermissions(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read YAML file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode YAML file: %w", err)
	}
	return nil
}

func warnPermissions(path string) {
	if err := ensureSecurePermissions(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to the default TOML file.
func Save(cfg *Config) error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

const tomlHeader = `# aish configuration file
#
# Environment variables (AISH_MODEL, AISH_API_KEY, ...) override these values,
# and command-line flags override both.

`

// SaveTOML writes cfg as TOML with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var b strings.Builder
	b.WriteString(tomlHeader)
	if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes cfg as indented JSON with 0600 permissions.
// RELIABILITY: atomic write with fsync.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveYAML writes cfg as YAML with 0600 permissions.
func SaveYAML(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError is a problem with one field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors collects every ValidationError found.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

var (
	validBackends   = []string{string(storage.BackendJSON), string(storage.BackendSQLite), string(storage.BackendMemory)}
	validTokenizers = []string{string(tokenizer.KindTiktoken), string(tokenizer.KindEstimate), string(tokenizer.KindWords)}
	validThemes     = []string{"auto", "dark", "light"}
	validLogLevels  = []string{"debug", "info", "warn", "error"}
)

// Validate checks every section and returns ValidateErrors on failure.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}
	oneOf := func(field, value string, valid []string) {
		if !slices.Contains(valid, strings.ToLower(value)) {
			add(field, "invalid value %q, must be one of: %s", value, strings.Join(valid, ", "))
		}
	}

	// Chat
	if u, err := url.Parse(c.Chat.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		add("chat.base_url", "invalid URL %q", c.Chat.BaseURL)
	} else if u.Scheme != "http" && u.Scheme != "https" {
		add("chat.base_url", "scheme must be http or https, got %q", u.Scheme)
	}
	if strings.TrimSpace(c.Chat.Model) == "" {
		add("chat.model", "must not be empty")
	}
	if c.Chat.Temperature < 0 || c.Chat.Temperature > 2 {
		add("chat.temperature", "must be between 0 and 2, got %g", c.Chat.Temperature)
	}
	if c.Chat.TimeoutSecs < 0 {
		add("chat.timeout_secs", "must not be negative")
	}
	if c.Chat.MaxRetries < 0 || c.Chat.MaxRetries > 10 {
		add("chat.max_retries", "must be between 0 and 10, got %d", c.Chat.MaxRetries)
	}
	if c.Chat.RequestsPerSecond < 0 {
		add("chat.requests_per_second", "must not be negative")
	}
	if c.Chat.MaxSteps < 0 {
		add("chat.max_steps", "must not be negative")
	}

	// History
	oneOf("history.backend", c.History.Backend, validBackends)
	oneOf("history.policy", c.History.Policy, history.PolicyNames())
	oneOf("history.tokenizer", c.History.Tokenizer, validTokenizers)
	if c.History.MaxTokens <= 0 {
		add("history.max_tokens", "must be positive, got %d", c.History.MaxTokens)
	}

	// Shell
	if strings.TrimSpace(c.Shell.Program) == "" {
		add("shell.program", "must not be empty")
	}
	if c.Shell.CommandTimeoutSecs < 0 {
		add("shell.command_timeout_secs", "must not be negative")
	}
	if strings.ContainsAny(c.Shell.Sentinel, " \t\n'\"$`\\<>|&;") {
		add("shell.sentinel", "must be a single word without quotes or shell metacharacters")
	}

	// UI and log
	oneOf("ui.theme", c.UI.Theme, validThemes)
	oneOf("log.level", c.Log.Level, validLogLevels)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills zero-valued fields that have no meaningful zero.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.Chat.BaseURL == "" {
		c.Chat.BaseURL = defaults.Chat.BaseURL
	}
	if c.Chat.Model == "" {
		c.Chat.Model = defaults.Chat.Model
	}
	if c.Chat.TimeoutSecs == 0 {
		c.Chat.TimeoutSecs = defaults.Chat.TimeoutSecs
	}
	if c.Chat.MaxRetries == 0 {
		c.Chat.MaxRetries = defaults.Chat.MaxRetries
	}
	if c.History.Backend == "" {
		c.History.Backend = defaults.History.Backend
	}
	if c.History.MaxTokens == 0 {
		c.History.MaxTokens = defaults.History.MaxTokens
	}
	if c.History.Policy == "" {
		c.History.Policy = defaults.History.Policy
	}
	if c.History.Tokenizer == "" {
		c.History.Tokenizer = defaults.History.Tokenizer
	}
	if c.History.TokenModel == "" {
		c.History.TokenModel = defaults.History.TokenModel
	}
	if c.Shell.Program == "" {
		c.Shell.Program = defaults.Shell.Program
	}
	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variables to the config.
//
// Supported environment variables:
//   - AISH_MODEL: chat.model
//   - AISH_API_KEY: chat.api_key
//   - OPENAI_API_KEY: chat.api_key when neither AISH_API_KEY nor the file sets one
//   - AISH_BASE_URL: chat.base_url
//   - AISH_MAX_TOKENS: history.max_tokens (ignored unless an integer)
//   - AISH_POLICY: history.policy
//   - AISH_HISTORY_PATH: history.path
//   - AISH_SHELL: shell.program
func (c *Config) ApplyEnvOverrides() {
	if model := os.Getenv("AISH_MODEL"); model != "" {
		c.Chat.Model = model
	}

	if key := os.Getenv("AISH_API_KEY"); key != "" {
		c.Chat.APIKey = key
	} else if key := os.Getenv("OPENAI_API_KEY"); key != "" && c.Chat.APIKey == "" {
		c.Chat.APIKey = key
	}

	if base := os.Getenv("AISH_BASE_URL"); base != "" {
		c.Chat.BaseURL = base
	}

	if raw := os.Getenv("AISH_MAX_TOKENS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			c.History.MaxTokens = n
		}
	}

	if policy := os.Getenv("AISH_POLICY"); policy != "" {
		c.History.Policy = policy
	}

	if path := os.Getenv("AISH_HISTORY_PATH"); path != "" {
		c.History.Path = path
	}

	if sh := os.Getenv("AISH_SHELL"); sh != "" {
		c.Shell.Program = sh
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Shell.Args = slices.Clone(c.Shell.Args)
	p := &clone.Chat.Provider
	p.Order = slices.Clone(c.Chat.Provider.Order)
	p.Ignore = slices.Clone(c.Chat.Provider.Ignore)
	p.Quantizations = slices.Clone(c.Chat.Provider.Quantizations)
	if c.Chat.Provider.AllowFallbacks != nil {
		v := *c.Chat.Provider.AllowFallbacks
		p.AllowFallbacks = &v
	}
	if c.Chat.Provider.RequireParameters != nil {
		v := *c.Chat.Provider.RequireParameters
		p.RequireParameters = &v
	}
	return &clone
}

// Redacted returns a copy safe to print.
// SECURITY: the API key never leaves the process in plain text.
func (c *Config) Redacted() *Config {
	safe := c.Clone()
	if safe.Chat.APIKey != "" {
		safe.Chat.APIKey = "[REDACTED]"
	}
	return safe
}

// String returns the redacted config as indented JSON.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the process-wide config, loading it on first use. A load
// failure falls back to defaults with a warning on stderr.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfigMu.Lock()
		globalConfig = cfg
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal replaces the process-wide config.
func SetGlobal(cfg *Config) {
	globalConfigOnce.Do(func() {})
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting clears the process-wide config.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
