// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// isolate points HOME at a temp dir and clears every AISH_* variable.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{
		"AISH_MODEL", "AISH_API_KEY", "OPENAI_API_KEY", "AISH_BASE_URL",
		"AISH_MAX_TOKENS", "AISH_POLICY", "AISH_HISTORY_PATH", "AISH_SHELL",
	} {
		t.Setenv(k, "")
	}
	return home
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// TestConfig_Default verifies the defaults are valid and match the
// documented values.
func TestConfig_Default(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.History.MaxTokens != 16384 {
		t.Errorf("Expected max_tokens 16384, got %d", cfg.History.MaxTokens)
	}
	if cfg.History.TokenModel != "gpt2" {
		t.Errorf("Expected token model gpt2, got %q", cfg.History.TokenModel)
	}
	if cfg.Chat.Temperature != 0.2 {
		t.Errorf("Expected temperature 0.2, got %g", cfg.Chat.Temperature)
	}
	if cfg.Shell.CommandTimeoutSecs != 0 {
		t.Errorf("Expected no command timeout by default, got %d", cfg.Shell.CommandTimeoutSecs)
	}
	if cfg.Shell.StrictStderr {
		t.Error("StrictStderr should be off by default")
	}
}

// TestConfig_LoadWithoutFile returns defaults when no file exists.
func TestConfig_LoadWithoutFile(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Chat.Model != Default().Chat.Model {
		t.Errorf("Expected default model, got %q", cfg.Chat.Model)
	}
}

// TestConfig_LoadTOML reads ~/.aish/config.toml and keeps defaults for
// fields the file leaves out.
func TestConfig_LoadTOML(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, ".aish", "config.toml")
	writeFile(t, path, `
[chat]
model = "anthropic/claude-3.5-haiku"
api_key = "sk-file"

[chat.provider]
order = ["anthropic"]
allow_fallbacks = false

[history]
policy = "simple"
max_tokens = 4096

[shell]
program = "/bin/sh"
command_timeout_secs = 30
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Chat.Model != "anthropic/claude-3.5-haiku" {
		t.Errorf("model = %q", cfg.Chat.Model)
	}
	if cfg.History.Policy != "simple" || cfg.History.MaxTokens != 4096 {
		t.Errorf("history = %+v", cfg.History)
	}
	if cfg.Shell.CommandTimeout().Seconds() != 30 {
		t.Errorf("command timeout = %v", cfg.Shell.CommandTimeout())
	}
	if len(cfg.Chat.Provider.Order) != 1 || cfg.Chat.Provider.AllowFallbacks == nil || *cfg.Chat.Provider.AllowFallbacks {
		t.Errorf("provider = %+v", cfg.Chat.Provider)
	}
	// Untouched fields keep their defaults.
	if cfg.Chat.BaseURL != Default().Chat.BaseURL {
		t.Errorf("base_url = %q", cfg.Chat.BaseURL)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected permissions tightened to 0600, got %o", info.Mode().Perm())
	}
}

// TestConfig_LoadFormats covers JSON and YAML through LoadFromPath.
func TestConfig_LoadFormats(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"json", "c.json", `{"chat":{"model":"m-json"},"history":{"backend":"sqlite"}}`},
		{"yaml", "c.yaml", "chat:\n  model: m-yaml\nhistory:\n  backend: sqlite\n"},
		{"yml", "c.yml", "chat:\n  model: m-yml\nhistory:\n  backend: sqlite\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			writeFile(t, path, tt.content)

			cfg, err := LoadFromPath(path)
			if err != nil {
				t.Fatalf("LoadFromPath error: %v", err)
			}
			if cfg.Chat.Model != "m-"+tt.name {
				t.Errorf("model = %q", cfg.Chat.Model)
			}
			if cfg.History.Backend != "sqlite" {
				t.Errorf("backend = %q", cfg.History.Backend)
			}
		})
	}
}

// TestConfig_LoadInvalidFile reports decode errors instead of silently
// falling back to defaults.
func TestConfig_LoadInvalidFile(t *testing.T) {
	home := isolate(t)
	writeFile(t, filepath.Join(home, ".aish", "config.toml"), "this is = = not toml")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error for a malformed config file")
	}
}

// TestConfig_Precedence checks defaults < file < env.
func TestConfig_Precedence(t *testing.T) {
	home := isolate(t)
	writeFile(t, filepath.Join(home, ".aish", "config.toml"), `
[chat]
model = "from-file"
api_key = "file-key"

[history]
max_tokens = 1000
`)
	t.Setenv("AISH_MODEL", "from-env")
	t.Setenv("AISH_MAX_TOKENS", "2000")
	t.Setenv("OPENAI_API_KEY", "openai-key")
	t.Setenv("AISH_SHELL", "/bin/zsh")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Chat.Model != "from-env" {
		t.Errorf("model = %q, env should win", cfg.Chat.Model)
	}
	if cfg.History.MaxTokens != 2000 {
		t.Errorf("max_tokens = %d, env should win", cfg.History.MaxTokens)
	}
	if cfg.Chat.APIKey != "file-key" {
		t.Errorf("api_key = %q, OPENAI_API_KEY must not override a configured key", cfg.Chat.APIKey)
	}
	if cfg.Shell.Program != "/bin/zsh" {
		t.Errorf("shell = %q", cfg.Shell.Program)
	}
}

// TestConfig_EnvOverrides covers each supported variable on defaults.
func TestConfig_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("AISH_API_KEY", "aish-key")
	t.Setenv("OPENAI_API_KEY", "openai-key")
	t.Setenv("AISH_BASE_URL", "http://localhost:11434/v1")
	t.Setenv("AISH_POLICY", "simple")
	t.Setenv("AISH_HISTORY_PATH", "/tmp/h.json")
	t.Setenv("AISH_MAX_TOKENS", "not-a-number")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.Chat.APIKey != "aish-key" {
		t.Errorf("AISH_API_KEY should take priority, got %q", cfg.Chat.APIKey)
	}
	if cfg.Chat.BaseURL != "http://localhost:11434/v1" {
		t.Errorf("base_url = %q", cfg.Chat.BaseURL)
	}
	if cfg.History.Policy != "simple" || cfg.History.Path != "/tmp/h.json" {
		t.Errorf("history = %+v", cfg.History)
	}
	if cfg.History.MaxTokens != Default().History.MaxTokens {
		t.Errorf("non-integer AISH_MAX_TOKENS should be ignored, got %d", cfg.History.MaxTokens)
	}
}

// TestConfig_Validate tests configuration validation.
func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name  string
		mut   func(c *Config)
		field string
	}{
		{"bad base url", func(c *Config) { c.Chat.BaseURL = "not a url" }, "chat.base_url"},
		{"ftp base url", func(c *Config) { c.Chat.BaseURL = "ftp://example.com" }, "chat.base_url"},
		{"empty model", func(c *Config) { c.Chat.Model = " " }, "chat.model"},
		{"temperature", func(c *Config) { c.Chat.Temperature = 3 }, "chat.temperature"},
		{"retries", func(c *Config) { c.Chat.MaxRetries = 50 }, "chat.max_retries"},
		{"backend", func(c *Config) { c.History.Backend = "redis" }, "history.backend"},
		{"policy", func(c *Config) { c.History.Policy = "lru" }, "history.policy"},
		{"tokenizer", func(c *Config) { c.History.Tokenizer = "bpe" }, "history.tokenizer"},
		{"budget", func(c *Config) { c.History.MaxTokens = 0 }, "history.max_tokens"},
		{"timeout", func(c *Config) { c.Shell.CommandTimeoutSecs = -1 }, "shell.command_timeout_secs"},
		{"sentinel", func(c *Config) { c.Shell.Sentinel = "two words" }, "shell.sentinel"},
		{"theme", func(c *Config) { c.UI.Theme = "neon" }, "ui.theme"},
		{"log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mut(c)
			err := c.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			var verrs ValidateErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidateErrors, got %T", err)
			}
			if len(verrs) != 1 || verrs[0].Field != tt.field {
				t.Errorf("expected one error on %s, got %v", tt.field, verrs)
			}
		})
	}
}

// TestConfig_ValidateCollectsAll reports every bad field at once.
func TestConfig_ValidateCollectsAll(t *testing.T) {
	c := Default()
	c.History.Policy = "x"
	c.UI.Theme = "y"

	err := c.Validate()
	if err == nil || !strings.Contains(err.Error(), "history.policy") || !strings.Contains(err.Error(), "ui.theme") {
		t.Errorf("expected both fields in %v", err)
	}
}

// TestConfig_SaveRoundTrip writes each format and loads it back.
func TestConfig_SaveRoundTrip(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	cfg := Default()
	cfg.Chat.Model = "round-trip"
	cfg.Shell.Args = []string{"--norc"}
	cfg.History.Backend = "sqlite"

	savers := map[string]func(*Config, string) error{
		"config.toml": SaveTOML,
		"config.json": SaveJSON,
		"config.yaml": SaveYAML,
	}
	for name, save := range savers {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := save(cfg, path); err != nil {
				t.Fatalf("save: %v", err)
			}
			info, err := os.Stat(path)
			if err != nil {
				t.Fatal(err)
			}
			if info.Mode().Perm() != 0600 {
				t.Errorf("permissions = %o", info.Mode().Perm())
			}

			loaded, err := LoadFromPath(path)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if loaded.Chat.Model != "round-trip" || loaded.History.Backend != "sqlite" {
				t.Errorf("loaded = %+v", loaded)
			}
			if len(loaded.Shell.Args) != 1 || loaded.Shell.Args[0] != "--norc" {
				t.Errorf("args = %v", loaded.Shell.Args)
			}
		})
	}
}

// TestConfig_SaveDefaultLocation writes ~/.aish/config.toml.
func TestConfig_SaveDefaultLocation(t *testing.T) {
	home := isolate(t)

	if err := Save(Default()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(home, ".aish", "config.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# aish configuration file") {
		t.Errorf("missing header comment:\n%s", data)
	}
}

// TestConfig_StringRedactsKey never prints the API key.
func TestConfig_StringRedactsKey(t *testing.T) {
	c := Default()
	c.Chat.APIKey = "sk-secret-value"

	s := c.String()
	if strings.Contains(s, "sk-secret-value") {
		t.Error("String() leaked the API key")
	}
	if !strings.Contains(s, "[REDACTED]") {
		t.Error("String() should mark the key as redacted")
	}
	if c.Chat.APIKey != "sk-secret-value" {
		t.Error("String() must not modify the original")
	}
}

// TestConfig_CloneIsDeep guards slices and pointers.
func TestConfig_CloneIsDeep(t *testing.T) {
	allow := true
	c := Default()
	c.Shell.Args = []string{"-l"}
	c.Chat.Provider.AllowFallbacks = &allow

	clone := c.Clone()
	clone.Shell.Args[0] = "changed"
	*clone.Chat.Provider.AllowFallbacks = false

	if c.Shell.Args[0] != "-l" {
		t.Error("Clone shares Shell.Args")
	}
	if !*c.Chat.Provider.AllowFallbacks {
		t.Error("Clone shares Provider.AllowFallbacks")
	}
}

// TestConfig_ConcurrentAccess exercises Global and SetGlobal together.
// Run with: go test -race ./internal/config/
func TestConfig_ConcurrentAccess(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c := Default()
			c.Version = "concurrent"
			SetGlobal(c)
		}()
		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
	}
	wg.Wait()
}
