// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and saves the aish configuration.
//
// TOML, JSON and YAML are supported, with defaults, environment variable
// overrides and validation.
//
// # Configuration Precedence
//
// Highest first:
//   - command-line flags (applied by the cli package)
//   - environment variables (AISH_*)
//   - ~/.aish/config.toml, else config.json, else config.yaml
//   - built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	budget := cfg.History.MaxTokens
package config
