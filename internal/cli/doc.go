// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the aish command line.
//
// Running aish with no subcommand starts the interactive loop: a persistent
// shell plus an assistant reached by prefixing a line with "/". Subcommands
// inspect the saved transcript and the configuration, or check the
// environment:
//
//	aish history show|clear|tokens|export
//	aish config show|path|init
//	aish doctor [--json]
//	aish version
//
// Global flags override the config file and environment:
//
//	--config PATH   --model NAME   --policy simple|latest
//	--max-tokens N  --ephemeral    --verbose
package cli
