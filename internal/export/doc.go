// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes a transcript to Markdown or JSON for sharing.
//
//	exp, err := export.ForFormat("markdown", nil)
//	path, err := export.ExportToFile(&export.Document{Transcript: t}, exp, nil)
//
// The system prompt is left out unless Options.IncludeSystem is set.
package export
