// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles holds the colors, line styles and spinner frames used by
// the aish REPL.
//
// Colors are lipgloss AdaptiveColors so the same palette works on light and
// dark terminals. NewTheme picks the background from config ("auto" asks the
// terminal); Plain returns an uncolored theme for non-TTY output.
package styles
