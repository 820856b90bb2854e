// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// UNICODE: Width-aware helpers. CJK and emoji occupy two terminal columns,
// so byte or rune counts misalign the history listing.

// StringWidth returns the number of terminal columns s occupies.
func StringWidth(s string) int {
	return runewidth.StringWidth(s)
}

// TruncateWidth cuts s to at most maxWidth columns, appending "..." when
// anything was removed and there is room for it.
func TruncateWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

// OneLine collapses runs of whitespace, including newlines, into single
// spaces.
func OneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Preview returns OneLine(s) truncated to maxWidth columns.
func Preview(s string, maxWidth int) string {
	return TruncateWidth(OneLine(s), maxWidth)
}
