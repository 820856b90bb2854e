// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "github.com/charmbracelet/lipgloss"

// =============================================================================
// ACCENT COLORS
// =============================================================================

// Cyan - Prompt, brand
var Cyan = lipgloss.AdaptiveColor{Light: "#0891B2", Dark: "#22D3EE"}

// CyanBright - Prompt terminator
var CyanBright = lipgloss.AdaptiveColor{Light: "#0E7490", Dark: "#67E8F9"}

// Purple - Assistant commands
var Purple = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"}

// Emerald - Welcome banner, success
var Emerald = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"}

// EmeraldBright - Welcome title
var EmeraldBright = lipgloss.AdaptiveColor{Light: "#047857", Dark: "#6EE7B7"}

// =============================================================================
// SEMANTIC COLORS
// =============================================================================

// Rose - Errors
var Rose = lipgloss.AdaptiveColor{Light: "#E11D48", Dark: "#FB7185"}

// Amber - Notices, interrupts
var Amber = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}

// =============================================================================
// TEXT COLORS
// =============================================================================

// TextPrimary - Conclusions, command echo
var TextPrimary = lipgloss.AdaptiveColor{Light: "#1F2937", Dark: "#CDD6F4"}

// TextBright - Command output
var TextBright = lipgloss.AdaptiveColor{Light: "#111827", Dark: "#FFFFFF"}

// TextSecondary - Labels
var TextSecondary = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#A6ADC8"}

// TextMuted - Reasoning, hints, durations
var TextMuted = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6C7086"}

// =============================================================================
// ROLE COLORS (history listing)
// =============================================================================

// RoleColor returns the color used for a transcript role name.
func RoleColor(role string) lipgloss.AdaptiveColor {
	switch role {
	case "system":
		return Amber
	case "user":
		return Cyan
	case "assistant":
		return Purple
	default:
		return TextSecondary
	}
}

// =============================================================================
// STATUS INDICATORS
// =============================================================================

// Indicators prefix each kind of REPL line.
var Indicators = struct {
	Reasoning  string
	Conclusion string
	Command    string
	Error      string
	Notice     string
}{
	Reasoning:  "🤔",
	Conclusion: "✅",
	Command:    "🛠️",
	Error:      "[X]",
	Notice:     "[!]",
}

// RenderError renders an error line.
func RenderError(message string) string {
	return lipgloss.NewStyle().Foreground(Rose).Render(message)
}

// RenderNotice renders a notice line.
func RenderNotice(message string) string {
	return lipgloss.NewStyle().Foreground(Amber).Render(message)
}
