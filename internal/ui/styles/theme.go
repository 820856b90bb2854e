// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme names accepted by NewTheme.
const (
	ThemeAuto  = "auto"
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// Theme holds the styles for the REPL.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	ColorProfile termenv.Profile

	Welcome    lipgloss.Style
	Tip        lipgloss.Style
	PromptInfo lipgloss.Style
	PromptTail lipgloss.Style

	Reasoning  lipgloss.Style
	Conclusion lipgloss.Style
	Command    lipgloss.Style
	Output     lipgloss.Style
	Error      lipgloss.Style
	Notice     lipgloss.Style
	Muted      lipgloss.Style
	Label      lipgloss.Style

	Spinner lipgloss.Style
}

// NewTheme returns a theme. name is "auto", "dark" or "light"; "auto" asks
// the terminal for its background.
func NewTheme(name string) *Theme {
	profile := termenv.ColorProfile()

	var isDark bool
	switch name {
	case ThemeDark:
		isDark = true
	case ThemeLight:
		isDark = false
	default:
		isDark = termenv.HasDarkBackground()
	}
	lipgloss.SetHasDarkBackground(isDark)

	t := &Theme{
		IsDark:       isDark,
		ColorProfile: profile,
	}
	t.initStyles()
	return t
}

// Plain returns a theme with no colors, for pipes and tests.
func Plain() *Theme {
	t := &Theme{ColorProfile: termenv.Ascii}
	t.Welcome = lipgloss.NewStyle()
	t.Tip = lipgloss.NewStyle()
	t.PromptInfo = lipgloss.NewStyle()
	t.PromptTail = lipgloss.NewStyle()
	t.Reasoning = lipgloss.NewStyle()
	t.Conclusion = lipgloss.NewStyle()
	t.Command = lipgloss.NewStyle()
	t.Output = lipgloss.NewStyle()
	t.Error = lipgloss.NewStyle()
	t.Notice = lipgloss.NewStyle()
	t.Muted = lipgloss.NewStyle()
	t.Label = lipgloss.NewStyle()
	t.Spinner = lipgloss.NewStyle()
	return t
}

func (t *Theme) initStyles() {
	t.Welcome = lipgloss.NewStyle().Bold(true).Foreground(EmeraldBright)
	t.Tip = lipgloss.NewStyle().Foreground(Emerald)
	t.PromptInfo = lipgloss.NewStyle().Foreground(Cyan)
	t.PromptTail = lipgloss.NewStyle().Bold(true).Foreground(CyanBright)

	t.Reasoning = lipgloss.NewStyle().Foreground(TextMuted).Italic(true)
	t.Conclusion = lipgloss.NewStyle().Foreground(TextPrimary)
	t.Command = lipgloss.NewStyle().Foreground(Purple).Bold(true)
	t.Output = lipgloss.NewStyle().Foreground(TextBright)
	t.Error = lipgloss.NewStyle().Foreground(Rose)
	t.Notice = lipgloss.NewStyle().Foreground(Amber)
	t.Muted = lipgloss.NewStyle().Foreground(TextMuted)
	t.Label = lipgloss.NewStyle().Foreground(TextSecondary).Bold(true)

	t.Spinner = lipgloss.NewStyle().Foreground(Amber)
}
