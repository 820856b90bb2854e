// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "time"

// SpinnerConfig holds the configuration for a spinner animation.
type SpinnerConfig struct {
	Frames []string
	FPS    int
}

// Duration returns the duration for each frame.
func (s SpinnerConfig) Duration() time.Duration {
	if s.FPS <= 0 {
		return time.Second
	}
	return time.Second / time.Duration(s.FPS)
}

// Frame returns frame i, wrapping around.
func (s SpinnerConfig) Frame(i int) string {
	if len(s.Frames) == 0 {
		return ""
	}
	if i < 0 {
		i = -i
	}
	return s.Frames[i%len(s.Frames)]
}

// WorkingSpinner blinks a gear while the assistant is busy.
var WorkingSpinner = SpinnerConfig{
	Frames: []string{"⚙️ ", "   "},
	FPS:    2,
}

// LineSpinner - Simple line rotation, for terminals without emoji.
var LineSpinner = SpinnerConfig{
	Frames: []string{"|", "/", "-", "\\"},
	FPS:    10,
}
