// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package shell

import (
	"strings"
	"unicode/utf8"
)

const backspace = '\b'

// frameBuffer accumulates one stream's bytes and cuts them into frames at
// each sentinel.
type frameBuffer struct {
	sentinel string
	pending  string
}

func newFrameBuffer(sentinel string) *frameBuffer {
	return &frameBuffer{sentinel: sentinel}
}

// Feed appends chunk and returns every frame completed by it, trimmed, in
// arrival order. Text after the last sentinel stays pending.
func (b *frameBuffer) Feed(chunk string) []string {
	buf := resolveBackspaces(b.pending + chunk)

	var frames []string
	for {
		idx := strings.Index(buf, b.sentinel)
		if idx < 0 {
			break
		}
		frames = append(frames, strings.TrimSpace(buf[:idx]))
		buf = buf[idx+len(b.sentinel):]
	}
	b.pending = buf
	return frames
}

// Drain returns the trimmed pending text and clears it.
func (b *frameBuffer) Drain() string {
	out := strings.TrimSpace(b.pending)
	b.pending = ""
	return out
}

// Pending returns the buffered text without consuming it.
func (b *frameBuffer) Pending() string {
	return b.pending
}

// resolveBackspaces applies each backspace to the character before it. A
// backspace with nothing before it is dropped. Bytes are preserved as-is so
// a multi-byte character split across chunks is not corrupted.
func resolveBackspaces(s string) string {
	if strings.IndexByte(s, backspace) < 0 {
		return s
	}
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != backspace {
			out = append(out, s[i])
			continue
		}
		if len(out) > 0 {
			_, size := utf8.DecodeLastRune(out)
			out = out[:len(out)-size]
		}
	}
	return string(out)
}
