// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReplyJSON(t *testing.T) {
	r, err := ParseReply(`{"reasoning":"look around","conclusion":"listing","command":"ls -la"}`)
	require.NoError(t, err)

	assert.Equal(t, "look around", r.Reasoning)
	assert.Equal(t, "listing", r.Conclusion)
	cmd, ok := r.NextCommand()
	assert.True(t, ok)
	assert.Equal(t, "ls -la", cmd)
}

func TestParseReplyNullCommand(t *testing.T) {
	r, err := ParseReply(`{"reasoning":"I am a shell assistant","conclusion":"Hello","command":null}`)
	require.NoError(t, err)
	assert.Nil(t, r.Command)
	_, ok := r.NextCommand()
	assert.False(t, ok)
}

func TestParseReplyDone(t *testing.T) {
	r, err := ParseReply(`{"reasoning":"","conclusion":"finished","command":"DONE"}`)
	require.NoError(t, err)
	_, ok := r.NextCommand()
	assert.False(t, ok)
}

func TestParseReplyNonStringFields(t *testing.T) {
	r, err := ParseReply(`{"reasoning":42,"conclusion":["a"],"command":true}`)
	require.NoError(t, err)
	assert.Equal(t, "42", r.Reasoning)
	assert.Equal(t, `["a"]`, r.Conclusion)
	require.NotNil(t, r.Command)
	assert.Equal(t, "true", *r.Command)
}

func TestParseReplyFenced(t *testing.T) {
	content := "```json\n{\"reasoning\":\"r\",\"conclusion\":\"c\",\"command\":\"pwd\"}\n```"
	r, err := ParseReply(content)
	require.NoError(t, err)
	require.NotNil(t, r.Command)
	assert.Equal(t, "pwd", *r.Command)
}

func TestParseReplyWithSurroundingProse(t *testing.T) {
	content := "Sure! Here you go:\n{\"reasoning\":\"r\",\"conclusion\":\"c\",\"command\":\"uptime\"}\nLet me know."
	r, err := ParseReply(content)
	require.NoError(t, err)
	require.NotNil(t, r.Command)
	assert.Equal(t, "uptime", *r.Command)
}

func TestParseReplyLooseFallback(t *testing.T) {
	// A raw newline inside a string makes this invalid JSON.
	content := "{\"reasoning\": \"line one\nline two\", \"conclusion\": \"say \\\"hi\\\"\\tthere\", \"command\": \"echo a\\\\b\"}"
	r, err := ParseReply(content)
	require.NoError(t, err)

	assert.Equal(t, "line one\nline two", r.Reasoning)
	assert.Equal(t, "say \"hi\"\tthere", r.Conclusion)
	require.NotNil(t, r.Command)
	assert.Equal(t, `echo a\b`, *r.Command)
}

func TestParseReplyLooseNull(t *testing.T) {
	r, err := ParseReply("{\"reasoning\": \"x\ny\", \"command\": null")
	require.NoError(t, err)
	assert.Equal(t, "x\ny", r.Reasoning)
	assert.Nil(t, r.Command)
}

func TestParseReplyInvalid(t *testing.T) {
	for _, content := range []string{"", "   ", "just some prose", `{"answer":"42"}`} {
		_, err := ParseReply(content)
		assert.ErrorIs(t, err, ErrInvalidReply, "content %q", content)
	}
}

func TestParseReplyRoundTripsStoredForm(t *testing.T) {
	r, err := ParseReply(`{"reasoning":"a","conclusion":"b","command":"c"}`)
	require.NoError(t, err)

	again, err := ParseReply(r.String())
	require.NoError(t, err)
	assert.Equal(t, r, again)
}
