// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

// =============================================================================
// TURN TESTS
// =============================================================================

func TestTurn_JSONShape(t *testing.T) {
	data, err := json.Marshal(UserTurn("ls"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"user","content":"ls"}`, string(data))
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Assistant ")
	require.NoError(t, err)
	assert.Equal(t, RoleAssistant, r)

	_, err = ParseRole("tool")
	assert.Error(t, err)
}

// =============================================================================
// TRANSCRIPT TESTS
// =============================================================================

func TestTranscript_Indexes(t *testing.T) {
	tr := Transcript{
		SystemTurn("sys"),
		UserTurn("u1"),
		AssistantTurn("a1"),
		UserTurn("u2"),
		AssistantTurn("a2"),
		AssistantTurn("a3"),
	}

	i, ok := tr.SystemIndex()
	assert.True(t, ok)
	assert.Equal(t, 0, i)

	i, ok = tr.LastIndex(RoleUser)
	assert.True(t, ok)
	assert.Equal(t, 3, i)

	i, ok = tr.NextIndex(RoleAssistant, 3)
	assert.True(t, ok)
	assert.Equal(t, 4, i)

	_, ok = tr.NextIndex(RoleUser, 3)
	assert.False(t, ok)

	i, ok = tr.OldestEvictable()
	assert.True(t, ok)
	assert.Equal(t, 1, i)
}

func TestTranscript_CloneIsIndependent(t *testing.T) {
	tr := Transcript{SystemTurn("sys"), UserTurn("u1")}
	c := tr.Clone()
	c[1].Content = "changed"
	assert.Equal(t, "u1", tr[1].Content)
}

func TestTranscript_Without(t *testing.T) {
	tr := Transcript{SystemTurn("sys"), UserTurn("u1"), AssistantTurn("a1")}
	out := tr.Without(1)
	assert.Equal(t, Transcript{SystemTurn("sys"), AssistantTurn("a1")}, out)
	assert.Len(t, tr, 3)
}

func TestTranscript_Normalize(t *testing.T) {
	t.Run("prepends missing system turn", func(t *testing.T) {
		out := Transcript{UserTurn("u1")}.Normalize("prompt")
		require.Len(t, out, 2)
		assert.Equal(t, SystemTurn("prompt"), out[0])
	})

	t.Run("drops duplicate system turns", func(t *testing.T) {
		out := Transcript{SystemTurn("a"), UserTurn("u"), SystemTurn("b")}.Normalize("prompt")
		assert.Equal(t, Transcript{SystemTurn("a"), UserTurn("u")}, out)
	})

	t.Run("empty input", func(t *testing.T) {
		out := Transcript(nil).Normalize("prompt")
		assert.Equal(t, Transcript{SystemTurn("prompt")}, out)
	})
}

func TestTranscript_SystemMissing(t *testing.T) {
	_, err := Transcript{UserTurn("u")}.System()
	assert.ErrorIs(t, err, ErrMissingSystemTurn)
}

// =============================================================================
// REPLY TESTS
// =============================================================================

func TestReply_NextCommand(t *testing.T) {
	tests := []struct {
		name    string
		command *string
		want    string
		wantOK  bool
	}{
		{"nil", nil, "", false},
		{"blank", strPtr("  "), "", false},
		{"done", strPtr("done"), "", false},
		{"done upper", strPtr(" DONE "), "", false},
		{"command", strPtr(" ls -la "), "ls -la", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Reply{Command: tt.command}.NextCommand()
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestReply_StringKeepsNullCommand(t *testing.T) {
	r := Reply{Reasoning: "r", Conclusion: "c"}
	assert.JSONEq(t, `{"reasoning":"r","conclusion":"c","command":null}`, r.String())
}
