// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/aish/internal/model"
)

func sampleTranscript() model.Transcript {
	return model.Transcript{
		model.SystemTurn("prompt"),
		model.UserTurn("ls -la"),
		model.AssistantTurn("Command output: \"total 0\\n\""),
		model.UserTurn("/what is in here? 日本語"),
	}
}

// =============================================================================
// JSON FILE
// =============================================================================

func TestJSONFile_SaveLoad(t *testing.T) {
	ctx := context.Background()
	st := NewJSONFile(filepath.Join(t.TempDir(), ".aish_history.json"))

	require.NoError(t, st.Save(ctx, sampleTranscript()))

	got, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleTranscript(), got)
}

func TestJSONFile_Format(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h.json")
	st := NewJSONFile(path)

	require.NoError(t, st.Save(context.Background(), model.Transcript{model.SystemTurn("p")}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[\n  {\n    \"role\": \"system\",\n    \"content\": \"p\"\n  }\n]", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestJSONFile_Missing(t *testing.T) {
	st := NewJSONFile(filepath.Join(t.TempDir(), "nope.json"))

	_, err := st.Load(context.Background())
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestJSONFile_Corrupt(t *testing.T) {
	tests := map[string]string{
		"truncated":    `[{"role": "system", "cont`,
		"wrong shape":  `{"role": "system"}`,
		"unknown role": `[{"role": "tool", "content": "x"}]`,
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "h.json")
			require.NoError(t, os.WriteFile(path, []byte(body), 0600))

			_, err := NewJSONFile(path).Load(context.Background())
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

// =============================================================================
// SQLITE
// =============================================================================

func TestSQLite_SaveLoad(t *testing.T) {
	ctx := context.Background()
	st, err := OpenSQLite(filepath.Join(t.TempDir(), "db", "history.db"))
	require.NoError(t, err)
	defer st.Close()

	got, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, st.Save(ctx, sampleTranscript()))
	got, err = st.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleTranscript(), got)

	// A shorter save replaces, it does not merge.
	require.NoError(t, st.Save(ctx, sampleTranscript()[:2]))
	got, err = st.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleTranscript()[:2], got)
}

func TestSQLite_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	st, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, st.Save(ctx, sampleTranscript()))
	require.NoError(t, st.Close())

	st, err = OpenSQLite(path)
	require.NoError(t, err)
	defer st.Close()

	got, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleTranscript(), got)
}

// =============================================================================
// MEMORY / OPEN
// =============================================================================

func TestMemory_CopiesOnSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	in := sampleTranscript()
	require.NoError(t, m.Save(ctx, in))
	in[0].Content = "mutated"

	got, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "prompt", got[0].Content)
	assert.Equal(t, 1, m.Saves())
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	st, err := Open(BackendJSON, filepath.Join(dir, "h.json"))
	require.NoError(t, err)
	assert.IsType(t, &JSONFile{}, st)

	st, err = Open(BackendMemory, "")
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, st)

	st, err = Open(BackendSQLite, filepath.Join(dir, "h.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, st)
	require.NoError(t, st.Close())

	_, err = Open("redis", "")
	assert.Error(t, err)
}
