// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists aish transcripts.
//
// Every backend stores the whole transcript and rewrites it in full on each
// save.
//
// # Backends
//
//   - JSONFile: a pretty-printed JSON array of {role, content} objects,
//     ~/.aish_history.json by default
//   - SQLite: one row per Turn in a "turns" table
//   - Memory: process-local, for tests and --ephemeral sessions
//
// # Usage
//
//	st := storage.NewJSONFile(storage.DefaultJSONPath())
//	turns, err := st.Load(ctx)
//	err = st.Save(ctx, turns)
package storage
