// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history keeps the conversation transcript within a token budget.
//
// # Eviction Policies
//
//   - SimpleFifo drops the oldest non-system Turn until the transcript fits
//     or only the system Turn remains.
//   - LatestInteraction drops oldest Turns until the transcript fits or three
//     remain, then falls back to the system Turn, the last user Turn and the
//     assistant Turn answering it.
//
// Both policies return a new slice and refuse transcripts without a system
// Turn.
//
// # Store
//
// Store wraps a transcript with a policy, a tokenizer and a persistence
// backend. Append pushes a Turn, trims, and saves before returning.
package history
