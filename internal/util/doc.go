// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds small helpers shared by the aish packages.
//
// File Operations:
//   - AtomicWriteFile: temp file, fsync, rename
//
// Display:
//   - TruncateWidth, StringWidth: column-aware truncation for history listings
//   - OneLine: collapse multi-line text into a single preview line
package util
