// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package shell runs commands one at a time in a single long-lived shell.
//
// # Protocol
//
// Each command is written to the shell's stdin followed by an echo of a
// sentinel:
//
//	<command>\necho __COMMAND_END__\n
//
// Output on stdout and stderr is buffered per stream. When the sentinel
// appears on stdout, the text before it is the command's stdout and
// whatever stderr has accumulated so far is its stderr. Backspaces in the
// stream delete the preceding character before the sentinel is searched.
//
// Stderr written after the stdout sentinel is attributed to the next
// command. Options.StrictStderr also echoes the sentinel to stderr and waits
// for both streams, at the cost of one extra echo per command.
//
// # Lifecycle
//
// Start spawns the shell. Run blocks until the command's sentinel arrives,
// the context ends, or the shell exits. An exited shell is not restarted:
// Done is closed and every later Run fails with an *ExitError.
package shell
