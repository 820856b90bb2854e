// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package shell

import (
	"errors"
	"fmt"
)

var (
	// ErrShellExited indicates the shell process is gone. Match with
	// errors.Is; the concrete error is an *ExitError.
	ErrShellExited = errors.New("shell exited")

	// ErrCommandTimeout indicates the sentinel did not arrive within
	// Options.CommandTimeout.
	ErrCommandTimeout = errors.New("command timed out")

	// ErrClosed indicates Run was called after Close.
	ErrClosed = errors.New("shell session closed")
)

// ExitError reports how the shell process ended.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("shell exited with code %d: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("shell exited with code %d", e.Code)
}

// Is makes errors.Is(err, ErrShellExited) true for every *ExitError.
func (e *ExitError) Is(target error) bool {
	return target == ErrShellExited
}

func (e *ExitError) Unwrap() error {
	return e.Err
}
