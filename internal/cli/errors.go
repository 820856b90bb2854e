// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/aish/internal/chat"
	"github.com/jeranaias/aish/internal/config"
	"github.com/jeranaias/aish/internal/shell"
	"github.com/jeranaias/aish/internal/ui/styles"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates the chat service rejected the API key
	ExitAuthError = 4
)

// UsageError marks bad flags or arguments.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }
func (e *UsageError) Unwrap() error { return e.Err }

// GetExitCode maps an error to the process exit status. When the shell exits
// the session, aish exits with the shell's own status.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var exitErr *shell.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	var usageErr *UsageError
	if errors.As(err, &usageErr) {
		return ExitUsageError
	}

	var validation config.ValidateErrors
	if errors.As(err, &validation) || errors.Is(err, chat.ErrNotConfigured) {
		return ExitConfigError
	}

	if errors.Is(err, chat.ErrAuthFailed) {
		return ExitAuthError
	}

	return ExitGeneralError
}

// DisplayError prints err to w. A shell exit is not an error from the user's
// point of view and is printed as a notice.
func DisplayError(w io.Writer, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, shell.ErrShellExited) {
		fmt.Fprintln(w, styles.RenderNotice(err.Error()))
		return
	}
	fmt.Fprintf(w, "%s %s\n", styles.RenderError("[ERROR]"), err.Error())
}
