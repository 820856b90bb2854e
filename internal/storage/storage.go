// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeranaias/aish/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrCorrupt indicates the stored data could not be decoded into a
// transcript.
var ErrCorrupt = errors.New("stored transcript is corrupt")

// =============================================================================
// BACKEND SELECTION
// =============================================================================

// Backend names a storage implementation in configuration.
type Backend string

const (
	BackendJSON   Backend = "json"
	BackendSQLite Backend = "sqlite"
	BackendMemory Backend = "memory"
)

// Transcripts is implemented by every backend.
type Transcripts interface {
	Load(ctx context.Context) (model.Transcript, error)
	Save(ctx context.Context, t model.Transcript) error
	Close() error
}

// DefaultJSONPath returns ~/.aish_history.json.
func DefaultJSONPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".aish_history.json"
	}
	return filepath.Join(home, ".aish_history.json")
}

// DefaultSQLitePath returns ~/.aish/history.db.
func DefaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "aish_history.db"
	}
	return filepath.Join(home, ".aish", "history.db")
}

// Open returns the backend named by kind. An empty path selects the
// backend's default location.
func Open(kind Backend, path string) (Transcripts, error) {
	switch Backend(strings.ToLower(string(kind))) {
	case BackendJSON, "":
		if path == "" {
			path = DefaultJSONPath()
		}
		return NewJSONFile(path), nil
	case BackendSQLite:
		if path == "" {
			path = DefaultSQLitePath()
		}
		return OpenSQLite(path)
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", kind)
	}
}

// validate rejects decoded transcripts containing unknown roles.
func validate(t model.Transcript) error {
	for i, turn := range t {
		if !turn.Role.Valid() {
			return fmt.Errorf("%w: turn %d has role %q", ErrCorrupt, i, turn.Role)
		}
	}
	return nil
}
