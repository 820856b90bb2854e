// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jeranaias/aish/internal/model"
	"github.com/jeranaias/aish/internal/util"
)

// JSONFile stores the transcript as a two-space indented JSON array.
type JSONFile struct {
	path string
}

// NewJSONFile creates a JSONFile backend writing to path.
func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

// Path returns the file location.
func (f *JSONFile) Path() string {
	return f.path
}

// Load reads the transcript. A missing file yields an error wrapping
// fs.ErrNotExist.
func (f *JSONFile) Load(ctx context.Context) (model.Transcript, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}

	var t model.Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, f.path, err)
	}
	if err := validate(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Save rewrites the file atomically.
// SECURITY: The transcript can contain command output, so the file is 0600.
func (f *JSONFile) Save(ctx context.Context, t model.Transcript) error {
	if t == nil {
		t = model.Transcript{}
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	if err := util.AtomicWriteFile(f.path, data, 0600); err != nil {
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	return nil
}

// Close implements Transcripts.
func (f *JSONFile) Close() error { return nil }
