// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"sync"

	"github.com/jeranaias/aish/internal/model"
)

// Memory keeps the transcript in process memory.
type Memory struct {
	mu    sync.Mutex
	turns model.Transcript
	saves int
}

// NewMemory creates an empty Memory backend.
func NewMemory() *Memory {
	return &Memory{}
}

// Load returns a copy of the last saved transcript, or nil if nothing has
// been saved.
func (m *Memory) Load(ctx context.Context) (model.Transcript, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.turns.Clone(), nil
}

// Save stores a copy of t.
func (m *Memory) Save(ctx context.Context, t model.Transcript) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = t.Clone()
	m.saves++
	return nil
}

// Saves returns how many times Save has been called.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Close implements Transcripts.
func (m *Memory) Close() error { return nil }
