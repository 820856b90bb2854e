// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"github.com/jeranaias/aish/internal/model"
	"github.com/jeranaias/aish/internal/tokenizer"
)

// SimpleFifo evicts the oldest non-system Turn until the transcript fits.
// An unsatisfiable budget yields the system Turn alone, even if that is
// still over budget.
type SimpleFifo struct {
	tk tokenizer.Tokenizer
}

// NewSimpleFifo creates a SimpleFifo policy.
func NewSimpleFifo(tk tokenizer.Tokenizer) *SimpleFifo {
	return &SimpleFifo{tk: tk}
}

// Name implements Policy.
func (p *SimpleFifo) Name() string { return PolicySimple }

// Trim implements Policy.
func (p *SimpleFifo) Trim(t model.Transcript, maxTokens int) (model.Transcript, error) {
	if _, ok := t.SystemIndex(); !ok {
		return nil, ErrMissingSystemTurn
	}
	out, _ := evictOldest(p.tk, t.Clone(), maxTokens, 1)
	return out, nil
}
