// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"github.com/jeranaias/aish/internal/model"
	"github.com/jeranaias/aish/internal/tokenizer"
)

// latestFloor is the smallest transcript LatestInteraction trims down to
// before falling back: system, last user, its assistant reply.
const latestFloor = 3

// LatestInteraction keeps the newest exchange no matter how tight the budget
// is. The exchange is the last user Turn and the first assistant Turn after
// it, both located in the untrimmed input.
type LatestInteraction struct {
	tk tokenizer.Tokenizer
}

// NewLatestInteraction creates a LatestInteraction policy.
func NewLatestInteraction(tk tokenizer.Tokenizer) *LatestInteraction {
	return &LatestInteraction{tk: tk}
}

// Name implements Policy.
func (p *LatestInteraction) Name() string { return PolicyLatest }

// Trim implements Policy.
func (p *LatestInteraction) Trim(t model.Transcript, maxTokens int) (model.Transcript, error) {
	sysIdx, ok := t.SystemIndex()
	if !ok {
		return nil, ErrMissingSystemTurn
	}

	// Located before anything is removed so the fallback can rebuild from
	// the original Turns.
	userIdx, hasUser := t.LastIndex(model.RoleUser)
	asstIdx, hasAsst := -1, false
	if hasUser {
		asstIdx, hasAsst = t.NextIndex(model.RoleAssistant, userIdx)
	}

	out := t.Clone()
	if tokenizer.CountTurns(p.tk, out) <= maxTokens {
		return out, nil
	}

	out, total := evictOldest(p.tk, out, maxTokens, latestFloor)
	if total <= maxTokens {
		return out, nil
	}

	fallback := model.Transcript{t[sysIdx]}
	if hasUser {
		fallback = append(fallback, t[userIdx])
	}
	if hasAsst {
		fallback = append(fallback, t[asstIdx])
	}
	return fallback, nil
}
