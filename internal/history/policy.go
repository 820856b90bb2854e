// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jeranaias/aish/internal/model"
	"github.com/jeranaias/aish/internal/tokenizer"
)

// ErrMissingSystemTurn is returned by every policy when the transcript has no
// system Turn.
var ErrMissingSystemTurn = model.ErrMissingSystemTurn

// Policy shrinks a transcript to fit a token budget. Implementations must not
// modify the slice they are given.
type Policy interface {
	Name() string
	Trim(t model.Transcript, maxTokens int) (model.Transcript, error)
}

// Policy names accepted by PolicyByName.
const (
	PolicySimple = "simple"
	PolicyLatest = "latest"
)

var policyConstructors = map[string]func(tokenizer.Tokenizer) Policy{
	PolicySimple: func(tk tokenizer.Tokenizer) Policy { return NewSimpleFifo(tk) },
	PolicyLatest: func(tk tokenizer.Tokenizer) Policy { return NewLatestInteraction(tk) },
}

// PolicyNames lists the registered policy names in sorted order.
func PolicyNames() []string {
	names := make([]string, 0, len(policyConstructors))
	for name := range policyConstructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PolicyByName builds the named policy around tk.
func PolicyByName(name string, tk tokenizer.Tokenizer) (Policy, error) {
	ctor, ok := policyConstructors[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown eviction policy %q (want one of %s)",
			name, strings.Join(PolicyNames(), ", "))
	}
	return ctor(tk), nil
}

// evictOldest removes oldest non-system Turns from out while it exceeds
// maxTokens and holds more than floor Turns.
func evictOldest(tk tokenizer.Tokenizer, out model.Transcript, maxTokens, floor int) (model.Transcript, int) {
	total := tokenizer.CountTurns(tk, out)
	for total > maxTokens && len(out) > floor {
		i, ok := out.OldestEvictable()
		if !ok {
			break
		}
		out = out.Without(i)
		total = tokenizer.CountTurns(tk, out)
	}
	return out, total
}
