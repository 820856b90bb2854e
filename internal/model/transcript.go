// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "errors"

// ErrMissingSystemTurn is returned when a transcript has no system Turn.
var ErrMissingSystemTurn = errors.New("transcript has no system turn")

// Transcript is the ordered conversation. A well-formed transcript is
// non-empty and holds exactly one system Turn.
type Transcript []Turn

// Clone returns a copy that shares no backing array with t.
func (t Transcript) Clone() Transcript {
	if t == nil {
		return nil
	}
	out := make(Transcript, len(t))
	copy(out, t)
	return out
}

// SystemIndex returns the index of the first system Turn.
func (t Transcript) SystemIndex() (int, bool) {
	for i, turn := range t {
		if turn.IsSystem() {
			return i, true
		}
	}
	return -1, false
}

// System returns the first system Turn or ErrMissingSystemTurn.
func (t Transcript) System() (Turn, error) {
	i, ok := t.SystemIndex()
	if !ok {
		return Turn{}, ErrMissingSystemTurn
	}
	return t[i], nil
}

// LastIndex returns the index of the last Turn with the given role.
func (t Transcript) LastIndex(role Role) (int, bool) {
	for i := len(t) - 1; i >= 0; i-- {
		if t[i].Role == role {
			return i, true
		}
	}
	return -1, false
}

// NextIndex returns the index of the first Turn with the given role strictly
// after position from.
func (t Transcript) NextIndex(role Role, from int) (int, bool) {
	for i := from + 1; i < len(t); i++ {
		if t[i].Role == role {
			return i, true
		}
	}
	return -1, false
}

// OldestEvictable returns the index of the oldest non-system Turn.
func (t Transcript) OldestEvictable() (int, bool) {
	for i, turn := range t {
		if !turn.IsSystem() {
			return i, true
		}
	}
	return -1, false
}

// Without returns a new transcript with the Turn at i removed.
func (t Transcript) Without(i int) Transcript {
	out := make(Transcript, 0, len(t)-1)
	out = append(out, t[:i]...)
	return append(out, t[i+1:]...)
}

// Normalize returns t with a system Turn guaranteed. When none is present,
// one carrying prompt is prepended. Extra system Turns after the first are
// dropped.
func (t Transcript) Normalize(prompt string) Transcript {
	out := make(Transcript, 0, len(t)+1)
	seen := false
	for _, turn := range t {
		if turn.IsSystem() {
			if seen {
				continue
			}
			seen = true
		}
		out = append(out, turn)
	}
	if !seen {
		out = append(Transcript{SystemTurn(prompt)}, out...)
	}
	return out
}
