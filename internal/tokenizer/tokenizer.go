// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tokenizer counts model tokens for transcripts.
//
// Every implementation sees the same serialization: each Turn rendered as
// "<|role|> content", joined with "\n". Counts are opaque to callers; the
// eviction policies only compare them against a budget.
package tokenizer

import (
	"strings"

	"go.uber.org/zap"

	"github.com/jeranaias/aish/internal/model"
)

// Tokenizer reports the number of tokens in a piece of text.
type Tokenizer interface {
	Count(text string) int
}

// Kind names a tokenizer implementation in configuration.
type Kind string

const (
	KindTiktoken Kind = "tiktoken"
	KindEstimate Kind = "estimate"
	KindWords    Kind = "words"
)

// Serialize renders turns the way they are counted.
func Serialize(turns []model.Turn) string {
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("<|")
		b.WriteString(string(t.Role))
		b.WriteString("|> ")
		b.WriteString(t.Content)
	}
	return b.String()
}

// CountTurns returns the token count of the serialized turns.
func CountTurns(tk Tokenizer, turns []model.Turn) int {
	if len(turns) == 0 {
		return 0
	}
	return tk.Count(Serialize(turns))
}

// New builds the tokenizer named by kind. A tiktoken tokenizer whose ranks
// cannot be loaded degrades to Estimate and logs a warning.
func New(kind Kind, tokenModel string, logger *zap.Logger) Tokenizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch kind {
	case KindWords:
		return Words{}
	case KindEstimate:
		return Estimate{}
	default:
		tk, err := NewTiktoken(tokenModel)
		if err != nil {
			logger.Warn("tiktoken unavailable, using estimate",
				zap.String("model", tokenModel),
				zap.Error(err))
			return Estimate{}
		}
		return tk
	}
}

// Estimate approximates GPT-style tokenization by blending the word count
// with one token per four bytes.
type Estimate struct{}

// Count implements Tokenizer.
func (Estimate) Count(text string) int {
	words := len(strings.Fields(text))
	chars := len(text)
	return (words + chars/4) / 2
}

// Words counts whitespace-separated words. It is exact and deterministic,
// which makes budgets in tests easy to reason about.
type Words struct{}

// Count implements Tokenizer.
func (Words) Count(text string) int {
	return len(strings.Fields(text))
}
