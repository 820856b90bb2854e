// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// fallbackEncoding shares its ranks with the gpt2 vocabulary.
const fallbackEncoding = "r50k_base"

// specialTokens are rewritten before encoding so that chat-template markers
// inside user content are counted as ordinary text.
var specialTokens = strings.NewReplacer(
	"<|im_start|>", "__IM_START__",
	"<|im_end|>", "__IM_END__",
	"<|endoftext|>", "__ENDOFTEXT__",
	"<tool_call>", "__TOOL_CALL__",
	"</tool_call>", "__TOOL_CALL_END__",
)

// Tiktoken counts tokens with a BPE encoding.
type Tiktoken struct {
	mu  sync.Mutex
	enc *tiktoken.Tiktoken
}

// NewTiktoken loads the encoding used by tokenModel, falling back to the
// r50k_base ranks when the model is unknown to the library.
func NewTiktoken(tokenModel string) (*Tiktoken, error) {
	enc, err := tiktoken.EncodingForModel(tokenModel)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return nil, fmt.Errorf("load encoding for %q: %w", tokenModel, err)
		}
	}
	return &Tiktoken{enc: enc}, nil
}

// Count implements Tokenizer.
func (t *Tiktoken) Count(text string) int {
	text = specialTokens.Replace(text)
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.enc.Encode(text, nil, nil))
}
