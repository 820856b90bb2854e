// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/aish/internal/model"
	"github.com/jeranaias/aish/internal/tokenizer"
)

// Token counts in the comments below use tokenizer.Words: every word is one
// token and each "<|role|>" marker adds one more.

var (
	sys = model.SystemTurn("You are a helpful assistant.") // 6
)

func words() tokenizer.Tokenizer { return tokenizer.Words{} }

func assertTranscript(t *testing.T, want, got model.Transcript) {
	t.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("transcript mismatch (-want +got):\n%s", diff)
	}
}

// =============================================================================
// LATEST INTERACTION
// =============================================================================

func TestLatestInteraction_WithinBudget(t *testing.T) {
	in := model.Transcript{
		sys,
		// 2, 9, 7 and 15 tokens.
		model.UserTurn("Hello!"),
		model.AssistantTurn("Hi there! How can I assist you today?"),
		model.UserTurn("Can you tell me a joke?"),
		model.AssistantTurn("Why did the scarecrow win an award? Because he was outstanding in his field!"),
	}

	got, err := NewLatestInteraction(words()).Trim(in, 50)
	require.NoError(t, err)
	assertTranscript(t, in, got)
}

func TestLatestInteraction_TrimsOldest(t *testing.T) {
	in := model.Transcript{
		sys,
		model.UserTurn("Hello!"),
		model.AssistantTurn("Hi there! How can I assist you today?"),
		model.UserTurn("Can you tell me a joke?"),
		model.AssistantTurn("Why did the scarecrow win an award? Because he was outstanding in his field!"),
		// The last pair is 8 and 12 tokens.
		model.UserTurn("That was funny! Tell me another one."),
		model.AssistantTurn("Sure! Why don’t scientists trust atoms? Because they make up everything!"),
	}

	got, err := NewLatestInteraction(words()).Trim(in, 30)
	require.NoError(t, err)
	assertTranscript(t, model.Transcript{sys, in[5], in[6]}, got)
	assert.Len(t, in, 7, "input must not be modified")
}

func TestLatestInteraction_KeepsFinalThreeOverBudget(t *testing.T) {
	in := model.Transcript{
		sys,
		// 8 and 13 tokens.
		model.UserTurn("Explain the theory of relativity in detail."),
		model.AssistantTurn("The theory of relativity, developed by Albert Einstein, encompasses two interrelated theories..."),
	}

	got, err := NewLatestInteraction(words()).Trim(in, 20)
	require.NoError(t, err)
	assertTranscript(t, in, got)
}

func TestLatestInteraction_SystemOnly(t *testing.T) {
	in := model.Transcript{sys}

	got, err := NewLatestInteraction(words()).Trim(in, 10)
	require.NoError(t, err)
	assertTranscript(t, in, got)
}

func TestLatestInteraction_MixedRoles(t *testing.T) {
	in := model.Transcript{
		sys,
		model.UserTurn("Hi!"),
		model.AssistantTurn("Hello! How can I help you today?"),
		model.UserTurn("I need information on climate change."),
		model.AssistantTurn("Certainly! Climate change refers to..."),
		model.UserTurn("Can you provide recent statistics?"),
		model.AssistantTurn("As of 2024, global temperatures have risen by..."),
		// The last pair is 3 and 12 tokens.
		model.UserTurn("Thank you!"),
		model.AssistantTurn("You’re welcome! Let me know if you have any other questions."),
	}

	got, err := NewLatestInteraction(words()).Trim(in, 25)
	require.NoError(t, err)
	assertTranscript(t, model.Transcript{sys, in[7], in[8]}, got)
}

func TestLatestInteraction_MissingSystem(t *testing.T) {
	in := model.Transcript{
		model.UserTurn("Hello!"),
		model.AssistantTurn("Hi there! How can I assist you today?"),
	}

	_, err := NewLatestInteraction(words()).Trim(in, 10)
	assert.ErrorIs(t, err, ErrMissingSystemTurn)

	_, err = NewLatestInteraction(words()).Trim(nil, 10)
	assert.ErrorIs(t, err, ErrMissingSystemTurn)
}

func TestLatestInteraction_TinyBudgetKeepsExchange(t *testing.T) {
	in := model.Transcript{
		sys,
		model.UserTurn("Hello!"),
		model.AssistantTurn("Hi there!"),
	}

	got, err := NewLatestInteraction(words()).Trim(in, 2)
	require.NoError(t, err)
	assertTranscript(t, in, got)
}

func TestLatestInteraction_FallbackRebuildsFromOriginal(t *testing.T) {
	in := model.Transcript{
		sys,
		model.UserTurn("first question here"),
		model.AssistantTurn("first answer here"),
		model.UserTurn("the last question"),
		model.AssistantTurn("the nearest answer"),
		model.AssistantTurn("a second trailing assistant turn"),
	}

	got, err := NewLatestInteraction(words()).Trim(in, 1)
	require.NoError(t, err)
	assertTranscript(t, model.Transcript{sys, in[3], in[4]}, got)
}

func TestLatestInteraction_UserWithoutReply(t *testing.T) {
	in := model.Transcript{
		sys,
		model.UserTurn("old question"),
		model.AssistantTurn("old answer"),
		model.UserTurn("pending question with many many words"),
	}

	got, err := NewLatestInteraction(words()).Trim(in, 3)
	require.NoError(t, err)
	assertTranscript(t, model.Transcript{sys, in[3]}, got)
}

func TestLatestInteraction_NoUserTurns(t *testing.T) {
	in := model.Transcript{
		sys,
		model.AssistantTurn("unprompted assistant turn one"),
		model.AssistantTurn("unprompted assistant turn two"),
		model.AssistantTurn("unprompted assistant turn three"),
	}

	got, err := NewLatestInteraction(words()).Trim(in, 1)
	require.NoError(t, err)
	assertTranscript(t, model.Transcript{sys}, got)
}

// =============================================================================
// SIMPLE FIFO
// =============================================================================

func TestSimpleFifo_WithinBudget(t *testing.T) {
	in := model.Transcript{sys, model.UserTurn("ls"), model.AssistantTurn("ok")}

	got, err := NewSimpleFifo(words()).Trim(in, 100)
	require.NoError(t, err)
	assertTranscript(t, in, got)
}

func TestSimpleFifo_EvictsOldestFirst(t *testing.T) {
	in := model.Transcript{
		sys,
		// 4, 4, 3 and 2 tokens.
		model.UserTurn("one two three"),
		model.AssistantTurn("four five six"),
		model.UserTurn("seven eight"),
		model.AssistantTurn("nine"),
	}

	got, err := NewSimpleFifo(words()).Trim(in, 11)
	require.NoError(t, err)
	assertTranscript(t, model.Transcript{sys, in[3], in[4]}, got)
}

func TestSimpleFifo_SevenTurnsOverBudget(t *testing.T) {
	system := model.SystemTurn("be brief")
	in := model.Transcript{
		system,
		// 5, 5, 3, 4, 2 and 4 tokens; 26 with the system turn.
		model.UserTurn("a b c d"),
		model.AssistantTurn("e f g h"),
		model.UserTurn("i j"),
		model.AssistantTurn("k l m"),
		model.UserTurn("n"),
		model.AssistantTurn("o p q"),
	}
	require.Equal(t, 26, tokenizer.CountTurns(words(), in))

	got, err := NewSimpleFifo(words()).Trim(in, 11)
	require.NoError(t, err)
	assertTranscript(t, model.Transcript{system, in[5], in[6]}, got)
	assert.Equal(t, 9, tokenizer.CountTurns(words(), got))
}

func TestSimpleFifo_UnsatisfiableBudget(t *testing.T) {
	in := model.Transcript{sys, model.UserTurn("hello"), model.AssistantTurn("hi")}

	got, err := NewSimpleFifo(words()).Trim(in, 1)
	require.NoError(t, err)
	assertTranscript(t, model.Transcript{sys}, got)
}

func TestSimpleFifo_SystemNotFirst(t *testing.T) {
	in := model.Transcript{model.UserTurn("early words"), sys, model.UserTurn("late")}

	got, err := NewSimpleFifo(words()).Trim(in, 8)
	require.NoError(t, err)
	assertTranscript(t, model.Transcript{sys, in[2]}, got)
}

func TestSimpleFifo_MissingSystem(t *testing.T) {
	_, err := NewSimpleFifo(words()).Trim(model.Transcript{model.UserTurn("x")}, 10)
	assert.ErrorIs(t, err, ErrMissingSystemTurn)
}

// =============================================================================
// SHARED PROPERTIES
// =============================================================================

func TestPolicies_Properties(t *testing.T) {
	in := model.Transcript{sys}
	position := map[string]int{}
	for i := 0; i < 20; i++ {
		in = append(in, model.UserTurn(fmt.Sprintf("run the next command %02d", i)))
		position[in[len(in)-1].Content] = len(in) - 1
		in = append(in, model.AssistantTurn(fmt.Sprintf("command output was %02d", i)))
		position[in[len(in)-1].Content] = len(in) - 1
	}
	position[sys.Content] = 0

	for _, name := range PolicyNames() {
		p, err := PolicyByName(name, words())
		require.NoError(t, err)

		for _, budget := range []int{1, 6, 10, 25, 60, 500} {
			got, err := p.Trim(in, budget)
			require.NoError(t, err)

			systems := 0
			for _, turn := range got {
				if turn.IsSystem() {
					systems++
				}
			}
			assert.Equal(t, 1, systems, "%s/%d keeps exactly one system turn", name, budget)
			assert.LessOrEqual(t, len(got), len(in))

			last := -1
			for _, turn := range got {
				idx, ok := position[turn.Content]
				require.True(t, ok, "%s/%d invented turn %q", name, budget, turn.Content)
				assert.Greater(t, idx, last, "%s/%d reordered survivors", name, budget)
				last = idx
			}

			if tokenizer.CountTurns(words(), got) > budget {
				// Only the irreducible results may exceed the budget.
				assert.LessOrEqual(t, len(got), 3, "%s/%d", name, budget)
			}

			again, err := p.Trim(got, budget)
			require.NoError(t, err)
			assertTranscript(t, got, again)
		}
	}
}

func TestPolicyByName(t *testing.T) {
	p, err := PolicyByName(" Latest ", words())
	require.NoError(t, err)
	assert.Equal(t, PolicyLatest, p.Name())

	p, err = PolicyByName("simple", words())
	require.NoError(t, err)
	assert.Equal(t, PolicySimple, p.Name())

	_, err = PolicyByName("lru", words())
	assert.Error(t, err)
}
