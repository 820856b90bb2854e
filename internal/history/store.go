// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/aish/internal/model"
	"github.com/jeranaias/aish/internal/tokenizer"
)

// DefaultMaxTokens is the transcript budget used when none is configured.
const DefaultMaxTokens = 16384

// Storage persists whole transcripts.
type Storage interface {
	Load(ctx context.Context) (model.Transcript, error)
	Save(ctx context.Context, t model.Transcript) error
}

// Options configures a Store.
type Options struct {
	Policy       Policy
	Tokenizer    tokenizer.Tokenizer
	Storage      Storage
	MaxTokens    int
	SystemPrompt string
	Logger       *zap.Logger
}

// Store is the single owner of the live transcript. All methods are safe for
// concurrent use.
type Store struct {
	mu         sync.Mutex
	transcript model.Transcript

	policy  Policy
	tk      tokenizer.Tokenizer
	storage Storage
	budget  int
	prompt  string
	logger  *zap.Logger
}

// NewStore creates a Store. Call Init before use.
func NewStore(opts Options) (*Store, error) {
	if opts.Policy == nil {
		return nil, errors.New("history: policy is required")
	}
	if opts.Tokenizer == nil {
		return nil, errors.New("history: tokenizer is required")
	}
	if opts.Storage == nil {
		return nil, errors.New("history: storage is required")
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = model.DefaultSystemPrompt
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Store{
		transcript: model.Transcript{model.SystemTurn(opts.SystemPrompt)},
		policy:     opts.Policy,
		tk:         opts.Tokenizer,
		storage:    opts.Storage,
		budget:     opts.MaxTokens,
		prompt:     opts.SystemPrompt,
		logger:     opts.Logger,
	}, nil
}

// Init loads the persisted transcript. A missing or unreadable transcript is
// replaced by the system prompt alone; a loaded transcript without a system
// Turn gets one prepended.
func (s *Store) Init(ctx context.Context) error {
	loaded, err := s.storage.Load(ctx)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("no saved transcript, starting fresh")
		} else {
			s.logger.Warn("discarding unreadable transcript", zap.Error(err))
		}
		loaded = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = loaded.Normalize(s.prompt)
	s.logger.Info("transcript loaded",
		zap.Int("turns", len(s.transcript)),
		zap.String("policy", s.policy.Name()))
	return nil
}

// Append adds turn, trims the transcript to the budget and persists it. The
// transcript is updated even when saving fails; the save error is returned.
func (s *Store) Append(ctx context.Context, turn model.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := append(s.transcript.Clone(), turn)
	trimmed, err := s.policy.Trim(next, s.budget)
	if err != nil {
		return fmt.Errorf("trim transcript: %w", err)
	}
	if evicted := len(next) - len(trimmed); evicted > 0 {
		s.logger.Debug("evicted turns",
			zap.Int("count", evicted),
			zap.String("policy", s.policy.Name()))
	}
	s.transcript = trimmed

	if err := s.storage.Save(ctx, trimmed); err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	return nil
}

// Reset drops every Turn except a fresh system prompt and persists the result.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = model.Transcript{model.SystemTurn(s.prompt)}
	if err := s.storage.Save(ctx, s.transcript); err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	return nil
}

// Snapshot returns a copy of the transcript.
func (s *Store) Snapshot() model.Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Clone()
}

// Len returns the number of Turns held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transcript)
}

// TokenCount returns the token count of the current transcript.
func (s *Store) TokenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return tokenizer.CountTurns(s.tk, s.transcript)
}

// Budget returns the configured token budget.
func (s *Store) Budget() int {
	return s.budget
}

// PolicyName returns the name of the active eviction policy.
func (s *Store) PolicyName() string {
	return s.policy.Name()
}
