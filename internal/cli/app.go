// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/jeranaias/aish/internal/agent"
	"github.com/jeranaias/aish/internal/chat"
	"github.com/jeranaias/aish/internal/config"
	"github.com/jeranaias/aish/internal/history"
	"github.com/jeranaias/aish/internal/shell"
	"github.com/jeranaias/aish/internal/storage"
	"github.com/jeranaias/aish/internal/tokenizer"
	"github.com/jeranaias/aish/internal/ui/styles"
)

// projectURL is sent to OpenRouter as the attribution referer.
const projectURL = "https://github.com/jeranaias/aish"

// =============================================================================
// HISTORY
// =============================================================================

// openHistory builds the transcript store described by cfg and loads it.
// The returned close function releases the storage backend.
func openHistory(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*history.Store, func() error, error) {
	tk := tokenizer.New(tokenizer.Kind(cfg.History.Tokenizer), cfg.History.TokenModel, logger)

	policy, err := history.PolicyByName(cfg.History.Policy, tk)
	if err != nil {
		return nil, nil, err
	}

	backend, err := storage.Open(storage.Backend(cfg.History.Backend), cfg.History.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open history: %w", err)
	}

	store, err := history.NewStore(history.Options{
		Policy:       policy,
		Tokenizer:    tk,
		Storage:      backend,
		MaxTokens:    cfg.History.MaxTokens,
		SystemPrompt: cfg.History.SystemPrompt,
		Logger:       logger.Named("history"),
	})
	if err != nil {
		backend.Close()
		return nil, nil, err
	}
	if err := store.Init(ctx); err != nil {
		backend.Close()
		return nil, nil, err
	}
	return store, backend.Close, nil
}

// =============================================================================
// APPLICATION
// =============================================================================

// App is a running aish session: one shell, one transcript, one chat client.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Store   *history.Store
	Shell   *shell.Session
	Chat    *chat.Client
	Agent   *agent.Orchestrator
	Printer *Printer

	closeHistory func() error
}

// newApp wires every component. On failure everything already started is
// released.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, out io.Writer) (*App, error) {
	app := &App{Config: cfg, Logger: logger}
	if err := app.start(ctx, out); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (app *App) start(ctx context.Context, out io.Writer) error {
	cfg, logger := app.Config, app.Logger

	var err error
	app.Store, app.closeHistory, err = openHistory(ctx, cfg, logger)
	if err != nil {
		return err
	}

	app.Chat, err = chat.NewClient(chat.Config{
		BaseURL:           cfg.Chat.BaseURL,
		APIKey:            cfg.Chat.APIKey,
		Model:             cfg.Chat.Model,
		Temperature:       cfg.Chat.Temperature,
		Provider:          providerPreferences(cfg.Chat.Provider),
		Timeout:           cfg.Chat.Timeout(),
		MaxRetries:        cfg.Chat.MaxRetries,
		RequestsPerSecond: cfg.Chat.RequestsPerSecond,
		SiteURL:           projectURL,
		SiteName:          "aish",
		Logger:            logger.Named("chat"),
	})
	if err != nil {
		return err
	}

	app.Shell, err = shell.Start(ctx, shell.Options{
		Shell:          cfg.Shell.Program,
		Args:           cfg.Shell.Args,
		Dir:            cfg.Shell.Dir,
		Sentinel:       cfg.Shell.Sentinel,
		CommandTimeout: cfg.Shell.CommandTimeout(),
		StrictStderr:   cfg.Shell.StrictStderr,
		Logger:         logger.Named("shell"),
	})
	if err != nil {
		return err
	}

	theme := styles.Plain()
	if ColorsEnabled() {
		theme = styles.NewTheme(cfg.UI.Theme)
	}
	app.Printer = NewPrinter(PrinterOptions{
		Out:       out,
		Theme:     theme,
		Markdown:  cfg.UI.Markdown && ColorsEnabled(),
		Highlight: cfg.UI.Highlight && ColorsEnabled(),
		Animate:   IsStdoutTTY(),
	})

	app.Agent, err = agent.New(agent.Options{
		Chat:              app.Chat,
		Shell:             app.Shell,
		Transcript:        app.Store,
		Printer:           app.Printer,
		Logger:            logger.Named("agent"),
		NormalizeCommands: cfg.Shell.NormalizeCommands,
		MaxSteps:          cfg.Chat.MaxSteps,
	})
	if err != nil {
		return err
	}

	logger.Info("session started",
		zap.String("shell_session", app.Shell.ID()),
		zap.String("model", app.Chat.Model()),
		zap.String("key", app.Chat.KeyFingerprint()),
		zap.String("policy", app.Store.PolicyName()),
		zap.Int("budget", app.Store.Budget()))
	return nil
}

// Close stops the shell and releases the history backend.
func (app *App) Close() error {
	var errs []error
	if app.Shell != nil {
		if err := app.Shell.Close(); err != nil && !errors.Is(err, shell.ErrShellExited) {
			errs = append(errs, err)
		}
	}
	if app.closeHistory != nil {
		if err := app.closeHistory(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func providerPreferences(p config.ProviderConfig) *chat.ProviderPreferences {
	prefs := &chat.ProviderPreferences{
		Order:             p.Order,
		AllowFallbacks:    p.AllowFallbacks,
		RequireParameters: p.RequireParameters,
		DataCollection:    p.DataCollection,
		Ignore:            p.Ignore,
		Quantizations:     p.Quantizations,
		Sort:              p.Sort,
	}
	if prefs.IsZero() {
		return nil
	}
	return prefs
}
