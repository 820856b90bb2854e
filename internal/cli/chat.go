// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - the interactive aish loop.
//
// Input starting with "/" goes to the assistant; everything else runs in the
// persistent shell.
//
// Keys:
//   Ctrl+C at the prompt  clears the line
//   Ctrl+C while busy     stops the assistant before its next step; a second
//                         press cancels the request in flight
//   Ctrl+D                exits
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/peterh/liner"
	"go.uber.org/zap"

	"github.com/jeranaias/aish/internal/config"
	"github.com/jeranaias/aish/internal/ui/styles"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// InputLine provides line editing and input history for the prompt.
type InputLine struct {
	line        *liner.State
	historyFile string
}

// NewInputLine creates an InputLine. An empty historyFile selects
// ~/.aish/input_history.
func NewInputLine(historyFile string) *InputLine {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	if historyFile == "" {
		configDir, err := config.ConfigDir()
		if err != nil {
			configDir = os.TempDir()
		}
		historyFile = filepath.Join(configDir, "input_history")
	}

	in := &InputLine{line: line, historyFile: historyFile}
	in.LoadHistory()
	return in
}

// LoadHistory loads input history from file.
func (c *InputLine) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line with the given prompt.
func (c *InputLine) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists input history with owner-only permissions.
func (c *InputLine) SaveHistory() {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (c *InputLine) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// PROMPT
// =============================================================================

// FormatPrompt returns the prompt text, e.g. "(t:812:16384) aish % ".
func FormatPrompt(theme *styles.Theme, tokens, budget int, showTokens bool) string {
	info := "aish "
	if showTokens {
		info = fmt.Sprintf("(t:%d:%d) aish ", tokens, budget)
	}
	return theme.PromptInfo.Render(info) + theme.PromptTail.Render("% ")
}

// =============================================================================
// INTERRUPTS
// =============================================================================

// interrupter turns SIGINT into a stop request for the current input, and a
// second SIGINT into cancellation of it.
type interrupter struct {
	mu      sync.Mutex
	cancel  context.CancelFunc
	presses int
	stop    func()
	notify  func(string)
}

// begin arms the interrupter for one input and returns its context.
func (i *interrupter) begin(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	i.mu.Lock()
	i.cancel = cancel
	i.presses = 0
	i.mu.Unlock()
	return ctx
}

// end disarms the interrupter.
func (i *interrupter) end() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.cancel != nil {
		i.cancel()
		i.cancel = nil
	}
}

// interrupt handles one SIGINT.
func (i *interrupter) interrupt() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.cancel == nil {
		return
	}
	i.presses++
	switch i.presses {
	case 1:
		i.stop()
		i.notify("(^C) Stopping after the current step. Press Ctrl-C again to cancel it.")
	default:
		i.cancel()
		i.notify("(^C) Cancelled.")
	}
}

// =============================================================================
// REPL
// =============================================================================

// lineReader is the part of InputLine the loop needs.
type lineReader interface {
	ReadInput(prompt string) (string, error)
}

// runREPL reads input until EOF or until the shell exits. The shell's exit
// is returned so the process can exit with its status.
func runREPL(ctx context.Context, app *App, in lineReader, out io.Writer) error {
	theme := app.Printer.theme
	intr := &interrupter{
		stop:   app.Agent.Interrupt,
		notify: func(msg string) { app.Printer.Notice("\n" + msg) },
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigChan:
				if sig == syscall.SIGTERM {
					app.Logger.Info("terminated by signal")
					cancel()
					return
				}
				intr.interrupt()
			}
		}
	}()

	for {
		select {
		case <-app.Shell.Done():
			return app.Shell.Err()
		case <-ctx.Done():
			return nil
		default:
		}

		prompt := FormatPrompt(theme, app.Store.TokenCount(), app.Store.Budget(), app.Config.UI.ShowTokens)
		input, err := in.ReadInput(prompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				fmt.Fprintln(out, theme.Notice.Render("(^C) Ctrl-C was pressed."))
				continue
			}
			// EOF (Ctrl+D) or a closed terminal.
			fmt.Fprintln(out)
			return nil
		}
		if strings.TrimSpace(input) == "" {
			continue
		}

		reqCtx := intr.begin(ctx)
		err = app.Agent.HandleInput(reqCtx, input)
		intr.end()
		if err != nil {
			app.Logger.Warn("session ended", zap.Error(err))
			return err
		}
	}
}

// printWelcome prints the banner shown when the REPL starts.
func printWelcome(out io.Writer, theme *styles.Theme, app *App) {
	fmt.Fprintln(out, theme.Welcome.Render("Welcome to aish, your interactive AI shell assistant!"))
	fmt.Fprintln(out)
	fmt.Fprintln(out, theme.Tip.Render(`Tip: Use "/" to send a request to the assistant for reasoning and assistance.`))
	fmt.Fprintln(out, theme.Tip.Render(`Commands without "/" are executed directly in the shell.`))
	fmt.Fprintf(out, "%s %s\n", theme.Label.Render("Model:"), theme.Muted.Render(app.Chat.Model()))
	fmt.Fprintln(out)
}
