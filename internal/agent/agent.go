// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package agent routes user input to the shell or the assistant and records
// every exchange in the transcript.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/aish/internal/chat"
	"github.com/jeranaias/aish/internal/model"
	"github.com/jeranaias/aish/internal/shell"
)

// AssistantPrefix marks input meant for the assistant.
const AssistantPrefix = "/"

// Transcript prefixes. They are part of what the model sees on later turns.
const (
	prefixOutput     = "Command output: "
	prefixError      = "Error: "
	prefixExecError  = "Execution Error: "
	prefixUnexpected = "Unexpected Error: "
	prefixEncounter  = "Error encountered: "
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Chatter is the chat-completion service.
type Chatter interface {
	Chat(ctx context.Context, turns []model.Turn) (*chat.Response, error)
	SummarizeError(ctx context.Context, text string) (string, error)
}

// Runner executes shell commands.
type Runner interface {
	Run(ctx context.Context, command string) (shell.Result, error)
}

// Transcript is the conversation store.
type Transcript interface {
	Append(ctx context.Context, turn model.Turn) error
	Snapshot() model.Transcript
}

// Printer shows progress to the user.
type Printer interface {
	Reasoning(text string)
	Conclusion(text string)
	Command(command string)
	Output(stdout string)
	Error(message string)
	Notice(message string)
	// Working starts the busy indicator and returns a function that stops
	// it. The stop function must be safe to call more than once.
	Working() (stop func())
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Options configures an Orchestrator.
type Options struct {
	Chat       Chatter
	Shell      Runner
	Transcript Transcript
	Printer    Printer
	Logger     *zap.Logger

	// NormalizeCommands applies NFKC to assistant-issued commands before
	// they reach the shell.
	NormalizeCommands bool

	// MaxSteps bounds the commands run for one request. Zero is unbounded.
	MaxSteps int
}

// Orchestrator drives one request at a time. Interrupt may be called from
// any goroutine.
type Orchestrator struct {
	chat      Chatter
	shell     Runner
	history   Transcript
	out       Printer
	logger    *zap.Logger
	normalize bool
	maxSteps  int

	stop atomic.Bool
}

// New returns an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	switch {
	case opts.Chat == nil:
		return nil, errors.New("agent: chat client is required")
	case opts.Shell == nil:
		return nil, errors.New("agent: shell is required")
	case opts.Transcript == nil:
		return nil, errors.New("agent: transcript is required")
	case opts.Printer == nil:
		return nil, errors.New("agent: printer is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Orchestrator{
		chat:      opts.Chat,
		shell:     opts.Shell,
		history:   opts.Transcript,
		out:       opts.Printer,
		logger:    opts.Logger,
		normalize: opts.NormalizeCommands,
		maxSteps:  opts.MaxSteps,
	}, nil
}

// Interrupt asks a running assistant loop to stop before its next model
// turn. It does not interrupt a command already running in the shell.
func (o *Orchestrator) Interrupt() {
	o.stop.Store(true)
}

// IsAssistantInput reports whether input is addressed to the assistant.
func IsAssistantInput(input string) bool {
	return strings.HasPrefix(strings.TrimSpace(input), AssistantPrefix)
}

// HandleInput processes one line from the user. Every failure except the
// shell exiting is reported to the user, recorded in the transcript, and
// swallowed. A shell exit is returned and ends the session.
func (o *Orchestrator) HandleInput(ctx context.Context, input string) error {
	line := strings.TrimSpace(input)
	if line == "" {
		return nil
	}

	var err error
	if IsAssistantInput(line) {
		err = o.runAssistant(ctx, input)
	} else {
		err = o.runShell(ctx, line)
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, shell.ErrShellExited) {
		return err
	}

	o.logger.Error("request failed", zap.Error(err))
	o.out.Error(prefixUnexpected + err.Error())
	o.record(ctx, model.UserTurn(prefixEncounter+err.Error()))
	return nil
}

// runShell sends a command straight to the shell.
func (o *Orchestrator) runShell(ctx context.Context, command string) error {
	o.record(ctx, model.UserTurn(command))

	res, err := o.shell.Run(ctx, command)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		o.out.Error(prefixExecError + err.Error())
		o.record(ctx, model.AssistantTurn(prefixExecError+err.Error()))
		if errors.Is(err, shell.ErrShellExited) {
			return err
		}
		return nil
	}

	if res.Failed() {
		o.out.Error(res.Stderr)
		o.record(ctx, model.AssistantTurn(prefixError+res.Stderr))
		return nil
	}
	o.out.Output(res.Stdout)
	o.record(ctx, model.AssistantTurn(prefixOutput+quote(res.Stdout)))
	return nil
}

// runAssistant alternates model turns and shell commands until the model
// stops issuing commands, the user interrupts, or something fails.
func (o *Orchestrator) runAssistant(ctx context.Context, input string) error {
	o.stop.Store(false)
	o.record(ctx, model.UserTurn(input))

	stopWorking := o.out.Working()
	defer func() { stopWorking() }()

	for step := 0; ; step++ {
		if o.stop.Load() {
			stopWorking()
			o.out.Notice("Stopping assistant commands, interrupted by user.")
			o.logger.Info("assistant loop interrupted", zap.Int("step", step))
			return nil
		}
		if o.maxSteps > 0 && step >= o.maxSteps {
			stopWorking()
			o.out.Notice(fmt.Sprintf("Stopping after %d commands.", o.maxSteps))
			return nil
		}

		resp, err := o.chat.Chat(ctx, o.history.Snapshot())
		stopWorking()
		if err != nil {
			return o.abandon(ctx, err)
		}

		reply, err := chat.ParseReply(resp.Content())
		if err != nil {
			return o.abandon(ctx, err)
		}
		o.record(ctx, model.AssistantTurn(reply.String()))

		if text := strings.TrimSpace(reply.Reasoning); text != "" {
			o.out.Reasoning(text)
		}
		if text := strings.TrimSpace(reply.Conclusion); text != "" {
			o.out.Conclusion(text)
		}

		command, ok := reply.NextCommand()
		if !ok {
			return nil
		}
		if o.normalize {
			command = norm.NFKC.String(command)
		}

		o.out.Command(command)
		o.logger.Debug("assistant command", zap.Int("step", step), zap.String("command", command))

		res, err := o.shell.Run(ctx, command)
		if err != nil {
			if errors.Is(err, shell.ErrShellExited) {
				return err
			}
			return o.abandon(ctx, err)
		}

		if res.Failed() {
			summary := o.summarize(ctx, res.Stderr)
			o.out.Error(prefixError + summary)
			o.record(ctx, model.AssistantTurn(prefixError+summary))
		} else {
			o.out.Output(res.Stdout)
			o.record(ctx, model.AssistantTurn(prefixOutput+quote(res.Stdout)))
		}

		stopWorking = o.out.Working()
	}
}

// abandon records a failure that ends the assistant loop. A canceled
// context is passed up instead.
func (o *Orchestrator) abandon(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	o.logger.Warn("assistant loop abandoned", zap.Error(err))

	msg := err.Error()
	if !isProtocolError(err) {
		msg = o.summarize(ctx, msg)
	}
	o.out.Error(prefixUnexpected + msg)
	o.record(ctx, model.AssistantTurn(prefixUnexpected+msg))
	return nil
}

// summarize asks the model to shorten text. The original text is used if
// the request fails.
func (o *Orchestrator) summarize(ctx context.Context, text string) string {
	summary, err := o.chat.SummarizeError(ctx, text)
	if err != nil || strings.TrimSpace(summary) == "" {
		o.logger.Warn("error summary unavailable", zap.Error(err))
		return text
	}
	return summary
}

// record appends turn. Persistence failures are logged; the in-memory
// transcript has already advanced.
func (o *Orchestrator) record(ctx context.Context, turn model.Turn) {
	// Turns are persisted even when the request was canceled.
	if err := o.history.Append(context.WithoutCancel(ctx), turn); err != nil {
		o.logger.Warn("transcript append failed",
			zap.String("role", turn.Role.String()),
			zap.Error(err))
	}
}

// isProtocolError reports failures that are recorded verbatim.
func isProtocolError(err error) bool {
	return errors.Is(err, chat.ErrInvalidReply) || errors.Is(err, shell.ErrCommandTimeout)
}

// quote renders s as a JSON string literal without HTML escaping.
func quote(s string) string {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return fmt.Sprintf("%q", s)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
