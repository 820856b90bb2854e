// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// DEFAULTS
// =============================================================================

const (
	// DefaultShell is the program spawned when Options.Shell is empty.
	DefaultShell = "bash"

	// DefaultSentinel marks the end of a command's output.
	DefaultSentinel = "__COMMAND_END__"

	// DefaultPromptInit is written once after the shell starts.
	DefaultPromptInit = `export PS1="PROMPT> "`

	// closeGrace is how long Close waits for the shell to exit on EOF
	// before killing its process group.
	closeGrace = 2 * time.Second

	readBufferSize = 32 * 1024
)

// =============================================================================
// TYPES
// =============================================================================

// State is the protocol state of a Session.
type State int

const (
	// StateIdle means no command is in flight.
	StateIdle State = iota
	// StateAwaitingSentinel means a command was written and its stdout
	// sentinel has not arrived yet.
	StateAwaitingSentinel
	// StateClosed means the shell has exited or Close was called.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingSentinel:
		return "awaiting-sentinel"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Result is the captured output of one command. A non-empty Stderr is for
// the caller to interpret; Run does not treat it as an error.
type Result struct {
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Failed reports whether the command wrote anything to stderr.
func (r Result) Failed() bool {
	return r.Stderr != ""
}

// Options configures a Session.
type Options struct {
	// Shell is the program to run (default "bash").
	Shell string
	// Args are passed to Shell.
	Args []string
	// Dir is the initial working directory (default: the user's home).
	Dir string
	// Env is appended to the inherited environment.
	Env []string
	// Sentinel overrides DefaultSentinel.
	Sentinel string
	// PromptInit overrides DefaultPromptInit. Set to "-" to skip it.
	PromptInit string
	// CommandTimeout bounds every Run. Zero waits indefinitely.
	CommandTimeout time.Duration
	// StrictStderr waits for a sentinel on stderr as well as stdout.
	StrictStderr bool
	// Logger receives protocol diagnostics.
	Logger *zap.Logger
}

func (o *Options) setDefaults() {
	if o.Shell == "" {
		o.Shell = DefaultShell
	}
	if o.Sentinel == "" {
		o.Sentinel = DefaultSentinel
	}
	if o.PromptInit == "" {
		o.PromptInit = DefaultPromptInit
	}
	if o.Dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			o.Dir = home
		}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

type stream int

const (
	streamStdout stream = iota
	streamStderr
)

func (s stream) String() string {
	if s == streamStderr {
		return "stderr"
	}
	return "stdout"
}

// =============================================================================
// SESSION
// =============================================================================

// Session owns one shell process and serializes commands sent to it.
type Session struct {
	id     string
	opts   Options
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	logger *zap.Logger

	// slot admits one Run at a time; later callers queue on it.
	slot chan struct{}

	mu        sync.Mutex
	state     State
	stdoutBuf *frameBuffer
	stderrBuf *frameBuffer
	reply     chan Result
	outFrame  *string
	errFrames []string
	// Frames still owed to commands whose Run gave up waiting. owed is
	// closed once both counts are back to zero.
	skipOut int
	skipErr int
	owed    chan struct{}
	closing bool

	done    chan struct{}
	exitErr error
}

// Start spawns the shell and writes the prompt initialization line.
func Start(ctx context.Context, opts Options) (*Session, error) {
	opts.setDefaults()

	cmd := exec.Command(opts.Shell, opts.Args...)
	cmd.Dir = opts.Dir
	cmd.Env = append(os.Environ(), opts.Env...)
	setProcAttr(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", opts.Shell, err)
	}

	id := uuid.New().String()
	s := &Session{
		id:        id,
		opts:      opts,
		cmd:       cmd,
		stdin:     stdin,
		logger:    opts.Logger.With(zap.String("session", id)),
		slot:      make(chan struct{}, 1),
		stdoutBuf: newFrameBuffer(opts.Sentinel),
		stderrBuf: newFrameBuffer(opts.Sentinel),
		done:      make(chan struct{}),
	}

	var readers errgroup.Group
	readers.Go(s.pump(stdout, streamStdout))
	readers.Go(s.pump(stderr, streamStderr))
	go s.wait(&readers)

	s.logger.Info("shell started",
		zap.String("shell", opts.Shell),
		zap.String("dir", opts.Dir),
		zap.Int("pid", cmd.Process.Pid),
		zap.Bool("strict_stderr", opts.StrictStderr))

	if opts.PromptInit != "-" {
		if _, err := io.WriteString(stdin, opts.PromptInit+"\n"); err != nil {
			s.Close()
			return nil, fmt.Errorf("initialize prompt: %w", err)
		}
	}

	return s, nil
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string { return s.id }

// Done is closed when the shell process has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns the *ExitError once Done is closed, nil before.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.exitErr
	default:
		return nil
	}
}

// State returns the current protocol state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run writes command followed by the sentinel echo and waits for its
// output. Concurrent callers are served one at a time in arrival order of
// the slot.
func (s *Session) Run(ctx context.Context, command string) (Result, error) {
	select {
	case s.slot <- struct{}{}:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-s.done:
		return Result{}, s.exitErr
	}
	defer func() { <-s.slot }()

	// The previous command may still be running in the shell. Its deadline
	// has passed, so only ctx bounds this wait.
	if err := s.awaitOwed(ctx); err != nil {
		return Result{}, err
	}

	parent := ctx
	if s.opts.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.CommandTimeout)
		defer cancel()
	}

	reply := make(chan Result, 1)
	s.mu.Lock()
	if s.state == StateClosed {
		exitErr := s.exitErr
		s.mu.Unlock()
		if exitErr != nil {
			return Result{}, exitErr
		}
		return Result{}, ErrClosed
	}
	s.state = StateAwaitingSentinel
	s.reply = reply
	s.mu.Unlock()

	start := time.Now()
	s.logger.Debug("run", zap.String("command", command))

	if _, err := io.WriteString(s.stdin, s.frameCommand(command)); err != nil {
		s.abandon(reply)
		select {
		case <-s.done:
			return Result{}, s.exitErr
		default:
			return Result{}, fmt.Errorf("write command: %w", err)
		}
	}

	select {
	case res := <-reply:
		res.Duration = time.Since(start)
		s.logger.Debug("command finished",
			zap.Duration("duration", res.Duration),
			zap.Int("stdout_bytes", len(res.Stdout)),
			zap.Int("stderr_bytes", len(res.Stderr)))
		return res, nil

	case <-s.done:
		return Result{}, s.exitErr

	case <-ctx.Done():
		if !s.abandon(reply) {
			// The sentinel won the race; the result is already buffered.
			res := <-reply
			res.Duration = time.Since(start)
			return res, nil
		}
		s.logger.Warn("command abandoned before its sentinel arrived",
			zap.String("command", command),
			zap.Duration("waited", time.Since(start)))
		if parent.Err() == nil {
			return Result{}, fmt.Errorf("%w after %s", ErrCommandTimeout, s.opts.CommandTimeout)
		}
		return Result{}, parent.Err()
	}
}

// awaitOwed blocks until the frames of abandoned commands have arrived.
func (s *Session) awaitOwed(ctx context.Context) error {
	s.mu.Lock()
	owed := s.owed
	s.mu.Unlock()
	if owed == nil {
		return nil
	}

	s.logger.Debug("waiting for abandoned command to finish")
	select {
	case <-owed:
		return nil
	case <-s.done:
		return s.exitErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// frameCommand returns the bytes written to stdin for one command.
func (s *Session) frameCommand(command string) string {
	var b strings.Builder
	b.WriteString(command)
	b.WriteString("\necho ")
	b.WriteString(s.opts.Sentinel)
	b.WriteByte('\n')
	if s.opts.StrictStderr {
		b.WriteString("echo ")
		b.WriteString(s.opts.Sentinel)
		b.WriteString(" >&2\n")
	}
	return b.String()
}

// abandon detaches reply from the session. It returns false when the result
// was already delivered. Otherwise the frames the abandoned command will
// still produce are marked for skipping so the next command is not handed
// stale output.
func (s *Session) abandon(reply chan Result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reply != reply {
		return false
	}
	s.reply = nil
	if s.state == StateAwaitingSentinel {
		s.state = StateIdle
	}

	if s.outFrame != nil {
		s.outFrame = nil
	} else {
		s.skipOut++
	}
	if s.opts.StrictStderr {
		if len(s.errFrames) > 0 {
			s.errFrames = s.errFrames[1:]
		} else {
			s.skipErr++
		}
	}
	if s.owed == nil && (s.skipOut > 0 || s.skipErr > 0) {
		s.owed = make(chan struct{})
	}
	return true
}

// settleOwed releases waiters once nothing is owed. Called with mu held.
func (s *Session) settleOwed() {
	if s.owed != nil && s.skipOut == 0 && s.skipErr == 0 {
		close(s.owed)
		s.owed = nil
	}
}

// Close ends the session. The shell gets EOF on stdin and a short grace
// period; after that its whole process group is killed.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		<-s.done
		return nil
	}
	s.closing = true
	s.mu.Unlock()

	s.stdin.Close()

	select {
	case <-s.done:
		return nil
	case <-time.After(closeGrace):
	}

	if err := killGroup(s.cmd); err != nil {
		s.logger.Warn("kill shell process group", zap.Error(err))
	}
	<-s.done
	return nil
}

// =============================================================================
// STREAM HANDLING
// =============================================================================

// pump copies one pipe into the session until EOF.
func (s *Session) pump(r io.Reader, which stream) func() error {
	return func() error {
		buf := make([]byte, readBufferSize)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				s.handleChunk(which, string(buf[:n]))
			}
			if err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
					return nil
				}
				return fmt.Errorf("read %s: %w", which, err)
			}
		}
	}
}

func (s *Session) handleChunk(which stream, chunk string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if which == streamStderr {
		for _, frame := range s.stderrBuf.Feed(chunk) {
			s.onStderrFrame(frame)
		}
		return
	}
	for _, frame := range s.stdoutBuf.Feed(chunk) {
		s.onStdoutFrame(frame)
	}
}

// onStdoutFrame is called with mu held.
func (s *Session) onStdoutFrame(frame string) {
	if s.skipOut > 0 {
		s.skipOut--
		s.logger.Debug("discarded stdout of abandoned command", zap.Int("bytes", len(frame)))
		s.settleOwed()
		return
	}
	if s.reply == nil {
		s.logger.Debug("dropped stdout frame while idle", zap.Int("bytes", len(frame)))
		return
	}
	s.outFrame = &frame
	s.complete()
}

// onStderrFrame is called with mu held.
func (s *Session) onStderrFrame(frame string) {
	if s.skipErr > 0 {
		s.skipErr--
		s.logger.Debug("discarded stderr of abandoned command", zap.Int("bytes", len(frame)))
		s.settleOwed()
		return
	}
	s.errFrames = append(s.errFrames, frame)
	s.complete()
}

// complete delivers the pending result once the stdout sentinel (and, in
// strict mode, the stderr sentinel) has been seen. Called with mu held.
func (s *Session) complete() {
	if s.reply == nil || s.outFrame == nil {
		return
	}

	var stderr string
	if s.opts.StrictStderr {
		if len(s.errFrames) == 0 {
			return
		}
		stderr = s.errFrames[0]
		s.errFrames = s.errFrames[1:]
	} else {
		// Whatever stderr has arrived by now belongs to this command.
		parts := s.errFrames
		if pending := s.stderrBuf.Drain(); pending != "" {
			parts = append(parts, pending)
		}
		stderr = strings.Join(parts, "\n")
		s.errFrames = nil
	}

	s.reply <- Result{Stdout: *s.outFrame, Stderr: stderr}
	s.reply = nil
	s.outFrame = nil
	s.state = StateIdle
}

// wait reaps the process after both readers reach EOF and publishes the
// exit status.
func (s *Session) wait(readers *errgroup.Group) {
	readErr := readers.Wait()
	waitErr := s.cmd.Wait()

	code := -1
	if s.cmd.ProcessState != nil {
		code = s.cmd.ProcessState.ExitCode()
	}

	var cause error
	var exitErr *exec.ExitError
	switch {
	case readErr != nil:
		cause = readErr
	case waitErr != nil && !errors.As(waitErr, &exitErr):
		cause = waitErr
	}

	s.mu.Lock()
	s.exitErr = &ExitError{Code: code, Err: cause}
	s.state = StateClosed
	closing := s.closing
	s.mu.Unlock()

	if closing {
		s.logger.Info("shell closed", zap.Int("code", code))
	} else {
		s.logger.Error("shell exited unexpectedly", zap.Int("code", code), zap.Error(cause))
	}
	close(s.done)
}
