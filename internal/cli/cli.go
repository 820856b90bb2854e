// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - root command and global flags.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/aish/internal/config"
	"github.com/jeranaias/aish/internal/logging"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// GLOBAL FLAGS
// =============================================================================

// Flags are the options shared by every command.
type Flags struct {
	ConfigPath string
	Model      string
	Policy     string
	MaxTokens  int
	Ephemeral  bool
	Verbose    bool
}

func (f *Flags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&f.ConfigPath, "config", "", "config file (default ~/.aish/config.toml)")
	pf.StringVarP(&f.Model, "model", "m", "", "chat model to use")
	pf.StringVar(&f.Policy, "policy", "", "history eviction policy (simple, latest)")
	pf.IntVar(&f.MaxTokens, "max-tokens", 0, "transcript token budget")
	pf.BoolVar(&f.Ephemeral, "ephemeral", false, "keep the transcript in memory only")
	pf.BoolVarP(&f.Verbose, "verbose", "v", false, "debug logging")
}

// loadConfig loads the config file and applies flags on top. Flags win over
// the environment, which wins over the file.
func (f *Flags) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if f.ConfigPath != "" {
		cfg, err = config.LoadFromPath(f.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if err := f.apply(cfg); err != nil {
		return nil, err
	}
	config.SetGlobal(cfg)
	return cfg, nil
}

// apply copies set flags into cfg and revalidates.
func (f *Flags) apply(cfg *config.Config) error {
	if f.Model != "" {
		cfg.Chat.Model = f.Model
	}
	if f.Policy != "" {
		cfg.History.Policy = f.Policy
	}
	if f.MaxTokens < 0 {
		return &UsageError{Err: fmt.Errorf("--max-tokens must be positive, got %d", f.MaxTokens)}
	}
	if f.MaxTokens > 0 {
		cfg.History.MaxTokens = f.MaxTokens
	}
	if f.Ephemeral {
		cfg.History.Backend = "memory"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}

// =============================================================================
// ROOT COMMAND
// =============================================================================

// NewRootCommand builds the aish command tree writing to out.
func NewRootCommand(out io.Writer) *cobra.Command {
	flags := &Flags{}

	root := &cobra.Command{
		Use:   "aish",
		Short: "An interactive shell with an AI assistant",
		Long: `aish runs a persistent shell and a chat assistant side by side.

Lines starting with "/" are sent to the assistant, which may run shell
commands to answer. Every other line runs directly in the shell. The whole
exchange is kept in one transcript that is trimmed to a token budget.`,
		Example: `  aish
  aish --model anthropic/claude-3.5-haiku
  aish --policy simple --max-tokens 8000
  aish history show
  aish doctor`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd.Context(), flags, out)
		},
	}
	root.SetOut(out)
	flags.register(root)

	root.AddCommand(
		newHistoryCommand(flags),
		newConfigCommand(flags),
		newDoctorCommand(flags),
		newVersionCommand(),
	)
	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	root := NewRootCommand(os.Stdout)
	err := root.ExecuteContext(context.Background())
	DisplayError(os.Stderr, err)
	return GetExitCode(err)
}

// runInteractive starts the REPL.
func runInteractive(ctx context.Context, flags *Flags, out io.Writer) error {
	cfg, err := flags.loadConfig()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log, flags.Verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	app, err := newApp(ctx, cfg, logger, out)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		return err
	}
	defer app.Close()

	printWelcome(out, app.Printer.theme, app)

	in := NewInputLine(cfg.UI.InputHistory)
	defer in.Close()

	return runREPL(ctx, app, in, out)
}

// =============================================================================
// VERSION
// =============================================================================

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "aish %s\n", Version)
			fmt.Fprintf(cmd.OutOrStdout(), "  commit:  %s\n", GitCommit)
			fmt.Fprintf(cmd.OutOrStdout(), "  built:   %s\n", BuildDate)
			fmt.Fprintf(cmd.OutOrStdout(), "  go:      %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
