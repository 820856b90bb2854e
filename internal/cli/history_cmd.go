// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// history_cmd.go - inspect and manage the persisted transcript.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/aish/internal/config"
	"github.com/jeranaias/aish/internal/export"
	"github.com/jeranaias/aish/internal/history"
	"github.com/jeranaias/aish/internal/model"
	"github.com/jeranaias/aish/internal/ui/styles"
	"github.com/jeranaias/aish/internal/util"
)

func newHistoryCommand(flags *Flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect or clear the saved transcript",
	}

	var (
		showAll   bool
		showLimit int
	)
	show := &cobra.Command{
		Use:   "show",
		Short: "List transcript turns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(cmd.Context(), flags, func(cfg *config.Config, store *history.Store) error {
				printTranscript(cmd.OutOrStdout(), themeFor(), store.Snapshot(), showAll, showLimit)
				return nil
			})
		},
	}
	show.Flags().BoolVarP(&showAll, "all", "a", false, "include the system prompt and show full content")
	show.Flags().IntVarP(&showLimit, "limit", "n", 0, "show only the last N turns")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Reset the transcript to the system prompt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(cmd.Context(), flags, func(cfg *config.Config, store *history.Store) error {
				if err := store.Reset(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Transcript cleared.")
				return nil
			})
		},
	}

	tokens := &cobra.Command{
		Use:   "tokens",
		Short: "Show transcript size against the budget",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(cmd.Context(), flags, func(cfg *config.Config, store *history.Store) error {
				fmt.Fprintf(cmd.OutOrStdout(), "turns:  %d\ntokens: %d\nbudget: %d\npolicy: %s\n",
					store.Len(), store.TokenCount(), store.Budget(), store.PolicyName())
				return nil
			})
		},
	}

	opts := export.DefaultOptions()
	var format string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write the transcript to a Markdown or JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			exporter, err := export.ForFormat(format, opts)
			if err != nil {
				return &UsageError{Err: err}
			}
			return withHistory(cmd.Context(), flags, func(cfg *config.Config, store *history.Store) error {
				doc := &export.Document{
					Transcript: store.Snapshot(),
					Model:      cfg.Chat.Model,
					Policy:     store.PolicyName(),
					Tokens:     store.TokenCount(),
					Budget:     store.Budget(),
				}
				path, err := export.ExportToFile(doc, exporter, opts)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", path)
				return nil
			})
		},
	}
	exportCmd.Flags().StringVarP(&format, "format", "f", "markdown", "markdown or json")
	exportCmd.Flags().StringVarP(&opts.OutputDir, "output", "o", ".", "output directory")
	exportCmd.Flags().BoolVar(&opts.IncludeSystem, "system", false, "include the system prompt")
	exportCmd.Flags().BoolVar(&opts.IncludeMetadata, "metadata", true, "include a metadata header")

	cmd.AddCommand(show, clearCmd, tokens, exportCmd)
	return cmd
}

// withHistory loads config and the transcript store, runs fn and closes the
// store. Logs are discarded; these commands report on stdout.
func withHistory(ctx context.Context, flags *Flags, fn func(*config.Config, *history.Store) error) error {
	cfg, err := flags.loadConfig()
	if err != nil {
		return err
	}
	store, closeFn, err := openHistory(ctx, cfg, zap.NewNop())
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(cfg, store)
}

func themeFor() *styles.Theme {
	if ColorsEnabled() {
		return styles.NewTheme(styles.ThemeAuto)
	}
	return styles.Plain()
}

// printTranscript lists turns one per line, truncated to the terminal width
// unless full is set.
func printTranscript(w io.Writer, theme *styles.Theme, t model.Transcript, full bool, limit int) {
	if !full {
		filtered := make(model.Transcript, 0, len(t))
		for _, turn := range t {
			if !turn.IsSystem() {
				filtered = append(filtered, turn)
			}
		}
		t = filtered
	}
	if len(t) == 0 {
		fmt.Fprintln(w, theme.Muted.Render("[No turns yet]"))
		return
	}

	start := 0
	if limit > 0 && limit < len(t) {
		start = len(t) - limit
	}

	width := GetTerminalWidth()
	for i := start; i < len(t); i++ {
		turn := t[i]
		style := theme.Label
		if theme.ColorProfile != termenv.Ascii {
			style = style.Foreground(styles.RoleColor(turn.Role.String()))
		}
		label := style.Render(fmt.Sprintf("%-9s", turn.Role.DisplayName()))
		prefix := fmt.Sprintf("%4d. ", i+1)

		content := turn.Content
		if !full {
			content = util.Preview(content, width-len(prefix)-11)
		}
		fmt.Fprintf(w, "%s%s  %s\n", prefix, label, content)
	}
}
