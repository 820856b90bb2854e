// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// doctor.go - environment health checks.
//
// Command: doctor
// Short:   Check that aish can run in this environment
//
// Health Checks Performed:
//   1. Config Valid      - config file and environment load and validate
//   2. Shell Installed   - the configured shell is on PATH
//   3. Shell Responds    - a session starts and completes a command
//   4. History Writable  - the transcript location accepts writes
//   5. Log Writable      - the log directory accepts writes
//   6. Model Configured  - a chat model is set
//   7. API Key           - an API key is set (optional for local servers)
//
// Exit Codes:
//   0   No check failed
//   1   One or more checks failed
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/aish/internal/chat"
	"github.com/jeranaias/aish/internal/config"
	"github.com/jeranaias/aish/internal/logging"
	"github.com/jeranaias/aish/internal/shell"
	"github.com/jeranaias/aish/internal/storage"
	"github.com/jeranaias/aish/internal/ui/styles"
)

// shellProbeTimeout bounds the shell round trip check.
const shellProbeTimeout = 5 * time.Second

// =============================================================================
// HEALTH CHECK TYPES
// =============================================================================

// CheckStatus represents the status of a health check.
type CheckStatus int

const (
	// CheckPass indicates the check passed.
	CheckPass CheckStatus = iota
	// CheckWarn indicates a non-critical issue.
	CheckWarn
	// CheckFail indicates aish will not work as configured.
	CheckFail
)

// String returns the lower-case status name.
func (s CheckStatus) String() string {
	switch s {
	case CheckPass:
		return "pass"
	case CheckWarn:
		return "warn"
	case CheckFail:
		return "fail"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s CheckStatus) symbol(theme *styles.Theme) string {
	switch s {
	case CheckPass:
		return theme.Conclusion.Render("[OK]")
	case CheckWarn:
		return theme.Notice.Render("[!!]")
	default:
		return theme.Error.Render("[FAIL]")
	}
}

// HealthCheck is the result of one check.
type HealthCheck struct {
	Name    string      `json:"name"`
	Status  CheckStatus `json:"status"`
	Message string      `json:"message"`
	Fix     string      `json:"fix,omitempty"`
}

// Render formats the check for the terminal.
func (c *HealthCheck) Render(theme *styles.Theme) string {
	result := fmt.Sprintf("%s %s", c.Status.symbol(theme), c.Message)
	if c.Status != CheckPass && c.Fix != "" {
		result += "\n" + theme.Muted.Render("     -> "+c.Fix)
	}
	return result
}

// doctorSummary counts check results.
type doctorSummary struct {
	Passed  int  `json:"passed"`
	Warned  int  `json:"warned"`
	Failed  int  `json:"failed"`
	Healthy bool `json:"healthy"`
}

func summarize(checks []*HealthCheck) doctorSummary {
	var s doctorSummary
	for _, c := range checks {
		switch c.Status {
		case CheckPass:
			s.Passed++
		case CheckWarn:
			s.Warned++
		default:
			s.Failed++
		}
	}
	s.Healthy = s.Failed == 0
	return s
}

// =============================================================================
// COMMAND
// =============================================================================

func newDoctorCommand(flags *Flags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "doctor",
		Aliases: []string{"diag"},
		Short:   "Check that aish can run in this environment",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			checks := runAllChecks(cmd.Context(), flags)
			summary := summarize(checks)

			out := cmd.OutOrStdout()
			if asJSON {
				if err := writeDoctorJSON(out, checks, summary); err != nil {
					return err
				}
			} else {
				writeDoctorText(out, themeFor(), checks, summary)
			}

			if summary.Failed > 0 {
				return fmt.Errorf("%d health check(s) failed", summary.Failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output results as JSON")
	return cmd
}

func writeDoctorText(w io.Writer, theme *styles.Theme, checks []*HealthCheck, s doctorSummary) {
	fmt.Fprintln(w, theme.Welcome.Render("aish doctor"))
	fmt.Fprintln(w, theme.Muted.Render(strings.Repeat("=", 41)))
	for _, check := range checks {
		fmt.Fprintln(w, check.Render(theme))
	}
	fmt.Fprintln(w, theme.Muted.Render(strings.Repeat("-", 41)))

	parts := []string{fmt.Sprintf("%d passed", s.Passed)}
	if s.Warned > 0 {
		parts = append(parts, theme.Notice.Render(fmt.Sprintf("%d warning", s.Warned)))
	}
	if s.Failed > 0 {
		parts = append(parts, theme.Error.Render(fmt.Sprintf("%d failed", s.Failed)))
	}
	fmt.Fprintln(w, strings.Join(parts, ", "))
}

func writeDoctorJSON(w io.Writer, checks []*HealthCheck, s doctorSummary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Checks  []*HealthCheck `json:"checks"`
		Summary doctorSummary  `json:"summary"`
	}{checks, s})
}

// =============================================================================
// HEALTH CHECK FUNCTIONS
// =============================================================================

// runAllChecks runs every check. When the config cannot be loaded the
// remaining checks run against the defaults.
func runAllChecks(ctx context.Context, flags *Flags) []*HealthCheck {
	cfg, err := flags.loadConfig()
	configCheck := checkConfigValid(err)
	if err != nil {
		cfg = config.Default()
	}

	return []*HealthCheck{
		configCheck,
		checkShellInstalled(cfg),
		checkShellResponds(ctx, cfg),
		checkHistoryWritable(cfg),
		checkLogWritable(cfg),
		checkModelConfigured(cfg),
		checkAPIKey(cfg),
	}
}

func checkConfigValid(err error) *HealthCheck {
	check := &HealthCheck{Name: "Config Valid"}
	if err != nil {
		check.Status = CheckFail
		check.Message = fmt.Sprintf("Config invalid: %s", err)
		check.Fix = "Run: aish config init --force"
		return check
	}
	check.Status = CheckPass
	check.Message = "Config valid"
	return check
}

func checkShellInstalled(cfg *config.Config) *HealthCheck {
	check := &HealthCheck{Name: "Shell Installed"}
	path, err := exec.LookPath(cfg.Shell.Program)
	if err != nil {
		check.Status = CheckFail
		check.Message = fmt.Sprintf("Shell %q not found", cfg.Shell.Program)
		check.Fix = "Set shell.program in the config file or AISH_SHELL"
		return check
	}
	check.Status = CheckPass
	check.Message = "Shell found: " + path
	return check
}

func checkShellResponds(ctx context.Context, cfg *config.Config) *HealthCheck {
	check := &HealthCheck{Name: "Shell Responds"}

	ctx, cancel := context.WithTimeout(ctx, shellProbeTimeout)
	defer cancel()

	sess, err := shell.Start(ctx, shell.Options{
		Shell:    cfg.Shell.Program,
		Args:     cfg.Shell.Args,
		Dir:      cfg.Shell.Dir,
		Sentinel: cfg.Shell.Sentinel,
		Logger:   zap.NewNop(),
	})
	if err != nil {
		check.Status = CheckFail
		check.Message = fmt.Sprintf("Shell did not start: %s", err)
		return check
	}
	defer sess.Close()

	res, err := sess.Run(ctx, "echo ok")
	if err != nil || strings.TrimSpace(res.Stdout) != "ok" {
		check.Status = CheckFail
		check.Message = fmt.Sprintf("Shell did not complete a command: %v", err)
		check.Fix = "Check that the shell reads commands from stdin"
		return check
	}
	check.Status = CheckPass
	check.Message = "Shell completed a command"
	return check
}

func checkHistoryWritable(cfg *config.Config) *HealthCheck {
	check := &HealthCheck{Name: "History Writable"}

	path := cfg.History.Path
	switch storage.Backend(cfg.History.Backend) {
	case storage.BackendMemory:
		check.Status = CheckWarn
		check.Message = "Transcript kept in memory only"
		check.Fix = "Set history.backend to json or sqlite to keep it between sessions"
		return check
	case storage.BackendSQLite:
		if path == "" {
			path = storage.DefaultSQLitePath()
		}
	default:
		if path == "" {
			path = storage.DefaultJSONPath()
		}
	}

	if err := checkDirWritable(filepath.Dir(path)); err != nil {
		check.Status = CheckFail
		check.Message = fmt.Sprintf("Transcript location not writable: %s", err)
		check.Fix = "Check permissions on " + filepath.Dir(path)
		return check
	}
	check.Status = CheckPass
	check.Message = fmt.Sprintf("Transcript saved to %s (%s)", path, cfg.History.Backend)
	return check
}

func checkLogWritable(cfg *config.Config) *HealthCheck {
	check := &HealthCheck{Name: "Log Writable"}

	path, err := logging.Path(cfg.Log)
	if err == nil {
		err = checkDirWritable(filepath.Dir(path))
	}
	if err != nil {
		check.Status = CheckFail
		check.Message = fmt.Sprintf("Log location not writable: %s", err)
		check.Fix = "Set log.path to a writable file"
		return check
	}
	check.Status = CheckPass
	check.Message = "Logging to " + path
	return check
}

func checkModelConfigured(cfg *config.Config) *HealthCheck {
	check := &HealthCheck{Name: "Model Configured"}
	if strings.TrimSpace(cfg.Chat.Model) == "" {
		check.Status = CheckFail
		check.Message = "No chat model configured"
		check.Fix = "Run: aish --model <name> or set AISH_MODEL"
		return check
	}
	check.Status = CheckPass
	check.Message = "Model: " + cfg.Chat.Model
	return check
}

func checkAPIKey(cfg *config.Config) *HealthCheck {
	check := &HealthCheck{Name: "API Key"}
	key := cfg.Chat.APIKey

	if key == "" {
		check.Status = CheckWarn
		check.Message = "No API key set (only local servers will work)"
		check.Fix = "Set AISH_API_KEY or chat.api_key"
		return check
	}

	if strings.Contains(cfg.Chat.BaseURL, "openrouter.ai") && !strings.HasPrefix(key, "sk-or-") {
		check.Status = CheckWarn
		check.Message = "OpenRouter key format may be invalid"
		check.Fix = "Get key from https://openrouter.ai/keys"
		return check
	}

	check.Status = CheckPass
	check.Message = "API key set (" + chat.Fingerprint(key) + ")"
	return check
}

// =============================================================================
// HELPERS
// =============================================================================

// checkDirWritable creates dir if needed and writes a probe file into it.
func checkDirWritable(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	probe, err := os.CreateTemp(dir, ".aish-write-test-*")
	if err != nil {
		return err
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}
