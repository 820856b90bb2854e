// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jeranaias/aish/internal/config"
	"github.com/jeranaias/aish/internal/model"
)

// scriptedInput feeds fixed lines to the loop, then io.EOF.
type scriptedInput struct {
	lines   []string
	prompts []string
}

func (s *scriptedInput) ReadInput(prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

// completionServer answers each request with the next reply.
func completionServer(t *testing.T, replies ...string) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if !assert.NotEmpty(t, replies, "unexpected completion request") {
			http.Error(w, "no reply", http.StatusInternalServerError)
			return
		}
		content := replies[0]
		replies = replies[1:]

		body, _ := json.Marshal(map[string]any{
			"id":    "cmpl-test",
			"model": "test-model",
			"choices": []map[string]any{{
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	if _, err := exec.LookPath("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	cfg := config.Default()
	cfg.Chat.BaseURL = baseURL
	cfg.Chat.Model = "test-model"
	cfg.Chat.RequestsPerSecond = 0
	cfg.Chat.MaxRetries = 1
	cfg.History.Backend = "memory"
	cfg.History.Tokenizer = "words"
	cfg.Shell.Program = "/bin/sh"
	cfg.Shell.Dir = t.TempDir()
	cfg.UI.ShowTokens = true
	return cfg
}

func TestREPLSession(t *testing.T) {
	isolate(t)
	server := completionServer(t,
		`{"reasoning":"r","conclusion":"c","command":"echo from-ai"}`,
		`{"reasoning":"","conclusion":"done"}`,
	)
	cfg := testConfig(t, server.URL)

	var out bytes.Buffer
	ctx := context.Background()
	app, err := newApp(ctx, cfg, zap.NewNop(), &out)
	require.NoError(t, err)
	defer app.Close()

	in := &scriptedInput{lines: []string{"echo hello", "   ", "/say hi", "exit 4", "never read"}}
	err = runREPL(ctx, app, in, &out)

	require.Error(t, err)
	assert.Equal(t, 4, GetExitCode(err))
	assert.Equal(t, []string{"never read"}, in.lines)

	for _, p := range in.prompts {
		assert.True(t, strings.HasPrefix(p, "(t:"), "prompt %q", p)
		assert.True(t, strings.HasSuffix(p, "aish % "), "prompt %q", p)
	}

	printed := out.String()
	for _, want := range []string{"hello", "echo from-ai", "from-ai", "done", "Execution Error: shell exited with code 4"} {
		assert.Contains(t, printed, want)
	}

	turns := app.Store.Snapshot()
	var roles []model.Role
	for _, turn := range turns {
		roles = append(roles, turn.Role)
	}
	assert.Equal(t, []model.Role{
		model.RoleSystem,
		// echo hello
		model.RoleUser, model.RoleAssistant,
		// /say hi
		model.RoleUser, model.RoleAssistant, model.RoleAssistant, model.RoleAssistant,
		// exit 4
		model.RoleUser, model.RoleAssistant,
	}, roles)

	assert.Equal(t, "echo hello", turns[1].Content)
	assert.True(t, strings.HasPrefix(turns[2].Content, `Command output: "hello`), turns[2].Content)
	assert.Equal(t, "/say hi", turns[3].Content)
	assert.Contains(t, turns[4].Content, "echo from-ai")
	assert.True(t, strings.HasPrefix(turns[5].Content, `Command output: "from-ai`), turns[5].Content)
	assert.Contains(t, turns[6].Content, "done")
	assert.Equal(t, "Execution Error: shell exited with code 4", turns[8].Content)
}

func TestREPLEndsOnEOF(t *testing.T) {
	isolate(t)
	cfg := testConfig(t, completionServer(t).URL)
	cfg.UI.ShowTokens = false

	var out bytes.Buffer
	ctx := context.Background()
	app, err := newApp(ctx, cfg, zap.NewNop(), &out)
	require.NoError(t, err)

	in := &scriptedInput{}
	assert.NoError(t, runREPL(ctx, app, in, &out))
	assert.Equal(t, []string{"aish % "}, in.prompts)
	assert.NoError(t, app.Close())
	assert.Equal(t, 1, app.Store.Len())
}

func TestNewAppRequiresModel(t *testing.T) {
	isolate(t)
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Chat.Model = ""

	_, err := newApp(context.Background(), cfg, zap.NewNop(), io.Discard)
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, GetExitCode(err))
}

func TestPrintWelcome(t *testing.T) {
	isolate(t)
	cfg := testConfig(t, completionServer(t).URL)

	var out bytes.Buffer
	app, err := newApp(context.Background(), cfg, zap.NewNop(), &out)
	require.NoError(t, err)
	defer app.Close()

	printWelcome(&out, app.Printer.theme, app)
	assert.Contains(t, out.String(), "Welcome to aish")
	assert.Contains(t, out.String(), "Model: test-model")
}
