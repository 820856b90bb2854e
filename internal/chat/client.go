// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeranaias/aish/internal/model"
)

// Configuration defaults.
const (
	// DefaultBaseURL is used when Config.BaseURL is empty.
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	// DefaultTemperature keeps replies focused.
	DefaultTemperature = 0.2

	// DefaultTimeout bounds a single HTTP attempt.
	DefaultTimeout = 120 * time.Second

	// DefaultMaxRetries is the number of attempts for retryable failures.
	DefaultMaxRetries = 3

	// DefaultRequestsPerSecond is the client-side rate limit.
	DefaultRequestsPerSecond = 2.0

	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 10 * time.Second

	// MaxResponseSize caps the body read from the server.
	MaxResponseSize = 10 * 1024 * 1024

	userAgent = "aish/1.0"
)

// summaryPrompt asks the model for a short, actionable error summary.
const summaryPrompt = "Summarize the following error message succinctly, focusing on the key issue and suggested action:\n%q"

// Sentinel errors.
var (
	// ErrNotConfigured indicates the base URL or model is missing.
	ErrNotConfigured = errors.New("chat client not configured")

	// ErrAuthFailed indicates the API key was rejected.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates the server returned 429.
	ErrRateLimited = errors.New("rate limited")

	// ErrModelNotFound indicates the requested model does not exist.
	ErrModelNotFound = errors.New("model not found")

	// ErrInsufficientCredits indicates the account cannot pay for the request.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrRequestFailed wraps transport failures and exhausted retries.
	ErrRequestFailed = errors.New("chat request failed")

	// ErrEmptyResponse indicates the completion carried no choices.
	ErrEmptyResponse = errors.New("empty response from model")
)

// APIError is an error response from the completion endpoint.
type APIError struct {
	Code    string
	Message string
	Status  int
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error [%s] (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("API error (HTTP %d): %s", e.Status, e.Message)
}

// =============================================================================
// WIRE TYPES
// =============================================================================

// Message is one entry of the request's messages array.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ProviderPreferences are OpenRouter routing hints. They are sent only when
// set and ignored by other OpenAI-compatible servers.
type ProviderPreferences struct {
	Order             []string `json:"order,omitempty" toml:"order" yaml:"order"`
	AllowFallbacks    *bool    `json:"allow_fallbacks,omitempty" toml:"allow_fallbacks" yaml:"allow_fallbacks"`
	RequireParameters *bool    `json:"require_parameters,omitempty" toml:"require_parameters" yaml:"require_parameters"`
	DataCollection    string   `json:"data_collection,omitempty" toml:"data_collection" yaml:"data_collection"`
	Ignore            []string `json:"ignore,omitempty" toml:"ignore" yaml:"ignore"`
	Quantizations     []string `json:"quantizations,omitempty" toml:"quantizations" yaml:"quantizations"`
	Sort              string   `json:"sort,omitempty" toml:"sort" yaml:"sort"`
}

// IsZero reports whether no preference is set.
func (p *ProviderPreferences) IsZero() bool {
	return p == nil || (len(p.Order) == 0 && p.AllowFallbacks == nil &&
		p.RequireParameters == nil && p.DataCollection == "" &&
		len(p.Ignore) == 0 && len(p.Quantizations) == 0 && p.Sort == "")
}

// Request is the body posted to /chat/completions.
type Request struct {
	Model       string               `json:"model"`
	Messages    []Message            `json:"messages"`
	Temperature *float64             `json:"temperature,omitempty"`
	N           int                  `json:"n,omitempty"`
	Provider    *ProviderPreferences `json:"provider,omitempty"`
}

// Usage is the token accounting reported by the server.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Choice is one completion alternative.
type Choice struct {
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Response is a chat completion.
type Response struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Content returns the first choice's content, or "" when there is none.
func (r *Response) Content() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

type apiErrorResponse struct {
	Error struct {
		Code    any    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Config configures a Client.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	N           int
	Provider    *ProviderPreferences

	Timeout           time.Duration
	MaxRetries        int
	RequestsPerSecond float64

	// SiteURL and SiteName are sent as OpenRouter attribution headers.
	SiteURL  string
	SiteName string

	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client is an OpenAI-compatible chat-completion client. It is safe for
// concurrent use.
type Client struct {
	cfg     Config
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient validates cfg and returns a Client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("%w: model is required", ErrNotConfigured)
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.N <= 0 {
		cfg.N = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		cfg:     cfg,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		http:    cfg.HTTPClient,
		limiter: rate.NewLimiter(limit, 1),
		logger:  cfg.Logger.With(zap.String("component", "chat")),
	}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.cfg.Model }

// KeyFingerprint identifies the API key in logs without exposing it.
func (c *Client) KeyFingerprint() string {
	return Fingerprint(c.cfg.APIKey)
}

// Fingerprint returns a short hash identifying key without revealing it.
func Fingerprint(key string) string {
	if key == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:4])
}

// Chat sends turns and returns the completion.
func (c *Client) Chat(ctx context.Context, turns []model.Turn) (*Response, error) {
	temp := c.cfg.Temperature
	req := Request{
		Model:       c.cfg.Model,
		Messages:    toMessages(turns),
		Temperature: &temp,
		N:           c.cfg.N,
	}
	if !c.cfg.Provider.IsZero() {
		req.Provider = c.cfg.Provider
	}
	return c.complete(ctx, req)
}

// SummarizeError asks the model for a short summary of an error message.
// Provider preferences and sampling settings are not sent.
func (c *Client) SummarizeError(ctx context.Context, text string) (string, error) {
	req := Request{
		Model: c.cfg.Model,
		Messages: []Message{{
			Role:    string(model.RoleSystem),
			Content: fmt.Sprintf(summaryPrompt, text),
		}},
	}
	resp, err := c.complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("summarize error: %w", err)
	}
	return strings.TrimSpace(resp.Content()), nil
}

func toMessages(turns []model.Turn) []Message {
	msgs := make([]Message, len(turns))
	for i, t := range turns {
		msgs[i] = Message{Role: t.Role.String(), Content: t.Content}
	}
	return msgs
}

// complete runs req with rate limiting and retries.
func (c *Client) complete(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	url := c.baseURL + "/chat/completions"

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := calculateBackoff(attempt)
			c.logger.Debug("retrying chat request",
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := c.doRequest(ctx, url, body)
		if err == nil {
			return resp, nil
		}
		if !isRetryable(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w: max retries exceeded: %w", ErrRequestFailed, lastErr)
}

func (c *Client) doRequest(ctx context.Context, url string, body []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	// SECURITY: headers and bodies are never logged; they carry the key and
	// the user's transcript.
	c.logger.Debug("chat response",
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
		zap.String("key", c.KeyFingerprint()))

	data, err := readResponse(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp.StatusCode, data)
	}

	var out Response
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, ErrEmptyResponse
	}
	return &out, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	if c.cfg.SiteURL != "" {
		req.Header.Set("HTTP-Referer", c.cfg.SiteURL)
	}
	if c.cfg.SiteName != "" {
		req.Header.Set("X-Title", c.cfg.SiteName)
	}
}

// readResponse reads at most MaxResponseSize bytes.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// handleErrorResponse maps a non-200 status to a sentinel wrapping the
// server's *APIError.
func handleErrorResponse(status int, body []byte) error {
	apiErr := &APIError{Status: status, Message: strings.TrimSpace(string(body))}

	var parsed apiErrorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		apiErr.Message = parsed.Error.Message
		if parsed.Error.Code != nil {
			apiErr.Code = fmt.Sprint(parsed.Error.Code)
		}
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %w", ErrAuthFailed, apiErr)
	case http.StatusPaymentRequired:
		return fmt.Errorf("%w: %w", ErrInsufficientCredits, apiErr)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %w", ErrModelNotFound, apiErr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", ErrRateLimited, apiErr)
	default:
		return apiErr
	}
}

// isRetryable reports whether err is a 429 or a 5xx.
func isRetryable(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500 && apiErr.Status < 600
	}
	return false
}

// calculateBackoff returns 500ms, 1s, 2s, ... capped at retryMaxDelay.
func calculateBackoff(attempt int) time.Duration {
	delay := retryBaseDelay * time.Duration(1<<uint(attempt-1))
	if delay > retryMaxDelay || delay <= 0 {
		delay = retryMaxDelay
	}
	return delay
}
