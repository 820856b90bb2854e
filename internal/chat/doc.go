// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat talks to an OpenAI-compatible chat-completion endpoint.
//
// The client sends the whole transcript on every request and returns the raw
// completion. ParseReply turns the assistant's content into a model.Reply,
// accepting strict JSON, fenced JSON, or loose key/value text.
//
// # Usage
//
//	client, err := chat.NewClient(chat.Config{
//	    BaseURL: "https://openrouter.ai/api/v1",
//	    APIKey:  key,
//	    Model:   "openai/gpt-4o-mini",
//	})
//	resp, err := client.Chat(ctx, store.Snapshot())
//	reply, err := chat.ParseReply(resp.Content())
//
// # Errors
//
// HTTP failures map to the package sentinels (ErrAuthFailed, ErrRateLimited,
// ErrModelNotFound, ...). The underlying *APIError is kept in the chain.
// Requests are retried with exponential backoff on 429 and 5xx only.
package chat
