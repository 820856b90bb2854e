// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the conversation types shared by every aish package.
//
// # Key Types
//
//   - Role: system, user or assistant
//   - Turn: one role-tagged message; serializes as {"role": ..., "content": ...}
//   - Transcript: ordered Turns with exactly one system Turn
//   - Reply: the assistant's structured {reasoning, conclusion, command} answer
//
// # Usage
//
//	t := model.Transcript{model.SystemTurn(model.DefaultSystemPrompt)}
//	t = append(t, model.UserTurn("/list the files in /tmp"))
//	last, ok := t.LastIndex(model.RoleUser)
package model
