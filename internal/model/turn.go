// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strings"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role identifies who produced a Turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// ParseRole converts s to a Role, ignoring case and surrounding space.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// =============================================================================
// TURN TYPE
// =============================================================================

// Turn is one message in the conversation. The JSON form is exactly
// {"role": ..., "content": ...}, which is also what the chat service accepts.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewTurn creates a Turn.
func NewTurn(role Role, content string) Turn {
	return Turn{Role: role, Content: content}
}

// SystemTurn creates a system Turn.
func SystemTurn(content string) Turn {
	return NewTurn(RoleSystem, content)
}

// UserTurn creates a user Turn.
func UserTurn(content string) Turn {
	return NewTurn(RoleUser, content)
}

// AssistantTurn creates an assistant Turn.
func AssistantTurn(content string) Turn {
	return NewTurn(RoleAssistant, content)
}

// IsSystem reports whether the Turn carries the system prompt.
func (t Turn) IsSystem() bool {
	return t.Role == RoleSystem
}
