// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"strings"
)

// DoneCommand is the command value the assistant sends when a task is finished.
const DoneCommand = "done"

// Reply is the structured answer the assistant is instructed to produce.
// A nil Command means no action is needed.
type Reply struct {
	Reasoning  string  `json:"reasoning"`
	Conclusion string  `json:"conclusion"`
	Command    *string `json:"command"`
}

// NextCommand returns the trimmed command to run and whether there is one.
// An absent, blank or "done" command ends the run.
func (r Reply) NextCommand() (string, bool) {
	if r.Command == nil {
		return "", false
	}
	cmd := strings.TrimSpace(*r.Command)
	if cmd == "" || strings.EqualFold(cmd, DoneCommand) {
		return "", false
	}
	return cmd, true
}

// IsEmpty reports whether every field is blank.
func (r Reply) IsEmpty() bool {
	return strings.TrimSpace(r.Reasoning) == "" &&
		strings.TrimSpace(r.Conclusion) == "" &&
		(r.Command == nil || strings.TrimSpace(*r.Command) == "")
}

// String renders the reply as the JSON stored in the transcript. Shell
// metacharacters such as < and & are left unescaped.
func (r Reply) String() string {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return r.Conclusion
	}
	return strings.TrimSuffix(b.String(), "\n")
}
