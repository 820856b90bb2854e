// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jeranaias/aish/internal/model"
	"github.com/jeranaias/aish/internal/util"
)

// ErrInvalidReply indicates the assistant's content has none of the
// expected reply fields.
var ErrInvalidReply = errors.New("invalid reply from model")

// looseField matches "key": "value" or "key": null inside text that is not
// valid JSON.
var looseField = regexp.MustCompile(`"(\w+)":\s*(?:"((?:[^"\\]|\\.)*)"|null)`)

var looseUnescaper = strings.NewReplacer(
	`\\`, `\`,
	`\n`, "\n",
	`\t`, "\t",
	`\"`, `"`,
)

// ParseReply converts assistant content into a Reply. It accepts a JSON
// object, a JSON object wrapped in a markdown fence or surrounding prose,
// and finally loose "key": "value" pairs.
func ParseReply(content string) (model.Reply, error) {
	text := strings.TrimSpace(content)
	if text == "" {
		return model.Reply{}, fmt.Errorf("%w: empty content", ErrInvalidReply)
	}

	for _, candidate := range jsonCandidates(text) {
		if r, ok := parseJSONReply(candidate); ok {
			return r, nil
		}
	}

	r, found := parseLooseReply(text)
	if !found {
		return model.Reply{}, fmt.Errorf("%w: %s", ErrInvalidReply, util.Preview(text, 80))
	}
	return r, nil
}

// jsonCandidates returns the texts worth trying as JSON, most specific first.
func jsonCandidates(text string) []string {
	out := []string{text}
	if fenced, ok := stripFence(text); ok {
		out = append(out, fenced)
	}
	if start, end := strings.IndexByte(text, '{'), strings.LastIndexByte(text, '}'); start >= 0 && end > start {
		out = append(out, text[start:end+1])
	}
	return out
}

// stripFence removes a surrounding ``` or ```json fence.
func stripFence(text string) (string, bool) {
	if !strings.HasPrefix(text, "```") {
		return "", false
	}
	body := strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		return "", false
	}
	body = strings.TrimSpace(body)
	body = strings.TrimSuffix(body, "```")
	return strings.TrimSpace(body), true
}

func parseJSONReply(text string) (model.Reply, bool) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return model.Reply{}, false
	}
	if !hasAny(fields, "reasoning", "conclusion", "command") {
		return model.Reply{}, false
	}
	r := model.Reply{
		Reasoning:  stringify(fields["reasoning"]),
		Conclusion: stringify(fields["conclusion"]),
	}
	if v, ok := fields["command"]; ok && v != nil {
		cmd := stringify(v)
		r.Command = &cmd
	}
	return r, true
}

func hasAny(fields map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := fields[k]; ok {
			return true
		}
	}
	return false
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(data)
	}
}

// parseLooseReply extracts reasoning, conclusion and command from text that
// looks like JSON but does not parse. found is false when none of the three
// keys appear.
func parseLooseReply(text string) (r model.Reply, found bool) {
	for _, m := range looseField.FindAllStringSubmatchIndex(text, -1) {
		key := text[m[2]:m[3]]
		value := ""
		isNull := m[4] < 0
		if !isNull {
			value = looseUnescaper.Replace(text[m[4]:m[5]])
		}

		switch key {
		case "reasoning":
			r.Reasoning = value
		case "conclusion":
			r.Conclusion = value
		case "command":
			if isNull {
				r.Command = nil
			} else {
				cmd := value
				r.Command = &cmd
			}
		default:
			continue
		}
		found = true
	}
	return r, found
}
