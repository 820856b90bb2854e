// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/aish/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports transcripts to Markdown.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export renders doc as Markdown. Shell commands and their output are put in
// fenced blocks.
func (e *MarkdownExporter) Export(doc *Document) ([]byte, error) {
	list, err := turns(doc, e.options)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder

	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		sb.WriteString(fmt.Sprintf("model: %s\n", escapeYAML(doc.Model)))
		sb.WriteString(fmt.Sprintf("policy: %s\n", escapeYAML(doc.Policy)))
		sb.WriteString(fmt.Sprintf("tokens: %d\n", doc.Tokens))
		sb.WriteString(fmt.Sprintf("budget: %d\n", doc.Budget))
		sb.WriteString(fmt.Sprintf("turns: %d\n", len(list)))
		sb.WriteString(fmt.Sprintf("exported: %s\n", doc.ExportedAt.Format(time.RFC3339)))
		sb.WriteString("generator: aish\n")
		sb.WriteString("---\n\n")
	}

	sb.WriteString("# aish transcript\n\n")

	for i, t := range list {
		sb.WriteString(fmt.Sprintf("### %s\n\n", t.Role.DisplayName()))
		sb.WriteString(formatContent(t))
		sb.WriteString("\n\n")

		if i < len(list)-1 {
			sb.WriteString("---\n\n")
		}
	}

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

// formatContent fences direct shell commands and assistant replies.
func formatContent(t model.Turn) string {
	content := strings.TrimRight(t.Content, "\n")
	switch {
	case t.Role == model.RoleUser && !strings.HasPrefix(content, "/") &&
		!strings.HasPrefix(content, "Error encountered: "):
		return fence("sh", content)
	case t.Role == model.RoleAssistant && strings.HasPrefix(content, "{"):
		return fence("json", content)
	default:
		return content
	}
}

// fence wraps s in a code block whose fence is longer than any backtick run
// inside s.
func fence(lang, s string) string {
	ticks := "```"
	for strings.Contains(s, ticks) {
		ticks += "`"
	}
	return ticks + lang + "\n" + s + "\n" + ticks
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

// escapeYAML quotes frontmatter values that contain YAML syntax.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		s = strings.ReplaceAll(s, "\r", "\\r")
		return fmt.Sprintf("\"%s\"", s)
	}
	return s
}
