// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/aish/internal/model"
	"github.com/jeranaias/aish/internal/util"
)

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Document is a transcript plus the metadata printed alongside it.
type Document struct {
	Transcript model.Transcript
	Model      string
	Policy     string
	Tokens     int
	Budget     int
	ExportedAt time.Time
}

// Exporter renders a Document in one format.
type Exporter interface {
	Export(doc *Document) ([]byte, error)
	FileExtension() string
	MimeType() string
}

// ErrEmptyTranscript is returned when there is nothing to export.
var ErrEmptyTranscript = errors.New("transcript has no turns")

// Options configures export behavior.
type Options struct {
	// OutputDir is where ExportToFile writes. Default: current directory.
	OutputDir string

	// IncludeSystem includes the system prompt.
	IncludeSystem bool

	// IncludeMetadata adds a header with model, policy and token counts.
	IncludeMetadata bool
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:       ".",
		IncludeMetadata: true,
	}
}

// Formats lists the names accepted by ForFormat.
func Formats() []string {
	return []string{"markdown", "json"}
}

// ForFormat returns the exporter for a format name or file extension.
func ForFormat(format string, opts *Options) (Exporter, error) {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "md", "markdown":
		return NewMarkdownExporter(opts), nil
	case "json":
		return NewJSONExporter(opts), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q (supported: %s)",
			format, strings.Join(Formats(), ", "))
	}
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ExportToFile renders doc and writes it under opts.OutputDir. It returns the
// path written.
func ExportToFile(doc *Document, exporter Exporter, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if doc.ExportedAt.IsZero() {
		doc.ExportedAt = time.Now()
	}

	content, err := exporter.Export(doc)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	filename := fmt.Sprintf("aish_transcript_%s%s",
		doc.ExportedAt.Format("20060102_150405"),
		exporter.FileExtension())

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	// SECURITY: transcripts contain command output.
	outputPath := filepath.Join(opts.OutputDir, filename)
	if err := util.AtomicWriteFile(outputPath, content, 0600); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return outputPath, nil
}

// turns returns the turns to export, honoring IncludeSystem.
func turns(doc *Document, opts *Options) (model.Transcript, error) {
	if doc == nil || len(doc.Transcript) == 0 {
		return nil, ErrEmptyTranscript
	}
	if opts.IncludeSystem {
		return doc.Transcript, nil
	}
	out := make(model.Transcript, 0, len(doc.Transcript))
	for _, t := range doc.Transcript {
		if !t.IsSystem() {
			out = append(out, t)
		}
	}
	return out, nil
}
