// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"time"

	"github.com/jeranaias/aish/internal/model"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter exports transcripts as JSON. With IncludeMetadata off the
// output is a bare turn array in the history file format.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

type jsonDocument struct {
	Model      string           `json:"model,omitempty"`
	Policy     string           `json:"policy,omitempty"`
	Tokens     int              `json:"tokens"`
	Budget     int              `json:"budget"`
	ExportedAt time.Time        `json:"exported_at"`
	Turns      model.Transcript `json:"turns"`
}

// Export converts doc to indented JSON.
func (e *JSONExporter) Export(doc *Document) ([]byte, error) {
	list, err := turns(doc, e.options)
	if err != nil {
		return nil, err
	}
	if !e.options.IncludeMetadata {
		return json.MarshalIndent(list, "", "  ")
	}
	return json.MarshalIndent(jsonDocument{
		Model:      doc.Model,
		Policy:     doc.Policy,
		Tokens:     doc.Tokens,
		Budget:     doc.Budget,
		ExportedAt: doc.ExportedAt,
		Turns:      list,
	}, "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
