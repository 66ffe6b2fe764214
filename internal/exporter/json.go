package exporter

import (
	"encoding/json"
	"fmt"
	"io"

	"dateresample/pkg/contracts/domain"
)

// JSONWriter writes the table wire form.
type JSONWriter struct {
	Indent string
}

// NewJSONWriter creates a JSON writer that indents with two spaces.
func NewJSONWriter() *JSONWriter {
	return &JSONWriter{Indent: "  "}
}

// Write encodes t as JSON to w.
func (j *JSONWriter) Write(w io.Writer, t *domain.Table) error {
	enc := json.NewEncoder(w)
	if j.Indent != "" {
		enc.SetIndent("", j.Indent)
	}
	if err := enc.Encode(t); err != nil {
		return fmt.Errorf("failed to encode table: %w", err)
	}
	return nil
}
