// Package corpus loads the document collection and turns it into chunks.
package corpus

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/Aman-CERP/ragcontext/internal/chunk"
)

// Default metadata for documents that omit a field.
const (
	DefaultAuthor = "Juan Domingo Perón"
	DefaultKind   = "discurso"
	DefaultDate   = "Desconocida"
	DefaultTopic  = "General"
)

// DefaultMetadata returns the fallback metadata of the archive.
func DefaultMetadata() chunk.Metadata {
	return chunk.Metadata{
		Author: DefaultAuthor,
		Kind:   DefaultKind,
		Date:   DefaultDate,
		Topic:  DefaultTopic,
	}
}

// Document is a source text with descriptive metadata.
//
// On disk a document uses Spanish keys (autor, tipo, fecha, tema, texto);
// English keys are accepted as well. The text may be a single string or an
// array of lines.
type Document struct {
	Author string
	Kind   string
	Date   string
	Topic  string
	Lines  []string
}

type documentJSON struct {
	Autor  string          `json:"autor,omitempty"`
	Tipo   string          `json:"tipo,omitempty"`
	Fecha  string          `json:"fecha,omitempty"`
	Tema   string          `json:"tema,omitempty"`
	Texto  json.RawMessage `json:"texto,omitempty"`
	Author string          `json:"author,omitempty"`
	Kind   string          `json:"kind,omitempty"`
	Date   string          `json:"date,omitempty"`
	Topic  string          `json:"topic,omitempty"`
	Text   json.RawMessage `json:"text,omitempty"`
}

// UnmarshalJSON accepts both key sets and both text shapes.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw documentJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.Author = firstNonEmpty(raw.Autor, raw.Author)
	d.Kind = firstNonEmpty(raw.Tipo, raw.Kind)
	d.Date = firstNonEmpty(raw.Fecha, raw.Date)
	d.Topic = firstNonEmpty(raw.Tema, raw.Topic)

	text := raw.Texto
	if len(bytes.TrimSpace(text)) == 0 || string(text) == "null" {
		text = raw.Text
	}
	lines, err := decodeLines(text)
	if err != nil {
		return err
	}
	d.Lines = lines
	return nil
}

// MarshalJSON writes the Spanish key set with text as an array of lines.
func (d Document) MarshalJSON() ([]byte, error) {
	lines := d.Lines
	if lines == nil {
		lines = []string{}
	}
	return json.Marshal(struct {
		Autor string   `json:"autor"`
		Tipo  string   `json:"tipo"`
		Fecha string   `json:"fecha"`
		Tema  string   `json:"tema"`
		Texto []string `json:"texto"`
	}{d.Author, d.Kind, d.Date, d.Topic, lines})
}

// decodeLines reads a string, an array of values, or nothing. Non-string
// array elements keep their JSON text.
func decodeLines(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return []string{s}, nil
	}
	if raw[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		lines := make([]string, 0, len(items))
		for _, item := range items {
			t := strings.TrimSpace(string(item))
			if t == "null" {
				continue
			}
			var s string
			if err := json.Unmarshal(item, &s); err == nil {
				lines = append(lines, s)
				continue
			}
			lines = append(lines, t)
		}
		return lines, nil
	}
	return []string{string(raw)}, nil
}

// WithDefaults fills empty metadata fields.
func (d Document) WithDefaults(def chunk.Metadata) Document {
	d.Author = firstNonEmpty(d.Author, def.Author)
	d.Kind = firstNonEmpty(d.Kind, def.Kind)
	d.Date = firstNonEmpty(d.Date, def.Date)
	d.Topic = firstNonEmpty(d.Topic, def.Topic)
	return d
}

// Meta returns the document metadata.
func (d Document) Meta() chunk.Metadata {
	return chunk.Metadata{Author: d.Author, Kind: d.Kind, Date: d.Date, Topic: d.Topic}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
