// Package macro holds the macro document format and the engine that plays
// a document back.
package macro

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"markestedt/macroflow/action"
)

const (
	// DocumentVersion is written into every saved document
	DocumentVersion  = "1.0"
	DefaultDelay     = 100
	DefaultLoopCount = 1
	DefaultStopKey   = "f12"
)

// Format is the on-disk encoding of a document
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatFor picks the encoding from a file extension
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Document is a serialized action list plus its playback settings
type Document struct {
	Version   string          `json:"version"`
	Delay     int             `json:"delay"`
	LoopCount int             `json:"loop_count"`
	StopKey   string          `json:"stop_key"`
	Actions   []action.Action `json:"actions"`

	// Skipped lists entries that could not be decoded on load
	Skipped []SkippedAction `json:"-"`
}

// SkippedAction records one entry dropped while parsing
type SkippedAction struct {
	Index int
	Err   error
}

// NewDocument returns an empty document with default settings
func NewDocument() *Document {
	return &Document{
		Version:   DocumentVersion,
		Delay:     DefaultDelay,
		LoopCount: DefaultLoopCount,
		StopKey:   DefaultStopKey,
		Actions:   []action.Action{},
	}
}

type rawDocument struct {
	Version   string            `json:"version"`
	Delay     *int              `json:"delay"`
	LoopCount *int              `json:"loop_count"`
	StopKey   string            `json:"stop_key"`
	Actions   []json.RawMessage `json:"actions"`
}

// Parse decodes a document. Entries with an unknown or malformed action are
// skipped with a warning instead of failing the whole load.
func Parse(data []byte, format Format, logger *slog.Logger) (*Document, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if format == FormatYAML {
		converted, err := yamlToJSON(data)
		if err != nil {
			return nil, err
		}
		data = converted
	}

	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse macro document: %w", err)
	}

	doc := NewDocument()
	if raw.Version != "" {
		doc.Version = raw.Version
	}
	if raw.Delay != nil {
		doc.Delay = max(*raw.Delay, 0)
	}
	if raw.LoopCount != nil {
		doc.LoopCount = *raw.LoopCount
	}
	if raw.StopKey != "" {
		doc.StopKey = strings.ToLower(raw.StopKey)
	}

	for i, entry := range raw.Actions {
		a, err := action.Decode(entry)
		if err != nil {
			logger.Warn("Skipping action", "index", i, "error", err)
			doc.Skipped = append(doc.Skipped, SkippedAction{Index: i, Err: err})
			continue
		}
		doc.Actions = append(doc.Actions, a)
	}

	return doc, nil
}

// Marshal encodes the document in the given format
func (d *Document) Marshal(format Format) ([]byte, error) {
	out := *d
	if out.Version == "" {
		out.Version = DocumentVersion
	}
	if out.Actions == nil {
		out.Actions = []action.Action{}
	}

	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode macro document: %w", err)
	}
	if format == FormatJSON {
		return data, nil
	}

	var tree any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	data, err = yaml.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("failed to encode macro document as yaml: %w", err)
	}
	return data, nil
}

// ReadFile loads a document, choosing the format from the extension
func ReadFile(path string, logger *slog.Logger) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read macro file: %w", err)
	}
	return Parse(data, FormatFor(path), logger)
}

// WriteFile saves a document, choosing the format from the extension
func (d *Document) WriteFile(path string) error {
	data, err := d.Marshal(FormatFor(path))
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create macro directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write macro file: %w", err)
	}
	return nil
}

func yamlToJSON(data []byte) ([]byte, error) {
	var tree any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to parse yaml macro document: %w", err)
	}
	if tree == nil {
		tree = map[string]any{}
	}

	out, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("failed to convert yaml macro document: %w", err)
	}
	return out, nil
}
