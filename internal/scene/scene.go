// Package scene validates and normalizes drawing documents. Drawing payloads
// are opaque to the rest of the system; this package only checks their
// outer shape and strips malformed collaborator state.
package scene

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/starford/mural/internal/apperr"
)

// DocumentType is written into new drawing files. Excalidraw only imports
// documents carrying this exact value.
const DocumentType = "excalidraw"

const schemaJSON = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["elements"],
	"properties": {
		"type":     {"type": "string"},
		"version":  {"type": "number"},
		"source":   {"type": "string"},
		"elements": {"type": "array", "items": {"type": "object"}},
		"appState": {"type": "object"},
		"files":    {"type": "object"}
	}
}`

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func documentSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(schemaJSON))
		if err != nil {
			compileErr = err
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("drawing.json", doc); err != nil {
			compileErr = err
			return
		}
		compiled, compileErr = c.Compile("drawing.json")
	})
	return compiled, compileErr
}

// Empty returns a minimal empty drawing document.
func Empty() []byte {
	return []byte(`{
  "type": "` + DocumentType + `",
  "version": 2,
  "source": "mural",
  "elements": [],
  "appState": {
    "collaborators": []
  },
  "files": {}
}
`)
}

// Validate checks data against the drawing document shape.
func Validate(data []byte) error {
	sch, err := documentSchema()
	if err != nil {
		return fmt.Errorf("scene: compile schema: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return apperr.New(apperr.ErrMalformedData, "scene: validate", "empty document")
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("scene: parse: %w: %v", apperr.ErrMalformedData, err)
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("scene: %w: %v", apperr.ErrMalformedData, err)
	}
	return nil
}

// Normalize validates data and removes a non-array appState.collaborators
// field. Documents that need no change are returned unchanged.
func Normalize(data []byte) ([]byte, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("scene: %w: %v", apperr.ErrMalformedData, err)
	}
	rawState, ok := top["appState"]
	if !ok {
		return data, nil
	}
	var state map[string]json.RawMessage
	if err := json.Unmarshal(rawState, &state); err != nil {
		return nil, fmt.Errorf("scene: appState: %w: %v", apperr.ErrMalformedData, err)
	}
	collab, ok := state["collaborators"]
	if !ok || isArray(collab) {
		return data, nil
	}

	delete(state, "collaborators")
	encoded, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("scene: encode appState: %w", err)
	}
	top["appState"] = encoded
	out, err := json.MarshalIndent(top, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("scene: encode: %w", err)
	}
	return out, nil
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

// Text returns the text of every text element, newline separated. It is
// used for search and never fails: undecodable documents yield "".
func Text(data []byte) string {
	var doc struct {
		Elements []struct {
			Type    string `json:"type"`
			Text    string `json:"text"`
			Deleted bool   `json:"isDeleted"`
		} `json:"elements"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return ""
	}
	var parts []string
	for _, el := range doc.Elements {
		if el.Type == "text" && !el.Deleted && el.Text != "" {
			parts = append(parts, el.Text)
		}
	}
	return strings.Join(parts, "\n")
}
