package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// BodyKind tags the variant held by a Body
type BodyKind int

const (
	BodyEmpty BodyKind = iota
	BodyStructured
	BodyRaw
)

func (k BodyKind) String() string {
	switch k {
	case BodyStructured:
		return "structured"
	case BodyRaw:
		return "raw"
	default:
		return "empty"
	}
}

// Body is a response payload, either structured JSON or raw text
type Body struct {
	Kind BodyKind
	JSON json.RawMessage
	Text string
}

// Structured wraps a JSON document
func Structured(data json.RawMessage) Body {
	return Body{Kind: BodyStructured, JSON: data}
}

// Raw wraps plain text
func Raw(text string) Body {
	return Body{Kind: BodyRaw, Text: text}
}

// ParseBody classifies a payload. JSON objects and arrays become Structured,
// a JSON string literal becomes Raw with its unquoted content, anything else
// is kept verbatim as Raw.
func ParseBody(data []byte) Body {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Body{Kind: BodyEmpty}
	}
	if !json.Valid(trimmed) {
		return Raw(string(data))
	}

	switch trimmed[0] {
	case '{', '[':
		return Structured(json.RawMessage(append([]byte(nil), trimmed...)))
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return Raw(s)
		}
	}
	return Raw(string(trimmed))
}

// Display renders the body for the user: two-space indented JSON for
// structured bodies, the text itself otherwise.
func (b Body) Display() string {
	switch b.Kind {
	case BodyStructured:
		var buf bytes.Buffer
		if err := json.Indent(&buf, b.JSON, "", "  "); err != nil {
			return string(b.JSON)
		}
		return buf.String()
	case BodyRaw:
		return b.Text
	default:
		return ""
	}
}

// Decode unmarshals a structured body into v
func (b Body) Decode(v any) error {
	if b.Kind != BodyStructured {
		return &ValidationError{Field: "body", Message: "not a JSON document"}
	}
	return json.Unmarshal(b.JSON, v)
}

// MarshalJSON exports structured bodies as JSON and raw ones as strings
func (b Body) MarshalJSON() ([]byte, error) {
	switch b.Kind {
	case BodyStructured:
		return b.JSON, nil
	case BodyRaw:
		return json.Marshal(b.Text)
	default:
		return []byte("null"), nil
	}
}

// MarshalYAML exports the decoded document so yaml output stays readable
func (b Body) MarshalYAML() (any, error) {
	switch b.Kind {
	case BodyStructured:
		var v any
		if err := json.Unmarshal(b.JSON, &v); err != nil {
			return nil, err
		}
		return v, nil
	case BodyRaw:
		return b.Text, nil
	default:
		return nil, nil
	}
}

// String returns a single line form, used in logs and CSV
func (b Body) String() string {
	if b.Kind == BodyStructured {
		return string(b.JSON)
	}
	return strings.TrimSpace(b.Text)
}
