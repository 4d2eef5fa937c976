package failure

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Body is the payload of an error response: NoBody, RawBody or FieldsBody.
type Body interface {
	Lines() []string
}

// NoBody is an empty response body.
type NoBody struct{}

func (NoBody) Lines() []string { return nil }

// RawBody is a body that is not a JSON object.
type RawBody string

func (b RawBody) Lines() []string { return []string{string(b)} }

// Field is one key/value pair of a JSON object body.
type Field struct {
	Name  string
	Value string
}

// FieldsBody is a JSON object body, in the order the server wrote its keys.
type FieldsBody []Field

func (b FieldsBody) Lines() []string {
	lines := make([]string, len(b))
	for i, f := range b {
		lines[i] = f.Name + ": " + f.Value
	}
	return lines
}

// ParseBody decodes an error response body. JSON objects keep their key
// order; a JSON string is unquoted; anything else is kept verbatim.
func ParseBody(data []byte) Body {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return NoBody{}
	}

	if trimmed[0] == '{' {
		if fields, err := decodeObject(trimmed); err == nil {
			return fields
		}
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return RawBody(s)
		}
	}

	return RawBody(string(data))
}

func decodeObject(data []byte) (FieldsBody, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("not an object")
	}

	fields := FieldsBody{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected key %v", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		fields = append(fields, Field{Name: name, Value: formatValue(raw)})
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after object")
	}
	return fields, nil
}

// formatValue prints strings unquoted and everything else, null included, as
// compact JSON.
func formatValue(raw json.RawMessage) string {
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
