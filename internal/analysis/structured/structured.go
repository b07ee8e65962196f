// Package structured turns structured-output provider replies into validated
// Go values. Replies may wrap the JSON object in prose or code fences.
package structured

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tiger/mediation-pipeline/internal/runtime/provider/contracts"
)

// ErrNoJSONObject is returned when a reply contains no JSON object.
var ErrNoJSONObject = errors.New("no json object in reply")

// Schema is a compiled response schema.
type Schema struct {
	name     string
	raw      string
	compiled *jsonschema.Schema
}

// Compile compiles a JSON Schema document under name.
func Compile(name string, raw string) (*Schema, error) {
	compiled, err := jsonschema.CompileString(name+".schema.json", raw)
	if err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", name, err)
	}
	return &Schema{name: name, raw: raw, compiled: compiled}, nil
}

// MustCompile is Compile for package-level schemas.
func MustCompile(name string, raw string) *Schema {
	s, err := Compile(name, raw)
	if err != nil {
		panic(err)
	}
	return s
}

// Response returns the schema in provider-request form.
func (s *Schema) Response() contracts.ResponseSchema {
	return contracts.ResponseSchema{Name: s.name, JSON: s.raw}
}

// Decode extracts the JSON object from reply, validates it, and unmarshals it
// into out. Every failure is a malformed-response error for providerID.
func (s *Schema) Decode(providerID string, reply []byte, out any) error {
	payload, err := ExtractJSON(reply)
	if err != nil {
		return contracts.Malformed(providerID, err)
	}
	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return contracts.Malformed(providerID, err)
	}
	if err := s.compiled.Validate(doc); err != nil {
		return contracts.Malformed(providerID, fmt.Errorf("%s schema: %w", s.name, err))
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return contracts.Malformed(providerID, err)
	}
	return nil
}

// ExtractJSON returns the first balanced top-level JSON object in reply.
func ExtractJSON(reply []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(reply)
	if json.Valid(trimmed) && len(trimmed) > 0 && trimmed[0] == '{' {
		return trimmed, nil
	}

	for start := bytes.IndexByte(trimmed, '{'); start >= 0; {
		if end := matchBrace(trimmed[start:]); end > 0 {
			candidate := trimmed[start : start+end]
			if json.Valid(candidate) {
				return candidate, nil
			}
		}
		next := bytes.IndexByte(trimmed[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil, ErrNoJSONObject
}

// matchBrace returns the length of the brace-balanced prefix of b, which must
// start with '{', or -1 when it never closes.
func matchBrace(b []byte) int {
	depth := 0
	inString := false
	escaped := false
	for i, c := range b {
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}
