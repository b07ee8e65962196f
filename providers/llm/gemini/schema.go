package gemini

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"google.golang.org/genai"
)

// jsonSchema is the subset of JSON Schema the response schemas use.
type jsonSchema struct {
	Type        string                 `json:"type"`
	Description string                 `json:"description"`
	Properties  map[string]*jsonSchema `json:"properties"`
	Required    []string               `json:"required"`
	Items       *jsonSchema            `json:"items"`
	Enum        []string               `json:"enum"`
	Minimum     *float64               `json:"minimum"`
	Maximum     *float64               `json:"maximum"`
}

// ToGenaiSchema converts a JSON Schema document to the genai response schema.
func ToGenaiSchema(raw string) (*genai.Schema, error) {
	var doc jsonSchema
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("gemini schema decode: %w", err)
	}
	return convert(&doc)
}

func convert(s *jsonSchema) (*genai.Schema, error) {
	if s == nil {
		return nil, nil
	}
	out := &genai.Schema{
		Description: s.Description,
		Required:    s.Required,
		Enum:        s.Enum,
		Minimum:     s.Minimum,
		Maximum:     s.Maximum,
	}
	switch strings.ToLower(s.Type) {
	case "object":
		out.Type = genai.TypeObject
	case "array":
		out.Type = genai.TypeArray
	case "string":
		out.Type = genai.TypeString
	case "integer":
		out.Type = genai.TypeInteger
	case "number":
		out.Type = genai.TypeNumber
	case "boolean":
		out.Type = genai.TypeBoolean
	default:
		return nil, fmt.Errorf("gemini schema: unsupported type %q", s.Type)
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			converted, err := convert(prop)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			out.Properties[name] = converted
		}
		out.PropertyOrdering = orderedKeys(s)
	}
	if s.Items != nil {
		items, err := convert(s.Items)
		if err != nil {
			return nil, fmt.Errorf("items: %w", err)
		}
		out.Items = items
	}
	return out, nil
}

// orderedKeys lists required properties first, then the rest alphabetically.
func orderedKeys(s *jsonSchema) []string {
	keys := make([]string, 0, len(s.Properties))
	seen := make(map[string]bool, len(s.Properties))
	for _, name := range s.Required {
		if _, ok := s.Properties[name]; ok && !seen[name] {
			keys = append(keys, name)
			seen[name] = true
		}
	}
	rest := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}
