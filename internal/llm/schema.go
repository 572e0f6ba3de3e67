package llm

import (
	"github.com/joseph-ayodele/doc-structurer/constants"
)

// BuildSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map. We pass it to the
// provider as a structured output constraint and also use it locally to validate.
// strict requires every property, which is what OpenAI strict structured outputs demand.
func BuildSchema(tmpl constants.Template, strict bool) map[string]any {
	var item map[string]any
	switch tmpl {
	case constants.TemplateRecords:
		item = recordItem(strict)
	default:
		item = keyValueItem(strict)
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"entries": map[string]any{"type": "array", "items": item},
		},
		"required": []string{"entries"},
	}
}

func keyValueItem(strict bool) map[string]any {
	required := []string{"key", "value"}
	if strict {
		required = append(required, "comments")
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"key":      map[string]any{"type": "string"},
			"value":    map[string]any{"type": "string"},
			"comments": commentsProp(),
		},
		"required": required,
	}
}

func recordItem(strict bool) map[string]any {
	required := []string{"fields"}
	if strict {
		required = append(required, "comments")
	}
	field := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"name":  map[string]any{"type": "string"},
			"value": map[string]any{"type": "string"},
		},
		"required": []string{"name", "value"},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"fields":   map[string]any{"type": "array", "items": field},
			"comments": commentsProp(),
		},
		"required": required,
	}
}

func commentsProp() map[string]any {
	return map[string]any{"type": []string{"string", "null"}}
}
