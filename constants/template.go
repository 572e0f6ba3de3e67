package constants

import (
	"strings"
)

// Template selects the instruction sent to the model and the table layout built from its answer.
type Template string

const (
	TemplateKeyValue Template = "keyvalue"
	TemplateRecords  Template = "records"
)

var allTemplates = []Template{
	TemplateKeyValue,
	TemplateRecords,
}

// SchemaMode decides how strictly the model answer is checked before it is mapped to rows.
type SchemaMode string

const (
	SchemaLenient SchemaMode = "lenient"
	SchemaStrict  SchemaMode = "strict"
)

// Provider names a hosted model API.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

func TemplatesAsStringSlice() []string {
	result := make([]string, len(allTemplates))
	for i, t := range allTemplates {
		result[i] = string(t)
	}
	return result
}

// CanonicalizeTemplate maps user input (flags, form values, env) onto a Template.
func CanonicalizeTemplate(input string) (Template, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return TemplateKeyValue, true
	}

	synonyms := map[string]Template{
		"kv":        TemplateKeyValue,
		"key-value": TemplateKeyValue,
		"key_value": TemplateKeyValue,
		"pairs":     TemplateKeyValue,
		"record":    TemplateRecords,
		"table":     TemplateRecords,
		"rows":      TemplateRecords,
	}
	if t, ok := synonyms[normalized]; ok {
		return t, true
	}
	for _, t := range allTemplates {
		if normalized == string(t) {
			return t, true
		}
	}
	return TemplateKeyValue, false
}

func CanonicalizeSchemaMode(input string) (SchemaMode, bool) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "", string(SchemaLenient), "permissive", "best-effort":
		return SchemaLenient, true
	case string(SchemaStrict):
		return SchemaStrict, true
	default:
		return SchemaLenient, false
	}
}

func CanonicalizeProvider(input string) (Provider, bool) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "", string(ProviderOpenAI), "gpt":
		return ProviderOpenAI, true
	case string(ProviderGemini), "google":
		return ProviderGemini, true
	default:
		return ProviderOpenAI, false
	}
}
