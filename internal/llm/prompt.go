package llm

import (
	_ "embed"
	"encoding/json"
	"strings"

	"github.com/joseph-ayodele/doc-structurer/constants"
)

var (
	//go:embed prompts/keyvalue.txt
	keyValuePrompt string
	//go:embed prompts/records.txt
	recordsPrompt string
)

// BuildSystemPrompt returns the fixed instruction for tmpl.
func BuildSystemPrompt(tmpl constants.Template) string {
	switch tmpl {
	case constants.TemplateRecords:
		return strings.TrimSpace(recordsPrompt)
	default:
		return strings.TrimSpace(keyValuePrompt)
	}
}

// BuildSchemaPrompt embeds the JSON Schema for providers without native structured output.
func BuildSchemaPrompt(tmpl constants.Template, mode constants.SchemaMode) string {
	return "Return ONLY JSON that matches this JSON Schema. No markdown, no code fences.\nJSON Schema:\n" +
		mustJSON(BuildSchema(tmpl, mode == constants.SchemaStrict))
}

// BuildUserPrompt carries the whole document text; nothing is truncated.
func BuildUserPrompt(req StructureRequest) string {
	var b strings.Builder
	if name := strings.TrimSpace(req.FilenameHint); name != "" {
		b.WriteString("Filename: ")
		b.WriteString(name)
		b.WriteString("\n")
	}
	b.WriteString("Here is the document content:\n\n")
	b.WriteString(req.Text)
	return b.String()
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
