package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/doc-structurer/constants"
	"github.com/joseph-ayodele/doc-structurer/internal/common"
	"github.com/joseph-ayodele/doc-structurer/internal/entity"
)

type keyValueAnswer struct {
	Entries []struct {
		Key      string  `json:"key"`
		Value    string  `json:"value"`
		Comments *string `json:"comments"`
	} `json:"entries"`
}

type recordsAnswer struct {
	Entries []struct {
		Fields []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"fields"`
		Comments *string `json:"comments"`
	} `json:"entries"`
}

// Decode checks a model answer and maps it onto a Table.
// Strict mode validates content as-is. Lenient mode sanitizes first and returns the repair notes.
// Every failure is a ModelError.
func Decode(tmpl constants.Template, mode constants.SchemaMode, content []byte, logger *slog.Logger) (entity.Table, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	strict := mode == constants.SchemaStrict
	schema := BuildSchema(tmpl, strict)

	var notes []string
	body := content
	if !strict {
		cleaned, sNotes, err := NormalizeAndSanitizeJSON(tmpl, content)
		if err != nil {
			logger.Error("llm.decode.sanitize_failed", "error", err, "content_len", len(content))
			return entity.Table{}, nil, common.ModelError("The model returned an answer that is not JSON.", err)
		}
		if len(sNotes) > 0 {
			logger.Warn("llm.decode.lenient_sanitize_applied", "notes", sNotes)
		}
		body, notes = cleaned, sNotes
	}

	if err := ValidateJSONAgainstSchema(schema, body); err != nil {
		logger.Error("llm.decode.schema_validation_failed", "mode", mode, "error", err)
		return entity.Table{}, notes, common.ModelError("The model answer does not match the expected structure.", err)
	}

	var (
		table entity.Table
		err   error
	)
	switch tmpl {
	case constants.TemplateRecords:
		table, err = mapRecords(body)
	default:
		table, err = mapKeyValue(body, strict)
	}
	if err != nil {
		logger.Error("llm.decode.map_failed", "error", err)
		return entity.Table{}, notes, common.ModelError("The model answer could not be mapped to rows.", err)
	}
	return table, notes, nil
}

func mapKeyValue(body []byte, strict bool) (entity.Table, error) {
	var ans keyValueAnswer
	if err := json.Unmarshal(body, &ans); err != nil {
		return entity.Table{}, fmt.Errorf("unmarshal entries: %w", err)
	}
	table := entity.Table{
		Columns: []string{constants.ColumnKey, constants.ColumnValue},
		Rows:    make([]entity.Row, 0, len(ans.Entries)),
	}
	for i, e := range ans.Entries {
		key := strings.TrimSpace(e.Key)
		if key == "" {
			if strict {
				return entity.Table{}, fmt.Errorf("entry %d: empty key", i)
			}
			key = noKey
		}
		table.Rows = append(table.Rows, entity.Row{
			Cells: []entity.Cell{
				{Column: constants.ColumnKey, Value: key},
				{Column: constants.ColumnValue, Value: e.Value},
			},
			Comments: e.Comments,
		})
	}
	return table, nil
}

// mapRecords builds columns from the union of field names in first-seen order. A repeated
// name inside one record is suffixed (" (2)", " (3)") so no value is lost.
func mapRecords(body []byte) (entity.Table, error) {
	var ans recordsAnswer
	if err := json.Unmarshal(body, &ans); err != nil {
		return entity.Table{}, fmt.Errorf("unmarshal entries: %w", err)
	}
	var table entity.Table
	seen := map[string]bool{}
	table.Rows = make([]entity.Row, 0, len(ans.Entries))
	for _, e := range ans.Entries {
		row := entity.Row{Comments: e.Comments}
		used := map[string]bool{}
		for i, f := range e.Fields {
			name := strings.TrimSpace(f.Name)
			if name == "" || strings.EqualFold(name, constants.ColumnComments) {
				name = fmt.Sprintf("Field %d", i+1)
			}
			if used[name] {
				base := name
				for n := 2; used[name]; n++ {
					name = fmt.Sprintf("%s (%d)", base, n)
				}
			}
			used[name] = true
			if !seen[name] {
				seen[name] = true
				table.Columns = append(table.Columns, name)
			}
			row.Cells = append(row.Cells, entity.Cell{Column: name, Value: f.Value})
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}
