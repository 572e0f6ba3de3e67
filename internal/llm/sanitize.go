package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/doc-structurer/constants"
)

const noKey = "(no key)"

var (
	entriesAliases  = []string{"entries", "data", "items", "rows", "records", "results", "pairs"}
	keyAliases      = []string{"key", "label", "field", "name", "question", "header", "heading", "title"}
	valueAliases    = []string{"value", "answer", "text", "content", "detail", "details", "data"}
	commentsAliases = []string{"comments", "comment", "notes", "note", "context", "remarks"}
	fieldNameAlias  = []string{"name", "column", "key", "label", "field", "header"}
	fieldValueAlias = []string{"value", "text", "answer", "content", "data"}
)

// NormalizeAndSanitizeJSON repairs a model answer into the shape BuildSchema(tmpl, false) expects.
//   - strips markdown code fences and leading/trailing chatter around the JSON
//   - accepts a bare array or an aliased container key ("data", "items", ...)
//   - renames known synonyms (label -> key, answer -> value, notes -> comments)
//   - coerces numbers and booleans to their literal text, nested values to compact JSON
//   - folds unknown properties into comments instead of dropping them
//
// The returned notes describe every repair. Property order from the answer is preserved.
func NormalizeAndSanitizeJSON(tmpl constants.Template, raw []byte) ([]byte, []string, error) {
	doc, err := locateJSON(raw)
	if err != nil {
		return nil, nil, err
	}
	var notes []string
	if !bytes.Equal(bytes.TrimSpace(raw), doc) {
		notes = append(notes, "stripped text around json")
	}

	entries, note, err := locateEntries(tmpl, doc)
	if err != nil {
		return nil, notes, err
	}
	if note != "" {
		notes = append(notes, note)
	}

	out := make([]map[string]any, 0, len(entries))
	for i, e := range entries {
		var (
			m      map[string]any
			eNotes []string
		)
		switch tmpl {
		case constants.TemplateRecords:
			m, eNotes = sanitizeRecord(e)
		default:
			m, eNotes = sanitizeKeyValue(e)
		}
		for _, n := range eNotes {
			notes = append(notes, fmt.Sprintf("entry %d: %s", i, n))
		}
		if m == nil {
			notes = append(notes, fmt.Sprintf("entry %d: dropped (empty)", i))
			continue
		}
		out = append(out, m)
	}

	b, err := json.Marshal(map[string]any{"entries": out})
	if err != nil {
		return nil, notes, fmt.Errorf("sanitize: encode: %w", err)
	}
	return b, notes, nil
}

func locateJSON(raw []byte) ([]byte, error) {
	s := strings.TrimSpace(stripCodeFences(string(raw)))
	if json.Valid([]byte(s)) {
		return []byte(s), nil
	}
	if found := findFirstJSON(s); found != "" && json.Valid([]byte(found)) {
		return []byte(found), nil
	}
	return nil, fmt.Errorf("sanitize: no json document in model answer")
}

// locateEntries returns the raw entry list. A flat object (no list anywhere) is read as one
// key/value entry per property for the keyvalue template and as a single record otherwise.
func locateEntries(tmpl constants.Template, doc []byte) ([]json.RawMessage, string, error) {
	var list []json.RawMessage
	if err := json.Unmarshal(doc, &list); err == nil {
		return list, "wrapped top-level array", nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(doc, &obj); err != nil {
		return nil, "", fmt.Errorf("sanitize: decode: %w", err)
	}
	for _, alias := range entriesAliases {
		v, ok := obj[alias]
		if !ok {
			continue
		}
		if err := json.Unmarshal(v, &list); err == nil {
			if alias != "entries" {
				return list, alias + "->entries", nil
			}
			return list, "", nil
		}
	}

	if tmpl == constants.TemplateRecords {
		return []json.RawMessage{json.RawMessage(doc)}, "flat object read as one record", nil
	}
	keys := orderedKeys(doc)
	list = make([]json.RawMessage, 0, len(keys))
	for _, k := range keys {
		entry, _ := json.Marshal(map[string]json.RawMessage{"key": mustRaw(k), "value": obj[k]})
		list = append(list, entry)
	}
	return list, "flat object read as key/value pairs", nil
}

func sanitizeKeyValue(raw json.RawMessage) (map[string]any, []string) {
	obj, keys, ok := decodeObject(raw)
	if !ok {
		text, _ := coerceText(raw)
		if strings.TrimSpace(text) == "" {
			return nil, nil
		}
		return map[string]any{"key": noKey, "value": text}, []string{"non-object entry kept as value"}
	}

	var notes []string
	used := map[string]bool{}
	pick := func(aliases []string, canonical string) (string, bool, bool) {
		for _, a := range aliases {
			v, ok := obj[a]
			if !ok || used[a] {
				continue
			}
			used[a] = true
			if a != canonical {
				notes = append(notes, a+"->"+canonical)
			}
			text, isNull := coerceText(v)
			if !isNull && !isJSONString(v) {
				notes = append(notes, canonical+"(coerced)")
			}
			return text, isNull, true
		}
		return "", true, false
	}

	key, _, _ := pick(keyAliases, "key")
	value, _, _ := pick(valueAliases, "value")
	comments, commentsNull, hasComments := pick(commentsAliases, "comments")

	extras := foldExtras(obj, keys, used)
	if len(extras) > 0 {
		notes = append(notes, "unknown properties folded into comments")
		comments = joinNonEmpty("; ", append([]string{comments}, extras...)...)
		hasComments, commentsNull = true, false
	}

	key = strings.TrimSpace(key)
	if key == "" && strings.TrimSpace(value) == "" && strings.TrimSpace(comments) == "" {
		return nil, notes
	}
	if key == "" {
		key = noKey
		notes = append(notes, "empty key")
	}
	m := map[string]any{"key": key, "value": value}
	if hasComments && !commentsNull {
		m["comments"] = comments
	}
	return m, notes
}

func sanitizeRecord(raw json.RawMessage) (map[string]any, []string) {
	obj, keys, ok := decodeObject(raw)
	if !ok {
		text, _ := coerceText(raw)
		if strings.TrimSpace(text) == "" {
			return nil, nil
		}
		return map[string]any{
			"fields": []map[string]any{{"name": "Value", "value": text}},
		}, []string{"non-object entry kept as value"}
	}

	var notes []string
	used := map[string]bool{}
	var fields []map[string]any

	if rawFields, ok := obj["fields"]; ok {
		used["fields"] = true
		fields, notes = sanitizeFields(rawFields)
	} else {
		notes = append(notes, "flat record read as fields")
		for _, k := range keys {
			if isAlias(k, commentsAliases) {
				continue
			}
			used[k] = true
			text, _ := coerceText(obj[k])
			fields = append(fields, map[string]any{"name": k, "value": text})
		}
	}

	var comments string
	hasComments := false
	for _, a := range commentsAliases {
		v, ok := obj[a]
		if !ok {
			continue
		}
		used[a] = true
		text, isNull := coerceText(v)
		if !isNull {
			comments, hasComments = text, true
		}
		if a != "comments" {
			notes = append(notes, a+"->comments")
		}
		break
	}
	if extras := foldExtras(obj, keys, used); len(extras) > 0 {
		notes = append(notes, "unknown properties folded into comments")
		comments = joinNonEmpty("; ", append([]string{comments}, extras...)...)
		hasComments = true
	}

	if len(fields) == 0 && strings.TrimSpace(comments) == "" {
		return nil, notes
	}
	if fields == nil {
		fields = []map[string]any{}
	}
	m := map[string]any{"fields": fields}
	if hasComments {
		m["comments"] = comments
	}
	return m, notes
}

// sanitizeFields accepts [{"name","value"}...] or an object of name -> value.
func sanitizeFields(raw json.RawMessage) ([]map[string]any, []string) {
	var notes []string
	var out []map[string]any

	if obj, keys, ok := decodeObject(raw); ok {
		notes = append(notes, "fields object->list")
		for _, k := range keys {
			text, _ := coerceText(obj[k])
			out = append(out, map[string]any{"name": k, "value": text})
		}
		return out, notes
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		text, isNull := coerceText(raw)
		if isNull || strings.TrimSpace(text) == "" {
			return nil, []string{"fields unreadable"}
		}
		return []map[string]any{{"name": "Value", "value": text}}, []string{"fields unreadable; kept as value"}
	}
	for i, item := range list {
		fobj, _, ok := decodeObject(item)
		if !ok {
			text, _ := coerceText(item)
			out = append(out, map[string]any{"name": fmt.Sprintf("Field %d", i+1), "value": text})
			continue
		}
		name := firstText(fobj, fieldNameAlias)
		value := firstText(fobj, fieldValueAlias)
		if strings.TrimSpace(name) == "" {
			name = fmt.Sprintf("Field %d", i+1)
			notes = append(notes, "unnamed field")
		}
		out = append(out, map[string]any{"name": strings.TrimSpace(name), "value": value})
	}
	return out, notes
}

func foldExtras(obj map[string]json.RawMessage, keys []string, used map[string]bool) []string {
	var extras []string
	for _, k := range keys {
		if used[k] {
			continue
		}
		text, isNull := coerceText(obj[k])
		if isNull || strings.TrimSpace(text) == "" {
			continue
		}
		extras = append(extras, k+": "+text)
	}
	return extras
}

func firstText(obj map[string]json.RawMessage, aliases []string) string {
	for _, a := range aliases {
		if v, ok := obj[a]; ok {
			text, _ := coerceText(v)
			return text
		}
	}
	return ""
}

// coerceText renders a JSON value as cell text. Numbers keep their literal form ("250.00").
func coerceText(raw json.RawMessage) (text string, isNull bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return string(raw), false
	}
	switch t := v.(type) {
	case nil:
		return "", true
	case string:
		return t, false
	case json.Number:
		return t.String(), false
	case bool:
		return strconv.FormatBool(t), false
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return string(raw), false
		}
		return buf.String(), false
	}
}

func decodeObject(raw json.RawMessage) (map[string]json.RawMessage, []string, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, nil, false
	}
	return obj, orderedKeys(raw), true
}

// orderedKeys lists the top-level keys of a JSON object in document order.
func orderedKeys(raw []byte) []string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return nil
	}
	var keys []string
	seen := map[string]bool{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return keys
		}
		k, ok := tok.(string)
		if !ok {
			return keys
		}
		if !seen[k] {
			keys = append(keys, k)
			seen[k] = true
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return keys
		}
	}
	return keys
}

func isJSONString(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && t[0] == '"'
}

func isAlias(k string, aliases []string) bool {
	for _, a := range aliases {
		if k == a {
			return true
		}
	}
	return false
}

func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

func mustRaw(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if nl := strings.Index(s, "\n"); nl != -1 {
			s = s[nl+1:]
		}
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}

// findFirstJSON returns the first balanced {...} or [...] span, skipping braces inside strings.
func findFirstJSON(s string) string {
	start := strings.IndexAny(s, "{[")
	if start == -1 {
		return ""
	}
	open, closer := s[start], byte('}')
	if open == '[' {
		closer = ']'
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == closer:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
