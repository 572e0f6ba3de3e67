package entity

// Cell is one named value inside a Row.
type Cell struct {
	Column string `json:"column"`
	Value  string `json:"value"`
}

// Row is one structured record taken from the document. Comments is nil when the model
// supplied nothing for it and non-nil (possibly "") when it did.
type Row struct {
	Cells    []Cell  `json:"cells"`
	Comments *string `json:"comments,omitempty"`
}

// Get returns the value stored under column, or "" when the row has no such cell.
func (r Row) Get(column string) string {
	for _, c := range r.Cells {
		if c.Column == column {
			return c.Value
		}
	}
	return ""
}

// CommentsText returns the comments or "".
func (r Row) CommentsText() string {
	if r.Comments == nil {
		return ""
	}
	return *r.Comments
}

// Table is the ordered row sequence of one pipeline run. Columns lists the named columns
// in display order; the Comments column is implied and always rendered last.
type Table struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Len returns the number of data rows.
func (t Table) Len() int { return len(t.Rows) }

// Header returns Columns followed by the comments column name.
func (t Table) Header(commentsColumn string) []string {
	h := make([]string, 0, len(t.Columns)+1)
	h = append(h, t.Columns...)
	return append(h, commentsColumn)
}

// Record returns the row as display strings aligned with Header.
func (t Table) Record(i int) []string {
	r := t.Rows[i]
	out := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		out = append(out, r.Get(c))
	}
	return append(out, r.CommentsText())
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }
