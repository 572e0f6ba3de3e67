package entity

// Document is an uploaded PDF for one pipeline run.
type Document struct {
	Filename string
	Data     []byte
}

// ExportFile is the rendered spreadsheet produced once per run.
type ExportFile struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Bytes       []byte `json:"-"`
	Rows        int    `json:"rows"`
}
