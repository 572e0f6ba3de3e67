package constants

import "strings"

const (
	MimePDF  = "application/pdf"
	MimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// DefaultExportFilename is the download name offered for every export.
	DefaultExportFilename = "Structured_Output.xlsx"
	// SheetName is the single worksheet written by the exporter.
	SheetName = "Extracted Data"

	ColumnKey      = "Key"
	ColumnValue    = "Value"
	ColumnComments = "Comments"
)

// AllowedExtensions holds the upload extensions accepted by the front ends.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
