package export

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/doc-structurer/constants"
	"github.com/joseph-ayodele/doc-structurer/internal/common"
	"github.com/joseph-ayodele/doc-structurer/internal/entity"
)

const (
	minColWidth     = 10.0
	defaultMaxWidth = 50.0
	headerFill      = "4F81BD"
)

// maxColWidth caps auto-sized columns by header name.
var maxColWidth = map[string]float64{
	constants.ColumnKey:      30,
	constants.ColumnValue:    50,
	constants.ColumnComments: 40,
}

// Exporter is Stage 3: rows -> spreadsheet bytes.
type Exporter interface {
	Export(ctx context.Context, table entity.Table, name string) (entity.ExportFile, error)
}

// Service renders a Table as a single-sheet XLSX workbook.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// Export writes table to an in-memory workbook. It is all-or-nothing: any failure returns a
// FormattingError and no file. name defaults to Structured_Output.xlsx.
func (s *Service) Export(ctx context.Context, table entity.Table, name string) (entity.ExportFile, error) {
	start := time.Now()
	log := common.LoggerFrom(ctx, s.logger)
	name = FileName(name)

	if err := ctx.Err(); err != nil {
		return entity.ExportFile{}, err
	}

	header := table.Header(constants.ColumnComments)
	records := make([][]string, 0, table.Len())
	for i := 0; i < table.Len(); i++ {
		rec := table.Record(i)
		for c, v := range rec {
			if n := utf8.RuneCountInString(v); n > excelize.TotalCellChars {
				log.Warn("export.xlsx.cell_too_long", "row", i+1, "column", header[c], "chars", n)
				return entity.ExportFile{}, common.FormattingError(
					fmt.Sprintf("Row %d column %q has %d characters; a spreadsheet cell holds at most %d.",
						i+1, header[c], n, excelize.TotalCellChars), nil)
			}
		}
		records = append(records, rec)
	}

	b, err := s.render(header, records)
	if err != nil {
		log.Error("export.xlsx.failed", "error", err)
		return entity.ExportFile{}, common.FormattingError("The spreadsheet could not be created.", err)
	}

	log.Info("export.xlsx.ok",
		"file", name,
		"rows", len(records),
		"columns", len(header),
		"bytes", len(b),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return entity.ExportFile{
		Name:        name,
		ContentType: constants.MimeXLSX,
		Bytes:       b,
		Rows:        len(records),
	}, nil
}

func (s *Service) render(header []string, records [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const sheet = constants.SheetName
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	index, err := f.GetSheetIndex(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)

	headerStyle, bodyStyle, err := styles(f)
	if err != nil {
		return nil, err
	}

	for c, h := range header {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		if err := f.SetCellStr(sheet, cell, h); err != nil {
			return nil, fmt.Errorf("header %s: %w", cell, err)
		}
	}
	for r, rec := range records {
		for c, v := range rec {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellStr(sheet, cell, v); err != nil {
				return nil, fmt.Errorf("cell %s: %w", cell, err)
			}
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(header))
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", headerStyle); err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	if len(records) > 0 {
		last := fmt.Sprintf("%s%d", lastCol, len(records)+1)
		if err := f.SetCellStyle(sheet, "A2", last, bodyStyle); err != nil {
			return nil, fmt.Errorf("body style: %w", err)
		}
	}

	for c, h := range header {
		col, _ := excelize.ColumnNumberToName(c + 1)
		if err := f.SetColWidth(sheet, col, col, columnWidth(h, c, records)); err != nil {
			return nil, fmt.Errorf("width %s: %w", col, err)
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}
	filterRange := fmt.Sprintf("A1:%s%d", lastCol, len(records)+1)
	if err := f.AutoFilter(sheet, filterRange, nil); err != nil {
		return nil, fmt.Errorf("autofilter: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func styles(f *excelize.File) (header, body int, err error) {
	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{headerFill}, Pattern: 1},
		Border:    border,
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return 0, 0, fmt.Errorf("header style: %w", err)
	}
	body, err = f.NewStyle(&excelize.Style{
		Border:    border,
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return 0, 0, fmt.Errorf("body style: %w", err)
	}
	return header, body, nil
}

// columnWidth sizes a column to its longest line, clamped to the column's cap.
func columnWidth(header string, col int, records [][]string) float64 {
	longest := longestLine(header)
	for _, rec := range records {
		if col < len(rec) {
			longest = max(longest, longestLine(rec[col]))
		}
	}
	limit, ok := maxColWidth[header]
	if !ok {
		limit = defaultMaxWidth
	}
	return min(max(float64(longest+2), minColWidth), limit)
}

func longestLine(s string) int {
	n := 0
	for _, line := range strings.Split(s, "\n") {
		n = max(n, utf8.RuneCountInString(line))
	}
	return n
}

// FileName returns name as a safe .xlsx base name, or the default export name.
func FileName(name string) string {
	name = strings.TrimSpace(filepath.Base(strings.ReplaceAll(name, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		return constants.DefaultExportFilename
	}
	if !strings.EqualFold(filepath.Ext(name), ".xlsx") {
		name = strings.TrimSuffix(name, filepath.Ext(name)) + ".xlsx"
	}
	return name
}

var _ Exporter = (*Service)(nil)
