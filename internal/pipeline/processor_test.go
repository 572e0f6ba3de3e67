package processor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/doc-structurer/constants"
	"github.com/joseph-ayodele/doc-structurer/internal/common"
	"github.com/joseph-ayodele/doc-structurer/internal/entity"
	"github.com/joseph-ayodele/doc-structurer/internal/export"
	"github.com/joseph-ayodele/doc-structurer/internal/extract"
	"github.com/joseph-ayodele/doc-structurer/internal/llm"
	"github.com/joseph-ayodele/doc-structurer/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubStructurer returns a fixed table and records the text it was given.
type stubStructurer struct {
	calls int
	text  string
	table entity.Table
	err   error
}

func (s *stubStructurer) Structure(_ context.Context, req llm.StructureRequest) (llm.Response, error) {
	s.calls++
	s.text = req.Text
	if s.err != nil {
		return llm.Response{}, s.err
	}
	return llm.Response{Provider: constants.ProviderOpenAI, Model: "stub", Table: s.table}, nil
}

type spyExporter struct {
	calls int
	next  export.Exporter
}

func (s *spyExporter) Export(ctx context.Context, table entity.Table, name string) (entity.ExportFile, error) {
	s.calls++
	return s.next.Export(ctx, table, name)
}

func invoiceTable() entity.Table {
	return entity.Table{
		Columns: []string{"Invoice No", "Amount"},
		Rows: []entity.Row{{
			Cells: []entity.Cell{
				{Column: "Invoice No", Value: "INV-1001"},
				{Column: "Amount", Value: "250.00"},
			},
			Comments: entity.StringPtr(""),
		}},
	}
}

func newTestProcessor(st *stubStructurer) (*Processor, *spyExporter) {
	log := quietLogger()
	exp := &spyExporter{next: export.NewService(log)}
	p := NewProcessor(log,
		extract.NewPDFExtractor(extract.Config{}, log),
		map[constants.Provider]llm.Structurer{constants.ProviderOpenAI: st},
		exp,
		Options{},
	)
	return p, exp
}

func TestProcess_InvoiceEndToEnd(t *testing.T) {
	st := &stubStructurer{table: invoiceTable()}
	p, exp := newTestProcessor(st)

	res, err := p.Process(context.Background(),
		entity.Document{Filename: "invoice.pdf", Data: testutil.InvoicePDF()},
		common.NewCredential("sk-test"),
		Options{Template: constants.TemplateRecords},
	)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	for _, tok := range []string{"INV-1001", "250.00"} {
		if !strings.Contains(st.text, tok) {
			t.Fatalf("structurer text missing %q: %q", tok, st.text)
		}
	}
	if exp.calls != 1 || res.RequestID == "" || res.Pages != 1 {
		t.Fatalf("unexpected result %+v", res)
	}

	f, err := excelize.OpenReader(bytes.NewReader(res.Export.Bytes))
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(constants.SheetName)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 data row, got %v", rows)
	}
	if !reflect.DeepEqual(rows[0], []string{"Invoice No", "Amount", "Comments"}) {
		t.Fatalf("unexpected header %v", rows[0])
	}
	if !reflect.DeepEqual(rows[1], []string{"INV-1001", "250.00"}) {
		t.Fatalf("unexpected data row %v", rows[1])
	}
}

func TestProcess_CorruptFileHaltsBeforeModel(t *testing.T) {
	st := &stubStructurer{table: invoiceTable()}
	p, exp := newTestProcessor(st)

	_, err := p.Process(context.Background(),
		entity.Document{Filename: "notes.pdf", Data: []byte("this is not a pdf")},
		common.NewCredential("sk-test"),
		Options{},
	)
	if !errors.Is(err, common.ErrExtraction) {
		t.Fatalf("expected extraction error, got %v", err)
	}
	if StageOf(err) != constants.StageExtract {
		t.Fatalf("expected extract stage, got %q", StageOf(err))
	}
	if st.calls != 0 || exp.calls != 0 {
		t.Fatalf("later stages must not run: structurer=%d exporter=%d", st.calls, exp.calls)
	}
}

func TestProcess_MissingCredential(t *testing.T) {
	st := &stubStructurer{table: invoiceTable()}
	p, exp := newTestProcessor(st)

	for _, cred := range []*common.Credential{nil, common.NewCredential("")} {
		_, err := p.Process(context.Background(),
			entity.Document{Filename: "invoice.pdf", Data: testutil.InvoicePDF()}, cred, Options{})
		if !errors.Is(err, common.ErrAuthentication) {
			t.Fatalf("expected authentication error, got %v", err)
		}
	}
	if st.calls != 0 || exp.calls != 0 {
		t.Fatalf("no stage may run without a credential: structurer=%d exporter=%d", st.calls, exp.calls)
	}
}

func TestProcess_ModelErrorStopsExport(t *testing.T) {
	st := &stubStructurer{err: common.RateLimitError("slow down", nil)}
	p, exp := newTestProcessor(st)

	_, err := p.Process(context.Background(),
		entity.Document{Filename: "invoice.pdf", Data: testutil.InvoicePDF()},
		common.NewCredential("sk-test"), Options{})
	if !errors.Is(err, common.ErrRateLimit) || StageOf(err) != constants.StageStructure {
		t.Fatalf("expected rate limit error from structure stage, got %v", err)
	}
	if common.HTTPStatus(err) != 429 {
		t.Fatalf("expected 429 mapping, got %d", common.HTTPStatus(err))
	}
	if exp.calls != 0 {
		t.Fatal("exporter must not run after a model failure")
	}
}

func TestProcess_UnknownProvider(t *testing.T) {
	p, _ := newTestProcessor(&stubStructurer{})
	_, err := p.Process(context.Background(),
		entity.Document{Filename: "invoice.pdf", Data: testutil.InvoicePDF()},
		common.NewCredential("sk-test"), Options{Provider: constants.ProviderGemini})
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
