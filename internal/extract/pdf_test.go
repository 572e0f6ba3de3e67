package extract

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/joseph-ayodele/doc-structurer/internal/common"
	"github.com/joseph-ayodele/doc-structurer/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExtract_TextLayer(t *testing.T) {
	e := NewPDFExtractor(Config{}, quietLogger())

	res, err := e.Extract(context.Background(), testutil.InvoicePDF())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if strings.TrimSpace(res.Text) == "" {
		t.Fatal("expected non-empty text")
	}
	for _, tok := range []string{"INV-1001", "250.00"} {
		if !strings.Contains(res.Text, tok) {
			t.Fatalf("expected text to contain %q, got %q", tok, res.Text)
		}
	}
	if res.Pages != 1 {
		t.Fatalf("expected 1 page, got %d", res.Pages)
	}
	if res.Method != "pdf-text" {
		t.Fatalf("unexpected method %q", res.Method)
	}
}

func TestExtract_MultiPageKeepsOrder(t *testing.T) {
	e := NewPDFExtractor(Config{}, quietLogger())
	data := testutil.BuildPDF([]string{"first page body"}, []string{"second page body"})

	res, err := e.Extract(context.Background(), data)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	first := strings.Index(res.Text, "first")
	second := strings.Index(res.Text, "second")
	if first < 0 || second < 0 || first > second {
		t.Fatalf("expected pages in order, got %q", res.Text)
	}
	if !strings.HasSuffix(res.Text, "\n") {
		t.Fatalf("expected each page to end with a newline, got %q", res.Text)
	}
}

func TestExtract_Failures(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "not a pdf", data: []byte("PK\x03\x04 this is a zip, not a pdf")},
		{name: "plain text", data: []byte("Invoice No: INV-1001\nAmount: 250.00\n")},
		{name: "truncated pdf", data: testutil.InvoicePDF()[:40]},
		{name: "no text layer", data: testutil.BuildPDF(nil)},
		{name: "too many pages", cfg: Config{MaxPages: 1}, data: testutil.BuildPDF([]string{"a"}, []string{"b"})},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			e := NewPDFExtractor(tt.cfg, quietLogger())
			res, err := e.Extract(context.Background(), tt.data)
			if err == nil {
				t.Fatalf("expected error, got text %q", res.Text)
			}
			if !errors.Is(err, common.ErrExtraction) {
				t.Fatalf("expected extraction error, got %v", err)
			}
			if strings.TrimSpace(res.Text) != "" {
				t.Fatalf("failure must not carry usable text, got %q", res.Text)
			}
		})
	}
}

func TestExtract_ContextCanceled(t *testing.T) {
	e := NewPDFExtractor(Config{}, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := e.Extract(ctx, testutil.InvoicePDF()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func encryptPDF(t *testing.T, data []byte, conf *model.Configuration) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := api.Encrypt(bytes.NewReader(data), &buf, conf); err != nil {
		t.Fatalf("encrypt fixture: %v", err)
	}
	return buf.Bytes()
}

func TestExtract_UserPasswordRequired(t *testing.T) {
	tests := map[string]*model.Configuration{
		"rc4-128": model.NewRC4Configuration("secret", "owner", 128),
		"aes-256": model.NewAESConfiguration("secret", "owner", 256),
	}
	for name, conf := range tests {
		t.Run(name, func(t *testing.T) {
			data := encryptPDF(t, testutil.InvoicePDF(), conf)
			_, err := NewPDFExtractor(Config{}, quietLogger()).Extract(context.Background(), data)
			if !errors.Is(err, common.ErrExtraction) {
				t.Fatalf("expected extraction error, got %v", err)
			}
			if msg := common.UserMessage(err); !strings.Contains(msg, "encrypted") {
				t.Fatalf("expected the encrypted message, got %q", msg)
			}
		})
	}
}

func TestExtract_OwnerPasswordOnly(t *testing.T) {
	tests := map[string]*model.Configuration{
		"rc4-128": model.NewRC4Configuration("", "owner", 128),
		"aes-256": model.NewAESConfiguration("", "owner", 256),
	}
	for name, conf := range tests {
		t.Run(name, func(t *testing.T) {
			conf.Permissions = model.PermissionsAll
			data := encryptPDF(t, testutil.InvoicePDF(), conf)
			res, err := NewPDFExtractor(Config{}, quietLogger()).Extract(context.Background(), data)
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if !strings.Contains(res.Text, "INV-1001") || res.Pages != 1 {
				t.Fatalf("unexpected result pages=%d text=%q", res.Pages, res.Text)
			}
		})
	}
}
