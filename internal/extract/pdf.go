package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/joseph-ayodele/doc-structurer/internal/common"
)

const methodPDFText = "pdf-text"

var pdfMagic = []byte("%PDF-")

var disablePdfcpuConfigDir sync.Once

type Config struct {
	MaxPages int // 0 = no limit
}

// PDFExtractor reads the embedded text layer of a PDF. Scanned, image-only PDFs have no text
// layer and fail with an extraction error.
type PDFExtractor struct {
	cfg    Config
	logger *slog.Logger
}

func NewPDFExtractor(cfg Config, logger *slog.Logger) *PDFExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	// pdfcpu otherwise creates a config dir under the user's home on first use.
	disablePdfcpuConfigDir.Do(api.DisableConfigDir)
	return &PDFExtractor{cfg: cfg, logger: logger}
}

// Extract returns all text of data in page order. Every page is followed by a newline.
func (e *PDFExtractor) Extract(ctx context.Context, data []byte) (res Result, err error) {
	start := time.Now()
	res.Method = methodPDFText
	log := common.LoggerFrom(ctx, e.logger)

	if err := ctx.Err(); err != nil {
		return res, err
	}
	if len(data) == 0 {
		return res, common.ExtractionError("The uploaded file is empty.", nil)
	}
	if !bytes.HasPrefix(bytes.TrimLeft(data[:min(len(data), 1024)], "\x00\t\r\n "), pdfMagic) {
		log.Warn("pdf.extract.not_pdf", "bytes", len(data))
		return res, common.ExtractionError("The uploaded file is not a PDF document.", nil)
	}

	// ledongthuc/pdf panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			log.Error("pdf.extract.panic", "recovered", fmt.Sprint(r))
			res = Result{Method: methodPDFText, Duration: time.Since(start)}
			err = common.ExtractionError("The PDF is corrupt and could not be read.", fmt.Errorf("pdf reader panic: %v", r))
		}
	}()

	pf, err := e.preflight(data)
	if err != nil {
		log.Warn("pdf.extract.encrypted", "error", err)
		return res, err
	}
	if pf.warning != "" {
		res.Warnings = append(res.Warnings, pf.warning)
		log.Warn("pdf.extract.preflight_failed", "warning", pf.warning)
	}
	if pf.decrypted {
		log.Info("pdf.extract.decrypted")
		data = pf.data
	}
	if e.cfg.MaxPages > 0 && pf.pages > e.cfg.MaxPages {
		return res, common.ExtractionError(
			fmt.Sprintf("The PDF has %d pages; at most %d are accepted.", pf.pages, e.cfg.MaxPages), nil)
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		if errors.Is(err, pdf.ErrInvalidPassword) || isEncryptionError(err) {
			log.Warn("pdf.extract.encrypted", "error", err)
			return res, errEncrypted(err)
		}
		log.Warn("pdf.extract.open_failed", "error", err)
		return res, common.ExtractionError("The PDF is corrupt and could not be read.", err)
	}

	numPages := reader.NumPage()
	if e.cfg.MaxPages > 0 && numPages > e.cfg.MaxPages {
		return res, common.ExtractionError(
			fmt.Sprintf("The PDF has %d pages; at most %d are accepted.", numPages, e.cfg.MaxPages), nil)
	}

	fonts := make(map[string]*pdf.Font)
	var b strings.Builder
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		p := reader.Page(i)
		if p.V.IsNull() {
			res.Warnings = append(res.Warnings, fmt.Sprintf("page %d: missing page object", i))
			continue
		}
		for _, name := range p.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := p.Font(name)
				fonts[name] = &f
			}
		}
		text, pageErr := p.GetPlainText(fonts)
		if pageErr != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("page %d: %v", i, pageErr))
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}

	res.Text = b.String()
	res.Pages = numPages
	res.Duration = time.Since(start)

	if strings.TrimSpace(res.Text) == "" {
		log.Warn("pdf.extract.no_text", "pages", numPages, "warnings", len(res.Warnings))
		return res, common.ExtractionError(
			"The PDF contains no extractable text (it may be a scanned image without OCR).", nil)
	}

	log.Info("pdf.extract.ok",
		"pages", numPages,
		"text_len", len(res.Text),
		"warnings", len(res.Warnings),
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

type preflightResult struct {
	data      []byte
	pages     int
	decrypted bool
	warning   string
}

// preflight reads the document with pdfcpu to count pages and detect encryption. A file
// that opens with the empty user password (owner password only) is decrypted so the text
// reader gets plain bytes. pdfcpu validates more strictly than the text reader, so other
// failures here are reported as a warning rather than rejecting the document.
func (e *PDFExtractor) preflight(data []byte) (preflightResult, error) {
	out := preflightResult{data: data}
	pctx, err := api.ReadAndValidate(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		if isPasswordError(err) {
			return out, errEncrypted(err)
		}
		out.warning = "pdfcpu preflight: " + err.Error()
		return out, nil
	}
	out.pages = pctx.PageCount
	if pctx.Encrypt == nil {
		return out, nil
	}

	var buf bytes.Buffer
	if err := api.Decrypt(bytes.NewReader(data), &buf, model.NewDefaultConfiguration()); err != nil {
		return out, errEncrypted(err)
	}
	out.data = buf.Bytes()
	out.decrypted = true
	return out, nil
}

func errEncrypted(cause error) error {
	return common.ExtractionError("The PDF is encrypted and cannot be read without a password.", cause)
}

func isPasswordError(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "password")
}

// isEncryptionError matches the text reader's errors for encryption schemes it cannot open.
func isEncryptionError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "encryption") || strings.Contains(msg, "encrypted") || strings.Contains(msg, "password")
}

var _ TextExtractor = (*PDFExtractor)(nil)
