package processor

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/doc-structurer/constants"
	"github.com/joseph-ayodele/doc-structurer/internal/common"
	"github.com/joseph-ayodele/doc-structurer/internal/entity"
	"github.com/joseph-ayodele/doc-structurer/internal/export"
	"github.com/joseph-ayodele/doc-structurer/internal/extract"
	"github.com/joseph-ayodele/doc-structurer/internal/llm"
)

// Options selects the provider, template and download name for one run.
type Options struct {
	Provider   constants.Provider
	Template   constants.Template
	ExportName string
}

// Result is everything a front end shows after a successful run.
type Result struct {
	RequestID string
	Filename  string
	Pages     int
	Warnings  []string
	Response  llm.Response
	Export    entity.ExportFile
}

// Processor coordinates text extraction, then the model call, then the spreadsheet export.
type Processor struct {
	Logger    *slog.Logger
	Extract   *ExtractStage
	Structure *StructureStage
	Export    *ExportStage
	Defaults  Options
}

func NewProcessor(
	logger *slog.Logger,
	tx extract.TextExtractor,
	structurers map[constants.Provider]llm.Structurer,
	exp export.Exporter,
	defaults Options,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if defaults.Provider == "" {
		defaults.Provider = constants.ProviderOpenAI
	}
	if defaults.Template == "" {
		defaults.Template = constants.TemplateKeyValue
	}
	return &Processor{
		Logger:    logger,
		Extract:   &ExtractStage{TextExtractor: tx, Logger: logger},
		Structure: &StructureStage{Structurers: structurers, Logger: logger},
		Export:    &ExportStage{Exporter: exp, Logger: logger},
		Defaults:  defaults,
	}
}

// Process runs the three stages in order and stops at the first failure. A missing credential
// fails before the document is read. Every error is a *StageError wrapping a common.AppError.
func (p *Processor) Process(ctx context.Context, doc entity.Document, cred *common.Credential, opts Options) (Result, error) {
	start := time.Now()
	ctx, rid := common.EnsureRequestID(ctx)
	log := common.LoggerFrom(ctx, p.Logger)
	opts = p.withDefaults(opts)
	res := Result{RequestID: rid, Filename: doc.Filename}

	log.Info("pipeline.process.start",
		"file", doc.Filename,
		"bytes", len(doc.Data),
		"provider", opts.Provider,
		"template", opts.Template,
	)

	if cred.Empty() {
		log.Warn("pipeline.process.missing_credential", "provider", opts.Provider)
		return res, &StageError{
			Stage: constants.StageStructure,
			Err:   common.AuthenticationError("Please enter your API key before processing a document.", nil),
		}
	}

	text, err := p.Extract.Run(ctx, doc)
	if err != nil {
		return res, err
	}
	res.Pages = text.Pages
	res.Warnings = text.Warnings

	resp, err := p.Structure.Run(ctx, opts.Provider, llm.StructureRequest{
		Text:         text.Text,
		Credential:   cred,
		Template:     opts.Template,
		FilenameHint: doc.Filename,
	})
	if err != nil {
		return res, err
	}
	res.Response = resp

	file, err := p.Export.Run(ctx, resp.Table, opts.ExportName)
	if err != nil {
		return res, err
	}
	res.Export = file

	log.Info("pipeline.process.ok",
		"file", doc.Filename,
		"rows", file.Rows,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (p *Processor) withDefaults(opts Options) Options {
	if opts.Provider == "" {
		opts.Provider = p.Defaults.Provider
	}
	if opts.Template == "" {
		opts.Template = p.Defaults.Template
	}
	if opts.ExportName == "" {
		opts.ExportName = p.Defaults.ExportName
	}
	return opts
}
