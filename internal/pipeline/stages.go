package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/doc-structurer/constants"
	"github.com/joseph-ayodele/doc-structurer/internal/common"
	"github.com/joseph-ayodele/doc-structurer/internal/entity"
	"github.com/joseph-ayodele/doc-structurer/internal/export"
	"github.com/joseph-ayodele/doc-structurer/internal/extract"
	"github.com/joseph-ayodele/doc-structurer/internal/llm"
)

// StageError records which stage of a run failed. It unwraps to the stage's error so
// errors.Is(err, common.ErrExtraction) and friends keep working.
type StageError struct {
	Stage constants.Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// StageOf returns the failed stage of err, or "" when err did not come from a stage.
func StageOf(err error) constants.Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// ExtractStage runs the text extractor on the uploaded document.
type ExtractStage struct {
	TextExtractor extract.TextExtractor
	Logger        *slog.Logger
}

func (s *ExtractStage) Run(ctx context.Context, doc entity.Document) (extract.Result, error) {
	log := common.LoggerFrom(ctx, s.Logger)
	res, err := s.TextExtractor.Extract(ctx, doc.Data)
	if err != nil {
		log.Error("pipeline.extract.failed", "file", doc.Filename, "error", err)
		return res, &StageError{Stage: constants.StageExtract, Err: err}
	}
	log.Info("pipeline.extract.ok",
		"file", doc.Filename,
		"method", res.Method,
		"pages", res.Pages,
		"text_len", len(res.Text),
		"warnings", len(res.Warnings),
	)
	return res, nil
}

// StructureStage sends the extracted text to the selected provider.
type StructureStage struct {
	Structurers map[constants.Provider]llm.Structurer
	Logger      *slog.Logger
}

func (s *StructureStage) Run(ctx context.Context, provider constants.Provider, req llm.StructureRequest) (llm.Response, error) {
	log := common.LoggerFrom(ctx, s.Logger)
	st, ok := s.Structurers[provider]
	if !ok {
		err := common.InvalidInputError(fmt.Sprintf("Provider %q is not configured.", provider))
		return llm.Response{}, &StageError{Stage: constants.StageStructure, Err: err}
	}
	resp, err := st.Structure(ctx, req)
	if err != nil {
		log.Error("pipeline.structure.failed", "provider", provider, "kind", common.KindOf(err), "error", err)
		return resp, &StageError{Stage: constants.StageStructure, Err: err}
	}
	log.Info("pipeline.structure.ok",
		"provider", provider,
		"model", resp.Model,
		"rows", resp.Table.Len(),
		"notes", len(resp.Notes),
	)
	return resp, nil
}

// ExportStage renders the rows into the download file.
type ExportStage struct {
	Exporter export.Exporter
	Logger   *slog.Logger
}

func (s *ExportStage) Run(ctx context.Context, table entity.Table, name string) (entity.ExportFile, error) {
	log := common.LoggerFrom(ctx, s.Logger)
	file, err := s.Exporter.Export(ctx, table, name)
	if err != nil {
		log.Error("pipeline.export.failed", "error", err)
		return file, &StageError{Stage: constants.StageExport, Err: err}
	}
	log.Info("pipeline.export.ok", "file", file.Name, "rows", file.Rows, "bytes", len(file.Bytes))
	return file, nil
}
