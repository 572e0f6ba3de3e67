// Package app wires configuration into the pipeline shared by the CLI and the daemon.
package app

import (
	"io"
	"log/slog"

	"github.com/joseph-ayodele/doc-structurer/constants"
	"github.com/joseph-ayodele/doc-structurer/internal/common"
	"github.com/joseph-ayodele/doc-structurer/internal/export"
	"github.com/joseph-ayodele/doc-structurer/internal/extract"
	"github.com/joseph-ayodele/doc-structurer/internal/llm"
	"github.com/joseph-ayodele/doc-structurer/internal/llm/gemini"
	"github.com/joseph-ayodele/doc-structurer/internal/llm/openai"
	processor "github.com/joseph-ayodele/doc-structurer/internal/pipeline"
)

// NewLogger returns a JSON slog logger and installs it as the default.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// Structurers builds one client per supported provider.
func Structurers(cfg common.LLMConfig, logger *slog.Logger) map[constants.Provider]llm.Structurer {
	return map[constants.Provider]llm.Structurer{
		constants.ProviderOpenAI: openai.NewClient(openai.Config{
			BaseURL:     cfg.OpenAIBaseURL,
			Model:       cfg.OpenAIModel,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
			SchemaMode:  cfg.SchemaMode,
		}, logger),
		constants.ProviderGemini: gemini.NewClient(gemini.Config{
			Model:       cfg.GeminiModel,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
			SchemaMode:  cfg.SchemaMode,
		}, logger),
	}
}

// NewProcessor assembles extractor, providers and exporter from cfg.
func NewProcessor(cfg *common.Config, logger *slog.Logger) *processor.Processor {
	return processor.NewProcessor(logger,
		extract.NewPDFExtractor(extract.Config{MaxPages: cfg.PDF.MaxPages}, logger),
		Structurers(cfg.LLM, logger),
		export.NewService(logger),
		processor.Options{
			Provider:   cfg.LLM.Provider,
			Template:   cfg.LLM.Template,
			ExportName: cfg.Export.Filename,
		},
	)
}
