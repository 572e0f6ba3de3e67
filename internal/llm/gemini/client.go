// Package gemini structures document text with the Gemini API through google.golang.org/genai.
package gemini

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/joseph-ayodele/doc-structurer/constants"
	"github.com/joseph-ayodele/doc-structurer/internal/common"
	"github.com/joseph-ayodele/doc-structurer/internal/llm"
)

const providerName = "Gemini"

type Config struct {
	BaseURL     string // empty = genai default endpoint
	Model       string // e.g., "gemini-2.5-flash"
	Temperature float32
	Timeout     time.Duration
	SchemaMode  constants.SchemaMode
}

// Client builds one genai client per call because the API key belongs to the caller's session.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.SchemaMode == "" {
		cfg.SchemaMode = constants.SchemaLenient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, httpClient: &http.Client{}, log: logger}
}

// Structure implements llm.Structurer with one generateContent call in JSON mode. The schema
// travels in the system instruction and is enforced locally by llm.Decode.
func (c *Client) Structure(ctx context.Context, req llm.StructureRequest) (llm.Response, error) {
	start := time.Now()
	log := common.LoggerFrom(ctx, c.log)
	tmpl := req.Template
	if tmpl == "" {
		tmpl = constants.TemplateKeyValue
	}
	resp := llm.Response{Provider: constants.ProviderGemini, Model: c.cfg.Model}

	if req.Credential.Empty() {
		log.Warn("llm.structure.missing_credential", "provider", resp.Provider)
		return resp, common.AuthenticationError("A Gemini API key is required.", nil)
	}

	log.Info("llm.structure.start",
		"provider", resp.Provider,
		"model", c.cfg.Model,
		"template", tmpl,
		"schema_mode", c.cfg.SchemaMode,
		"text_len", len(req.Text),
	)

	ctx, cancel := common.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	cc := &genai.ClientConfig{
		APIKey:     req.Credential.Reveal(),
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: c.httpClient,
	}
	if c.cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: c.cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		log.Error("llm.structure.client_error", "provider", resp.Provider, "error", err)
		return resp, common.ModelError("Could not create the Gemini client.", err)
	}

	system := llm.BuildSystemPrompt(tmpl) + "\n\n" + llm.BuildSchemaPrompt(tmpl, c.cfg.SchemaMode)
	gc := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(c.cfg.Temperature),
		ResponseMIMEType:  "application/json",
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
	}
	res, err := client.Models.GenerateContent(ctx, c.cfg.Model, []*genai.Content{
		genai.NewContentFromText(llm.BuildUserPrompt(req), genai.RoleUser),
	}, gc)
	if err != nil {
		log.Error("llm.structure.http_error",
			"provider", resp.Provider,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return resp, classify(err)
	}

	text := strings.TrimSpace(res.Text())
	if text == "" {
		reason := ""
		if len(res.Candidates) > 0 {
			reason = string(res.Candidates[0].FinishReason)
		}
		log.Error("llm.structure.empty_content", "finish_reason", reason)
		return resp, common.ModelError("The Gemini API returned an empty answer.", nil)
	}
	if res.ModelVersion != "" {
		resp.Model = res.ModelVersion
	}
	if u := res.UsageMetadata; u != nil {
		resp.Usage = &llm.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	resp.Raw = []byte(text)

	table, notes, err := llm.Decode(tmpl, c.cfg.SchemaMode, resp.Raw, log)
	resp.Notes = notes
	if err != nil {
		return resp, err
	}
	resp.Table = table

	log.Info("llm.structure.ok",
		"provider", resp.Provider,
		"model", resp.Model,
		"rows", table.Len(),
		"columns", len(table.Columns),
		"notes", len(notes),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return resp, nil
}

// classify maps a genai failure onto the shared status rules.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return llm.ClassifyStatus(providerName, apiErr.Code, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return llm.ClassifyStatus(providerName, apiErrPtr.Code, err)
	}
	return llm.ClassifyHTTPError(providerName, err)
}

var _ llm.Structurer = (*Client)(nil)
