package openai

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/joseph-ayodele/doc-structurer/constants"
	"github.com/joseph-ayodele/doc-structurer/internal/common"
	"github.com/joseph-ayodele/doc-structurer/internal/llm"
)

const providerName = "OpenAI"

type chatCompletion struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
			Refusal *string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *llm.Usage `json:"usage"`
}

// Structure implements llm.Structurer with one chat/completions call.
// Strict mode asks for json_schema structured output; lenient mode asks for a JSON object and
// sends the schema as a system message.
func (c *Client) Structure(ctx context.Context, req llm.StructureRequest) (llm.Response, error) {
	start := time.Now()
	log := common.LoggerFrom(ctx, c.log)
	tmpl := req.Template
	if tmpl == "" {
		tmpl = constants.TemplateKeyValue
	}
	resp := llm.Response{Provider: constants.ProviderOpenAI, Model: c.cfg.Model}

	if req.Credential.Empty() {
		log.Warn("llm.structure.missing_credential", "provider", resp.Provider)
		return resp, common.AuthenticationError("An OpenAI API key is required.", nil)
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

	body := c.buildBody(tmpl, req)
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + req.Credential.Reveal()}

	raw, status, err := llm.SendJSON(ctx, c.httpClient, endpoint, body, headers, c.log)
	if err != nil {
		log.Error("llm.structure.http_error",
			"provider", resp.Provider,
			"status", status,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return resp, llm.ClassifyHTTPError(providerName, err)
	}

	var cc chatCompletion
	if err := json.Unmarshal(raw, &cc); err != nil {
		log.Error("llm.structure.decode_error",
			"error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return resp, common.ModelError("The OpenAI API returned an unreadable response.", err)
	}
	if len(cc.Choices) == 0 {
		log.Error("llm.structure.no_choices", "elapsed_ms", time.Since(start).Milliseconds())
		return resp, common.ModelError("The OpenAI API returned no answer.", nil)
	}
	choice := cc.Choices[0]
	if choice.Message.Refusal != nil && strings.TrimSpace(*choice.Message.Refusal) != "" {
		log.Warn("llm.structure.refusal", "refusal", *choice.Message.Refusal)
		return resp, common.ModelError("The model refused to process the document: "+*choice.Message.Refusal, nil)
	}
	if choice.FinishReason == "length" {
		log.Warn("llm.structure.truncated", "finish_reason", choice.FinishReason)
		return resp, common.ModelError("The model answer was cut off before it was complete. Try a shorter document.", nil)
	}
	if choice.Message.Content == nil || strings.TrimSpace(*choice.Message.Content) == "" {
		log.Error("llm.structure.empty_content", "finish_reason", choice.FinishReason)
		return resp, common.ModelError("The OpenAI API returned an empty answer.", nil)
	}

	if cc.Model != "" {
		resp.Model = cc.Model
	}
	resp.Usage = cc.Usage
	resp.Raw = []byte(strings.TrimSpace(*choice.Message.Content))

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

func (c *Client) buildBody(tmpl constants.Template, req llm.StructureRequest) map[string]any {
	messages := []map[string]any{
		{"role": "system", "content": llm.BuildSystemPrompt(tmpl)},
	}
	body := map[string]any{"model": c.cfg.Model}
	if supportsTemperature(c.cfg.Model) {
		body["temperature"] = c.cfg.Temperature
	}

	if c.cfg.SchemaMode == constants.SchemaStrict {
		body["response_format"] = map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "structured_" + string(tmpl),
				"strict": true,
				"schema": llm.BuildSchema(tmpl, true),
			},
		}
	} else {
		body["response_format"] = map[string]any{"type": "json_object"}
		messages = append(messages, map[string]any{"role": "system", "content": llm.BuildSchemaPrompt(tmpl, c.cfg.SchemaMode)})
	}
	messages = append(messages, map[string]any{"role": "user", "content": llm.BuildUserPrompt(req)})
	body["messages"] = messages
	return body
}

var _ llm.Structurer = (*Client)(nil)
