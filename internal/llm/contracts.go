package llm

import (
	"context"

	"github.com/joseph-ayodele/doc-structurer/constants"
	"github.com/joseph-ayodele/doc-structurer/internal/common"
	"github.com/joseph-ayodele/doc-structurer/internal/entity"
)

// StructureRequest is one model call: the extracted text plus the caller's credential.
type StructureRequest struct {
	Text         string
	Credential   *common.Credential
	Template     constants.Template
	FilenameHint string
}

// Usage reports token accounting when the provider returns it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the model answer as returned (Raw) and as mapped onto rows (Table).
type Response struct {
	Provider constants.Provider
	Model    string
	Raw      []byte
	Table    entity.Table
	Notes    []string // lenient-mode repairs applied before mapping
	Usage    *Usage
}

// Structurer is Stage 2: text -> structured rows via a hosted model.
type Structurer interface {
	Structure(ctx context.Context, req StructureRequest) (Response, error)
}
