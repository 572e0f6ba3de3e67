package common

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/joseph-ayodele/doc-structurer/constants"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"LLM_PROVIDER", "LLM_TEMPLATE", "LLM_SCHEMA_MODE", "LLM_TIMEOUT", "MAX_UPLOAD_MB", "EXPORT_FILENAME", "OPENAI_MODEL", "LLM_TEMPERATURE", "PDF_MAX_PAGES", "HTTP_ADDR"} {
		t.Setenv(k, "")
	}
	cfg := LoadConfig()

	if cfg.LLM.Provider != constants.ProviderOpenAI || cfg.LLM.Template != constants.TemplateKeyValue {
		t.Fatalf("unexpected defaults: %s", cfg.LLM)
	}
	if cfg.LLM.SchemaMode != constants.SchemaLenient {
		t.Fatalf("schema mode default %q", cfg.LLM.SchemaMode)
	}
	if cfg.LLM.OpenAIModel != "gpt-4o" || cfg.LLM.Timeout != 120*time.Second {
		t.Fatalf("unexpected llm defaults: %+v", cfg.LLM)
	}
	if cfg.Export.Filename != constants.DefaultExportFilename {
		t.Fatalf("export filename %q", cfg.Export.Filename)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "GEMINI")
	t.Setenv("LLM_TEMPLATE", "records")
	t.Setenv("LLM_SCHEMA_MODE", "strict")
	t.Setenv("LLM_TIMEOUT", "30s")
	t.Setenv("MAX_UPLOAD_MB", "8")
	t.Setenv("LLM_TEMPERATURE", "0.5")

	cfg := LoadConfig()
	if cfg.LLM.Provider != constants.ProviderGemini || cfg.LLM.Template != constants.TemplateRecords {
		t.Fatalf("unexpected overrides: %s", cfg.LLM)
	}
	if cfg.LLM.SchemaMode != constants.SchemaStrict || cfg.LLM.Timeout != 30*time.Second {
		t.Fatalf("unexpected overrides: %+v", cfg.LLM)
	}
	if cfg.Server.MaxUploadMB != 8 || cfg.LLM.Temperature != 0.5 {
		t.Fatalf("unexpected numeric overrides: %+v %+v", cfg.Server, cfg.LLM)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := LoadConfig()
	cfg.Server.MaxUploadMB = 0
	cfg.LLM.Temperature = 3
	cfg.Export.Filename = "out.csv"

	err := cfg.Validate()
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	for _, want := range []string{"MAX_UPLOAD_MB", "LLM_TEMPERATURE", "EXPORT_FILENAME"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestAPIKeyEnv(t *testing.T) {
	if APIKeyEnv(constants.ProviderGemini) != "GEMINI_API_KEY" || APIKeyEnv(constants.ProviderOpenAI) != "OPENAI_API_KEY" {
		t.Fatal("unexpected key env names")
	}
}

func TestConfigValidateRejectsUnknownChoices(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "gemni")
	t.Setenv("LLM_SCHEMA_MODE", "strcit")
	t.Setenv("LLM_TEMPLATE", "grid")

	cfg := LoadConfig()
	if cfg.LLM.SchemaMode == constants.SchemaLenient || cfg.LLM.Provider == constants.ProviderOpenAI {
		t.Fatalf("mistyped values must not fall back to defaults: %s", cfg.LLM)
	}
	err := cfg.Validate()
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	for _, want := range []string{"LLM_PROVIDER", "LLM_SCHEMA_MODE", "LLM_TEMPLATE"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}
