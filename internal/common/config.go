package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/doc-structurer/constants"
)

// Config holds all application configuration
type Config struct {
	Server ServerConfig
	PDF    PDFConfig
	LLM    LLMConfig
	Export ExportConfig
}

// ServerConfig holds front-end related configuration
type ServerConfig struct {
	HTTPAddr     string
	GRPCAddr     string
	MaxUploadMB  int
	SessionTTL   time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PDFConfig holds text extraction configuration
type PDFConfig struct {
	MaxPages int // 0 = no limit
}

// LLMConfig holds LLM-related configuration. API keys are intentionally absent: they are per session.
type LLMConfig struct {
	Provider      constants.Provider
	OpenAIModel   string
	OpenAIBaseURL string
	GeminiModel   string
	Temperature   float32
	Timeout       time.Duration
	SchemaMode    constants.SchemaMode
	Template      constants.Template
}

// ExportConfig holds spreadsheet output configuration
type ExportConfig struct {
	Filename string
}

// LoadDotEnv loads a .env file from the working directory when one exists.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	// Unknown values are kept as typed so Validate can report them.
	rawProvider := getEnv("LLM_PROVIDER", string(constants.ProviderOpenAI))
	provider, ok := constants.CanonicalizeProvider(rawProvider)
	if !ok {
		provider = constants.Provider(rawProvider)
	}
	rawMode := getEnv("LLM_SCHEMA_MODE", string(constants.SchemaLenient))
	mode, ok := constants.CanonicalizeSchemaMode(rawMode)
	if !ok {
		mode = constants.SchemaMode(rawMode)
	}
	rawTmpl := getEnv("LLM_TEMPLATE", string(constants.TemplateKeyValue))
	tmpl, ok := constants.CanonicalizeTemplate(rawTmpl)
	if !ok {
		tmpl = constants.Template(rawTmpl)
	}

	return &Config{
		Server: ServerConfig{
			HTTPAddr:     getEnv("HTTP_ADDR", ":8080"),
			GRPCAddr:     getEnv("GRPC_ADDR", ":9090"),
			MaxUploadMB:  getEnvAsInt("MAX_UPLOAD_MB", 32),
			SessionTTL:   getEnvAsDuration("SESSION_TTL", 30*time.Minute),
			ReadTimeout:  getEnvAsDuration("HTTP_READ_TIMEOUT", 60*time.Second),
			WriteTimeout: getEnvAsDuration("HTTP_WRITE_TIMEOUT", 5*time.Minute),
		},
		PDF: PDFConfig{
			MaxPages: getEnvAsInt("PDF_MAX_PAGES", 0),
		},
		LLM: LLMConfig{
			Provider:      provider,
			OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o"),
			OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			Temperature:   getEnvAsFloat32("LLM_TEMPERATURE", 0.0),
			Timeout:       getEnvAsDuration("LLM_TIMEOUT", 120*time.Second),
			SchemaMode:    mode,
			Template:      tmpl,
		},
		Export: ExportConfig{
			Filename: getEnv("EXPORT_FILENAME", constants.DefaultExportFilename),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator().
		Field("HTTP_ADDR", c.Server.HTTPAddr, Required).
		Field("EXPORT_FILENAME", c.Export.Filename, Required, Extension("xlsx"))
	if c.Server.MaxUploadMB <= 0 {
		v.Add("MAX_UPLOAD_MB", c.Server.MaxUploadMB, "must be positive")
	}
	if c.LLM.Timeout <= 0 {
		v.Add("LLM_TIMEOUT", c.LLM.Timeout, "must be positive")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		v.Add("LLM_TEMPERATURE", c.LLM.Temperature, "must be within 0..2")
	}
	if _, ok := constants.CanonicalizeProvider(string(c.LLM.Provider)); !ok {
		v.Add("LLM_PROVIDER", c.LLM.Provider, "must be openai or gemini")
	}
	if _, ok := constants.CanonicalizeSchemaMode(string(c.LLM.SchemaMode)); !ok {
		v.Add("LLM_SCHEMA_MODE", c.LLM.SchemaMode, "must be lenient or strict")
	}
	if _, ok := constants.CanonicalizeTemplate(string(c.LLM.Template)); !ok {
		v.Add("LLM_TEMPLATE", c.LLM.Template, "must be one of "+strings.Join(constants.TemplatesAsStringSlice(), ", "))
	}
	if c.PDF.MaxPages < 0 {
		v.Add("PDF_MAX_PAGES", c.PDF.MaxPages, "must not be negative")
	}
	if v.HasErrors() {
		return NewAppError(KindInvalidInput, "CONFIG_ERROR", v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}

// APIKeyEnv is the environment variable a CLI run reads the credential from for provider p.
func APIKeyEnv(p constants.Provider) string {
	switch p {
	case constants.ProviderGemini:
		return "GEMINI_API_KEY"
	default:
		return "OPENAI_API_KEY"
	}
}

func (c LLMConfig) String() string {
	return fmt.Sprintf("provider=%s template=%s schema=%s timeout=%s", c.Provider, c.Template, c.SchemaMode, c.Timeout)
}
