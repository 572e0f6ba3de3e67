package openai

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joseph-ayodele/doc-structurer/constants"
)

// Config for the OpenAI client. The API key is not part of it: every call carries its own.
type Config struct {
	BaseURL     string        // default https://api.openai.com/v1
	Model       string        // e.g., "gpt-4o"
	Temperature float32       // 0..2; ignored by gpt-5 models
	Timeout     time.Duration // per call
	SchemaMode  constants.SchemaMode
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
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
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		log:        logger,
	}
}

// supportsTemperature is false for the gpt-5 family, which only accepts the default.
func supportsTemperature(model string) bool {
	return !strings.HasPrefix(strings.ToLower(model), "gpt-5")
}
