package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/joseph-ayodele/doc-structurer/internal/common"
)

// maxErrorBody caps how much of a failed response is kept for logs.
const maxErrorBody = 2048

// StatusError is a non-2xx answer from a provider.
type StatusError struct {
	StatusCode int
	Message    string // provider error message when the body carried one
	Body       []byte
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("provider status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider status %d", e.StatusCode)
}

// SendJSON posts body to url and returns the raw response body.
// It does not assume any provider. Callers decide the URL and headers. A non-2xx answer is
// returned as *StatusError together with the body.
func SendJSON(ctx context.Context, client *http.Client, url string, body any, headers map[string]string, logger *slog.Logger) ([]byte, int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	log := common.LoggerFrom(ctx, logger)
	start := time.Now()

	bs, err := json.Marshal(body)
	if err != nil {
		log.Error("llm.http.encode_error", "error", err)
		return nil, 0, fmt.Errorf("encode json: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bs))
	if err != nil {
		log.Error("llm.http.build_request_error", "error", err)
		return nil, 0, fmt.Errorf("build request: %w", err)
	}

	// Default headers; allow caller overrides.
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	log.Info("llm.http.request",
		"url", url,
		"content_length", len(bs),
	)

	resp, err := client.Do(req)
	if err != nil {
		log.Error("llm.http.send_error", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, 0, err
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			log.Warn("llm.http.response_body_close_error", "error", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error("llm.http.read_error", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	log.Info("llm.http.response",
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return raw, resp.StatusCode, &StatusError{
			StatusCode: resp.StatusCode,
			Message:    errorEnvelopeMessage(raw),
			Body:       truncate(raw, maxErrorBody),
		}
	}
	return raw, resp.StatusCode, nil
}

// ClassifyHTTPError turns a SendJSON failure into the user-facing error kind.
//   - 401/403: AuthenticationError
//   - 429: RateLimitError
//   - anything else, timeouts and transport failures included: ModelError
func ClassifyHTTPError(provider string, err error) error {
	if err == nil {
		return nil
	}
	var se *StatusError
	if errors.As(err, &se) {
		return ClassifyStatus(provider, se.StatusCode, err)
	}
	if IsTimeout(err) {
		return common.ModelError(fmt.Sprintf("The %s request timed out.", provider), err)
	}
	if errors.Is(err, context.Canceled) {
		return common.ModelError(fmt.Sprintf("The %s request was canceled.", provider), err)
	}
	return common.ModelError(fmt.Sprintf("Could not reach the %s API.", provider), err)
}

// ClassifyStatus maps a provider HTTP status onto an error kind.
func ClassifyStatus(provider string, code int, cause error) error {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return common.AuthenticationError(
			fmt.Sprintf("The %s API rejected the API key. Check that it is valid and has access to the model.", provider), cause)
	case http.StatusTooManyRequests:
		return common.RateLimitError(
			fmt.Sprintf("The %s API rate limit or quota was exceeded. Try again later.", provider), cause)
	default:
		return common.ModelError(fmt.Sprintf("The %s API returned an error (status %d).", provider, code), cause)
	}
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// errorEnvelopeMessage reads {"error":{"message":...}}, the shape OpenAI-compatible APIs use.
func errorEnvelopeMessage(raw []byte) string {
	var env struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return ""
	}
	return strings.TrimSpace(env.Error.Message)
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
