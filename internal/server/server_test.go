package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/joseph-ayodele/doc-structurer/constants"
	"github.com/joseph-ayodele/doc-structurer/internal/common"
	"github.com/joseph-ayodele/doc-structurer/internal/entity"
	"github.com/joseph-ayodele/doc-structurer/internal/export"
	"github.com/joseph-ayodele/doc-structurer/internal/extract"
	"github.com/joseph-ayodele/doc-structurer/internal/llm"
	processor "github.com/joseph-ayodele/doc-structurer/internal/pipeline"
	"github.com/joseph-ayodele/doc-structurer/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubStructurer struct {
	calls   int
	lastKey string
	err     error
}

func (s *stubStructurer) Structure(_ context.Context, req llm.StructureRequest) (llm.Response, error) {
	s.calls++
	s.lastKey = req.Credential.Reveal()
	if s.err != nil {
		return llm.Response{}, s.err
	}
	return llm.Response{Table: entity.Table{
		Columns: []string{constants.ColumnKey, constants.ColumnValue},
		Rows: []entity.Row{{Cells: []entity.Cell{
			{Column: constants.ColumnKey, Value: "Invoice No"},
			{Column: constants.ColumnValue, Value: "INV-1001"},
		}}},
	}}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *stubStructurer) {
	t.Helper()
	log := quietLogger()
	st := &stubStructurer{}
	p := processor.NewProcessor(log,
		extract.NewPDFExtractor(extract.Config{}, log),
		map[constants.Provider]llm.Structurer{constants.ProviderOpenAI: st},
		export.NewService(log),
		processor.Options{},
	)
	srv := httptest.NewServer(New(Config{MaxUploadBytes: 1 << 20}, p, log).Routes())
	t.Cleanup(srv.Close)
	return srv, st
}

func multipartBody(t *testing.T, filename string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write(data)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func postAPI(t *testing.T, srv *httptest.Server, key, filename string, data []byte) *http.Response {
	t.Helper()
	body, ct := multipartBody(t, filename, data, nil)
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/structure", body)
	req.Header.Set("Content-Type", ct)
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeError(t *testing.T, resp *http.Response) errorResponse {
	t.Helper()
	var e errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return e
}

func TestAPIStructure_Success(t *testing.T) {
	srv, st := newTestServer(t)
	resp := postAPI(t, srv, "sk-test", "invoice.pdf", testutil.InvoicePDF())

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != constants.MimeXLSX {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); cd != `attachment; filename="Structured_Output.xlsx"` {
		t.Fatalf("unexpected disposition %q", cd)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected a request id header")
	}
	if st.lastKey != "sk-test" {
		t.Fatalf("structurer got key %q", st.lastKey)
	}
	b, _ := io.ReadAll(resp.Body)
	if !bytes.HasPrefix(b, []byte("PK")) {
		t.Fatal("expected an xlsx (zip) body")
	}
}

func TestAPIStructure_MissingCredential(t *testing.T) {
	srv, st := newTestServer(t)
	resp := postAPI(t, srv, "", "invoice.pdf", testutil.InvoicePDF())

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if e := decodeError(t, resp); e.Kind != string(common.KindAuthentication) {
		t.Fatalf("unexpected error body %+v", e)
	}
	if st.calls != 0 {
		t.Fatal("structurer must not be called without a credential")
	}
}

func TestAPIStructure_RejectsNonPDF(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     []byte
		kind     common.Kind
	}{
		{"wrong extension", "notes.txt", []byte("hello"), common.KindInvalidInput},
		{"pdf name, not pdf bytes", "fake.pdf", []byte("PK\x03\x04 not a pdf"), common.KindExtraction},
		{"no file", "", nil, common.KindInvalidInput},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			srv, st := newTestServer(t)
			resp := postAPI(t, srv, "sk-test", tt.filename, tt.data)
			if resp.StatusCode != http.StatusUnprocessableEntity {
				t.Fatalf("expected 422, got %d", resp.StatusCode)
			}
			if e := decodeError(t, resp); e.Kind != string(tt.kind) {
				t.Fatalf("expected kind %s, got %+v", tt.kind, e)
			}
			if st.calls != 0 {
				t.Fatal("structurer must not be called")
			}
		})
	}
}

func TestAPIStructure_TooLarge(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := postAPI(t, srv, "sk-test", "big.pdf", append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("x"), 1<<20)...))
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestWebSessionFlow(t *testing.T) {
	srv, st := newTestServer(t)
	jar, _ := cookiejar.New(nil)
	client := &http.Client{Jar: jar}

	// Upload without a key shows the warning.
	body, ct := multipartBody(t, "invoice.pdf", testutil.InvoicePDF(), nil)
	resp, err := client.Post(srv.URL+"/process", ct, body)
	if err != nil {
		t.Fatal(err)
	}
	page, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized || !strings.Contains(string(page), "Please enter your API key") {
		t.Fatalf("expected key warning, got %d", resp.StatusCode)
	}

	resp, err = client.PostForm(srv.URL+"/session/key", url.Values{"api_key": {"sk-web"}, "provider": {"openai"}})
	if err != nil {
		t.Fatal(err)
	}
	page, _ = io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK || strings.Contains(string(page), "sk-web") {
		t.Fatalf("key page must load and never echo the key (status %d)", resp.StatusCode)
	}

	body, ct = multipartBody(t, "invoice.pdf", testutil.InvoicePDF(), map[string]string{"template": "keyvalue"})
	resp, err = client.Post(srv.URL+"/process", ct, body)
	if err != nil {
		t.Fatal(err)
	}
	page, _ = io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("process: expected 200, got %d: %s", resp.StatusCode, page)
	}
	for _, want := range []string{"Data preview", "INV-1001", "/download"} {
		if !strings.Contains(string(page), want) {
			t.Fatalf("page missing %q", want)
		}
	}
	if st.lastKey != "sk-web" {
		t.Fatalf("structurer got key %q", st.lastKey)
	}

	resp, err = client.Get(srv.URL + "/download")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != constants.MimeXLSX {
		t.Fatalf("download: status %d type %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	resp, err = client.PostForm(srv.URL+"/session/end", nil)
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()

	resp, err = client.Get(srv.URL + "/download")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after session end, got %d", resp.StatusCode)
	}
}

func TestSessionsExpireLazily(t *testing.T) {
	s := NewSessions(time.Minute)
	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }

	w := httptest.NewRecorder()
	sess := s.Ensure(w, httptest.NewRequest(http.MethodGet, "/", nil))
	cred := common.NewCredential("sk-expire")
	s.Update(sess, func(sess *Session) { sess.Credential = cred })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range w.Result().Cookies() {
		req.AddCookie(c)
	}
	if s.Lookup(req) == nil {
		t.Fatal("expected live session")
	}

	now = now.Add(2 * time.Minute)
	if s.Lookup(req) != nil {
		t.Fatal("expected expired session")
	}
	if !cred.Empty() {
		t.Fatal("expired session must release its credential")
	}
	if s.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", s.Len())
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestServerCloseReleasesCredentials(t *testing.T) {
	s := New(Config{}, nil, quietLogger())
	sess := s.sessions.Ensure(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	cred := common.NewCredential("sk-close")
	s.sessions.Update(sess, func(sess *Session) { sess.Credential = cred })

	s.Close()
	if !cred.Empty() || s.sessions.Len() != 0 {
		t.Fatal("close must release every session")
	}
}

func TestWebFailedRunClearsPreviousResult(t *testing.T) {
	srv, st := newTestServer(t)
	jar, _ := cookiejar.New(nil)
	client := &http.Client{Jar: jar}

	resp, err := client.PostForm(srv.URL+"/session/key", url.Values{"api_key": {"sk-web"}, "provider": {"openai"}})
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()

	process := func() (int, string) {
		body, ct := multipartBody(t, "invoice.pdf", testutil.InvoicePDF(), nil)
		resp, err := client.Post(srv.URL+"/process", ct, body)
		if err != nil {
			t.Fatal(err)
		}
		defer func() { _ = resp.Body.Close() }()
		page, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(page)
	}

	if code, page := process(); code != http.StatusOK || !strings.Contains(page, "INV-1001") {
		t.Fatalf("first run: status %d", code)
	}

	st.err = common.RateLimitError("The provider rate limit was reached.", nil)
	code, page := process()
	if code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}
	if !strings.Contains(page, "rate limit") {
		t.Fatal("page must show the new error")
	}
	if strings.Contains(page, "INV-1001") || strings.Contains(page, "/download") {
		t.Fatal("page must not show the previous run's preview or download link")
	}

	resp, err = client.Get(srv.URL + "/download")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for the stale export, got %d", resp.StatusCode)
	}
}
