package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/doc-structurer/internal/common"
	processor "github.com/joseph-ayodele/doc-structurer/internal/pipeline"
)

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Stage     string `json:"stage,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// handleAPIStructure takes a multipart PDF and a bearer credential and answers with the xlsx.
func (s *Server) handleAPIStructure(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := common.LoggerFrom(ctx, s.logger)

	cred := bearerCredential(r)
	defer cred.Release()
	if cred.Empty() {
		log.Warn("api.structure.missing_credential")
		s.writeError(w, r, common.AuthenticationError("Send the provider API key as \"Authorization: Bearer <key>\".", nil))
		return
	}

	doc, err := s.readUpload(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	opts, err := s.runOptions(r, s.cfg.Defaults)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.pipeline.Process(ctx, doc, cred, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", res.Export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Export.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Export.Bytes)))
	w.Header().Set("X-Rows", strconv.Itoa(res.Export.Rows))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Export.Bytes)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "service": "doc-structurer"})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := common.HTTPStatus(err)
	common.LoggerFrom(r.Context(), s.logger).Warn("api.error",
		"status", code,
		"kind", common.KindOf(err),
		"error", err,
	)
	writeJSON(w, code, errorResponse{
		Error:     common.UserMessage(err),
		Kind:      string(common.KindOf(err)),
		Stage:     string(processor.StageOf(err)),
		RequestID: common.RequestIDFromContext(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// bearerCredential reads "Authorization: Bearer <key>". The result may be empty.
func bearerCredential(r *http.Request) *common.Credential {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "bearer "
	if len(h) < len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return common.NewCredential("")
	}
	return common.NewCredential(h[len(prefix):])
}
