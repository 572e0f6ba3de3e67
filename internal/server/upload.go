package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/joseph-ayodele/doc-structurer/constants"
	"github.com/joseph-ayodele/doc-structurer/internal/common"
	"github.com/joseph-ayodele/doc-structurer/internal/entity"
	processor "github.com/joseph-ayodele/doc-structurer/internal/pipeline"
)

// multipartSlack covers form boundaries and the other fields on top of the file itself.
const multipartSlack = 1 << 20

// readUpload parses the multipart form and returns the PDF in field "file".
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (entity.Document, error) {
	limit := s.cfg.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartSlack)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return entity.Document{}, s.tooLarge()
		}
		return entity.Document{}, common.InvalidInputError("Expected a multipart form with a PDF in the \"file\" field.")
	}

	f, hdr, err := r.FormFile("file")
	if err != nil {
		return entity.Document{}, common.InvalidInputError("Please upload a PDF file.")
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return entity.Document{}, s.tooLarge()
		}
		return entity.Document{}, common.InvalidInputError("The upload could not be read.")
	}

	v := common.NewValidator().
		Field("file", hdr.Filename, common.Required, common.Extension(allowedExtensions()...)).
		Field("file", data, common.Required, common.MaxBytes(limit))
	if err := common.ValidateAndReturnError(v); err != nil {
		return entity.Document{}, err
	}
	return entity.Document{Filename: hdr.Filename, Data: data}, nil
}

func (s *Server) tooLarge() error {
	return common.InvalidInputError(fmt.Sprintf("The file is larger than the %s upload limit.",
		humanize.IBytes(uint64(s.cfg.MaxUploadBytes))))
}

// runOptions reads provider/template overrides from the form or query string.
func (s *Server) runOptions(r *http.Request, fallback processor.Options) (processor.Options, error) {
	opts := fallback
	v := common.NewValidator()
	if raw := strings.TrimSpace(r.FormValue("provider")); raw != "" {
		p, ok := constants.CanonicalizeProvider(raw)
		if !ok {
			v.Add("provider", raw, "unknown provider")
		}
		opts.Provider = p
	}
	if raw := strings.TrimSpace(r.FormValue("template")); raw != "" {
		t, ok := constants.CanonicalizeTemplate(raw)
		if !ok {
			v.Add("template", raw, "must be one of "+strings.Join(constants.TemplatesAsStringSlice(), ", "))
		}
		opts.Template = t
	}
	return opts, common.ValidateAndReturnError(v)
}

func allowedExtensions() []string {
	out := make([]string, 0, len(constants.AllowedExtensions))
	for ext := range constants.AllowedExtensions {
		out = append(out, ext)
	}
	return out
}
