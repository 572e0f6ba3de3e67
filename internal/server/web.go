package server

import (
	_ "embed"
	"fmt"
	"html/template"
	"net/http"
	"strconv"

	"github.com/dustin/go-humanize"

	"github.com/joseph-ayodele/doc-structurer/constants"
	"github.com/joseph-ayodele/doc-structurer/internal/common"
	"github.com/joseph-ayodele/doc-structurer/internal/entity"
)

//go:embed templates/index.html
var indexHTML string

var indexTmpl = template.Must(template.New("index").Parse(indexHTML))

type pageData struct {
	HasKey      bool
	Provider    string
	Template    string
	Providers   []string
	Templates   []string
	MaxUpload   string
	Error       string
	Warning     string
	Notice      string
	Header      []string
	Rows        [][]string
	DownloadURL string
	ExportName  string
	ExportSize  string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, s.sessions.Lookup(r), pageData{})
}

func (s *Server) handleSetKey(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Ensure(w, r)
	key := r.PostFormValue("api_key")
	cred := common.NewCredential(key)
	if cred.Empty() {
		s.render(w, r, http.StatusUnprocessableEntity, sess, pageData{Error: "Please enter an API key."})
		return
	}
	provider, ok := constants.CanonicalizeProvider(r.PostFormValue("provider"))
	if !ok {
		cred.Release()
		s.render(w, r, http.StatusUnprocessableEntity, sess, pageData{Error: "Unknown provider."})
		return
	}
	s.sessions.Update(sess, func(sess *Session) {
		sess.Credential.Release()
		sess.Credential = cred
		sess.Provider = provider
	})
	common.LoggerFrom(common.WithSessionID(r.Context(), sess.ID), s.logger).Info("session.key.set", "provider", provider)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Ensure(w, r)
	ctx := common.WithSessionID(r.Context(), sess.ID)
	log := common.LoggerFrom(ctx, s.logger)

	var cred *common.Credential
	opts := s.cfg.Defaults
	// A new upload replaces the previous result, failed or not.
	s.sessions.Update(sess, func(sess *Session) {
		cred = sess.Credential
		if sess.Provider != "" {
			opts.Provider = sess.Provider
		}
		sess.LastExport = nil
		sess.Preview = nil
	})

	doc, err := s.readUpload(w, r)
	if err != nil {
		s.render(w, r, common.HTTPStatus(err), sess, pageData{Error: common.UserMessage(err)})
		return
	}
	if cred.Empty() {
		log.Warn("session.process.missing_credential", "file", doc.Filename)
		s.render(w, r, http.StatusUnauthorized, sess, pageData{Warning: "Please enter your API key to proceed."})
		return
	}
	opts, err = s.runOptions(r, opts)
	if err != nil {
		s.render(w, r, common.HTTPStatus(err), sess, pageData{Error: common.UserMessage(err)})
		return
	}

	res, err := s.pipeline.Process(ctx, doc, cred, opts)
	if err != nil {
		s.render(w, r, common.HTTPStatus(err), sess, pageData{Error: common.UserMessage(err)})
		return
	}

	export := res.Export
	table := res.Response.Table
	s.sessions.Update(sess, func(sess *Session) {
		sess.LastExport = &export
		sess.Preview = &table
		sess.Template = opts.Template
	})
	s.render(w, r, http.StatusOK, sess, pageData{
		Notice: fmt.Sprintf("Extraction complete: %d rows from %s.", export.Rows, doc.Filename),
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Lookup(r)
	var export *entity.ExportFile
	if sess != nil {
		s.sessions.Update(sess, func(sess *Session) { export = sess.LastExport })
	}
	if export == nil {
		http.Error(w, "no export in this session", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(export.Bytes)))
	_, _ = w.Write(export.Bytes)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	s.sessions.End(w, r)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, code int, sess *Session, data pageData) {
	data.Providers = []string{string(constants.ProviderOpenAI), string(constants.ProviderGemini)}
	data.Templates = constants.TemplatesAsStringSlice()
	data.MaxUpload = humanize.IBytes(uint64(s.cfg.MaxUploadBytes))
	data.Provider = string(s.cfg.Defaults.Provider)
	data.Template = string(s.cfg.Defaults.Template)

	if sess != nil {
		s.sessions.Update(sess, func(sess *Session) {
			data.HasKey = !sess.Credential.Empty()
			if sess.Provider != "" {
				data.Provider = string(sess.Provider)
			}
			if sess.Template != "" {
				data.Template = string(sess.Template)
			}
			if sess.Preview != nil {
				data.Header = sess.Preview.Header(constants.ColumnComments)
				for i := 0; i < sess.Preview.Len(); i++ {
					data.Rows = append(data.Rows, sess.Preview.Record(i))
				}
			}
			if sess.LastExport != nil {
				data.DownloadURL = "/download"
				data.ExportName = sess.LastExport.Name
				data.ExportSize = humanize.Bytes(uint64(len(sess.LastExport.Bytes)))
			}
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := indexTmpl.Execute(w, data); err != nil {
		common.LoggerFrom(r.Context(), s.logger).Error("http.render_failed", "error", err)
	}
}
