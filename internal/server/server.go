package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/joseph-ayodele/doc-structurer/internal/common"
	"github.com/joseph-ayodele/doc-structurer/internal/entity"
	processor "github.com/joseph-ayodele/doc-structurer/internal/pipeline"
)

// Pipeline is the three-stage run behind every upload.
type Pipeline interface {
	Process(ctx context.Context, doc entity.Document, cred *common.Credential, opts processor.Options) (processor.Result, error)
}

type Config struct {
	MaxUploadBytes int64
	SessionTTL     time.Duration
	Defaults       processor.Options
}

// Server is the browser and JSON front end over one Pipeline.
type Server struct {
	cfg      Config
	pipeline Pipeline
	sessions *Sessions
	logger   *slog.Logger
}

func New(cfg Config, p Pipeline, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 32 << 20
	}
	return &Server{
		cfg:      cfg,
		pipeline: p,
		sessions: NewSessions(cfg.SessionTTL),
		logger:   logger,
	}
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestID)
	r.Use(s.accessLog)

	r.Get("/", s.handleIndex)
	r.Post("/session/key", s.handleSetKey)
	r.Post("/process", s.handleProcess)
	r.Get("/download", s.handleDownload)
	r.Post("/session/end", s.handleEndSession)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/structure", s.handleAPIStructure)
	})
	r.Get("/healthz", s.handleHealth)
	return r
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if rid := r.Header.Get("X-Request-ID"); rid != "" {
			ctx = common.WithRequestID(ctx, rid)
		}
		ctx, rid := common.EnsureRequestID(ctx)
		w.Header().Set("X-Request-ID", rid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		common.LoggerFrom(r.Context(), s.logger).Info("http.request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	})
}

// Close drops all sessions and the keys they hold.
func (s *Server) Close() {
	s.sessions.Close()
}
