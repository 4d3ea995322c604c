// Package server exposes the question-answering pipeline over HTTP.
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"virtualta/internal/domain"
	"virtualta/internal/logging"
)

// Asker answers a single question.
type Asker interface {
	Ask(ctx context.Context, question string) (domain.AnswerResponse, error)
}

// Options tunes the HTTP surface.
type Options struct {
	MaxBodyBytes      int64
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

type Server struct {
	asker  Asker
	logger *slog.Logger
	opts   Options
	mux    *http.ServeMux
}

const healthPage = `<!DOCTYPE html>
<html>
<head><title>Virtual TA</title></head>
<body>
<h2>Virtual TA is running</h2>
<p>POST a form with a <code>question</code> field (and an optional base64 <code>image</code>) to <code>/api/</code>.</p>
</body>
</html>
`

func New(asker Asker, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 10 << 20
	}
	if opts.ReadHeaderTimeout <= 0 {
		opts.ReadHeaderTimeout = 10 * time.Second
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 15 * time.Second
	}
	s := &Server{
		asker:  asker,
		logger: logger,
		opts:   opts,
		mux:    http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleHealth)
	s.mux.HandleFunc("POST /api/{$}", s.handleAsk)
	s.mux.HandleFunc("POST /{$}", s.handleAsk)
}

// Handler returns the routes wrapped in request-id, logging and CORS middleware.
func (s *Server) Handler() http.Handler {
	return s.requestContext(cors(s.mux))
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.opts.ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	s.logger.Info("server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(healthPage))
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context(), s.logger)

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	if err := parseForm(r, s.opts.MaxBodyBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeDetail(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeDetail(w, http.StatusBadRequest, "invalid form body")
		return
	}

	question := strings.TrimSpace(r.PostForm.Get("question"))
	if question == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "question is required")
		return
	}

	if image := r.PostForm.Get("image"); image != "" {
		if _, err := base64.StdEncoding.DecodeString(image); err != nil {
			log.Warn("failed to decode image, answering from the question alone", "error", err)
		}
	}

	resp, err := s.asker.Ask(r.Context(), question)
	if err != nil {
		status := statusFor(err)
		log.Error("question failed", "status", status, "error", err)
		writeJSON(w, status, domain.NewCannedResponse(domain.FailureText, domain.OutcomeFailed))
		return
	}

	log.Info("question answered", "outcome", resp.Outcome.String(), "links", len(resp.Links), "images", len(resp.Images))
	writeJSON(w, http.StatusOK, resp)
}

// parseForm reads url-encoded and multipart bodies into r.PostForm.
func parseForm(r *http.Request, maxMemory int64) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return r.ParseMultipartForm(maxMemory)
	}
	return r.ParseForm()
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
