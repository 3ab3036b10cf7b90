// internal/api/server.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/tpncalc/virtualblot/internal/config"
	"github.com/tpncalc/virtualblot/internal/dispatcher"
	"github.com/tpncalc/virtualblot/internal/handlers"
	"github.com/tpncalc/virtualblot/internal/logging"
	"github.com/tpncalc/virtualblot/internal/storage/export"
	"github.com/tpncalc/virtualblot/pkg/core"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// Server exposes the handler service over HTTP. Every operation goes through
// the dispatcher so it is counted and timed like CLI invocations.
type Server struct {
	svc    *handlers.Service
	disp   *dispatcher.Dispatcher
	logger *slog.Logger
	cfg    config.ServerConfig
	mux    *http.ServeMux
}

// NewServer creates the server. svc must already be registered with disp.
func NewServer(svc *handlers.Service, disp *dispatcher.Dispatcher, logger *slog.Logger, cfg config.ServerConfig) *Server {
	s := &Server{
		svc:    svc,
		disp:   disp,
		logger: logger,
		cfg:    cfg,
		mux:    http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /healthcheck", s.handleHealthcheck)
	s.mux.HandleFunc("POST /api/v1/tables", s.handleTables)
	s.mux.HandleFunc("POST /api/v1/normalize", s.handleNormalize)
	s.mux.HandleFunc("POST /api/v1/render", s.handleRender)
	s.mux.HandleFunc("POST /api/v1/profile", s.handleProfile)
	return s
}

// Handler returns the routes wrapped in request id, logging and timeout middleware.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	if s.cfg.RequestTimeout > 0 {
		h = http.TimeoutHandler(h, s.cfg.RequestTimeout, `{"error":"request timed out"}`)
	}
	return s.withRequestID(h)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithRequestID(r.Context(), r.Header.Get(RequestIDHeader))
		w.Header().Set(RequestIDHeader, logging.RequestID(ctx))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(ctx))

		s.logger.InfoContext(ctx, "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

func (s *Server) dispatch(ctx context.Context, command string, payload any) (any, error) {
	return s.disp.Dispatch(ctx, dispatcher.Event{Command: command, Payload: payload})
}

func (s *Server) handleHealthcheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	if s.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, requestError(err))
		return
	}
	defer file.Close()

	res, err := s.dispatch(r.Context(), handlers.CmdIngest, handlers.IngestRequest{FileName: header.Filename, Body: file})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleNormalize(w http.ResponseWriter, r *http.Request) {
	var req handlers.NormalizeRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.dispatch(r.Context(), handlers.CmdNormalize, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleRender answers with the PNG by default, the full response as JSON
// with ?format=json, or the download bundle with ?format=zip. ?save=true
// also queues the bundle for the storage backend once the response body is
// ready.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	switch format {
	case "", "png", "json", "zip":
	default:
		s.writeError(w, r, fmt.Errorf("unknown format %q: %w", format, core.ErrConfiguration))
		return
	}

	var req handlers.RenderRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.dispatch(r.Context(), handlers.CmdRender, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res := out.(*handlers.RenderResponse)

	var archive []byte
	if format == "zip" {
		if archive, err = s.svc.Archive(res.Bundle); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	if save, _ := strconv.ParseBool(r.URL.Query().Get("save")); save {
		if _, err := s.dispatch(r.Context(), handlers.CmdStore, res.Bundle); err != nil {
			s.logger.WarnContext(r.Context(), "bundle not stored", "stem", res.Bundle.Stem, "error", err)
		}
	}

	switch format {
	case "json":
		writeJSON(w, http.StatusOK, res)
	case "zip":
		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.ArchiveName(res.Bundle.Stem)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(archive)
	default:
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("X-Signal-Ceiling", strconv.FormatFloat(res.Ceiling, 'f', -1, 64))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(res.Image)
	}
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	var req handlers.ProfileRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.dispatch(r.Context(), handlers.CmdProfile, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.([]byte))
}

// errBadRequest marks malformed request bodies and forms.
var errBadRequest = errors.New("bad request")

func requestError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return err
	}
	return fmt.Errorf("%w: %v", errBadRequest, err)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	if s.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return requestError(err)
	}
	return nil
}

// StatusFor maps an operation error to its HTTP status.
func StatusFor(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadRequest), errors.Is(err, core.ErrParse), errors.Is(err, core.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrReference), errors.Is(err, core.ErrEmptyTable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, dispatcher.ErrQueueFull), errors.Is(err, dispatcher.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	} else {
		s.logger.DebugContext(r.Context(), "request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
