// Package server receives GitHub webhooks and starts builds for them
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"fireq/internal/buildctx"
	"fireq/internal/config"
	"fireq/internal/security"
	"fireq/internal/storage"
)

// MaxBodySize caps webhook payloads
const MaxBodySize = 32 << 20

// RequestFile is where an accepted event is persisted, under the build path
const RequestFile = "request.json"

// ContextBuilder derives a build context from an event
type ContextBuilder interface {
	Build(headers http.Header, body []byte, opts ...buildctx.Option) (*buildctx.Context, error)
}

// BuildRunner runs the task tree of one build
type BuildRunner interface {
	Build(ctx context.Context, bc buildctx.Context) int
}

// Server is the webhook endpoint. Accepted events are answered right away
// and built in the background
type Server struct {
	cfg     *config.Config
	builder ContextBuilder
	runner  BuildRunner
	storage *storage.LogStorage
	logger  *slog.Logger

	// ctx is the parent of every background build
	ctx    context.Context
	builds sync.WaitGroup

	ready chan struct{}
	addr  net.Addr
}

// New creates a webhook server
func New(cfg *config.Config, builder ContextBuilder, runner BuildRunner, ls *storage.LogStorage, logger *slog.Logger) *Server {
	return &Server{
		cfg:     cfg,
		builder: builder,
		runner:  runner,
		storage: ls,
		logger:  logger,
		ctx:     context.Background(),
		ready:   make(chan struct{}),
	}
}

// Routes returns the HTTP handler: POST / for webhooks and GET /push/*
// for browsing build logs
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/", s.handleHook)

	logs := http.StripPrefix("/push/", http.FileServer(http.Dir(s.storage.Path("push"))))
	r.Get("/push", http.RedirectHandler("/push/", http.StatusMovedPermanently).ServeHTTP)
	r.Get("/push/*", logs.ServeHTTP)
	return r
}

// Ready is closed once Serve is accepting connections
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr is the bound address; valid after Ready
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Serve listens on addr until ctx is cancelled, then shuts the listener
// down and waits for running builds. Cancelling ctx also cancels those
// builds, which kills their commands
func (s *Server) Serve(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.ctx = ctx
	s.addr = listener.Addr()
	close(s.ready)

	srv := &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.logger.Info("fireq listening", "address", s.addr.String())

	serveDone := make(chan error, 1)
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveDone <- err
		}
		close(serveDone)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("fireq shutting down")
	case err := <-serveDone:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.Wait()
	s.logger.Info("fireq stopped")
	return nil
}

// Wait blocks until every background build has finished
func (s *Server) Wait() {
	s.builds.Wait()
}

func (s *Server) handleHook(w http.ResponseWriter, r *http.Request) {
	logger := s.logger.With("request_id", middleware.GetReqID(r.Context()))

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodySize+1))
	if err != nil {
		http.Error(w, "cannot read body", http.StatusBadRequest)
		return
	}
	if len(body) > MaxBodySize {
		http.Error(w, "body too large", http.StatusRequestEntityTooLarge)
		return
	}

	if err := security.VerifySignature(body, []byte(s.cfg.Secret), r.Header.Get(security.SignatureHeader)); err != nil {
		logger.Warn("rejected webhook", "error", err)
		http.Error(w, "bad signature", http.StatusUnauthorized)
		return
	}

	bc, err := s.builder.Build(r.Header, body, buildctx.WithClean())
	switch {
	case errors.Is(err, buildctx.ErrMalformedEvent):
		logger.Warn("malformed webhook", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		logger.Error("preparing build failed", "error", err)
		http.Error(w, "cannot prepare build", http.StatusInternalServerError)
		return
	}

	if bc != nil {
		if err := s.saveRequest(*bc, r.Header, body); err != nil {
			logger.Warn("saving request failed", "error", err)
		}
		logger.Info("accepted webhook", "build_id", bc.ID, "name_uniq", bc.NameUniq)
		s.start(*bc)
	}
	writeJSON(w, "OK")
}

func (s *Server) start(bc buildctx.Context) {
	s.builds.Add(1)
	go func() {
		defer s.builds.Done()
		s.runner.Build(s.ctx, bc)
	}()
}

// saveRequest writes [headers, body] to <path>/request.json. The signature
// header is left out
func (s *Server) saveRequest(bc buildctx.Context, headers http.Header, body []byte) error {
	flat := make(map[string]string, len(headers))
	for key, values := range headers {
		if key == security.SignatureHeader {
			continue
		}
		flat[key] = strings.Join(values, ", ")
	}
	_, err := s.storage.SaveJSON(bc.Path, RequestFile, []any{flat, json.RawMessage(body)})
	return err
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
