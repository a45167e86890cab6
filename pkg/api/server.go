// Package api is the local HTTP control plane of dozeprobe. It lets a script
// or a second machine acquire and release the holds and read the status of a
// headless run.
package api

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/devlibx/gox-base/v2"
	"github.com/devlibx/gox-dozeprobe/pkg/controller"
	"github.com/devlibx/gox-dozeprobe/pkg/display"
	"github.com/devlibx/gox-dozeprobe/pkg/journal"
	"go.uber.org/zap"
)

const (
	APIVersion     = "v1"
	DefaultAddress = "127.0.0.1:8787"

	defaultSessionLimit = 20
)

type ServerOptions struct {
	Addr              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
}

type Server struct {
	gox.CrossFunction
	http       *http.Server
	logger     *zap.Logger
	opts       ServerOptions
	controller controller.Controller
	shown      *display.Recorder
	journal    journal.Store
}

// NewServer builds the server. It does not listen until Run is called.
func NewServer(cf gox.CrossFunction, logger *zap.Logger, ctrl controller.Controller, shown *display.Recorder, store journal.Store, opts ServerOptions) *Server {
	if opts.Addr == "" {
		opts.Addr = DefaultAddress
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 5 * time.Second
	}
	if opts.ReadHeaderTimeout == 0 {
		opts.ReadHeaderTimeout = 2 * time.Second
	}
	// acquire talks to D-Bus and release joins the probe
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 30 * time.Second
	}
	if opts.IdleTimeout == 0 {
		opts.IdleTimeout = 60 * time.Second
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}

	s := &Server{
		CrossFunction: cf,
		logger:        logger.Named("api"),
		opts:          opts,
		controller:    ctrl,
		shown:         shown,
		journal:       store,
	}
	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Handler(),
		ReadTimeout:       opts.ReadTimeout,
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       opts.IdleTimeout,
		BaseContext: func(l net.Listener) context.Context {
			return context.Background()
		},
	}
	return s
}

// Handler is the routed API with its middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/"+APIVersion+"/healthz", s.handleHealthz)
	mux.HandleFunc("/"+APIVersion+"/status", s.handleStatus)
	mux.HandleFunc("/"+APIVersion+"/acquire", s.handleAcquire)
	mux.HandleFunc("/"+APIVersion+"/release", s.handleRelease)
	mux.HandleFunc("/"+APIVersion+"/sessions", s.handleSessions)
	return s.withBasicMiddleware(mux)
}

// Run serves until ctx is done and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); !stdErrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Stop(context.Background())
	}
}

// Stop shuts the server down, waiting up to ShutdownTimeout.
func (s *Server) Stop(ctx context.Context) error {
	if s.opts.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.ShutdownTimeout)
		defer cancel()
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) timestamp() string {
	return s.Now().UTC().Format(time.RFC3339)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIError{Error: msg, Timestamp: s.timestamp()})
}

func (s *Server) allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": s.timestamp(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, FromSnapshot(s.controller.Snapshot(), s.shown.Snapshot(), s.Now()))
}

// handleAcquire takes the holds. 409 means the exemption has been requested
// and the user must grant it first.
func (s *Server) handleAcquire(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, http.MethodPost) {
		return
	}
	if err := s.controller.Acquire(r.Context()); err != nil {
		if stdErrors.Is(err, controller.ErrPermissionRequired) {
			s.writeError(w, http.StatusConflict, controller.MessagePermissionRequired)
			return
		}
		s.logger.Error("acquire failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "acquire failed: "+err.Error())
		return
	}
	s.writeAction(w)
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, http.MethodPost) {
		return
	}
	if err := s.controller.Release(r.Context()); err != nil {
		s.logger.Error("release failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "release failed: "+err.Error())
		return
	}
	s.writeAction(w)
}

func (s *Server) writeAction(w http.ResponseWriter) {
	snap := s.controller.Snapshot()
	writeJSON(w, http.StatusOK, ActionResponse{
		State:     snap.State.String(),
		SessionID: snap.SessionID,
		Timestamp: s.timestamp(),
	})
}

// handleSessions lists journal entries, newest first. ?limit=N, default 20.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, http.MethodGet) {
		return
	}
	limit := defaultSessionLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	sessions, err := s.journal.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("list sessions failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "list sessions failed")
		return
	}
	writeJSON(w, http.StatusOK, FromSessions(sessions))
}

func (s *Server) withBasicMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
		s.logger.Debug("request", zap.String("method", r.Method), zap.String("path", r.URL.Path),
			zap.Duration("took", time.Since(start)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(v)
}
