// Package httpapi exposes the server services over the REST routes in
// package api.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/sekure/internal/api"
	"github.com/dmitrijs2005/sekure/internal/logging"
	"github.com/dmitrijs2005/sekure/internal/server/services"
	"github.com/flashbots/go-utils/httplogger"
	"github.com/go-chi/chi/v5"
	"go.uber.org/atomic"
)

const (
	readTimeout     = 10 * time.Second
	writeTimeout    = 30 * time.Second
	shutdownTimeout = 10 * time.Second
	maxBodySize     = 2 << 20
)

// Services bundles what the handlers call into.
type Services struct {
	Users    *services.UserService
	Secrets  *services.SecretService
	Recovery *services.RecoveryService
	Records  *services.RecordService
	Shares   *services.ShareService
}

type HTTPServer struct {
	address   string
	svc       Services
	logger    logging.Logger
	accessLog *slog.Logger
	jwtSecret []byte
	isReady   atomic.Bool
}

func NewHTTPServer(address string, l logging.Logger, svc Services, secretKey string) *HTTPServer {
	s := &HTTPServer{
		address:   address,
		svc:       svc,
		logger:    l.With("module", "http_server"),
		jwtSecret: []byte(secretKey),
	}
	s.accessLog = slog.Default()
	if sl, ok := s.logger.(interface{ Slog() *slog.Logger }); ok {
		s.accessLog = sl.Slog()
	}
	s.isReady.Store(true)
	return s
}

// Router builds the route table. Every route goes through the request
// logger; the vault routes also need a valid access token.
func (s *HTTPServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.httpLogger)

	r.Get(api.PathLive, s.handleLive)
	r.Get(api.PathReady, s.handleReady)

	r.Post(api.PathUsers, s.handleRegister)
	r.Get(api.PathUserSalt, s.handleGetSalt)
	r.Post(api.PathLogin, s.handleLogin)
	r.Post(api.PathRecovery, s.handleStartRecovery)
	r.Post(api.PathRecoveryFinish, s.handleCompleteRecovery)
	r.With(s.optionalAuth).Get(api.PathShare, s.handleGetShare)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Get(api.PathDomainSalt, s.handleDomainSalt)
		r.Get(api.PathRecords, s.handleListRecords)
		r.Get(api.PathRecord, s.handleGetRecord)
		r.Put(api.PathRecord, s.handlePutRecord)
		r.Delete(api.PathRecord, s.handleDeleteRecord)
		r.Post(api.PathRotate, s.handleBeginRotation)
		r.Post(api.PathCommit, s.handleCommitRotation)
		r.Post(api.PathShares, s.handleCreateShare)
	})

	return r
}

func (s *HTTPServer) httpLogger(next http.Handler) http.Handler {
	return httplogger.LoggingMiddlewareSlog(s.accessLog, next)
}

// Run serves until ctx is done, then marks the server not ready and shuts
// it down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

func (s *HTTPServer) Serve(ctx context.Context, listen net.Listener) error {
	srv := &http.Server{
		Handler:      s.Router(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	go func() {
		<-ctx.Done()
		s.isReady.Store(false)
		s.logger.Info(ctx, "Stopping HTTP server...")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			s.logger.Error(sctx, "Graceful HTTP server shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.isReady.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
