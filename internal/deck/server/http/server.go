package http

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opsdeck/opsdeck/internal/deck/core/service"
	"github.com/opsdeck/opsdeck/internal/pkg/metrics"
	middleware "github.com/opsdeck/opsdeck/internal/pkg/middleware/http"
	"github.com/opsdeck/opsdeck/pkg/log"
	"github.com/opsdeck/opsdeck/pkg/options"
)

const (
	apiPrefix  = "/api/v1"
	streamPath = apiPrefix + "/stream"
)

// ReadyCheck reports an error while a dependency is not ready.
type ReadyCheck func() error

// Server serves the panel API, the event stream, probes and metrics.
type Server struct {
	server  *http.Server
	options *options.HttpOptions
	svc     *service.Service
	hub     *Hub
	checks  []ReadyCheck

	upgrader websocket.Upgrader
}

// NewServer creates the HTTP server. checks gate /readyz.
func NewServer(opts *options.HttpOptions, svc *service.Service, checks ...ReadyCheck) *Server {
	s := &Server{
		options: opts,
		svc:     svc,
		hub:     NewHub(),
		checks:  checks,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: opts.Timeout,
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.AccessLog, middleware.Timeout(s.options.Timeout, streamPath))

	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReadyz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	// Registered on r with full paths so a method mismatch answers 405.
	r.HandleFunc(apiPrefix+"/state", s.handleState).Methods(http.MethodGet)

	r.HandleFunc(apiPrefix+"/deployments", s.handleDeploy).Methods(http.MethodPost)
	r.HandleFunc(apiPrefix+"/deployments", s.handleHistory).Methods(http.MethodGet)

	r.HandleFunc(apiPrefix+"/actions", s.handleRunAction).Methods(http.MethodPost)
	r.HandleFunc(apiPrefix+"/actions", s.handleListActions).Methods(http.MethodGet)

	r.HandleFunc(apiPrefix+"/flags", s.handleGetFlags).Methods(http.MethodGet)
	r.HandleFunc(apiPrefix+"/flags/{flag}", s.handleSetFlag).Methods(http.MethodPut)
	r.HandleFunc(apiPrefix+"/flags/{flag}/toggle", s.handleToggleFlag).Methods(http.MethodPost)

	r.HandleFunc(apiPrefix+"/logs", s.handleLogs).Methods(http.MethodGet)
	r.HandleFunc(apiPrefix+"/logs/export", s.handleExport).Methods(http.MethodGet)

	r.HandleFunc(apiPrefix+"/scripts", s.handleListScripts).Methods(http.MethodGet)
	r.HandleFunc(apiPrefix+"/scripts/{key}", s.handleGetScript).Methods(http.MethodGet)
	r.HandleFunc(apiPrefix+"/scripts/{key}", s.handlePutScript).Methods(http.MethodPut)

	r.HandleFunc(apiPrefix+"/editor", s.handleGetEditor).Methods(http.MethodGet)
	r.HandleFunc(apiPrefix+"/editor", s.handleCloseEditor).Methods(http.MethodDelete)
	r.HandleFunc(apiPrefix+"/editor/save", s.handleSaveEditor).Methods(http.MethodPost)
	r.HandleFunc(apiPrefix+"/editor/{key}", s.handleOpenEditor).Methods(http.MethodPost)

	r.HandleFunc(streamPath, s.handleStream).Methods(http.MethodGet)

	return r
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen(s.options.Network, s.options.Addr)
	if err != nil {
		return err
	}
	log.Info("Starting HTTP Server", "addr", ln.Addr().String())

	events, cancel := s.svc.Store().Subscribe()
	defer cancel()
	go s.hub.Run(ctx, events)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.options.ShutdownTimeout)
		defer cancel()
		log.Info("Shutting down HTTP Server")
		return s.server.Shutdown(shutdownCtx)
	}
}
