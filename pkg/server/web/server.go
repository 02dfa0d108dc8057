// Package web provides the plumbing for mailroute's RESTful API.
package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/inbucket/mailroute/pkg/config"
	"github.com/inbucket/mailroute/pkg/extension"
	"github.com/inbucket/mailroute/pkg/metric"
	"github.com/inbucket/mailroute/pkg/msghub"
	"github.com/inbucket/mailroute/pkg/relay"
	"github.com/inbucket/mailroute/pkg/route"
	"github.com/rs/zerolog/log"
)

var (
	// Router sends incoming requests to the correct handler function.
	Router = mux.NewRouter()

	rootConfig *config.Root
	router     *route.Router
	relayer    *relay.Relay
	extHost    *extension.Host
	msgHub     *msghub.Hub
)

// Server is the HTTP front end of mailroute.
type Server struct {
	http     *http.Server
	listener net.Listener
	notify   chan error
	done     chan struct{}
}

// NewServer sets up things for unit tests or the Start() method.
func NewServer(
	conf *config.Root,
	rt *route.Router,
	rl *relay.Relay,
	host *extension.Host,
	mh *msghub.Hub,
) *Server {
	rootConfig = conf
	router = rt
	relayer = rl
	extHost = host
	msgHub = mh

	Router.Path("/metrics").Handler(metric.Handler()).Methods("GET")
	Router.NotFoundHandler = noMatchHandler(
		http.StatusNotFound, "No route matches URI path")
	Router.MethodNotAllowedHandler = noMatchHandler(
		http.StatusMethodNotAllowed, "Method not allowed for URI path")

	return &Server{
		http: &http.Server{
			Addr:         conf.Web.Addr,
			Handler:      requestLoggingWrapper(Router),
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 5 * time.Minute,
		},
		notify: make(chan error, 1),
		done:   make(chan struct{}),
	}
}

// Start begins listening for HTTP requests, calling readyFunc once the listener is open.  It
// blocks until ctx is done.
func (s *Server) Start(ctx context.Context, readyFunc func()) {
	defer close(s.done)
	slog := log.With().Str("module", "web").Str("phase", "startup").Logger()
	var err error
	s.listener, err = net.Listen("tcp", s.http.Addr)
	if err != nil {
		slog.Error().Err(err).Msg("HTTP failed to start TCP listener")
		s.notify <- err
		close(s.notify)
		return
	}
	slog.Info().Str("addr", s.listener.Addr().String()).Msg("HTTP listening on tcp")
	readyFunc()

	// Listener go routine.
	go s.serve(ctx)

	// Wait for shutdown.
	<-ctx.Done()
	slog = log.With().Str("module", "web").Str("phase", "shutdown").Logger()
	slog.Debug().Msg("HTTP server shutting down on request")

	// In-flight routing gets a moment to finish before connections are cut.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		slog.Error().Err(err).Msg("HTTP server shutdown error")
	}
}

// serve begins serving HTTP requests.
func (s *Server) serve(ctx context.Context) {
	// server.Serve blocks until we close the listener.
	err := s.http.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return
	}

	select {
	case <-ctx.Done():
		// Nop
	default:
		log.Error().Str("module", "web").Err(err).Msg("HTTP server failed")
		s.notify <- err
		close(s.notify)
	}
}

// Notify allows the running HTTP server to be monitored for a fatal error.
func (s *Server) Notify() <-chan error {
	return s.notify
}

// Drain causes the caller to block until Start has returned and in-flight requests are done.
func (s *Server) Drain() {
	<-s.done
	log.Debug().Str("module", "web").Str("phase", "shutdown").Msg("HTTP requests have drained")
}
