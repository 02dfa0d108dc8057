// Package server wires the mailroute services together.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/inbucket/mailroute/pkg/config"
	"github.com/inbucket/mailroute/pkg/extension"
	"github.com/inbucket/mailroute/pkg/extension/luahost"
	"github.com/inbucket/mailroute/pkg/kvstore"
	"github.com/inbucket/mailroute/pkg/msghub"
	"github.com/inbucket/mailroute/pkg/relay"
	"github.com/inbucket/mailroute/pkg/resolve"
	"github.com/inbucket/mailroute/pkg/rest"
	"github.com/inbucket/mailroute/pkg/route"
	"github.com/inbucket/mailroute/pkg/server/web"
	"github.com/rs/zerolog/log"
)

// Services holds the configured services.
type Services struct {
	ExtHost   *extension.Host
	LuaHost   *luahost.Host
	MsgHub    *msghub.Hub
	Resolver  *resolve.Resolver
	Router    *route.Router
	Relay     *relay.Relay
	Store     kvstore.Store
	WebServer *web.Server
}

// FullAssembly wires up a complete mailroute environment.
func FullAssembly(conf *config.Root) (*Services, error) {
	// Configure extensions.
	extHost := extension.NewHost()
	luaHost, err := luahost.New(log.Logger, conf.Lua, extHost)
	if err != nil {
		return nil, fmt.Errorf("lua extension: %w", err)
	}

	// Configure routing.
	store, err := kvstore.FromConfig(conf.Store)
	if err != nil {
		return nil, err
	}
	resolver := resolve.NewResolver(&conf.Routing, store)
	if _, err := resolver.Policy(context.Background()); err != nil {
		// A store outage at startup is survivable; bad configuration is not.
		var cerr *resolve.ConfigError
		if errors.As(err, &cerr) {
			return nil, err
		}
		log.Warn().Str("module", "server").Str("phase", "startup").Err(err).
			Msg("Routing configuration not verified")
	}
	router := route.NewRouter(resolver, extHost)
	rl := relay.New(conf.Relay, resolver.UnverifiedMessage())

	// Configure routes and HTTP server.
	msgHub := msghub.New(conf.Web.MonitorHistory, extHost)
	webServer := web.NewServer(conf, router, rl, extHost, msgHub)
	rest.SetupRoutes(web.Router.PathPrefix("/api/").Subrouter())

	return &Services{
		ExtHost:   extHost,
		LuaHost:   luaHost,
		MsgHub:    msgHub,
		Resolver:  resolver,
		Router:    router,
		Relay:     rl,
		Store:     store,
		WebServer: webServer,
	}, nil
}

// Start all services, calls readyFunc once they are all accepting requests.
func (s *Services) Start(ctx context.Context, readyFunc func()) {
	go s.MsgHub.Start(ctx)
	go s.WebServer.Start(ctx, readyFunc)
}

// Notify returns a channel reporting fatal service errors.
func (s *Services) Notify() <-chan error {
	return s.WebServer.Notify()
}

// Drain blocks until all services have stopped, then releases store connections.
func (s *Services) Drain() {
	s.WebServer.Drain()
	if c, ok := s.Store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Error().Str("module", "server").Str("phase", "shutdown").Err(err).
				Msg("Failed to close store")
		}
	}
}
