package rest

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/inbucket/mailroute/pkg/config"
	"github.com/inbucket/mailroute/pkg/extension"
	"github.com/inbucket/mailroute/pkg/kvstore/mem"
	"github.com/inbucket/mailroute/pkg/msghub"
	"github.com/inbucket/mailroute/pkg/relay"
	"github.com/inbucket/mailroute/pkg/resolve"
	"github.com/inbucket/mailroute/pkg/route"
	"github.com/inbucket/mailroute/pkg/server/web"
	"github.com/inbucket/mailroute/pkg/test"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const testMessage = "From: sender@example.com\r\nSubject: Hello\r\n\r\nBody text\r\n"

func testRestGet(url string) (*httptest.ResponseRecorder, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Add("Accept", "application/json")
	w := httptest.NewRecorder()
	web.Router.ServeHTTP(w, req)
	return w, nil
}

func testRestPost(url string, body string) (*httptest.ResponseRecorder, error) {
	req, err := http.NewRequest("POST", url, strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Add("Accept", "application/json")
	w := httptest.NewRecorder()
	web.Router.ServeHTTP(w, req)
	return w, nil
}

// testServer holds the collaborators behind the REST handlers.
type testServer struct {
	conf      *config.Root
	smarthost *test.Smarthost
	extHost   *extension.Host
	msgHub    *msghub.Hub
	logs      *bytes.Buffer
}

func setupWebServer(env config.Routing, stored map[string]string, verified ...string) *testServer {
	// Capture log output.
	buf := new(bytes.Buffer)
	log.Logger = zerolog.New(buf)

	conf := &config.Root{
		Routing: env,
		Store:   config.Store{Backend: "memory"},
		Relay: config.Relay{
			Addr:     "smarthost.test:25",
			HeloName: "mailroute.test",
			Verified: verified,
			Timeout:  5 * time.Second,
		},
		Web: config.Web{MaxMessageBytes: 1024},
	}
	resolver := resolve.NewResolver(&conf.Routing, mem.NewStore(stored))
	extHost := extension.NewHost()
	smarthost := test.NewSmarthost()
	rl := relay.New(conf.Relay, resolver.UnverifiedMessage())
	rl.Dial = smarthost.Dial
	msgHub := msghub.New(10, extHost)
	go msgHub.Start(context.Background())

	web.NewServer(conf, route.NewRouter(resolver, extHost), rl, extHost, msgHub)
	SetupRoutes(web.Router.PathPrefix("/api/").Subrouter())

	return &testServer{
		conf:      conf,
		smarthost: smarthost,
		extHost:   extHost,
		msgHub:    msgHub,
		logs:      buf,
	}
}
