package rest

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/inbucket/mailroute/pkg/extension/event"
	"github.com/inbucket/mailroute/pkg/msghub"
	"github.com/inbucket/mailroute/pkg/rest/model"
	"github.com/inbucket/mailroute/pkg/server/web"
	"github.com/rs/zerolog/log"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

var errMonitorClosed = errors.New("monitor closed")

// options for gorilla connection upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// decisionListener handles decisions from the msghub
type decisionListener struct {
	hub     *msghub.Hub              // Global decision hub
	c       chan event.RouteDecision // Queue of decisions from Receive()
	address string                   // Recipient to monitor, "" == all recipients
	closed  chan struct{}            // Closed by Close()
}

// newDecisionListener creates a listener and registers it.  Optional address parameter will
// restrict decisions sent to WebSocket to that recipient only.
func newDecisionListener(hub *msghub.Hub, address string) *decisionListener {
	dl := &decisionListener{
		hub:     hub,
		c:       make(chan event.RouteDecision, 100),
		address: strings.ToLower(address),
		closed:  make(chan struct{}),
	}
	hub.AddListener(dl)
	return dl
}

// Receive handles an incoming decision
func (dl *decisionListener) Receive(d event.RouteDecision) error {
	if dl.address != "" && dl.address != strings.ToLower(d.To) {
		// Did not match recipient
		return nil
	}
	select {
	case dl.c <- d:
	case <-dl.closed:
		return errMonitorClosed
	}
	return nil
}

// WSReader makes sure the websocket client is still connected, discards any messages from client
func (dl *decisionListener) WSReader(conn *websocket.Conn) {
	slog := log.With().Str("module", "rest").Str("proto", "WebSocket").
		Str("remote", conn.RemoteAddr().String()).Logger()
	defer dl.Close()
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		slog.Debug().Msg("Got pong")
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				// Unexpected close code
				slog.Warn().Err(err).Msg("Socket error")
			} else {
				slog.Debug().Msg("Closing socket")
			}
			break
		}
	}
}

// WSWriter makes sure the websocket client is still connected
func (dl *decisionListener) WSWriter(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		dl.Close()
	}()

	// Handle decisions from hub until decisionListener is closed
	for {
		select {
		case d := <-dl.c:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if conn.WriteJSON(monitorEvent(d)) != nil {
				// Write failed
				return
			}
		case <-dl.closed:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			// Send ping
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if conn.WriteMessage(websocket.PingMessage, []byte{}) != nil {
				// Write error
				return
			}
			log.Debug().Str("module", "rest").Str("proto", "WebSocket").
				Str("remote", conn.RemoteAddr().String()).Msg("Sent ping")
		}
	}
}

// Close removes the listener registration
func (dl *decisionListener) Close() {
	select {
	case <-dl.closed:
		// Already closed
	default:
		close(dl.closed)
		dl.hub.RemoveListener(dl)
	}
}

func monitorEvent(d event.RouteDecision) *model.JSONMonitorEventV1 {
	return &model.JSONMonitorEventV1{
		ID:        d.ID,
		From:      d.From,
		To:        d.To,
		Subject:   d.Subject,
		Size:      d.Size,
		Action:    d.Action,
		Phase:     d.Phase,
		Addresses: d.Addresses,
		Reason:    d.Reason,
	}
}

// monitor upgrades the connection to a websocket and streams decisions for address to it.
func monitor(w http.ResponseWriter, req *http.Request, ctx *web.Context, address string) error {
	// Upgrade to Websocket.
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		return err
	}
	web.WebSocketConnectsCurrent.Inc()
	defer func() {
		_ = conn.Close()
		web.WebSocketConnectsCurrent.Dec()
	}()
	log.Debug().Str("module", "rest").Str("proto", "WebSocket").
		Str("remote", conn.RemoteAddr().String()).Msg("Upgraded to WebSocket")
	// Create, register listener; then interact with conn.
	dl := newDecisionListener(ctx.MsgHub, address)
	go dl.WSWriter(conn)
	dl.WSReader(conn)
	return nil
}

// MonitorAllDecisionsV1 is a web handler which upgrades the connection to a websocket and notifies
// the client of every routing decision.
func MonitorAllDecisionsV1(
	w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	return monitor(w, req, ctx, "")
}

// MonitorAddressDecisionsV1 is a web handler which upgrades the connection to a websocket and
// notifies the client of decisions for a particular recipient address.
func MonitorAddressDecisionsV1(
	w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	return monitor(w, req, ctx, ctx.Vars["address"])
}

// RecentDecisionsV1 renders the decisions held in the monitor history, oldest first.
func RecentDecisionsV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	history := ctx.MsgHub.History()
	result := make([]*model.JSONMonitorEventV1, len(history))
	for i, d := range history {
		result[i] = monitorEvent(d)
	}
	return web.RenderJSON(w, result)
}
