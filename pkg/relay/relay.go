// Package relay delivers forwarded mail through an SMTP smarthost.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/inbucket/mailroute/pkg/config"
	"github.com/inbucket/mailroute/pkg/forward"
	"github.com/inbucket/mailroute/pkg/message"
	"github.com/inbucket/mailroute/pkg/stringutil"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DialFunc opens a connection to the smarthost.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Relay sends messages to a smarthost, one SMTP transaction per destination address.
type Relay struct {
	Addr     string
	HeloName string
	// Sender overrides the envelope sender of forwarded mail when set.
	Sender string
	// Verified lists the destinations mail may be forwarded to; empty allows all.
	Verified []string
	Timeout  time.Duration
	// UnverifiedMessage is the error text for destinations missing from Verified.
	UnverifiedMessage string
	Dial              DialFunc

	logger zerolog.Logger
}

// New creates a Relay from conf.
func New(conf config.Relay, unverifiedMessage string) *Relay {
	var verified []string
	for _, v := range conf.Verified {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			verified = append(verified, v)
		}
	}
	dialer := &net.Dialer{Timeout: conf.Timeout}
	return &Relay{
		Addr:              conf.Addr,
		HeloName:          conf.HeloName,
		Sender:            conf.Sender,
		Verified:          verified,
		Timeout:           conf.Timeout,
		UnverifiedMessage: unverifiedMessage,
		Dial:              dialer.DialContext,
		logger:            log.With().Str("module", "relay").Str("smarthost", conf.Addr).Logger(),
	}
}

// Transport returns a route.Transport for msg.  Deliveries go through the relay; a reject is
// recorded for the caller to pass on to the sending server.
func (r *Relay) Transport(msg *message.Inbound) *Transport {
	return &Transport{relay: r, msg: msg}
}

// IsVerified returns true if address may receive forwarded mail.
func (r *Relay) IsVerified(address string) bool {
	if len(r.Verified) == 0 {
		return true
	}
	return stringutil.SliceContains(r.Verified, strings.ToLower(address))
}

// Send delivers msg to address with headers added.
func (r *Relay) Send(
	ctx context.Context,
	msg *message.Inbound,
	address string,
	headers forward.Headers,
) error {
	if !r.IsVerified(address) {
		return errors.New(r.UnverifiedMessage)
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	conn, err := r.Dial(ctx, "tcp", r.Addr)
	if err != nil {
		return wrapErr(err)
	}
	// The client manages per-command deadlines itself, so the context ends the session by
	// closing the connection.
	stop := context.AfterFunc(ctx, func() {
		if err := conn.Close(); err != nil {
			r.logger.Debug().Err(err).Msg("Close after context end failed")
		}
	})
	defer stop()

	c := smtp.NewClient(conn)
	defer c.Close()
	if r.Timeout > 0 {
		c.CommandTimeout = r.Timeout
		c.SubmissionTimeout = r.Timeout
	}

	if err := c.Hello(r.HeloName); err != nil {
		return wrapErr(err)
	}
	from := msg.From
	if r.Sender != "" {
		from = r.Sender
	}
	if err := c.Mail(from, nil); err != nil {
		return wrapErr(err)
	}
	if err := c.Rcpt(address, nil); err != nil {
		return wrapErr(err)
	}
	wc, err := c.Data()
	if err != nil {
		return wrapErr(err)
	}
	if err := msg.WriteTo(wc, headers); err != nil {
		wc.Close()
		return wrapErr(err)
	}
	if err := wc.Close(); err != nil {
		return wrapErr(err)
	}
	if err := c.Quit(); err != nil {
		r.logger.Debug().Err(err).Msg("QUIT failed after successful delivery")
	}

	r.logger.Debug().Str("destination", address).Int64("size", msg.Size).Msg("Relayed message")
	return nil
}

// wrapErr prefixes err so the forwarding engine can tell transient failures from permanent
// ones.  4xx replies and connection problems are temporary, other replies permanent.
func wrapErr(err error) error {
	var smtpErr *smtp.SMTPError
	if errors.As(err, &smtpErr) && smtpErr.Code/100 != 4 {
		return fmt.Errorf("permanent delivery failure: %w", err)
	}
	return fmt.Errorf("temporary delivery failure: %w", err)
}

// Transport routes one message through a Relay.
type Transport struct {
	relay *Relay
	msg   *message.Inbound

	mu       sync.Mutex
	reason   string
	rejected bool
}

// Deliver implements forward.Deliverer.
func (t *Transport) Deliver(ctx context.Context, address string, headers forward.Headers) error {
	return t.relay.Send(ctx, t.msg, address, headers)
}

// Reject records the reject reason.
func (t *Transport) Reject(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reason = reason
	t.rejected = true
}

// Rejected returns the reject reason, and whether the message was rejected at all.
func (t *Transport) Rejected() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason, t.rejected
}
