package test

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/emersion/go-smtp"
	"github.com/rs/zerolog/log"
)

// Smarthost is an SMTP server reached over in-memory pipes.  Plug Dial into a relay.Relay to
// capture what it sends.
type Smarthost struct {
	server   *smtp.Server
	listener *pipeListener

	mu       sync.Mutex
	rcptErr  map[string]error
	commands []string
	messages []string
}

// NewSmarthost creates and starts a Smarthost that accepts everything.
func NewSmarthost() *Smarthost {
	s := &Smarthost{
		listener: newPipeListener(),
		rcptErr:  make(map[string]error),
	}
	s.server = smtp.NewServer(s)
	s.server.Domain = "smarthost.test"
	s.server.AuthDisabled = true
	s.server.ErrorLog = smtpLogger{}
	go func() {
		_ = s.server.Serve(s.listener)
	}()
	return s
}

// RcptError makes the server answer RCPT TO for address with err, usually an *smtp.SMTPError.
func (s *Smarthost) RcptError(address string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rcptErr[strings.ToLower(address)] = err
}

// Dial opens a new session with the server.
func (s *Smarthost) Dial(ctx context.Context, network, addr string) (net.Conn, error) {
	client, server := net.Pipe()
	select {
	case s.listener.conns <- server:
		return client, nil
	case <-s.listener.done:
		return nil, net.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the server and drops open sessions.
func (s *Smarthost) Close() error {
	return s.server.Close()
}

// Commands returns every accepted envelope command, in order.
func (s *Smarthost) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// Messages returns the DATA of every accepted message, with "\n" line endings.
func (s *Smarthost) Messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}

// NewSession implements smtp.Backend.
func (s *Smarthost) NewSession(c *smtp.Conn) (smtp.Session, error) {
	s.record("EHLO " + c.Hostname())
	return &smarthostSession{host: s}, nil
}

func (s *Smarthost) record(cmd string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = append(s.commands, cmd)
}

// smarthostSession records one SMTP session.
type smarthostSession struct {
	host *Smarthost
}

func (ss *smarthostSession) Reset() {}

func (ss *smarthostSession) Logout() error {
	return nil
}

func (ss *smarthostSession) AuthPlain(username, password string) error {
	return smtp.ErrAuthUnsupported
}

func (ss *smarthostSession) Mail(from string, opts *smtp.MailOptions) error {
	ss.host.record("MAIL FROM:<" + from + ">")
	return nil
}

func (ss *smarthostSession) Rcpt(to string, opts *smtp.RcptOptions) error {
	ss.host.mu.Lock()
	err := ss.host.rcptErr[strings.ToLower(to)]
	ss.host.mu.Unlock()
	if err != nil {
		return err
	}
	ss.host.record("RCPT TO:<" + to + ">")
	return nil
}

func (ss *smarthostSession) Data(r io.Reader) error {
	ss.host.record("DATA")
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	ss.host.mu.Lock()
	defer ss.host.mu.Unlock()
	ss.host.messages = append(ss.host.messages, strings.ReplaceAll(string(b), "\r\n", "\n"))
	return nil
}

// pipeListener hands the server side of net.Pipe connections to smtp.Server.Serve.
type pipeListener struct {
	conns chan net.Conn
	done  chan struct{}
	once  sync.Once
}

func newPipeListener() *pipeListener {
	return &pipeListener{
		conns: make(chan net.Conn),
		done:  make(chan struct{}),
	}
}

func (l *pipeListener) Accept() (net.Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.done:
		return nil, net.ErrClosed
	}
}

func (l *pipeListener) Close() error {
	l.once.Do(func() { close(l.done) })
	return nil
}

func (l *pipeListener) Addr() net.Addr {
	return pipeAddr{}
}

type pipeAddr struct{}

func (pipeAddr) Network() string { return "pipe" }
func (pipeAddr) String() string  { return "smarthost.test:25" }

// smtpLogger sends go-smtp server errors to zerolog.
type smtpLogger struct{}

func (smtpLogger) Printf(format string, v ...any) {
	log.Debug().Str("module", "smarthost").Msgf(format, v...)
}

func (smtpLogger) Println(v ...any) {
	log.Debug().Str("module", "smarthost").Msg(fmt.Sprint(v...))
}
