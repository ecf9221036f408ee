// Package mailsink is a local SMTP server that captures outbound mail instead of delivering it.
// It backs the development mailsink command and the transport tests.
package mailsink

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// Options configures the sink
type Options struct {
	Addr     string
	Domain   string
	Username string // empty disables authentication
	Password string
	// RejectRcpt, when set, may refuse a recipient to simulate delivery failures
	RejectRcpt func(rcpt string) error
	// TLSConfig, when set, makes the sink advertise STARTTLS
	TLSConfig *tls.Config
	Logger    *slog.Logger
}

// Server wraps a go-smtp server backed by a Store
type Server struct {
	opts  Options
	store *Store
	smtp  *smtp.Server
	log   *slog.Logger

	mu       sync.Mutex
	sessions int
	logins   int
}

// New creates a sink; call Serve or ListenAndServe to accept connections
func New(store *Store, opts Options) *Server {
	if opts.Domain == "" {
		opts.Domain = "localhost"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Server{opts: opts, store: store, log: logger}

	srv := smtp.NewServer(&backend{srv: s})
	srv.Addr = opts.Addr
	srv.Domain = opts.Domain
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.MaxMessageBytes = 10 * 1024 * 1024 // 10MB
	srv.MaxRecipients = 50
	srv.AllowInsecureAuth = opts.TLSConfig == nil
	srv.TLSConfig = opts.TLSConfig
	s.smtp = srv

	return s
}

// Serve accepts connections on l until Close is called
func (s *Server) Serve(l net.Listener) error {
	s.log.Info("SMTP sink listening", "addr", l.Addr().String())
	if err := s.smtp.Serve(l); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on Options.Addr
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}
	return s.Serve(l)
}

// Close stops the server
func (s *Server) Close() error {
	return s.smtp.Close()
}

// Store returns the backing store
func (s *Server) Store() *Store {
	return s.store
}

// Sessions returns how many SMTP sessions were opened
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions
}

// Logins returns how many sessions authenticated successfully
func (s *Server) Logins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logins
}

type backend struct {
	srv *Server
}

func (b *backend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	b.srv.mu.Lock()
	b.srv.sessions++
	b.srv.mu.Unlock()
	_, secure := c.TLSConnectionState()
	return &session{srv: b.srv, tls: secure}, nil
}

// session implements smtp.Session and smtp.AuthSession
type session struct {
	srv    *Server
	authed bool
	tls    bool
	from   string
	to     []string
}

func (s *session) AuthMechanisms() []string {
	return []string{sasl.Plain}
}

func (s *session) Auth(mech string) (sasl.Server, error) {
	return sasl.NewPlainServer(func(identity, username, password string) error {
		if username != s.srv.opts.Username || password != s.srv.opts.Password {
			return smtp.ErrAuthFailed
		}
		s.authed = true
		s.srv.mu.Lock()
		s.srv.logins++
		s.srv.mu.Unlock()
		return nil
	}), nil
}

func (s *session) Mail(from string, _ *smtp.MailOptions) error {
	if s.srv.opts.Username != "" && !s.authed {
		return smtp.ErrAuthRequired
	}
	s.from = from
	return nil
}

func (s *session) Rcpt(to string, _ *smtp.RcptOptions) error {
	if reject := s.srv.opts.RejectRcpt; reject != nil {
		if err := reject(to); err != nil {
			return err
		}
	}
	s.to = append(s.to, to)
	return nil
}

func (s *session) Data(r io.Reader) error {
	msg, err := parseMessage(r)
	if err != nil {
		s.srv.log.Warn("failed to parse message", "error", err)
		return err
	}
	msg.From = s.from
	msg.To = append([]string(nil), s.to...)
	msg.ReceivedAt = time.Now()
	msg.TLS = s.tls

	id := s.srv.store.Save(msg)
	s.srv.log.Info("message captured",
		"id", id,
		"from", msg.From,
		"to", strings.Join(msg.To, ","),
		"subject", msg.Subject,
	)
	return nil
}

func (s *session) Reset() {
	s.from = ""
	s.to = nil
}

func (s *session) Logout() error {
	return nil
}

// parseMessage reads headers and the text/html alternatives of a message
func parseMessage(r io.Reader) (*Message, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}

	subject, _ := mr.Header.Subject()
	msg := &Message{
		Subject: subject,
		Header: Header{
			From:      mr.Header.Get("From"),
			To:        mr.Header.Get("To"),
			ReplyTo:   mr.Header.Get("Reply-To"),
			MessageID: mr.Header.Get("Message-Id"),
		},
	}

	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read part: %w", err)
		}

		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		mediaType, _, _ := h.ContentType()
		body, err := io.ReadAll(p.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s part: %w", mediaType, err)
		}

		switch mediaType {
		case "text/plain":
			msg.TextBody = string(body)
		case "text/html":
			msg.HTMLBody = string(body)
		}
	}

	return msg, nil
}
