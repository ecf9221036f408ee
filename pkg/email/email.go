package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"truelens-inquiry-api/config"
	"truelens-inquiry-api/internal/domain"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// ErrStartTLSUnavailable is returned when TLS is required but the server does not offer STARTTLS
var ErrStartTLSUnavailable = errors.New("smtp server does not support STARTTLS")

// SMTPTransport delivers mail through an authenticated SMTP relay.
// Every call opens its own session; the struct itself is read-only and safe for concurrent use.
type SMTPTransport struct {
	host      string
	port      string
	tlsMode   string
	username  string
	password  string
	localName string
	tlsConfig *tls.Config
	now       func() time.Time
}

// TransportOption customises an SMTPTransport
type TransportOption func(*SMTPTransport)

// WithTLSConfig replaces the client TLS config, e.g. to trust a private CA
func WithTLSConfig(cfg *tls.Config) TransportOption {
	return func(t *SMTPTransport) {
		t.tlsConfig = cfg
	}
}

// NewSMTPTransport creates a transport from the validated startup config
func NewSMTPTransport(cfg *config.Config, opts ...TransportOption) *SMTPTransport {
	t := &SMTPTransport{
		host:      cfg.SMTPHost,
		port:      cfg.SMTPPort,
		tlsMode:   cfg.SMTPTLSMode,
		username:  cfg.SMTPUsername,
		password:  cfg.SMTPPassword,
		localName: "localhost",
		tlsConfig: &tls.Config{
			ServerName: cfg.SMTPHost,
			MinVersion: tls.VersionTLS12,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// IsConfigured checks if the email service has valid SMTP configuration
func (t *SMTPTransport) IsConfigured() bool {
	return t.host != "" && t.username != "" && t.password != ""
}

// Verify opens a session, authenticates and quits without sending anything
func (t *SMTPTransport) Verify(ctx context.Context) error {
	c, stop, err := t.open(ctx)
	if err != nil {
		return err
	}
	defer stop()

	if err := c.Quit(); err != nil {
		return fmt.Errorf("smtp quit: %w", err)
	}
	return nil
}

// Send delivers one message over a fresh session
func (t *SMTPTransport) Send(ctx context.Context, msg *domain.OutboundMessage) error {
	raw, err := BuildMIME(msg, t.now())
	if err != nil {
		return err
	}

	c, stop, err := t.open(ctx)
	if err != nil {
		return err
	}
	defer stop()

	if err := c.Mail(msg.FromAddress, nil); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	if err := c.Rcpt(msg.ToAddress, nil); err != nil {
		return fmt.Errorf("smtp RCPT TO %s: %w", msg.ToAddress, err)
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp DATA rejected: %w", err)
	}

	if err := c.Quit(); err != nil {
		return fmt.Errorf("smtp quit: %w", err)
	}
	return nil
}

// open connects per the configured TLS mode and authenticates.
// The returned stop func releases the connection and the context watcher.
func (t *SMTPTransport) open(ctx context.Context) (*smtp.Client, func(), error) {
	c, stop, err := t.connect(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := t.authenticate(c); err != nil {
		stop()
		return nil, nil, err
	}
	return c, stop, nil
}

// connect returns a greeted client. In the STARTTLS modes a first plaintext
// EHLO checks for the extension; go-smtp only upgrades while building a client,
// so an upgrade happens on a second connection through NewClientStartTLS.
func (t *SMTPTransport) connect(ctx context.Context) (*smtp.Client, func(), error) {
	implicit := t.tlsMode == config.TLSModeImplicit

	conn, stop, err := t.dial(ctx, implicit)
	if err != nil {
		return nil, nil, err
	}
	c := smtp.NewClient(conn)
	if err := c.Hello(t.localName); err != nil {
		stop()
		return nil, nil, fmt.Errorf("smtp EHLO: %w", err)
	}

	if t.tlsMode != config.TLSModeStartTLS && t.tlsMode != config.TLSModeRequired {
		return c, stop, nil
	}
	if ok, _ := c.Extension("STARTTLS"); !ok {
		if t.tlsMode == config.TLSModeRequired {
			stop()
			return nil, nil, ErrStartTLSUnavailable
		}
		return c, stop, nil
	}
	_ = c.Quit()
	stop()

	conn, stop, err = t.dial(ctx, false)
	if err != nil {
		return nil, nil, err
	}
	c, err = smtp.NewClientStartTLS(conn, t.tlsConfig)
	if err != nil {
		stop()
		return nil, nil, fmt.Errorf("smtp STARTTLS: %w", err)
	}
	// The TLS handshake runs lazily, so certificate errors surface here
	if err := c.Hello(t.localName); err != nil {
		stop()
		return nil, nil, fmt.Errorf("smtp STARTTLS: %w", err)
	}
	return c, stop, nil
}

// dial opens the TCP (or implicit TLS) connection. Cancelling ctx closes it,
// which unblocks whatever command is pending on it.
func (t *SMTPTransport) dial(ctx context.Context, implicitTLS bool) (net.Conn, func(), error) {
	addr := net.JoinHostPort(t.host, t.port)
	dialer := &net.Dialer{}

	var conn net.Conn
	var err error
	if implicitTLS {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: t.tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	release := context.AfterFunc(ctx, func() { _ = conn.Close() })
	stop := func() {
		release()
		_ = conn.Close()
	}
	return conn, stop, nil
}

func (t *SMTPTransport) authenticate(c *smtp.Client) error {
	if t.username == "" {
		return nil
	}
	if err := c.Auth(sasl.NewPlainClient("", t.username, t.password)); err != nil {
		return fmt.Errorf("smtp authentication failed: %w", err)
	}
	return nil
}
