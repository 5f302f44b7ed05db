package sendmail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

const defaultDialTimeout = 30 * time.Second

var (
	errNoStartTLS = errors.New("server does not support STARTTLS")
	errNoAuthMech = errors.New("server offers neither PLAIN nor LOGIN authentication")
	errNoHost     = errors.New("no SMTP host configured")
)

// SMTPConfig holds the settings of an SMTPTransport.
type SMTPConfig struct {
	// Host is the server hostname. It may carry an explicit ":port".
	Host string

	// Port is used when Host has no port. Defaults to DefaultPort.
	Port int

	Username string
	Password string

	// TLSConfig is used for STARTTLS. ServerName defaults to the host.
	TLSConfig *tls.Config

	// LocalName is sent with EHLO. Defaults to "localhost".
	LocalName string

	DialTimeout time.Duration
}

// SMTPTransport submits messages over SMTP, upgrading the connection with
// STARTTLS and authenticating before MAIL FROM.
type SMTPTransport struct {
	config SMTPConfig
	dialer *net.Dialer
}

// NewSMTPTransport creates an SMTPTransport with defaults applied.
func NewSMTPTransport(cfg SMTPConfig) *SMTPTransport {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	return &SMTPTransport{
		config: cfg,
		dialer: &net.Dialer{Timeout: cfg.DialTimeout},
	}
}

// Name returns the transport name.
func (t *SMTPTransport) Name() string {
	return "smtp"
}

// Addr returns the host:port the transport dials.
func (t *SMTPTransport) Addr() string {
	if _, _, err := net.SplitHostPort(t.config.Host); err == nil {
		return t.config.Host
	}
	return net.JoinHostPort(t.config.Host, strconv.Itoa(t.config.Port))
}

func (t *SMTPTransport) serverName() string {
	if host, _, err := net.SplitHostPort(t.config.Host); err == nil {
		return host
	}
	return t.config.Host
}

// Submit runs one SMTP dialogue: EHLO, STARTTLS, AUTH, MAIL, RCPT for each
// envelope recipient, DATA and QUIT. The first rejection aborts the dialogue.
func (t *SMTPTransport) Submit(ctx context.Context, msg *Message) error {
	raw, err := msg.Render(false)
	if err != nil {
		return err
	}
	env := msg.Envelope()
	if len(env.Recipients) == 0 {
		return fmt.Errorf("%w: no recipients", ErrMessageBuild)
	}
	if t.serverName() == "" {
		return errNoHost
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	conn, err := t.dialer.DialContext(ctx, "tcp", t.Addr())
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", t.Addr(), err)
	}
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if err := t.converse(conn, env, raw); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", ctxErr, err)
		}
		return err
	}
	return nil
}

func (t *SMTPTransport) converse(conn net.Conn, env Envelope, raw []byte) error {
	c, err := smtp.NewClient(conn, t.serverName())
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to read greeting: %w", err)
	}
	defer c.Close()

	if t.config.LocalName != "" {
		if err := c.Hello(t.config.LocalName); err != nil {
			return fmt.Errorf("EHLO failed: %w", err)
		}
	}

	if ok, _ := c.Extension("STARTTLS"); !ok {
		return errNoStartTLS
	}
	if err := c.StartTLS(t.tlsConfig()); err != nil {
		return fmt.Errorf("STARTTLS failed: %w", err)
	}

	auth, err := t.saslClient(c)
	if err != nil {
		return err
	}
	if err := c.Auth(auth); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	if err := c.Mail(env.From, nil); err != nil {
		return fmt.Errorf("MAIL FROM <%s> rejected: %w", env.From, err)
	}
	for _, rcpt := range env.Recipients {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("RCPT TO <%s> rejected: %w", rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA rejected: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("message rejected: %w", err)
	}

	return c.Quit()
}

func (t *SMTPTransport) tlsConfig() *tls.Config {
	var cfg *tls.Config
	if t.config.TLSConfig != nil {
		cfg = t.config.TLSConfig.Clone()
	} else {
		cfg = &tls.Config{}
	}
	if cfg.ServerName == "" {
		cfg.ServerName = t.serverName()
	}
	if cfg.MinVersion == 0 {
		cfg.MinVersion = tls.VersionTLS12
	}
	return cfg
}

// saslClient picks PLAIN when offered, LOGIN otherwise.
func (t *SMTPTransport) saslClient(c *smtp.Client) (sasl.Client, error) {
	ok, params := c.Extension("AUTH")
	if !ok {
		return nil, errNoAuthMech
	}
	mechs := strings.Fields(strings.ToUpper(params))
	switch {
	case slices.Contains(mechs, "PLAIN"):
		return sasl.NewPlainClient("", t.config.Username, t.config.Password), nil
	case slices.Contains(mechs, "LOGIN"):
		return sasl.NewLoginClient(t.config.Username, t.config.Password), nil
	default:
		return nil, fmt.Errorf("%w (offered: %s)", errNoAuthMech, params)
	}
}
