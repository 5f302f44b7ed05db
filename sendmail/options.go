package sendmail

import (
	"crypto/tls"
	"io"
	"log/slog"
	"time"
)

// DefaultPort is the SMTP submission port used with STARTTLS.
const DefaultPort = 587

// Option configures Send and Compose.
type Option func(*options)

type options struct {
	transport Transport
	port      int
	tlsConfig *tls.Config
	localName string
	logger    *slog.Logger
	now       func() time.Time
}

func newOptions(opts []Option) *options {
	o := &options{
		port:   DefaultPort,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithTransport replaces the default SMTP transport.
func WithTransport(t Transport) Option {
	return func(o *options) {
		o.transport = t
	}
}

// WithPort sets the port of the default SMTP transport.
func WithPort(port int) Option {
	return func(o *options) {
		o.port = port
	}
}

// WithTLSConfig sets the TLS configuration used for STARTTLS by the default
// SMTP transport. ServerName is filled in from the provider host when empty.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(o *options) {
		o.tlsConfig = cfg
	}
}

// WithLocalName sets the EHLO name of the default SMTP transport.
func WithLocalName(name string) Option {
	return func(o *options) {
		o.localName = name
	}
}

// WithLogger sets the logger for submission diagnostics. Nothing is logged
// by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock sets the clock used for the Date header.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
