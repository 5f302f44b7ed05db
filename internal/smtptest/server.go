// Package smtptest runs an in-process SMTP server that requires STARTTLS and
// AUTH, and records what clients submit to it.
package smtptest

import (
	"crypto/tls"
	"errors"
	"io"
	"net"
	"slices"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/docker/go-units"
	"github.com/emersion/go-smtp"
	"github.com/stretchr/testify/require"

	smtptls "github.com/shineum/smtp-send-lite/internal/tls"
)

// maxMessageSize caps the DATA the server keeps for a single message.
const maxMessageSize = 30 * units.MiB

// Config controls the behavior of a test server.
type Config struct {
	// Username and Password are the only credentials accepted by AUTH.
	Username string
	Password string

	// Reject lists recipient addresses refused at RCPT TO with 550.
	Reject []string

	// DisableTLS stops the server from advertising STARTTLS.
	DisableTLS bool
}

// Delivery is one message accepted by the server.
type Delivery struct {
	Username   string
	From       string
	Recipients []string
	Data       []byte
}

// Server is an in-process SMTP server listening on 127.0.0.1.
type Server struct {
	*Backend

	srv  *smtp.Server
	ln   net.Listener
	cert *tls.Certificate
}

// Start launches a server on an ephemeral port. It is closed when the test
// finishes.
func Start(t testing.TB, cfg Config) *Server {
	t.Helper()

	cert, err := smtptls.GenerateSelfSignedCert()
	require.NoError(t, err)

	be := &Backend{
		username: cfg.Username,
		password: cfg.Password,
		reject:   slices.Clone(cfg.Reject),
	}

	srv := smtp.NewServer(be)
	srv.Domain = "localhost"
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.MaxMessageBytes = int(maxMessageSize)
	// AUTH is only offered once the connection is encrypted.
	srv.AllowInsecureAuth = false
	if !cfg.DisableTLS {
		srv.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{*cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &Server{Backend: be, srv: srv, ln: ln, cert: cert}
	go srv.Serve(ln)
	t.Cleanup(s.Close)

	return s
}

// Close stops the server.
func (s *Server) Close() {
	s.srv.Close()
}

// Addr returns the host:port of the server.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Host returns the listening IP.
func (s *Server) Host() string {
	return s.ln.Addr().(*net.TCPAddr).IP.String()
}

// Port returns the listening port.
func (s *Server) Port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

// PortString is Port as a string, for configuration values.
func (s *Server) PortString() string {
	return strconv.Itoa(s.Port())
}

// ClientTLSConfig returns a client configuration that trusts the server's
// self-signed certificate.
func (s *Server) ClientTLSConfig() *tls.Config {
	return &tls.Config{
		RootCAs:    smtptls.CertPool(s.cert),
		MinVersion: tls.VersionTLS12,
	}
}

// CertPEM returns the server certificate in PEM form.
func (s *Server) CertPEM() []byte {
	return smtptls.EncodeCertPEM(s.cert)
}

// Backend implements smtp.Backend and keeps accepted messages in memory.
// It is safe for concurrent sessions.
type Backend struct {
	username string
	password string
	reject   []string

	mu         sync.Mutex
	deliveries []Delivery
	logins     int
}

// Login implements smtp.Backend.
func (be *Backend) Login(_ *smtp.ConnectionState, username, password string) (smtp.Session, error) {
	be.mu.Lock()
	be.logins++
	be.mu.Unlock()

	if username != be.username || password != be.password {
		return nil, &smtp.SMTPError{
			Code:         535,
			EnhancedCode: smtp.EnhancedCode{5, 7, 8},
			Message:      "authentication credentials invalid",
		}
	}
	return &session{backend: be, username: username}, nil
}

// AnonymousLogin implements smtp.Backend. AUTH is always required.
func (be *Backend) AnonymousLogin(_ *smtp.ConnectionState) (smtp.Session, error) {
	return nil, smtp.ErrAuthUnsupported
}

// Deliveries returns a copy of the accepted messages in arrival order.
func (be *Backend) Deliveries() []Delivery {
	be.mu.Lock()
	defer be.mu.Unlock()
	return slices.Clone(be.deliveries)
}

// Logins returns the number of AUTH attempts seen.
func (be *Backend) Logins() int {
	be.mu.Lock()
	defer be.mu.Unlock()
	return be.logins
}

func (be *Backend) save(d Delivery) {
	be.mu.Lock()
	defer be.mu.Unlock()
	be.deliveries = append(be.deliveries, d)
}

// session implements smtp.Session for one authenticated connection.
type session struct {
	backend  *Backend
	username string
	from     string
	rcpts    []string
}

func (s *session) Reset() {
	s.from = ""
	s.rcpts = nil
}

func (s *session) Logout() error { return nil }

func (s *session) Mail(from string, _ smtp.MailOptions) error {
	s.from = from
	return nil
}

func (s *session) Rcpt(to string) error {
	if slices.Contains(s.backend.reject, to) {
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 1, 1},
			Message:      "mailbox unavailable",
		}
	}
	s.rcpts = append(s.rcpts, to)
	return nil
}

func (s *session) Data(r io.Reader) error {
	if s.from == "" && len(s.rcpts) == 0 {
		return errors.New("no envelope")
	}
	buf, err := io.ReadAll(io.LimitReader(r, maxMessageSize))
	if err != nil {
		return err
	}
	s.backend.save(Delivery{
		Username:   s.username,
		From:       s.from,
		Recipients: slices.Clone(s.rcpts),
		Data:       buf,
	})
	return nil
}
