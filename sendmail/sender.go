package sendmail

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Credentials is the username/password pair handed to the transport for
// SMTP AUTH. It is passed through verbatim.
type Credentials struct {
	Username string
	Password string
}

// Sender holds the account a message is sent from. Create it with NewSender
// or NewSenderFromSecretFile; it is immutable afterwards.
type Sender struct {
	credentials Credentials
	address     string
	displayName *string
	replyTo     string
	provider    Provider
}

// SenderOption customizes a Sender at construction.
type SenderOption func(*senderOptions)

type senderOptions struct {
	fromAddress string
}

// WithFromAddress sets the From address to addr instead of the username.
func WithFromAddress(addr string) SenderOption {
	return func(o *senderOptions) {
		o.fromAddress = addr
	}
}

// secretFile is the on-disk shape of a password file.
type secretFile struct {
	Password string `toml:"password"`
}

// NewSender creates a Sender. The username doubles as the From address
// unless WithFromAddress is given. An empty displayName means no display
// name. The username, the From address and replyTo must all be bare valid
// addresses.
func NewSender(username, password, displayName string, provider Provider, replyTo string, opts ...SenderOption) (*Sender, error) {
	var o senderOptions
	for _, opt := range opts {
		opt(&o)
	}

	address, err := parseAddress(username)
	if err != nil {
		return nil, fmt.Errorf("username: %w", err)
	}
	if o.fromAddress != "" {
		from, err := parseAddress(o.fromAddress)
		if err != nil {
			return nil, fmt.Errorf("sender: %w", err)
		}
		address = from
	}
	reply, err := parseAddress(replyTo)
	if err != nil {
		return nil, fmt.Errorf("reply-to: %w", err)
	}

	return &Sender{
		credentials: Credentials{Username: username, Password: password},
		address:     address,
		displayName: optionalName(displayName),
		replyTo:     reply,
		provider:    provider,
	}, nil
}

// NewSenderFromSecretFile is NewSender with the password read from a TOML
// file of the form:
//
//	password = "app-specific-password"
//
// Other keys are ignored.
func NewSenderFromSecretFile(username, secretPath, displayName string, provider Provider, replyTo string, opts ...SenderOption) (*Sender, error) {
	raw, err := readFileLimited(secretPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSecretFileUnreadable, err)
	}

	var secret secretFile
	md, err := toml.Decode(string(raw), &secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSecretFileMalformed, secretPath, err)
	}
	if !md.IsDefined("password") {
		return nil, fmt.Errorf("%w: %s: missing \"password\" key", ErrSecretFileMalformed, secretPath)
	}

	return NewSender(username, secret.Password, displayName, provider, replyTo, opts...)
}

// Host returns the SMTP host of the sender's provider.
func (s *Sender) Host() string {
	return s.provider.Host()
}

func (s *Sender) Credentials() Credentials {
	return s.credentials
}

// Address returns the From address.
func (s *Sender) Address() string {
	return s.address
}

// DisplayName returns the From display name and whether one was set.
func (s *Sender) DisplayName() (string, bool) {
	return nameOf(s.displayName)
}

func (s *Sender) ReplyTo() string {
	return s.replyTo
}

func (s *Sender) Provider() Provider {
	return s.provider
}

// Mailbox returns the From mailbox.
func (s *Sender) Mailbox() Mailbox {
	name, _ := s.DisplayName()
	return Mailbox{Name: name, Address: s.address}
}
