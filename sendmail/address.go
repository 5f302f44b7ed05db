package sendmail

import (
	"fmt"

	"github.com/emersion/go-message/mail"
)

// Mailbox is a display name and address pair used in message headers.
// An empty Name means the mailbox is rendered as the address alone.
type Mailbox struct {
	Name    string
	Address string
}

func (m Mailbox) String() string {
	return m.mailAddress().String()
}

func (m Mailbox) mailAddress() *mail.Address {
	return &mail.Address{Name: m.Name, Address: m.Address}
}

// parseAddress validates s as a bare address (no display-name form) and
// returns its canonical spelling.
func parseAddress(s string) (string, error) {
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return "", fmt.Errorf("%w %q: %w", ErrInvalidAddress, s, err)
	}
	if addr.Name != "" {
		return "", fmt.Errorf("%w %q: display name not allowed here", ErrInvalidAddress, s)
	}
	return addr.Address, nil
}

// optionalName turns the constructor convention ("" means absent) into an
// explicit presence flag.
func optionalName(name string) *string {
	if name == "" {
		return nil
	}
	return &name
}

func nameOf(name *string) (string, bool) {
	if name == nil {
		return "", false
	}
	return *name, true
}
