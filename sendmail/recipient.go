package sendmail

import (
	"fmt"
	"strings"

	"github.com/emersion/go-message/mail"
)

// Role is the header a recipient is listed under.
type Role int

const (
	To Role = iota
	Cc
	Bcc
)

func (r Role) String() string {
	switch r {
	case To:
		return "To"
	case Cc:
		return "Cc"
	case Bcc:
		return "Bcc"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// ParseRole parses "to", "cc" or "bcc", ignoring case.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "to":
		return To, nil
	case "cc":
		return Cc, nil
	case "bcc":
		return Bcc, nil
	default:
		return 0, fmt.Errorf("unknown recipient role %q", s)
	}
}

// Recipient is one addressee of a message. A recipient wanted under two
// roles needs two entries.
type Recipient struct {
	name    *string
	address string
	role    Role
}

// NewRecipient validates address and returns a recipient. An empty name
// means the mailbox is rendered as the address alone.
func NewRecipient(name, address string, role Role) (Recipient, error) {
	if role < To || role > Bcc {
		return Recipient{}, fmt.Errorf("unknown recipient role %d", int(role))
	}
	addr, err := parseAddress(address)
	if err != nil {
		return Recipient{}, err
	}
	return Recipient{name: optionalName(name), address: addr, role: role}, nil
}

// AddressOnly returns a To recipient without a display name.
func AddressOnly(address string) (Recipient, error) {
	return NewRecipient("", address, To)
}

// ParseRecipient accepts either a bare address or the "Name <address>" form.
func ParseRecipient(s string, role Role) (Recipient, error) {
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return Recipient{}, fmt.Errorf("%w %q: %w", ErrInvalidAddress, s, err)
	}
	return NewRecipient(addr.Name, addr.Address, role)
}

// Name returns the display name and whether one was set.
func (r Recipient) Name() (string, bool) {
	return nameOf(r.name)
}

func (r Recipient) Address() string {
	return r.address
}

func (r Recipient) Role() Role {
	return r.role
}

// Mailbox returns the header mailbox for r.
func (r Recipient) Mailbox() Mailbox {
	name, _ := r.Name()
	return Mailbox{Name: name, Address: r.address}
}
