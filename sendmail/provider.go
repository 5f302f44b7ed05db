package sendmail

import (
	"fmt"
	"strings"
)

type providerKind int

const (
	providerCustom providerKind = iota
	providerGmail
	providerFastMail
	providerOutlook
	providerYahoo
)

// Provider selects the SMTP submission host. The zero value is Custom("").
type Provider struct {
	kind providerKind
	host string
}

var (
	Gmail    = Provider{kind: providerGmail}
	FastMail = Provider{kind: providerFastMail}
	Outlook  = Provider{kind: providerOutlook}
	Yahoo    = Provider{kind: providerYahoo}
)

// Custom returns a provider that submits to host verbatim.
func Custom(host string) Provider {
	return Provider{kind: providerCustom, host: host}
}

// Host returns the SMTP hostname for p. It has no side effects.
func (p Provider) Host() string {
	switch p.kind {
	case providerGmail:
		return "smtp.gmail.com"
	case providerFastMail:
		return "smtp.fastmail.com"
	case providerOutlook:
		return "smtp-mail.outlook.com"
	case providerYahoo:
		return "smtp.mail.yahoo.com"
	default:
		return p.host
	}
}

// IsCustom reports whether p carries a caller-supplied host.
func (p Provider) IsCustom() bool {
	return p.kind == providerCustom
}

func (p Provider) String() string {
	switch p.kind {
	case providerGmail:
		return "gmail"
	case providerFastMail:
		return "fastmail"
	case providerOutlook:
		return "outlook"
	case providerYahoo:
		return "yahoo"
	default:
		return "custom:" + p.host
	}
}

// ParseProvider maps a configuration name to a Provider. Known names are
// case-insensitive. "custom", or an empty name, yields Custom(host).
func ParseProvider(name, host string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "gmail":
		return Gmail, nil
	case "fastmail":
		return FastMail, nil
	case "outlook":
		return Outlook, nil
	case "yahoo":
		return Yahoo, nil
	case "custom", "":
		if host == "" {
			return Provider{}, fmt.Errorf("custom provider requires a host")
		}
		return Custom(host), nil
	default:
		return Provider{}, fmt.Errorf("unknown provider %q", name)
	}
}
