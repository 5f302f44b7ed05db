package sendmail

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
)

// TextPart is the textual body of a message.
type TextPart struct {
	ContentType string // text/plain or text/html
	Text        string
}

// Message is a finalized message. Compose builds it; transports consume it.
type Message struct {
	From        Mailbox
	ReplyTo     Mailbox
	To          []Mailbox
	Cc          []Mailbox
	Bcc         []Mailbox
	Subject     string
	Date        time.Time
	MessageID   string // without angle brackets
	Body        TextPart
	Attachments []Attachment
}

// Envelope is the SMTP envelope of a message.
type Envelope struct {
	From       string
	Recipients []string
}

// Compose assembles sender, content and recipients into a Message.
// Recipients are routed to To, Cc or Bcc by role, keeping their relative
// order. It fails with ErrMessageBuild when there are no recipients and
// with ErrInvalidAddress when a recipient address does not parse.
func Compose(sender *Sender, content *Content, recipients []Recipient, opts ...Option) (*Message, error) {
	o := newOptions(opts)
	return compose(sender, content, recipients, o.now)
}

func compose(sender *Sender, content *Content, recipients []Recipient, now func() time.Time) (*Message, error) {
	if sender == nil {
		return nil, fmt.Errorf("%w: no sender", ErrMessageBuild)
	}
	if content == nil {
		return nil, fmt.Errorf("%w: no content", ErrMessageBuild)
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("%w: no recipients", ErrMessageBuild)
	}

	msg := &Message{
		From:    sender.Mailbox(),
		ReplyTo: Mailbox{Address: sender.ReplyTo()},
		Subject: content.Subject(),
		Date:    now(),
		Body: TextPart{
			ContentType: content.BodyContentType(),
			Text:        content.Body(),
		},
		Attachments: content.Attachments(),
	}
	msg.MessageID = uuid.NewString() + "@" + domainOf(msg.From.Address)

	for _, r := range recipients {
		// Zero-value Recipient literals never went through NewRecipient.
		addr, err := parseAddress(r.address)
		if err != nil {
			return nil, err
		}
		mb := Mailbox{Address: addr}
		mb.Name, _ = r.Name()

		switch r.role {
		case To:
			msg.To = append(msg.To, mb)
		case Cc:
			msg.Cc = append(msg.Cc, mb)
		case Bcc:
			msg.Bcc = append(msg.Bcc, mb)
		default:
			return nil, fmt.Errorf("%w: recipient %s has unknown role %d", ErrMessageBuild, addr, int(r.role))
		}
	}

	return msg, nil
}

// Envelope returns the reverse-path and the forward-paths (To, then Cc,
// then Bcc).
func (m *Message) Envelope() Envelope {
	env := Envelope{
		From:       m.From.Address,
		Recipients: make([]string, 0, len(m.To)+len(m.Cc)+len(m.Bcc)),
	}
	for _, list := range [][]Mailbox{m.To, m.Cc, m.Bcc} {
		for _, mb := range list {
			env.Recipients = append(env.Recipients, mb.Address)
		}
	}
	return env
}

// WriteTo writes the message in MIME form. The Bcc header is never written.
func (m *Message) WriteTo(w io.Writer) (int64, error) {
	raw, err := m.Render(false)
	if err != nil {
		return 0, err
	}
	n, err := w.Write(raw)
	return int64(n), err
}

// Render returns the message in MIME form: a multipart/mixed body whose
// first part is the text and whose following parts are the attachments in
// order. keepBcc writes a Bcc header for transports that take recipients
// from the headers.
func (m *Message) Render(keepBcc bool) ([]byte, error) {
	var h mail.Header
	h.Set("MIME-Version", "1.0")
	h.SetDate(m.Date)
	if m.MessageID != "" {
		h.SetMessageID(m.MessageID)
	}
	h.SetAddressList("From", mailAddresses([]Mailbox{m.From}))
	if m.ReplyTo.Address != "" {
		h.SetAddressList("Reply-To", mailAddresses([]Mailbox{m.ReplyTo}))
	}
	if len(m.To) > 0 {
		h.SetAddressList("To", mailAddresses(m.To))
	}
	if len(m.Cc) > 0 {
		h.SetAddressList("Cc", mailAddresses(m.Cc))
	}
	if keepBcc && len(m.Bcc) > 0 {
		h.SetAddressList("Bcc", mailAddresses(m.Bcc))
	}
	h.SetSubject(m.Subject)

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMessageBuild, err)
	}

	var th mail.InlineHeader
	th.SetContentType(m.Body.ContentType, map[string]string{"charset": "utf-8"})
	tw, err := mw.CreateSingleInline(th)
	if err != nil {
		return nil, fmt.Errorf("%w: text part: %w", ErrMessageBuild, err)
	}
	if _, err := io.WriteString(tw, m.Body.Text); err != nil {
		return nil, fmt.Errorf("%w: text part: %w", ErrMessageBuild, err)
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("%w: text part: %w", ErrMessageBuild, err)
	}

	for _, att := range m.Attachments {
		var ah mail.AttachmentHeader
		ah.SetContentType(att.ContentType, nil)
		ah.SetFilename(att.Filename)
		aw, err := mw.CreateAttachment(ah)
		if err != nil {
			return nil, fmt.Errorf("%w: attachment %s: %w", ErrMessageBuild, att.Filename, err)
		}
		if _, err := aw.Write(att.Content); err != nil {
			return nil, fmt.Errorf("%w: attachment %s: %w", ErrMessageBuild, att.Filename, err)
		}
		if err := aw.Close(); err != nil {
			return nil, fmt.Errorf("%w: attachment %s: %w", ErrMessageBuild, att.Filename, err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMessageBuild, err)
	}
	return buf.Bytes(), nil
}

func mailAddresses(list []Mailbox) []*mail.Address {
	addrs := make([]*mail.Address, 0, len(list))
	for _, mb := range list {
		addrs = append(addrs, mb.mailAddress())
	}
	return addrs
}

func domainOf(addr string) string {
	if i := strings.LastIndexByte(addr, '@'); i >= 0 {
		return addr[i+1:]
	}
	return "localhost"
}
