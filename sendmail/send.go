package sendmail

import (
	"context"
	"fmt"
	"strings"
)

// Send composes a message from sender, content and recipients and submits
// it once. Composition errors are returned before any transport is
// contacted. Submission errors are wrapped with ErrTransport.
//
// Without WithTransport the message goes to sender.Host() on port 587 over
// STARTTLS, authenticated with the sender's credentials.
func Send(ctx context.Context, sender *Sender, content *Content, recipients []Recipient, opts ...Option) error {
	o := newOptions(opts)

	msg, err := compose(sender, content, recipients, o.now)
	if err != nil {
		return err
	}

	transport := o.transport
	if transport == nil {
		creds := sender.Credentials()
		transport = NewSMTPTransport(SMTPConfig{
			Host:      sender.Host(),
			Port:      o.port,
			Username:  creds.Username,
			Password:  creds.Password,
			TLSConfig: o.tlsConfig,
			LocalName: o.localName,
		})
	}

	env := msg.Envelope()
	o.logger.DebugContext(ctx, "submitting message",
		"transport", transport.Name(),
		"message_id", msg.MessageID,
		"from", env.From,
		"recipients", strings.Join(env.Recipients, ", "),
		"attachments", len(msg.Attachments),
	)

	if err := transport.Submit(ctx, msg); err != nil {
		return fmt.Errorf("%w via %s: %w", ErrTransport, transport.Name(), err)
	}

	o.logger.DebugContext(ctx, "message accepted",
		"transport", transport.Name(),
		"message_id", msg.MessageID,
	)
	return nil
}
