// Package stdout implements a sendmail.Transport that prints messages
// instead of delivering them.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/docker/go-units"

	"github.com/shineum/smtp-send-lite/internal/parser"
	"github.com/shineum/smtp-send-lite/sendmail"
)

const separator = "========================================\n"

// Transport writes a human-readable summary of each message. The message is
// rendered and parsed back first, so the output reflects what would go on
// the wire.
type Transport struct {
	// writer is the output destination, defaulting to os.Stdout.
	writer io.Writer
}

// New creates a Transport that writes to os.Stdout.
func New() *Transport {
	return &Transport{writer: os.Stdout}
}

// NewWithWriter creates a Transport that writes to w.
func NewWithWriter(w io.Writer) *Transport {
	return &Transport{writer: w}
}

// Name returns the transport name.
func (t *Transport) Name() string {
	return "stdout"
}

// Submit prints msg. Bcc recipients are listed from the message because the
// rendered headers never carry them.
func (t *Transport) Submit(_ context.Context, msg *sendmail.Message) error {
	raw, err := msg.Render(false)
	if err != nil {
		return fmt.Errorf("failed to render message: %w", err)
	}
	wire, err := parser.Parse(raw)
	if err != nil {
		return fmt.Errorf("failed to parse rendered message: %w", err)
	}

	var b strings.Builder

	b.WriteString(separator)
	fmt.Fprintf(&b, "From: %s\n", wire.From)
	if wire.ReplyTo.Address != "" {
		fmt.Fprintf(&b, "Reply-To: %s\n", wire.ReplyTo)
	}
	fmt.Fprintf(&b, "To: %s\n", joinMailboxes(wire.To))
	if len(wire.Cc) > 0 {
		fmt.Fprintf(&b, "Cc: %s\n", joinMailboxes(wire.Cc))
	}
	if len(msg.Bcc) > 0 {
		fmt.Fprintf(&b, "Bcc (envelope only): %s\n", joinMailboxes(msg.Bcc))
	}
	fmt.Fprintf(&b, "Subject: %s\n", wire.Subject)
	if !wire.Date.IsZero() {
		fmt.Fprintf(&b, "Date: %s\n", wire.Date.Format(time.RFC1123Z))
	}
	if wire.MessageID != "" {
		fmt.Fprintf(&b, "Message-Id: <%s>\n", wire.MessageID)
	}
	fmt.Fprintf(&b, "Body (%s):\n", wire.Body.ContentType)
	b.WriteString(wire.Body.Text + "\n")

	if len(wire.Attachments) > 0 {
		attachments := make([]string, 0, len(wire.Attachments))
		for _, att := range wire.Attachments {
			attachments = append(attachments, fmt.Sprintf("%s (%s)", att.Filename, units.BytesSize(float64(len(att.Content)))))
		}
		fmt.Fprintf(&b, "Attachments: %s\n", strings.Join(attachments, ", "))
	}

	fmt.Fprintf(&b, "Size: %s\n", units.BytesSize(float64(len(raw))))
	b.WriteString(separator)

	if _, err := io.WriteString(t.writer, b.String()); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

func joinMailboxes(list []sendmail.Mailbox) string {
	parts := make([]string, 0, len(list))
	for _, mb := range list {
		parts = append(parts, mb.String())
	}
	return strings.Join(parts, ", ")
}
