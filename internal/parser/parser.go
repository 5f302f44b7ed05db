// Package parser reads a rendered RFC 5322 message back into a
// sendmail.Message, decoding MIME parts with go-message.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"

	"github.com/shineum/smtp-send-lite/sendmail"
)

// Parse parses a raw message. The first inline text part becomes the body;
// parts with an attachment disposition or a filename become attachments in
// order. Nested multiparts are flattened. Unrecognized parts are logged as
// warnings and skipped.
func Parse(raw []byte) (*sendmail.Message, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if mr == nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if err != nil {
		slog.Warn("unknown charset, keeping raw bytes", "error", err)
	}

	if mediaType, params, err := mr.Header.ContentType(); err == nil &&
		strings.HasPrefix(mediaType, "multipart/") && params["boundary"] == "" {
		return nil, fmt.Errorf("multipart message missing boundary")
	}

	result := &sendmail.Message{
		To:  addressList(mr.Header, "To"),
		Cc:  addressList(mr.Header, "Cc"),
		Bcc: addressList(mr.Header, "Bcc"),
	}
	if from := addressList(mr.Header, "From"); len(from) > 0 {
		result.From = from[0]
	}
	if replyTo := addressList(mr.Header, "Reply-To"); len(replyTo) > 0 {
		result.ReplyTo = replyTo[0]
	}

	if result.Subject, err = mr.Header.Subject(); err != nil {
		slog.Warn("failed to decode subject, using raw value", "error", err)
		result.Subject = mr.Header.Get("Subject")
	}
	if mr.Header.Has("Message-Id") {
		if result.MessageID, err = mr.Header.MessageID(); err != nil {
			slog.Warn("failed to parse message id", "error", err)
		}
	}
	if mr.Header.Has("Date") {
		if result.Date, err = mr.Header.Date(); err != nil {
			slog.Warn("failed to parse date", "error", err)
		}
	}

	if err := parseParts(mr, result); err != nil {
		return nil, fmt.Errorf("failed to parse multipart message: %w", err)
	}
	return result, nil
}

func parseParts(mr *mail.Reader, result *sendmail.Message) error {
	haveBody := false

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return fmt.Errorf("failed to read next part: %w", err)
		}
		if part == nil {
			continue
		}

		content, err := io.ReadAll(part.Body)
		if err != nil {
			slog.Warn("failed to read part content", "error", err)
			continue
		}

		switch h := part.Header.(type) {
		case *mail.AttachmentHeader:
			mediaType, params, _ := h.ContentType()
			result.Attachments = append(result.Attachments, sendmail.Attachment{
				Filename:    filename(h, mediaType, params),
				ContentType: mediaType,
				Content:     content,
			})

		case *mail.InlineHeader:
			mediaType, params, err := h.ContentType()
			if err != nil || mediaType == "" {
				mediaType = "text/plain"
			}
			isText := mediaType == "text/plain" || mediaType == "text/html"

			switch {
			case isText && !haveBody:
				result.Body = sendmail.TextPart{ContentType: mediaType, Text: string(content)}
				haveBody = true
			case !isText && hasFilename(h, params):
				result.Attachments = append(result.Attachments, sendmail.Attachment{
					Filename:    filename(h, mediaType, params),
					ContentType: mediaType,
					Content:     content,
				})
			default:
				slog.Warn("unrecognized MIME part, skipping",
					"content_type", mediaType,
					"disposition", h.Get("Content-Disposition"),
				)
			}

		default:
			slog.Warn("unknown part header type, skipping")
		}
	}
}

type partHeader interface {
	ContentDisposition() (string, map[string]string, error)
}

func hasFilename(h partHeader, params map[string]string) bool {
	_, dparams, _ := h.ContentDisposition()
	return dparams["filename"] != "" || params["name"] != ""
}

// filename checks Content-Disposition, then the Content-Type "name"
// parameter, and finally derives a name from the media type.
func filename(h partHeader, mediaType string, params map[string]string) string {
	if _, dparams, err := h.ContentDisposition(); err == nil && dparams["filename"] != "" {
		return dparams["filename"]
	}
	if name := params["name"]; name != "" {
		return name
	}
	if _, sub, ok := strings.Cut(mediaType, "/"); ok && sub != "" {
		return "attachment." + sub
	}
	return "attachment"
}

// addressList parses an address header. Headers that fail RFC 5322 parsing
// fall back to a comma split so nothing is silently dropped.
func addressList(h mail.Header, key string) []sendmail.Mailbox {
	raw := h.Get(key)
	if raw == "" {
		return nil
	}

	addrs, err := h.AddressList(key)
	if err != nil {
		slog.Warn("failed to parse address list, splitting on commas",
			"header", key,
			"error", err,
		)
		var result []sendmail.Mailbox
		for _, p := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, sendmail.Mailbox{Address: trimmed})
			}
		}
		return result
	}

	result := make([]sendmail.Mailbox, 0, len(addrs))
	for _, a := range addrs {
		result = append(result, sendmail.Mailbox{Name: a.Name, Address: a.Address})
	}
	return result
}
