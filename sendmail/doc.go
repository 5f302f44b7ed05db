// Package sendmail composes one email message and submits it over SMTP with
// STARTTLS.
//
// A message is built from three independent values:
//
//   - Sender: credentials, From mailbox, Reply-To and the Provider that
//     selects the SMTP host
//   - Content: subject, text or HTML body and file attachments, all read
//     into memory when the value is created
//   - Recipient: a mailbox tagged with a Role (To, Cc or Bcc)
//
// Addresses are validated when these values are created, so a Sender or
// Recipient that exists is known to be well formed.
//
// # Usage
//
//	sender, err := sendmail.NewSenderFromSecretFile(
//		"alice@example.com", ".password.toml", "Alice",
//		sendmail.Gmail, "alice@example.com",
//	)
//	if err != nil {
//		return err
//	}
//
//	content, err := sendmail.NewContent("Hi", "Hello!", false, "report.pdf")
//	if err != nil {
//		return err
//	}
//
//	bob, _ := sendmail.NewRecipient("Bob", "bob@example.com", sendmail.To)
//	carol, _ := sendmail.NewRecipient("", "carol@example.com", sendmail.Cc)
//
//	err = sendmail.Send(ctx, sender, content, []sendmail.Recipient{bob, carol})
//
// # Message shape
//
// The body is always multipart/mixed: the text part comes first, followed by
// one attachment part per file in the order given. Bcc recipients are only
// part of the SMTP envelope and never appear in the rendered headers.
//
// # Transports
//
// Send uses an SMTPTransport for the provider host on port 587 unless
// WithTransport supplies another Transport. Every transport makes exactly
// one delivery attempt. Send takes a context; its deadline bounds the whole
// SMTP dialogue.
//
// # Errors
//
// Failures can be matched with errors.Is:
//
//   - ErrInvalidAddress: an address does not parse
//   - ErrSecretFileUnreadable, ErrSecretFileMalformed: password file problems
//   - ErrBodyFileUnreadable, ErrAttachmentUnreadable: file read problems
//   - ErrMessageBuild: the parts cannot form a message, e.g. no recipients
//   - ErrTransport: connect, TLS, authentication or submission failed
package sendmail
