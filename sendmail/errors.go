package sendmail

import "errors"

var (
	// ErrInvalidAddress indicates a sender, reply-to or recipient address
	// that does not parse as a bare RFC 5322 address.
	ErrInvalidAddress = errors.New("invalid email address")

	// ErrSecretFileUnreadable indicates the secret file could not be read.
	ErrSecretFileUnreadable = errors.New("secret file unreadable")

	// ErrSecretFileMalformed indicates the secret file is not valid TOML or
	// lacks a string "password" key.
	ErrSecretFileMalformed = errors.New("secret file malformed")

	// ErrBodyFileUnreadable indicates the body file could not be read as UTF-8 text.
	ErrBodyFileUnreadable = errors.New("body file unreadable")

	// ErrAttachmentUnreadable indicates an attachment file could not be read.
	ErrAttachmentUnreadable = errors.New("attachment unreadable")

	// ErrMessageBuild indicates the parts cannot form a valid message.
	ErrMessageBuild = errors.New("failed to build message")

	// ErrTransport indicates a failure while connecting, negotiating TLS,
	// authenticating or submitting the message.
	ErrTransport = errors.New("failed to submit message")

	// errFileTooLarge is wrapped by the file read errors above when a file
	// exceeds MaxFileSize.
	errFileTooLarge = errors.New("file exceeds size limit")
)
