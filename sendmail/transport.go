package sendmail

import "context"

// Transport submits a finalized message. Implementations make exactly one
// delivery attempt and return an error unless the message was accepted for
// every envelope recipient.
type Transport interface {
	// Submit delivers msg. It blocks until the server has answered or ctx
	// is done.
	Submit(ctx context.Context, msg *Message) error

	// Name returns the human-readable name of this transport.
	Name() string
}
