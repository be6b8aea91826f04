// Package mail composes and delivers capsule emails over SMTP. Delivery
// failures carry one of the codes from internal/errors so the sweep can
// distinguish systemic configuration problems from per-capsule failures.
package mail

import "context"

// Attachment is a single file carried by a message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is a composed email ready for delivery.
type Message struct {
	From       string
	To         string
	Subject    string
	Body       string
	Attachment *Attachment
}

// Sender delivers a message synchronously: it returns once the transport
// accepted or refused the message. Sending is not idempotent; callers are
// responsible for not re-submitting a message that may have been delivered.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}
