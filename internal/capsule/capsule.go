package capsule

import (
	"net/mail"
	"strings"
	"time"
)

// Status is the delivery state of a capsule.
type Status string

const (
	// StatusPending means the capsule has not been attempted yet. This is
	// the only state the delivery sweep picks up.
	StatusPending Status = "pending"

	// StatusSent means the mail transport accepted the message. Terminal.
	StatusSent Status = "sent"

	// StatusFailed means a send attempt failed. Terminal; there is no
	// automatic retry.
	StatusFailed Status = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSent, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s is an end state.
func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusFailed
}

// Capsule is a scheduled email waiting for its send time.
type Capsule struct {
	// ID is a ULID that uniquely identifies this capsule
	ID string

	// RecipientEmail is the address the capsule is delivered to
	RecipientEmail string

	// Subject is the email subject line
	Subject string

	// Body is the plain-text email body
	Body string

	// SendAt is the Unix timestamp (UTC instant) at which the capsule
	// becomes due
	SendAt int64

	// Status is the delivery state; transitions only happen in the sweep
	Status Status

	// ErrorMessage holds the delivery failure description (nullable, set
	// only when Status is failed)
	ErrorMessage *string

	// AttachmentName is the original filename of the attachment (nullable)
	AttachmentName *string

	// AttachmentBlob is the server-controlled stored blob name (nullable,
	// set iff AttachmentName is set)
	AttachmentBlob *string

	// CreatedAt is the Unix timestamp when the capsule was created
	CreatedAt int64
}

// HasAttachment reports whether an attachment was supplied at creation.
func (c *Capsule) HasAttachment() bool {
	return c.AttachmentBlob != nil && *c.AttachmentBlob != ""
}

// Due reports whether the capsule is a delivery candidate at the given time.
func (c *Capsule) Due(now time.Time) bool {
	return c.Status == StatusPending && c.SendAt <= now.Unix()
}

// Summary is the listing projection of a capsule (no body).
type Summary struct {
	ID             string  `json:"id"`
	RecipientEmail string  `json:"recipient_email"`
	Subject        string  `json:"subject"`
	SendAt         int64   `json:"send_at"`
	Status         Status  `json:"status"`
	ErrorMessage   *string `json:"error_message,omitempty"`
	AttachmentName *string `json:"attachment_filename,omitempty"`
	CreatedAt      int64   `json:"created_at"`
}

// ValidateRecipient checks that addr parses as a single RFC 5322 address
// with no display name tricks. Returns the bare address.
func ValidateRecipient(addr string) (string, error) {
	parsed, err := mail.ParseAddress(strings.TrimSpace(addr))
	if err != nil {
		return "", err
	}
	return parsed.Address, nil
}
