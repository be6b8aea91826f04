package ops

import (
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Mk007V2/timecapsule/internal/attach"
	"github.com/Mk007V2/timecapsule/internal/capsule"
	"github.com/Mk007V2/timecapsule/internal/config"
	"github.com/Mk007V2/timecapsule/internal/db"
	"github.com/Mk007V2/timecapsule/internal/errors"
)

// AttachmentInput is an optional file supplied at creation time.
type AttachmentInput struct {
	Filename string
	Content  []byte
}

// CreateInput contains parameters for the Create operation.
type CreateInput struct {
	RecipientEmail string
	Subject        string
	Body           string
	SendAt         int64 // Unix timestamp, must be in the future
	Attachment     *AttachmentInput
}

// CreateOutput contains the result of the Create operation.
type CreateOutput struct {
	ID        string         `json:"id"`
	Status    capsule.Status `json:"status"`
	SendAt    int64          `json:"send_at"`
	CreatedAt int64          `json:"created_at"`
}

// Create validates and stores a new pending capsule, persisting the
// attachment blob first so a failed insert never leaves a dangling row.
func Create(ctx context.Context, database *sql.DB, store *attach.Store, cfg *config.Config, input CreateInput) (*CreateOutput, error) {
	recipient, err := capsule.ValidateRecipient(input.RecipientEmail)
	if err != nil {
		return nil, errors.NewInvalidRequest("recipient_email is not a valid address")
	}
	if strings.TrimSpace(input.Subject) == "" {
		return nil, errors.NewInvalidRequest("subject is required")
	}
	if input.Body == "" {
		return nil, errors.NewInvalidRequest("body is required")
	}

	now := time.Now().UTC()
	if input.SendAt <= now.Unix() {
		return nil, errors.NewInvalidRequest("send_at must be in the future")
	}

	var attachName, attachBlob *string
	if input.Attachment != nil {
		if strings.TrimSpace(input.Attachment.Filename) == "" {
			return nil, errors.NewInvalidRequest("attachment filename is required")
		}
		if size := int64(len(input.Attachment.Content)); size > cfg.MaxAttachmentBytes {
			return nil, errors.NewTooLarge(cfg.MaxAttachmentBytes, size)
		}

		blob := attach.StoredName(input.Attachment.Filename)
		if err := store.Save(blob, bytes.NewReader(input.Attachment.Content)); err != nil {
			return nil, err
		}
		name := input.Attachment.Filename
		attachName = &name
		attachBlob = &blob
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	c := &capsule.Capsule{
		ID:             id,
		RecipientEmail: recipient,
		Subject:        input.Subject,
		Body:           input.Body,
		SendAt:         input.SendAt,
		Status:         capsule.StatusPending,
		AttachmentName: attachName,
		AttachmentBlob: attachBlob,
		CreatedAt:      now.Unix(),
	}

	if err := db.Insert(ctx, database, c); err != nil {
		// The blob has no owner without its row
		if attachBlob != nil {
			_ = store.Remove(*attachBlob)
		}
		return nil, err
	}

	return &CreateOutput{
		ID:        id,
		Status:    capsule.StatusPending,
		SendAt:    input.SendAt,
		CreatedAt: c.CreatedAt,
	}, nil
}

// generateULID generates a new ULID.
func generateULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
