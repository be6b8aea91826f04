package ops

import (
	"context"
	"database/sql"
	"strings"

	"github.com/Mk007V2/timecapsule/internal/capsule"
	"github.com/Mk007V2/timecapsule/internal/db"
	"github.com/Mk007V2/timecapsule/internal/errors"
)

// FetchInput contains parameters for the Fetch operation.
type FetchInput struct {
	ID string
}

// FetchOutput contains the result of the Fetch operation.
type FetchOutput struct {
	ID             string         `json:"id"`
	RecipientEmail string         `json:"recipient_email"`
	Subject        string         `json:"subject"`
	Body           string         `json:"body"`
	SendAt         int64          `json:"send_at"`
	Status         capsule.Status `json:"status"`
	ErrorMessage   *string        `json:"error_message,omitempty"`
	AttachmentName *string        `json:"attachment_filename,omitempty"`
	CreatedAt      int64          `json:"created_at"`
}

// Fetch retrieves a single capsule by ID. The stored blob name is internal
// and never leaves this package.
func Fetch(ctx context.Context, database *sql.DB, input FetchInput) (*FetchOutput, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}

	c, err := db.GetByID(ctx, database, id)
	if err != nil {
		return nil, err
	}

	return &FetchOutput{
		ID:             c.ID,
		RecipientEmail: c.RecipientEmail,
		Subject:        c.Subject,
		Body:           c.Body,
		SendAt:         c.SendAt,
		Status:         c.Status,
		ErrorMessage:   c.ErrorMessage,
		AttachmentName: c.AttachmentName,
		CreatedAt:      c.CreatedAt,
	}, nil
}
