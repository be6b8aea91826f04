package ops

import (
	"context"
	"database/sql"
	"strings"

	"github.com/Mk007V2/timecapsule/internal/attach"
	"github.com/Mk007V2/timecapsule/internal/db"
	"github.com/Mk007V2/timecapsule/internal/errors"
)

// DeleteInput contains parameters for the Delete operation.
type DeleteInput struct {
	ID string
}

// DeleteOutput contains the result of the Delete operation.
type DeleteOutput struct {
	Deleted bool   `json:"deleted"`
	ID      string `json:"id"`
}

// Delete removes a capsule in any status along with its attachment blob.
// Deleting a pending capsule cancels it: the sweep's guarded status write
// becomes a no-op if a delivery attempt is already in flight.
func Delete(ctx context.Context, database *sql.DB, store *attach.Store, input DeleteInput) (*DeleteOutput, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}

	c, err := db.GetByID(ctx, database, id)
	if err != nil {
		return nil, err
	}

	if err := db.Delete(ctx, database, id); err != nil {
		return nil, err
	}

	// Row first, blob second: a leftover blob is harmless, a row pointing
	// at a missing blob fails the sweep.
	if c.HasAttachment() {
		_ = store.Remove(*c.AttachmentBlob)
	}

	return &DeleteOutput{
		Deleted: true,
		ID:      id,
	}, nil
}
