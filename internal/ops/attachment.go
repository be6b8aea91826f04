package ops

import (
	"context"
	"database/sql"
	"mime"
	"path/filepath"
	"strings"

	"github.com/Mk007V2/timecapsule/internal/attach"
	"github.com/Mk007V2/timecapsule/internal/db"
	"github.com/Mk007V2/timecapsule/internal/errors"
)

// AttachmentFetchInput contains parameters for the Attachment operation.
type AttachmentFetchInput struct {
	ID string
}

// AttachmentFetchOutput carries the attachment content for download.
type AttachmentFetchOutput struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Attachment loads the stored attachment blob for a capsule. A capsule
// without an attachment is a not-found, same as a missing capsule.
func Attachment(ctx context.Context, database *sql.DB, store *attach.Store, input AttachmentFetchInput) (*AttachmentFetchOutput, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}

	c, err := db.GetByID(ctx, database, id)
	if err != nil {
		return nil, err
	}
	if !c.HasAttachment() {
		return nil, errors.NewNoAttachment(id)
	}

	content, err := store.Read(*c.AttachmentBlob)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	filename := *c.AttachmentBlob
	if c.AttachmentName != nil {
		filename = *c.AttachmentName
	}

	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &AttachmentFetchOutput{
		Filename:    filename,
		ContentType: contentType,
		Content:     content,
	}, nil
}
