package db

import (
	"context"
	"database/sql"

	"github.com/Mk007V2/timecapsule/internal/capsule"
	"github.com/Mk007V2/timecapsule/internal/errors"
)

const capsuleColumns = `id, recipient_email, subject, body, send_at,
	status, error_message, attachment_name, attachment_blob, created_at`

// Insert stores a new capsule in the database.
func Insert(ctx context.Context, db *sql.DB, c *capsule.Capsule) error {
	query := `
		INSERT INTO capsules (
			id, recipient_email, subject, body, send_at,
			status, error_message, attachment_name, attachment_blob, created_at
		) VALUES (?, ?, ?, ?, ?, ?, NULL, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		c.ID, c.RecipientEmail, c.Subject, c.Body, c.SendAt,
		c.Status, toNullString(c.AttachmentName), toNullString(c.AttachmentBlob), c.CreatedAt,
	)
	if err != nil {
		return errors.NewInternal(err)
	}

	return nil
}

// GetByID retrieves a capsule by its ULID.
func GetByID(ctx context.Context, db *sql.DB, id string) (*capsule.Capsule, error) {
	query := `SELECT ` + capsuleColumns + ` FROM capsules WHERE id = ?`

	row := db.QueryRowContext(ctx, query, id)
	c, err := scanCapsule(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	return c, nil
}

// List returns capsule summaries ordered by creation time (newest first),
// plus the total row count for pagination.
func List(ctx context.Context, db *sql.DB, limit, offset int) ([]capsule.Summary, int, error) {
	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM capsules`).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := `
		SELECT id, recipient_email, subject, send_at, status,
			error_message, attachment_name, created_at
		FROM capsules
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var items []capsule.Summary
	for rows.Next() {
		var (
			s       capsule.Summary
			errMsg  sql.NullString
			attName sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.RecipientEmail, &s.Subject, &s.SendAt,
			&s.Status, &errMsg, &attName, &s.CreatedAt); err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		s.ErrorMessage = fromNullString(errMsg)
		s.AttachmentName = fromNullString(attName)
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	return items, total, nil
}

// Due returns all delivery candidates: capsules with status pending and
// send_at at or before now (unix seconds). Order is not significant.
func Due(ctx context.Context, db *sql.DB, now int64) ([]capsule.Capsule, error) {
	query := `
		SELECT ` + capsuleColumns + `
		FROM capsules
		WHERE status = ? AND send_at <= ?
		ORDER BY send_at
	`

	rows, err := db.QueryContext(ctx, query, capsule.StatusPending, now)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var due []capsule.Capsule
	for rows.Next() {
		c, err := scanCapsule(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		due = append(due, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return due, nil
}

// MarkSent transitions a capsule from pending to sent and clears any error
// message. The WHERE clause guards the pending->sent transition: if the
// capsule was deleted or already reached a terminal status, nothing is
// written and ok is false. A deleted row is never resurrected.
func MarkSent(ctx context.Context, db *sql.DB, id string) (bool, error) {
	query := `
		UPDATE capsules
		SET status = ?, error_message = NULL
		WHERE id = ? AND status = ?
	`

	result, err := db.ExecContext(ctx, query, capsule.StatusSent, id, capsule.StatusPending)
	if err != nil {
		return false, errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return rowsAffected > 0, nil
}

// MarkFailed transitions a capsule from pending to failed with a
// human-readable error message. Same guard semantics as MarkSent.
func MarkFailed(ctx context.Context, db *sql.DB, id, errMsg string) (bool, error) {
	query := `
		UPDATE capsules
		SET status = ?, error_message = ?
		WHERE id = ? AND status = ?
	`

	result, err := db.ExecContext(ctx, query, capsule.StatusFailed, errMsg, id, capsule.StatusPending)
	if err != nil {
		return false, errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return rowsAffected > 0, nil
}

// Delete removes a capsule row. The caller is responsible for removing the
// attachment blob. Returns NOT_FOUND if the row does not exist.
func Delete(ctx context.Context, db *sql.DB, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM capsules WHERE id = ?`, id)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(id)
	}

	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanCapsule.
type scanner interface {
	Scan(dest ...any) error
}

func scanCapsule(row scanner) (*capsule.Capsule, error) {
	var (
		c       capsule.Capsule
		errMsg  sql.NullString
		attName sql.NullString
		attBlob sql.NullString
	)

	err := row.Scan(
		&c.ID, &c.RecipientEmail, &c.Subject, &c.Body, &c.SendAt,
		&c.Status, &errMsg, &attName, &attBlob, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.ErrorMessage = fromNullString(errMsg)
	c.AttachmentName = fromNullString(attName)
	c.AttachmentBlob = fromNullString(attBlob)

	return &c, nil
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
