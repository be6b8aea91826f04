// Package sweep implements the periodic delivery pass over due capsules.
// It is the only component that moves a capsule out of pending: to sent
// when the transport accepts the message, to failed when the attempt
// errors. Both transitions are terminal.
package sweep

import (
	"context"
	"database/sql"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Mk007V2/timecapsule/internal/attach"
	"github.com/Mk007V2/timecapsule/internal/capsule"
	"github.com/Mk007V2/timecapsule/internal/config"
	"github.com/Mk007V2/timecapsule/internal/db"
	"github.com/Mk007V2/timecapsule/internal/errors"
	"github.com/Mk007V2/timecapsule/internal/mail"
)

// Report summarizes one sweep pass.
type Report struct {
	// Due is the number of delivery candidates at pass start
	Due int
	// Sent and Failed count capsules that reached a terminal status
	Sent   int
	Failed int
	// Skipped counts capsules that disappeared or turned terminal between
	// selection and the status write (deleted mid-pass, concurrent sweep)
	Skipped int
}

// Sweeper owns the store handle, the mail sender, and the clock. Construct
// with New, then either Run for the periodic loop or SweepOnce for a
// single pass.
type Sweeper struct {
	db          *sql.DB
	sender      mail.Sender
	attachments *attach.Store
	from        string
	interval    time.Duration
	log         *slog.Logger

	// Now is the clock used for the due comparison. Tests replace it.
	Now func() time.Time

	running atomic.Bool
}

// New creates a sweeper. The interval and sender address come from cfg.
func New(database *sql.DB, sender mail.Sender, attachments *attach.Store, cfg *config.Config) *Sweeper {
	interval := time.Duration(cfg.SweepIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		db:          database,
		sender:      sender,
		attachments: attachments,
		from:        cfg.Mail.Sender(),
		interval:    interval,
		log:         slog.Default().With("component", "sweep"),
		Now:         time.Now,
	}
}

// Run executes sweep passes on the configured interval until ctx is
// cancelled. Passes never overlap: if one is still in flight when the next
// tick fires, the tick is skipped.
func (s *Sweeper) Run(ctx context.Context) {
	s.log.Info("delivery sweep started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("delivery sweep stopped")
			return
		case <-ticker.C:
			if !s.running.CompareAndSwap(false, true) {
				s.log.Warn("previous sweep pass still running, skipping tick")
				continue
			}
			report, err := s.SweepOnce(ctx)
			s.running.Store(false)
			if err != nil {
				s.log.Error("sweep pass aborted", "error", err)
				continue
			}
			if report.Due > 0 {
				s.log.Info("sweep pass finished",
					"due", report.Due, "sent", report.Sent,
					"failed", report.Failed, "skipped", report.Skipped)
			}
		}
	}
}

// SweepOnce performs a single delivery pass: every capsule that is pending
// and due at pass start is attempted exactly once. Send failures are
// isolated per capsule. A configuration error from the sender is systemic:
// the pass aborts and no capsule is marked failed for it.
func (s *Sweeper) SweepOnce(ctx context.Context) (*Report, error) {
	now := s.Now().UTC()

	due, err := db.Due(ctx, s.db, now.Unix())
	if err != nil {
		return nil, err
	}

	report := &Report{Due: len(due)}

	for i := range due {
		c := &due[i]

		// Re-check right before dispatch: the capsule may have been
		// deleted (or a concurrent writer may have finished it) since
		// the due query ran. Dispatching then would send mail for a
		// record the user already removed.
		current, err := db.GetByID(ctx, s.db, c.ID)
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				report.Skipped++
				continue
			}
			return report, err
		}
		if current.Status != capsule.StatusPending {
			report.Skipped++
			continue
		}

		sendErr := s.deliver(ctx, current)
		if sendErr == nil {
			ok, err := db.MarkSent(ctx, s.db, c.ID)
			if err != nil {
				return report, err
			}
			if !ok {
				// Deleted between dispatch and the write; the email is
				// out, the record stays gone.
				report.Skipped++
				s.log.Warn("capsule deleted during delivery", "id", c.ID)
				continue
			}
			report.Sent++
			s.log.Info("capsule delivered", "id", c.ID, "recipient", current.RecipientEmail)
			continue
		}

		if errors.Is(sendErr, errors.ErrMailConfiguration) {
			return report, sendErr
		}

		ok, err := db.MarkFailed(ctx, s.db, c.ID, sendErr.Error())
		if err != nil {
			return report, err
		}
		if !ok {
			report.Skipped++
			continue
		}
		report.Failed++
		s.log.Warn("capsule delivery failed", "id", c.ID, "error", sendErr)
	}

	return report, nil
}

// deliver composes the message for a capsule and hands it to the sender.
func (s *Sweeper) deliver(ctx context.Context, c *capsule.Capsule) error {
	msg := &mail.Message{
		From:    s.from,
		To:      c.RecipientEmail,
		Subject: c.Subject,
		Body:    c.Body,
	}

	if c.HasAttachment() {
		content, err := s.attachments.Read(*c.AttachmentBlob)
		if err != nil {
			name := *c.AttachmentBlob
			if c.AttachmentName != nil {
				name = *c.AttachmentName
			}
			return errors.NewMailAttachment(name, err)
		}
		filename := *c.AttachmentBlob
		if c.AttachmentName != nil {
			filename = *c.AttachmentName
		}
		msg.Attachment = &mail.Attachment{
			Filename: filename,
			Content:  content,
		}
	}

	return s.sender.Send(ctx, msg)
}
