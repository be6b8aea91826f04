package mail

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"time"

	gomail "github.com/emersion/go-message/mail"
)

// Compose renders the message as an RFC 5322 document, multipart/mixed when
// an attachment is present.
func Compose(msg *Message) ([]byte, error) {
	var buf bytes.Buffer

	var h gomail.Header
	h.SetDate(time.Now().UTC())
	h.SetAddressList("From", []*gomail.Address{{Address: msg.From}})
	h.SetAddressList("To", []*gomail.Address{{Address: msg.To}})
	h.SetSubject(msg.Subject)

	if msg.Attachment == nil {
		h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
		w, err := gomail.CreateSingleInlineWriter(&buf, h)
		if err != nil {
			return nil, fmt.Errorf("create message writer: %w", err)
		}
		if _, err := io.WriteString(w, msg.Body); err != nil {
			return nil, fmt.Errorf("write body: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("finish message: %w", err)
		}
		return buf.Bytes(), nil
	}

	mw, err := gomail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create message writer: %w", err)
	}

	var th gomail.InlineHeader
	th.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	tw, err := mw.CreateSingleInline(th)
	if err != nil {
		return nil, fmt.Errorf("create body part: %w", err)
	}
	if _, err := io.WriteString(tw, msg.Body); err != nil {
		return nil, fmt.Errorf("write body: %w", err)
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("finish body part: %w", err)
	}

	var ah gomail.AttachmentHeader
	ah.SetFilename(msg.Attachment.Filename)
	ah.SetContentType(attachmentContentType(msg.Attachment), nil)
	aw, err := mw.CreateAttachment(ah)
	if err != nil {
		return nil, fmt.Errorf("create attachment part: %w", err)
	}
	if _, err := aw.Write(msg.Attachment.Content); err != nil {
		return nil, fmt.Errorf("write attachment: %w", err)
	}
	if err := aw.Close(); err != nil {
		return nil, fmt.Errorf("finish attachment part: %w", err)
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("finish message: %w", err)
	}
	return buf.Bytes(), nil
}

// attachmentContentType prefers the explicit type, then guesses from the
// extension, then falls back to octet-stream.
func attachmentContentType(a *Attachment) string {
	if a.ContentType != "" {
		return a.ContentType
	}
	if ct := mime.TypeByExtension(filepath.Ext(a.Filename)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
