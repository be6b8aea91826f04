package mail

import (
	"context"
	"fmt"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/Mk007V2/timecapsule/internal/config"
	"github.com/Mk007V2/timecapsule/internal/errors"
)

// SMTPSender delivers messages through a configured SMTP relay.
type SMTPSender struct {
	cfg config.MailConfig
}

// NewSMTPSender returns a sender for the given transport settings. The
// settings are validated on each Send so a fixed config.json picked up on
// restart takes effect without rewiring.
func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// validate fails fast before any network I/O when the transport settings
// are incomplete.
func (s *SMTPSender) validate() error {
	switch {
	case s.cfg.Server == "":
		return errors.NewMailConfiguration("mail server not configured")
	case s.cfg.Port <= 0 || s.cfg.Port > 65535:
		return errors.NewMailConfiguration(fmt.Sprintf("invalid mail port %d", s.cfg.Port))
	case s.cfg.Username == "" || s.cfg.Password == "":
		return errors.NewMailConfiguration("mail credentials not configured")
	case s.cfg.Sender() == "":
		return errors.NewMailConfiguration("mail sender address not configured")
	}
	return nil
}

// Send composes the message and walks the SMTP conversation. The returned
// error is always a *errors.CapsuleError with a mail failure code.
func (s *SMTPSender) Send(ctx context.Context, msg *Message) error {
	if err := s.validate(); err != nil {
		return err
	}

	raw, err := Compose(msg)
	if err != nil {
		return errors.NewMailTransport(err)
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Server, s.cfg.Port)

	var client *smtp.Client
	switch {
	case s.cfg.UseSSL:
		client, err = smtp.DialTLS(addr, nil)
	case s.cfg.UseTLS:
		client, err = smtp.DialStartTLS(addr, nil)
	default:
		client, err = smtp.Dial(addr)
	}
	if err != nil {
		return errors.NewMailConnection(s.cfg.Server, err)
	}
	defer client.Close()

	auth := sasl.NewPlainClient("", s.cfg.Username, s.cfg.Password)
	if err := client.Auth(auth); err != nil {
		return errors.NewMailAuth(err)
	}

	if err := client.Mail(s.cfg.Sender(), nil); err != nil {
		return classifyTransportErr(msg.To, err)
	}
	if err := client.Rcpt(msg.To, nil); err != nil {
		return errors.NewRecipientRejected(msg.To, err)
	}

	w, err := client.Data()
	if err != nil {
		return classifyTransportErr(msg.To, err)
	}
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return errors.NewMailTransport(err)
	}
	if err := w.Close(); err != nil {
		return classifyTransportErr(msg.To, err)
	}

	// Quit failures after the transport accepted the message are ignored:
	// the mail is already on its way.
	_ = client.Quit()

	return nil
}

// classifyTransportErr maps SMTP reply codes onto the failure taxonomy.
func classifyTransportErr(recipient string, err error) *errors.CapsuleError {
	if smtpErr, ok := err.(*smtp.SMTPError); ok {
		switch smtpErr.Code {
		case 530, 534, 535, 538:
			return errors.NewMailAuth(err)
		case 550, 551, 553:
			return errors.NewRecipientRejected(recipient, err)
		}
	}
	return errors.NewMailTransport(err)
}
