// Package notify sends overdue-loan reminders to members by email and
// runs the scheduled scan that finds them.
package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/shelfwise/shelfwise-core/internal/circulation"
	"github.com/shelfwise/shelfwise-core/internal/infrastructure/config"
	"github.com/shelfwise/shelfwise-core/internal/infrastructure/logging"
)

const overdueSubject = "Library Book Overdue Notice"

// Mailer delivers a single message. Implementations must be safe for
// concurrent use.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer sends mail through the configured SMTP relay, optionally
// upgrading the connection with STARTTLS before authenticating.
type SMTPMailer struct {
	cfg config.SMTPConfig
}

// NewSMTPMailer creates a Mailer from the smtp section of config.yaml.
func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

// Send delivers one message. Credentials are only presented after the
// connection is upgraded with STARTTLS; with STARTTLS disabled and a
// username set, plain auth over cleartext is refused.
func (m *SMTPMailer) Send(_ context.Context, to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", addr, err)
	}
	defer client.Close() //nolint:errcheck // best effort on error paths

	if m.cfg.StartTLS {
		if err := client.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
			return fmt.Errorf("starting TLS: %w", err)
		}
	}

	if m.cfg.Username != "" {
		if !m.cfg.StartTLS {
			return fmt.Errorf("refusing to authenticate without STARTTLS")
		}
		auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("authenticating: %w", err)
		}
	}

	if err := client.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("setting sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("setting recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("opening message body: %w", err)
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		m.cfg.From, to, subject, body)
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing message: %w", err)
	}

	return client.Quit()
}

// Notifier composes and sends overdue notices.
type Notifier struct {
	mailer      Mailer
	log         *logging.Logger
	libraryName string
	loc         *time.Location
}

// NewNotifier creates a Notifier. libraryName is used in the signature of
// outgoing notices; loc is the timezone due dates are rendered in (nil
// selects UTC).
func NewNotifier(mailer Mailer, log *logging.Logger, libraryName string, loc *time.Location) *Notifier {
	if libraryName == "" {
		libraryName = "Shelfwise"
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Notifier{
		mailer:      mailer,
		log:         log.With("component", "notify"),
		libraryName: libraryName,
		loc:         loc,
	}
}

// NotifyOverdue sends one reminder per overdue loan. A failure on one
// member is logged and does not stop notices to the rest.
func (n *Notifier) NotifyOverdue(ctx context.Context, loans []circulation.OverdueLoan) {
	for _, loan := range loans {
		body := n.composeOverdueMessage(loan)
		if err := n.mailer.Send(ctx, loan.MemberEmail, overdueSubject, body); err != nil {
			n.log.Error("sending overdue notice",
				"member", loan.MemberName, "isbn", loan.ISBN, "error", err)
			continue
		}
		n.log.Info("overdue notice sent",
			"member", loan.MemberName, "isbn", loan.ISBN, "days_overdue", loan.DaysOverdue)
	}
}

// composeOverdueMessage renders the reminder body for one overdue loan.
func (n *Notifier) composeOverdueMessage(loan circulation.OverdueLoan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", loan.MemberName)
	b.WriteString("This is a reminder that the following book is overdue:\n\n")
	fmt.Fprintf(&b, "Title: %s\n", loan.BookTitle)
	fmt.Fprintf(&b, "Due Date: %s\n", loan.DueDate.In(n.loc).Format("January 02, 2006"))
	fmt.Fprintf(&b, "Days Overdue: %d\n\n", loan.DaysOverdue)
	b.WriteString("Please return the book as soon as possible to avoid additional fees.\n\n")
	fmt.Fprintf(&b, "Best regards,\n%s", n.libraryName)
	return b.String()
}
