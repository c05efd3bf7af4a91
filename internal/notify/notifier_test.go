package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shelfwise/shelfwise-core/internal/circulation"
	"github.com/shelfwise/shelfwise-core/internal/infrastructure/logging"
)

// fakeMailer records sent messages and can fail selected recipients.
type fakeMailer struct {
	sent    []fakeMessage
	failFor map[string]bool
}

type fakeMessage struct {
	to      string
	subject string
	body    string
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	if m.failFor[to] {
		return errors.New("relay rejected message")
	}
	m.sent = append(m.sent, fakeMessage{to: to, subject: subject, body: body})
	return nil
}

func overdueLoan(member, email, title string, daysOverdue int) circulation.OverdueLoan {
	due := time.Date(2026, time.March, 7, 0, 0, 0, 0, time.UTC)
	return circulation.OverdueLoan{
		BookTitle:   title,
		MemberName:  member,
		MemberEmail: email,
		IssueDate:   due.Add(-14 * 24 * time.Hour),
		DueDate:     due,
		DaysOverdue: daysOverdue,
	}
}

func TestNotifyOverdueMessage(t *testing.T) {
	mailer := &fakeMailer{}
	notifier := NewNotifier(mailer, logging.Discard(), "Springfield Public Library", time.UTC)

	notifier.NotifyOverdue(context.Background(),
		[]circulation.OverdueLoan{overdueLoan("Alice", "alice@example.com", "Dune", 6)})

	if len(mailer.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(mailer.sent))
	}

	msg := mailer.sent[0]
	if msg.to != "alice@example.com" {
		t.Errorf("to = %q", msg.to)
	}
	if msg.subject != "Library Book Overdue Notice" {
		t.Errorf("subject = %q", msg.subject)
	}

	for _, want := range []string{
		"Dear Alice,",
		"Title: Dune",
		"Due Date: March 07, 2026",
		"Days Overdue: 6",
		"Springfield Public Library",
	} {
		if !strings.Contains(msg.body, want) {
			t.Errorf("body missing %q:\n%s", want, msg.body)
		}
	}
}

func TestNotifyOverdueContinuesAfterFailure(t *testing.T) {
	mailer := &fakeMailer{failFor: map[string]bool{"bad@example.com": true}}
	notifier := NewNotifier(mailer, logging.Discard(), "", nil)

	notifier.NotifyOverdue(context.Background(), []circulation.OverdueLoan{
		overdueLoan("Bad", "bad@example.com", "Book One", 1),
		overdueLoan("Good", "good@example.com", "Book Two", 2),
	})

	if len(mailer.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(mailer.sent))
	}
	if mailer.sent[0].to != "good@example.com" {
		t.Errorf("delivered to %q, want good@example.com", mailer.sent[0].to)
	}
}

// A due date at midnight UTC falls on the previous calendar day for a
// library west of Greenwich; the notice must show the local date.
func TestNotifyOverdueUsesLibraryTimezone(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("loading timezone: %v", err)
	}

	mailer := &fakeMailer{}
	notifier := NewNotifier(mailer, logging.Discard(), "", loc)

	notifier.NotifyOverdue(context.Background(),
		[]circulation.OverdueLoan{overdueLoan("Alice", "alice@example.com", "Dune", 6)})

	if len(mailer.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(mailer.sent))
	}
	if !strings.Contains(mailer.sent[0].body, "Due Date: March 06, 2026") {
		t.Errorf("body not rendered in library timezone:\n%s", mailer.sent[0].body)
	}
}

func TestNewSchedulerRejectsBadExpression(t *testing.T) {
	notifier := NewNotifier(&fakeMailer{}, logging.Discard(), "", nil)
	if _, err := NewScheduler(nil, notifier, "not a cron line", logging.Discard()); err == nil {
		t.Error("NewScheduler() accepted an invalid cron expression")
	}
	if _, err := NewScheduler(nil, notifier, "0 8 * * *", logging.Discard()); err != nil {
		t.Errorf("NewScheduler() rejected a valid cron expression: %v", err)
	}
}
