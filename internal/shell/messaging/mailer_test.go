package messaging

import (
	"context"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"sierra-export/internal/config"
	"sierra-export/internal/core/domain"
	"sierra-export/internal/shell/executor"
)

type sentMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func testNotifier(mailConfig config.MailConfig) (*EmailNotifier, *[]sentMail) {
	var sent []sentMail
	notifier := NewEmailNotifier(mailConfig)
	notifier.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		sent = append(sent, sentMail{addr: addr, from: from, to: to, msg: string(msg)})
		return nil
	}
	return notifier, &sent
}

func testMailConfig() config.MailConfig {
	return config.MailConfig{
		Host: "smtp.example.edu",
		Port: 25,
		From: "sierra-export@example.edu",
		Admins: []config.Admin{
			{Name: "Jane Admin", Email: "jadmin@example.edu"},
			{Name: "ops", Email: "ops@example.edu"},
		},
		EmailOnError:   true,
		EmailOnWarning: true,
	}
}

func testNotification() executor.Notification {
	return executor.Notification{
		InstanceID:  "3f6c5a0e-7a31-4f3e-9a93-000000000001",
		AdminURL:    "https://catalog.example.edu/admin/export/exportinstance/3f6c5a0e-7a31-4f3e-9a93-000000000001",
		Status:      domain.StatusDoneWithErrors,
		Errors:      3,
		Warnings:    1,
		LogFile:     "/var/log/sierra-export/exporter.log",
		Timestamp:   time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC),
		TypeCode:    "BibsToSolr",
		TypeLabel:   "Bibs to Solr",
		FilterCode:  domain.FilterDateRange,
		FilterLabel: "Updated Date Range",
		FilterOptions: map[string]interface{}{
			"date_range_from": "2024-02-01",
			"date_range_to":   "2024-02-29",
		},
		Username: "jdoe",
	}
}

func TestEmailNotifierSendsOnErrors(t *testing.T) {
	notifier, sent := testNotifier(testMailConfig())

	if err := notifier.ExportComplete(context.Background(), testNotification()); err != nil {
		t.Fatalf("ExportComplete failed: %v", err)
	}

	if len(*sent) != 1 {
		t.Fatalf("expected 1 mail, got %d", len(*sent))
	}
	mail := (*sent)[0]
	if mail.addr != "smtp.example.edu:25" {
		t.Errorf("unexpected SMTP address: %s", mail.addr)
	}
	if len(mail.to) != 2 {
		t.Errorf("expected 2 recipients, got %v", mail.to)
	}
	if !strings.Contains(mail.msg, "Subject: BibsToSolr Exporter Errors and Warnings") {
		t.Errorf("unexpected subject in message:\n%s", mail.msg)
	}
}

func TestEmailBodyCarriesRunDetails(t *testing.T) {
	notifier, sent := testNotifier(testMailConfig())

	if err := notifier.ExportComplete(context.Background(), testNotification()); err != nil {
		t.Fatalf("ExportComplete failed: %v", err)
	}

	body := (*sent)[0].msg
	wantFragments := []string{
		"Export Instance: 3f6c5a0e-7a31-4f3e-9a93-000000000001",
		"View in admin:   https://catalog.example.edu/admin/export/exportinstance/3f6c5a0e-7a31-4f3e-9a93-000000000001",
		"Export Type:     Bibs to Solr (BibsToSolr)",
		"Export Filter:   Updated Date Range (updated_date_range)",
		"date_range_from: 2024-02-01",
		"date_range_to: 2024-02-29",
		"Triggered By:    jdoe",
		"Started:         2024-03-01 06:00:00 UTC",
		"Errors:          3",
		"Warnings:        1",
		"export log: /var/log/sierra-export/exporter.log",
	}
	for _, fragment := range wantFragments {
		if !strings.Contains(body, fragment) {
			t.Errorf("body missing %q:\n%s", fragment, body)
		}
	}
}

func TestEmailNotifierSkipsCleanRuns(t *testing.T) {
	notifier, sent := testNotifier(testMailConfig())

	notification := testNotification()
	notification.Errors = 0
	notification.Warnings = 0
	notification.Status = domain.StatusSuccess

	if err := notifier.ExportComplete(context.Background(), notification); err != nil {
		t.Fatalf("ExportComplete failed: %v", err)
	}
	if len(*sent) != 0 {
		t.Error("clean run should not send mail")
	}
}

func TestEmailNotifierHonorsConfigGates(t *testing.T) {
	mailConfig := testMailConfig()
	mailConfig.EmailOnError = false
	mailConfig.EmailOnWarning = false
	notifier, sent := testNotifier(mailConfig)

	if err := notifier.ExportComplete(context.Background(), testNotification()); err != nil {
		t.Fatalf("ExportComplete failed: %v", err)
	}
	if len(*sent) != 0 {
		t.Error("gated run should not send mail")
	}
}

func TestEmailNotifierWarningsOnlySubject(t *testing.T) {
	notifier, sent := testNotifier(testMailConfig())

	notification := testNotification()
	notification.Errors = 0
	notification.Status = domain.StatusSuccess

	if err := notifier.ExportComplete(context.Background(), notification); err != nil {
		t.Fatalf("ExportComplete failed: %v", err)
	}
	if !strings.Contains((*sent)[0].msg, "Subject: BibsToSolr Exporter Warnings") {
		t.Errorf("unexpected subject:\n%s", (*sent)[0].msg)
	}
}

func TestEmailNotifierNoAdmins(t *testing.T) {
	mailConfig := testMailConfig()
	mailConfig.Admins = nil
	notifier, sent := testNotifier(mailConfig)

	if err := notifier.ExportComplete(context.Background(), testNotification()); err != nil {
		t.Fatalf("ExportComplete failed: %v", err)
	}
	if len(*sent) != 0 {
		t.Error("no mail should be attempted without recipients")
	}
}
