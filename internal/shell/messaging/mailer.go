package messaging

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"strings"
	"text/template"

	"sierra-export/internal/config"
	"sierra-export/internal/shell/executor"
)

// errorEmailTemplate is the body of the notice sent to the admin list
// when an export run logs errors or warnings.
var errorEmailTemplate = template.Must(template.New("error_email").Parse(
	`Errors and/or warnings were logged during an export job.

Export Instance: {{.InstanceID}}
View in admin:   {{.AdminURL}}

Export Type:     {{.TypeLabel}} ({{.TypeCode}})
Export Filter:   {{.FilterLabel}} ({{.FilterCode}})
{{- if .FilterOptions}}
Filter Parameters:
{{- range $key, $value := .FilterOptions}}
    {{$key}}: {{$value}}
{{- end}}
{{- end}}
Triggered By:    {{.Username}}
Started:         {{.Timestamp.Format "2006-01-02 15:04:05 MST"}}
Final Status:    {{.Status}}

Errors:          {{.Errors}}
Warnings:        {{.Warnings}}

Details are in the export log: {{.LogFile}}
`))

// sendFunc matches smtp.SendMail; swapped out in tests.
type sendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// EmailNotifier mails the admin list when a finished run carries
// errors or warnings. Clean runs send nothing.
type EmailNotifier struct {
	config config.MailConfig
	send   sendFunc
}

func NewEmailNotifier(mailConfig config.MailConfig) *EmailNotifier {
	return &EmailNotifier{config: mailConfig, send: smtp.SendMail}
}

func (n *EmailNotifier) ExportComplete(_ context.Context, notification executor.Notification) error {
	sendErrors := notification.Errors > 0 && n.config.EmailOnError
	sendWarnings := notification.Warnings > 0 && n.config.EmailOnWarning
	if !sendErrors && !sendWarnings {
		return nil
	}
	if len(n.config.Admins) == 0 {
		log.Printf("No admins configured - skipping error mail for export %s", notification.InstanceID)
		return nil
	}

	subject := buildSubject(notification.TypeCode, sendErrors, sendWarnings)

	var body strings.Builder
	if err := errorEmailTemplate.Execute(&body, notification); err != nil {
		return fmt.Errorf("failed to render error email: %w", err)
	}

	recipients := make([]string, 0, len(n.config.Admins))
	for _, admin := range n.config.Admins {
		recipients = append(recipients, admin.Email)
	}

	message := buildMessage(n.config.From, recipients, subject, body.String())

	var auth smtp.Auth
	if n.config.Username != "" {
		auth = smtp.PlainAuth("", n.config.Username, n.config.Password, n.config.Host)
	}

	if err := n.send(n.config.Addr(), auth, n.config.From, recipients, message); err != nil {
		return fmt.Errorf("failed to send error email: %w", err)
	}

	log.Printf("Sent error email for export %s to %d admins", notification.InstanceID, len(recipients))
	return nil
}

// buildSubject names what was logged: Errors, Warnings, or both.
func buildSubject(typeCode string, hasErrors, hasWarnings bool) string {
	switch {
	case hasErrors && hasWarnings:
		return fmt.Sprintf("%s Exporter Errors and Warnings", typeCode)
	case hasErrors:
		return fmt.Sprintf("%s Exporter Errors", typeCode)
	default:
		return fmt.Sprintf("%s Exporter Warnings", typeCode)
	}
}

func buildMessage(from string, to []string, subject, body string) []byte {
	var msg strings.Builder
	msg.WriteString("From: " + from + "\r\n")
	msg.WriteString("To: " + strings.Join(to, ", ") + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)
	return []byte(msg.String())
}
