// Package sender delivers rendered notifications over SMTP and SMS.
package sender

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"enterprise-api/backend/internal/logging"
)

// EmailSender delivers one email. body is HTML when it starts with a tag, plain text otherwise.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMSSender delivers one text message.
type SMSSender interface {
	Send(ctx context.Context, to, body string) error
}

// LogSender writes messages to the log instead of delivering them. Used in development when no SMTP host or
// Twilio account is configured.
type LogSender struct {
	log logrus.FieldLogger
}

// NewLogSender returns a LogSender writing to log.
func NewLogSender(log logrus.FieldLogger) *LogSender {
	return &LogSender{log: logging.OrDiscard(log)}
}

// SendEmail logs the email.
func (s *LogSender) SendEmail(_ context.Context, to, subject, body string) error {
	s.log.WithFields(logrus.Fields{"to": to, "subject": subject, "bytes": len(body)}).
		Info("notification: email delivery disabled, message logged")
	return nil
}

// Send logs the text message, including its body so development codes are visible.
func (s *LogSender) Send(_ context.Context, to, body string) error {
	s.log.WithFields(logrus.Fields{"to": to, "body": body}).Info("notification: sms delivery disabled, message logged")
	return nil
}

func isHTML(body string) bool {
	return strings.HasPrefix(strings.TrimSpace(body), "<")
}
