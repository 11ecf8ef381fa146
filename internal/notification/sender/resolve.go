package sender

import (
	"github.com/sirupsen/logrus"
)

// ConfiguredSMS is an SMSSender that can report whether it has credentials (e.g. *sms.TwilioClient).
type ConfiguredSMS interface {
	SMSSender
	Configured() bool
}

// Resolve picks the delivery channels: SMTP when smtp.Host is set and sms when it is configured.
// Channels without configuration fall back to a LogSender.
func Resolve(smtp SMTPConfig, sms ConfiguredSMS, log logrus.FieldLogger) (EmailSender, SMSSender, error) {
	fallback := NewLogSender(log)

	var email EmailSender = fallback
	if smtp.Host != "" {
		s, err := NewSMTPSender(smtp)
		if err != nil {
			return nil, nil, err
		}
		email = s
	} else {
		fallback.log.Warn("MAIL_HOST not set; emails are logged instead of sent")
	}

	var text SMSSender = fallback
	if sms != nil && sms.Configured() {
		text = sms
	} else {
		fallback.log.Warn("Twilio not configured; SMS messages are logged instead of sent")
	}
	return email, text, nil
}
