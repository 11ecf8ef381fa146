package sender

import (
	"context"
	"testing"

	"enterprise-api/backend/internal/logging"
)

type fakeSMS struct{ configured bool }

func (f fakeSMS) Send(context.Context, string, string) error { return nil }
func (f fakeSMS) Configured() bool                           { return f.configured }

func TestResolve_FallsBackToLog(t *testing.T) {
	email, sms, err := Resolve(SMTPConfig{}, fakeSMS{}, logging.Discard())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, ok := email.(*LogSender); !ok {
		t.Errorf("email sender = %T, want *LogSender", email)
	}
	if _, ok := sms.(*LogSender); !ok {
		t.Errorf("sms sender = %T, want *LogSender", sms)
	}
}

func TestResolve_NilSMS(t *testing.T) {
	_, sms, err := Resolve(SMTPConfig{}, nil, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, ok := sms.(*LogSender); !ok {
		t.Errorf("sms sender = %T, want *LogSender", sms)
	}
}

func TestResolve_UsesConfiguredChannels(t *testing.T) {
	email, sms, err := Resolve(SMTPConfig{Host: "smtp.example.com", Port: 587, From: "no-reply@example.com"}, fakeSMS{configured: true}, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, ok := email.(*SMTPSender); !ok {
		t.Errorf("email sender = %T, want *SMTPSender", email)
	}
	if _, ok := sms.(fakeSMS); !ok {
		t.Errorf("sms sender = %T, want fakeSMS", sms)
	}
}
