// Package render turns notification templates into subjects and message bodies.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"enterprise-api/backend/internal/notification/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

var emailSubjects = map[string]string{
	domain.TemplateWelcome:           "Welcome to {{.AppName}}",
	domain.TemplateEmailVerification: "Verify Your Email Address",
	domain.TemplatePasswordReset:     "Reset Your Password",
	domain.TemplatePasswordChanged:   "Password Changed Successfully",
	domain.TemplateTwoFactorCode:     "Your 2FA Code",
}

var smsTexts = map[string]string{
	domain.SMSTemplateTwoFactorCode:     "Your verification code is: {{.Code}}. This code will expire in 10 minutes.",
	domain.SMSTemplatePasswordResetCode: "Your password reset code is: {{.Code}}. This code will expire in 15 minutes.",
	domain.SMSTemplateLoginAlert:        "New login detected from {{.Location}}. If this wasn't you, please secure your account immediately.",
}

// Data is the template context. Keys of Request.Data map onto fields by name.
type Data struct {
	AppName         string
	Year            int
	Name            string
	VerificationURL string
	ResetURL        string
	Code            string
	Location        string
}

// Renderer renders email and SMS templates. Templates are parsed once by New.
type Renderer struct {
	appName string
	now     func() time.Time
	email   map[string]*template.Template
	sms     map[string]*texttemplate.Template
	subject map[string]*texttemplate.Template
}

// New parses the embedded templates. appName is injected into every context.
func New(appName string) (*Renderer, error) {
	r := &Renderer{
		appName: appName,
		now:     time.Now,
		email:   make(map[string]*template.Template, len(emailSubjects)),
		sms:     make(map[string]*texttemplate.Template, len(smsTexts)),
		subject: make(map[string]*texttemplate.Template, len(emailSubjects)),
	}
	for name, subject := range emailSubjects {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse email template %s: %w", name, err)
		}
		r.email[name] = t
		st, err := texttemplate.New(name).Parse(subject)
		if err != nil {
			return nil, fmt.Errorf("parse subject %s: %w", name, err)
		}
		r.subject[name] = st
	}
	for name, text := range smsTexts {
		t, err := texttemplate.New(name).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("parse sms template %s: %w", name, err)
		}
		r.sms[name] = t
	}
	return r, nil
}

// Email renders the named email template. Returns the subject and HTML body.
func (r *Renderer) Email(name string, data map[string]string) (subject, body string, err error) {
	t, ok := r.email[name]
	if !ok {
		return "", "", fmt.Errorf("unknown email template %q", name)
	}
	ctx := r.context(data)
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", ctx); err != nil {
		return "", "", fmt.Errorf("render email template %s: %w", name, err)
	}
	var sb strings.Builder
	if err := r.subject[name].Execute(&sb, ctx); err != nil {
		return "", "", fmt.Errorf("render subject %s: %w", name, err)
	}
	return sb.String(), buf.String(), nil
}

// SMS renders the named SMS template.
func (r *Renderer) SMS(name string, data map[string]string) (string, error) {
	t, ok := r.sms[name]
	if !ok {
		return "", fmt.Errorf("unknown sms template %q", name)
	}
	var sb strings.Builder
	if err := t.Execute(&sb, r.context(data)); err != nil {
		return "", fmt.Errorf("render sms template %s: %w", name, err)
	}
	return sb.String(), nil
}

func (r *Renderer) context(data map[string]string) Data {
	d := Data{
		AppName:         r.appName,
		Year:            r.now().Year(),
		Name:            data["name"],
		VerificationURL: data["verificationUrl"],
		ResetURL:        data["resetUrl"],
		Code:            data["code"],
		Location:        data["location"],
	}
	if d.Name == "" {
		d.Name = "User"
	}
	if d.Location == "" {
		d.Location = "an unknown location"
	}
	return d
}
